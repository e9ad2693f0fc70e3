package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		AppName          string
		Env              string // DEV (local; default), TEST, QA, PROD
		Build            string
		Debug            bool
		TestMode         bool
		SecretKey        string
		DefaultFromEmail mail.Address
		FrontendBaseURL  string
		RollbarToken     string
		SendgridApiKey   string

		Auth     AuthConfig
		Server   ServerConfig
		Database DatabaseConfig
		Redis    RedisConfig
		AI       AIConfig
	}

	AuthConfig struct {
		JWTExpirationDelta time.Duration
		SessionTTL         time.Duration
		BcryptCost         int
		LoginMaxAttempts   int64
		LoginWindow        time.Duration
	}

	ServerConfig struct {
		Host            string
		Address         string
		DebugHost       string
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		ShutdownTimeout time.Duration
	}

	DatabaseConfig struct {
		Engine        string // postgres | memory
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	RedisConfig struct {
		Addr           string
		Password       string
		DB             int
		DialTimeout    time.Duration
		MaxBackoff     time.Duration
		ConnectTimeout time.Duration
	}

	AIConfig struct {
		BaseURL          string
		APIKey           string
		Model            string
		Timeout          time.Duration
		CacheEnabled     bool
		CacheTTL         time.Duration
		BreakerThreshold int
		BreakerTimeout   time.Duration
	}
)

func (db DatabaseConfig) Address() string {
	return net.JoinHostPort(db.Host, db.Port)
}

// NewConfig reads the environment (and the optional `config/.env.<env>` file) once.
// Variables are prefixed with the env name, eg: DEV_SECRET_KEY, PROD_REDIS_ADDR.
func NewConfig() *Config {
	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	loadDotEnv(env)

	v := viper.New()
	v.SetTypeByDefaultValue(true)
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, env)

	return &Config{
		AppName:          v.GetString("app_name"),
		Env:              env,
		Build:            v.GetString("build"),
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("test_mode"),
		SecretKey:        v.GetString("secret_key"),
		DefaultFromEmail: mail.Address{Name: v.GetString("app_name"), Address: v.GetString("default_from_email")},
		FrontendBaseURL:  v.GetString("frontend_base_url"),
		RollbarToken:     v.GetString("rollbar_token"),
		SendgridApiKey:   v.GetString("sendgrid_api_key"),
		Auth: AuthConfig{
			JWTExpirationDelta: v.GetDuration("auth.jwt_expiration_delta"),
			SessionTTL:         v.GetDuration("auth.session_ttl"),
			BcryptCost:         v.GetInt("auth.bcrypt_cost"),
			LoginMaxAttempts:   v.GetInt64("auth.login_max_attempts"),
			LoginWindow:        v.GetDuration("auth.login_window"),
		},
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Address:         v.GetString("server.address"),
			DebugHost:       v.GetString("server.debug_host"),
			ReadTimeout:     v.GetDuration("server.read_timeout"),
			WriteTimeout:    v.GetDuration("server.write_timeout"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.admin_user"),
			AdminPassword: v.GetString("database.admin_password"),
			DisableTLS:    v.GetBool("database.disable_tls"),
		},
		Redis: RedisConfig{
			Addr:           v.GetString("redis.addr"),
			Password:       v.GetString("redis.password"),
			DB:             v.GetInt("redis.db"),
			DialTimeout:    v.GetDuration("redis.dial_timeout"),
			MaxBackoff:     v.GetDuration("redis.max_backoff"),
			ConnectTimeout: v.GetDuration("redis.connect_timeout"),
		},
		AI: AIConfig{
			BaseURL:          v.GetString("ai.base_url"),
			APIKey:           v.GetString("ai.api_key"),
			Model:            v.GetString("ai.model"),
			Timeout:          v.GetDuration("ai.timeout"),
			CacheEnabled:     v.GetBool("ai.cache_enabled"),
			CacheTTL:         v.GetDuration("ai.cache_ttl"),
			BreakerThreshold: v.GetInt("ai.breaker_threshold"),
			BreakerTimeout:   v.GetDuration("ai.breaker_timeout"),
		},
	}
}

func setDefaults(v *viper.Viper, env string) {
	v.SetDefault("app_name", "Elimu")
	v.SetDefault("build", "develop")
	v.SetDefault("debug", env == "DEV")
	v.SetDefault("test_mode", env == "TEST")
	v.SetDefault("secret_key", "k2#v9-mqe)t7rz!u^l0w@8a+cj4hx5$yd3fp(s6bng1o=ie*")
	v.SetDefault("default_from_email", "noreply@localhost")
	v.SetDefault("frontend_base_url", "http://localhost:3000")

	v.SetDefault("auth.jwt_expiration_delta", 60*time.Minute)
	v.SetDefault("auth.session_ttl", 7*24*time.Hour)
	v.SetDefault("auth.bcrypt_cost", 10)
	v.SetDefault("auth.login_max_attempts", int64(5))
	v.SetDefault("auth.login_window", 15*time.Minute)

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debug_host", ":4000")
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "elimu")
	v.SetDefault("database.user", "elimu")
	v.SetDefault("database.password", "elimu")
	v.SetDefault("database.admin_user", "postgres")
	v.SetDefault("database.admin_password", "postgres")
	v.SetDefault("database.disable_tls", env == "DEV" || env == "TEST")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.dial_timeout", 2*time.Second)
	v.SetDefault("redis.max_backoff", 2*time.Second)
	v.SetDefault("redis.connect_timeout", 30*time.Second)

	v.SetDefault("ai.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.model", "llama-3.3-70b-versatile")
	v.SetDefault("ai.timeout", 15*time.Second)
	v.SetDefault("ai.cache_enabled", true)
	v.SetDefault("ai.cache_ttl", time.Hour)
	v.SetDefault("ai.breaker_threshold", 5)
	v.SetDefault("ai.breaker_timeout", 30*time.Second)
}

// loadDotEnv loads `config/.env.<env>` if it exists (ignored if it does not).
func loadDotEnv(env string) {
	root, ok := ProjectRoot()
	if !ok {
		return
	}
	dotEnvPath := filepath.Join(root, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
}
