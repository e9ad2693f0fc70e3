package testutil

import (
	"context"
	"net/mail"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap/zaptest"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/auth"
	"github.com/trezcool/elimu/core/course"
	"github.com/trezcool/elimu/core/user"
	appfs "github.com/trezcool/elimu/fs"
	logsvc "github.com/trezcool/elimu/services/logger"
	kvstore "github.com/trezcool/elimu/storage/kv"
)

const DefaultPassword = "Pa$$w0rd!"

var (
	commonPwdOnce sync.Once
	templatesOnce sync.Once
)

// NewConfig returns a TEST config that never reaches the network.
func NewConfig() *core.Config {
	return &core.Config{
		AppName:          "Elimu",
		Env:              "TEST",
		Build:            "test",
		TestMode:         true,
		SecretKey:        "test-secret-key",
		DefaultFromEmail: mail.Address{Name: "Elimu", Address: "noreply@elimu.test"},
		FrontendBaseURL:  "http://localhost:3000",
		Auth: core.AuthConfig{
			JWTExpirationDelta: 60 * time.Minute,
			SessionTTL:         7 * 24 * time.Hour,
			BcryptCost:         4,
			LoginMaxAttempts:   5,
			LoginWindow:        15 * time.Minute,
		},
		Server: core.ServerConfig{
			Host:            "localhost",
			Address:         ":0",
			ShutdownTimeout: time.Second,
		},
		Database: core.DatabaseConfig{Engine: "memory"},
		Redis: core.RedisConfig{
			DialTimeout:    200 * time.Millisecond,
			MaxBackoff:     100 * time.Millisecond,
			ConnectTimeout: 2 * time.Second,
		},
		AI: core.AIConfig{
			BaseURL:          "http://127.0.0.1:0",
			APIKey:           "test-key",
			Model:            "llama-3.3-70b-versatile",
			Timeout:          2 * time.Second,
			CacheEnabled:     true,
			CacheTTL:         time.Hour,
			BreakerThreshold: 5,
			BreakerTimeout:   30 * time.Second,
		},
	}
}

// NewLogger writes through zaptest; rollbar reporting stays off.
func NewLogger(t *testing.T) *logsvc.RollbarLogger {
	logger := logsvc.NewRollbarLogger(zaptest.NewLogger(t), &core.Config{Env: "TEST"})
	logger.Enable(false)
	return logger
}

func NewTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

// NewValidator registers every custom validation, like the API does at startup.
func NewValidator(t *testing.T) (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := NewTranslator()
	core.InitValidators(validate, translator)
	user.RegisterValidators(validate, translator)

	commonPwdOnce.Do(func() {
		if err := user.LoadCommonPasswords(appfs.FS); err != nil {
			t.Fatalf("LoadCommonPasswords() failed: %v", err)
		}
	})
	return validate, translator
}

// ParseEmailTemplates loads the embedded email templates once per test binary.
func ParseEmailTemplates(t *testing.T) {
	templatesOnce.Do(func() {
		core.ParseEmailTemplates(appfs.FS, NewConfig(), NewLogger(t))
	})
}

// NewKV starts a miniredis server and connects a store to it.
func NewKV(t *testing.T) (*kvstore.RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	conf := NewConfig().Redis
	conf.Addr = mr.Addr()
	store, err := kvstore.Connect(context.Background(), conf, NewLogger(t))
	if err != nil {
		t.Fatalf("kvstore.Connect() failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func NewHasher() auth.Hasher {
	return auth.NewHasher(NewConfig().Auth.BcryptCost)
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email, pwd string,
	role auth.Role,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Email:     email,
		Role:      role,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		hash, err := NewHasher().Hash(pwd)
		if err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
		usr.PasswordHash = hash
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateCourse(t *testing.T, repo course.Repository, mentorID, title string, published bool, createdAt ...time.Time) course.Course {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	crs, err := repo.CreateCourse(context.Background(), course.Course{
		Title:       title,
		Description: title + " description",
		MentorID:    mentorID,
		IsPublished: published,
		CreatedAt:   tstamp,
		UpdatedAt:   tstamp,
	})
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return crs
}

func CreateModule(t *testing.T, repo course.Repository, courseID, title string, order int) course.Module {
	t.Helper()
	mod, err := repo.CreateModule(context.Background(), course.Module{
		CourseID:  courseID,
		Title:     title,
		Content:   title + " content",
		Order:     order,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateModule() failed: %v", err)
	}
	return mod
}

// Enroll enrolls the user, completing the enrollment at completedAt when given.
func Enroll(t *testing.T, repo course.Repository, userID, courseID string, completedAt ...time.Time) course.Enrollment {
	t.Helper()
	ctx := context.Background()
	enr, err := repo.CreateEnrollment(ctx, course.Enrollment{
		UserID:     userID,
		CourseID:   courseID,
		EnrolledAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}
	if len(completedAt) > 0 {
		if enr, err = repo.CompleteEnrollment(ctx, enr.ID, completedAt[0]); err != nil {
			t.Fatalf("Enroll() failed: %v", err)
		}
	}
	return enr
}
