package echoapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/auth"
	"github.com/trezcool/elimu/core/user"
	kvstore "github.com/trezcool/elimu/storage/kv"
)

const loginThrottleKey = "login:"

var (
	errLoginThrottled      = core.NewError(core.KindRateLimited, "too many login attempts, please try again later")
	errSessionNotFound     = core.NewError(core.KindNotFound, "no active session")
	errSessionsUnavailable = core.NewError(core.KindUpstreamUnavailable, "session store unavailable")
)

type authApi struct {
	svc      *user.Service
	issuer   *auth.Issuer
	sessions *kvstore.Sessions
	attempts *kvstore.Attempts
	validate *validator.Validate
	conf     *core.Config
	logger   core.Logger
}

func registerAuthAPI(g *echo.Group, authn echo.MiddlewareFunc, deps ServerDeps) {
	api := authApi{
		svc:      deps.UserSvc,
		issuer:   deps.Issuer,
		sessions: deps.Sessions,
		attempts: deps.Attempts,
		validate: deps.Validate,
		conf:     deps.Conf,
		logger:   deps.Logger,
	}

	ag := g.Group("/auth")

	// un-authed endpoints
	ag.POST("/register", api.register)
	ag.POST("/login", api.login)

	// authed endpoints
	ag.POST("/logout", api.logout, authn)
	ag.GET("/session", api.session, authn)
	ag.GET("/profile", api.profile, authn)
	ag.PUT("/profile", api.updateProfile, authn)
}

// Handlers

func (api *authApi) register(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	usr, err := api.svc.Register(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering user")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *authApi) login(ctx echo.Context) error {
	var data user.Login
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Login")
	}
	data.Email = core.CleanString(data.Email, true /* lower */)
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	reqCtx := ctx.Request().Context()
	if err := api.throttle(reqCtx, data.Email); err != nil {
		return err
	}

	usr, err := api.svc.Authenticate(reqCtx, data.Email, data.Password)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	if err = api.attempts.Reset(reqCtx, loginThrottleKey+data.Email); err != nil {
		api.logger.Warn(fmt.Sprintf("resetting login attempts of %s: %v", data.Email, err), err)
	}

	token, expiresAt, err := api.issuer.Issue(usr.Claim())
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	sess := Session{UserID: usr.ID, Email: usr.Email, Role: usr.Role, LoggedInAt: usr.LastLogin, ExpiresAt: expiresAt}
	if err = api.sessions.Put(reqCtx, usr.ID, sess); err != nil {
		api.logger.Warn(fmt.Sprintf("storing session of user %s: %v", usr.ID, err), err, usr)
	}

	return ctx.JSON(http.StatusOK, LoginResponse{AccessToken: token, ExpiresAt: expiresAt, User: usr})
}

// throttle counts the login attempts per email. The login stays open when the counter is unavailable.
func (api *authApi) throttle(ctx context.Context, email string) error {
	n, err := api.attempts.Hit(ctx, loginThrottleKey+email)
	if err != nil {
		api.logger.Warn(fmt.Sprintf("counting login attempts of %s: %v", email, err), err)
		return nil
	}
	if n > api.conf.Auth.LoginMaxAttempts {
		return errLoginThrottled
	}
	return nil
}

func (api *authApi) logout(ctx echo.Context) error {
	claim, err := getContextClaim(ctx)
	if err != nil {
		return err
	}
	token, _ := ctx.Get(ctxTokenKey).(string)

	reqCtx := ctx.Request().Context()
	if err = api.issuer.Revoke(reqCtx, token); err != nil {
		if core.KindOf(err) == core.KindUnknown {
			return errors.Wrap(auth.ErrRevocationUnavailable, err.Error())
		}
		return err
	}
	if err = api.sessions.Delete(reqCtx, claim.SubjectID); err != nil {
		api.logger.Warn(fmt.Sprintf("deleting session of user %s: %v", claim.SubjectID, err), err)
	}
	return ctx.JSON(http.StatusOK, MessageResponse{Message: "Logged out successfully"})
}

func (api *authApi) session(ctx echo.Context) error {
	claim, err := getContextClaim(ctx)
	if err != nil {
		return err
	}

	var sess Session
	found, err := api.sessions.Get(ctx.Request().Context(), claim.SubjectID, &sess)
	if err != nil {
		return errors.Wrap(errSessionsUnavailable, err.Error())
	}
	if !found {
		return errSessionNotFound
	}
	return ctx.JSON(http.StatusOK, sess)
}

func (api *authApi) profile(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *authApi) updateProfile(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data user.UpdateProfile
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProfile")
	}
	usr, err = api.svc.UpdateProfile(ctx.Request().Context(), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating profile")
	}
	ctx.Set(ctxUserKey, usr)
	return ctx.JSON(http.StatusOK, usr)
}

type userApi struct {
	svc *user.Service
}

func registerUserAPI(g *echo.Group, adminOnly echo.MiddlewareFunc, svc *user.Service) {
	api := userApi{svc: svc}

	ug := g.Group("/users", adminOnly)
	ug.GET("", api.query)
	ug.GET("/roles", api.queryRoles)
}

func (api *userApi) query(ctx echo.Context) error {
	filter := new(user.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []user.User{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	users, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	return ctx.JSON(http.StatusOK, nonNil(users))
}

func (api *userApi) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, auth.AllRoles)
}

type (
	// Session is the per-user document kept in the session namespace while logged in.
	Session struct {
		UserID     string    `json:"user_id"`
		Email      string    `json:"email"`
		Role       auth.Role `json:"role"`
		LoggedInAt time.Time `json:"logged_in_at"`
		ExpiresAt  time.Time `json:"expires_at"`
	}

	LoginResponse struct {
		AccessToken string    `json:"access_token"`
		ExpiresAt   time.Time `json:"expires_at"`
		User        user.User `json:"user"`
	}

	MessageResponse struct {
		Message string `json:"message"`
	}
)
