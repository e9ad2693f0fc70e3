package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core/auth"
	"github.com/trezcool/elimu/core/user"
)

const (
	ctxTokenKey = "token"
	ctxClaimKey = "claim"
	ctxUserKey  = "user"

	bearerScheme = "Bearer"
)

// bearerToken extracts the token of an `Authorization: Bearer <token>` header.
func bearerToken(ctx echo.Context) string {
	scheme, token, ok := strings.Cut(ctx.Request().Header.Get(echo.HeaderAuthorization), " ")
	if !ok || !strings.EqualFold(scheme, bearerScheme) {
		return ""
	}
	return strings.TrimSpace(token)
}

// guard runs the auth pipeline (authentication, then role check) and keeps the claim in the context.
func guard(dec auth.Decoder, roles ...auth.Role) echo.MiddlewareFunc {
	pipeline := auth.NewPipeline(dec, roles...)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			token := bearerToken(ctx)
			claim, err := pipeline.Run(ctx.Request().Context(), token)
			if err != nil {
				return err
			}
			ctx.Set(ctxTokenKey, token)
			ctx.Set(ctxClaimKey, claim)
			return next(ctx)
		}
	}
}

func getContextClaim(ctx echo.Context) (auth.Claim, error) {
	if claim, ok := ctx.Get(ctxClaimKey).(auth.Claim); ok {
		return claim, nil
	}
	return auth.Claim{}, auth.ErrMissingToken
}

func getContextUser(ctx echo.Context, svc *user.Service) (user.User, error) {
	if usr, ok := ctx.Get(ctxUserKey).(user.User); ok {
		return usr, nil
	}

	claim, err := getContextClaim(ctx)
	if err != nil {
		return user.User{}, err
	}
	usr, err := svc.GetByID(ctx.Request().Context(), claim.SubjectID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, auth.ErrInvalidToken // the account is gone
		}
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	ctx.Set(ctxUserKey, usr)
	return usr, nil
}
