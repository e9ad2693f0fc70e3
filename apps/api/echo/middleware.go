package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/trezcool/elimu/core/auth"
)

// requireRoles authorizes the claim set by guard, which must run first.
func requireRoles(roles ...auth.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claim, err := getContextClaim(ctx)
			if err != nil {
				return err
			}
			if err = auth.Authorize(claim, roles...); err != nil {
				return err
			}
			return next(ctx)
		}
	}
}
