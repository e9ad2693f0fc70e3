package echoapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core/admin"
	"github.com/trezcool/elimu/core/auth"
)

type adminApi struct {
	svc *admin.Service
}

func registerAdminAPI(g *echo.Group, adminOnly echo.MiddlewareFunc, svc *admin.Service) {
	api := adminApi{svc: svc}

	ag := g.Group("/admin", adminOnly)
	ag.GET("/stats", api.stats)
	ag.GET("/analytics", api.analytics)
	ag.GET("/users", api.users)
	ag.POST("/snapshot", api.snapshot)
}

// Handlers

func (api *adminApi) stats(ctx echo.Context) error {
	stats, err := api.svc.Stats(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "computing stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *adminApi) analytics(ctx echo.Context) error {
	start, err := bindDate(ctx, "start_date")
	if err != nil {
		return err
	}
	end, err := bindDate(ctx, "end_date")
	if err != nil {
		return err
	}

	analytics, err := api.svc.Analytics(ctx.Request().Context(), start, end)
	if err != nil {
		return errors.Wrap(err, "computing analytics")
	}
	return ctx.JSON(http.StatusOK, analytics)
}

func (api *adminApi) users(ctx echo.Context) error {
	role := auth.Role(strings.ToUpper(strings.TrimSpace(ctx.QueryParam("role"))))
	page, err := api.svc.Users(ctx.Request().Context(), bindPagination(ctx), role)
	if err != nil {
		return errors.Wrap(err, "paging users")
	}
	page.Users = nonNil(page.Users)
	return ctx.JSON(http.StatusOK, page)
}

func (api *adminApi) snapshot(ctx echo.Context) error {
	if _, err := api.svc.SaveSnapshot(ctx.Request().Context()); err != nil {
		return errors.Wrap(err, "saving snapshot")
	}
	return ctx.JSON(http.StatusCreated, MessageResponse{Message: "Analytics snapshot saved successfully"})
}
