package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core/auth"
	"github.com/trezcool/elimu/core/course"
)

type courseApi struct {
	svc *course.Service
}

func registerCourseAPI(g *echo.Group, authn echo.MiddlewareFunc, svc *course.Service) {
	api := courseApi{svc: svc}

	cg := g.Group("/courses")

	// catalog
	cg.GET("", api.courseQuery)
	cg.GET("/:id", api.courseRetrieve)
	cg.GET("/:id/ratings", api.courseRatings)

	// authed endpoints; guarded per route so unknown paths stay 404
	cg.POST("", api.courseCreate, authn, requireRoles(auth.RoleMentor))
	cg.POST("/:id/modules", api.moduleCreate, authn, requireRoles(auth.RoleMentor))
	cg.POST("/:id/enroll", api.courseEnroll, authn, requireRoles(auth.RoleStudent))
	cg.POST("/:id/complete", api.courseComplete, authn, requireRoles(auth.RoleStudent))
	cg.POST("/:id/rate", api.courseRate, authn, requireRoles(auth.RoleStudent))
	cg.GET("/:id/can-rate", api.courseCanRate, authn, requireRoles(auth.RoleStudent))
}

// Handlers

func (api *courseApi) courseQuery(ctx echo.Context) error {
	filter := new(course.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []course.Course{})
	}
	filter.PublishedOnly = true

	courses, err := api.svc.List(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	return ctx.JSON(http.StatusOK, nonNil(courses))
}

func (api *courseApi) courseRetrieve(ctx echo.Context) error {
	crs, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting course")
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) courseRatings(ctx echo.Context) error {
	summary, err := api.svc.GetCourseRatings(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting course ratings")
	}
	return ctx.JSON(http.StatusOK, summary)
}

func (api *courseApi) courseCreate(ctx echo.Context) error {
	claim, err := getContextClaim(ctx)
	if err != nil {
		return err
	}

	var data course.NewCourse
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	crs, err := api.svc.CreateCourse(ctx.Request().Context(), claim.SubjectID, data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, crs)
}

func (api *courseApi) moduleCreate(ctx echo.Context) error {
	claim, err := getContextClaim(ctx)
	if err != nil {
		return err
	}

	var data course.NewModule
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewModule")
	}
	mod, err := api.svc.AddModule(ctx.Request().Context(), claim.SubjectID, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "adding module")
	}
	return ctx.JSON(http.StatusCreated, mod)
}

func (api *courseApi) courseEnroll(ctx echo.Context) error {
	claim, err := getContextClaim(ctx)
	if err != nil {
		return err
	}
	enr, err := api.svc.Enroll(ctx.Request().Context(), claim.SubjectID, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "enrolling")
	}
	return ctx.JSON(http.StatusCreated, enr)
}

func (api *courseApi) courseComplete(ctx echo.Context) error {
	claim, err := getContextClaim(ctx)
	if err != nil {
		return err
	}
	enr, err := api.svc.CompleteCourse(ctx.Request().Context(), claim.SubjectID, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "completing course")
	}
	return ctx.JSON(http.StatusOK, enr)
}

func (api *courseApi) courseCanRate(ctx echo.Context) error {
	claim, err := getContextClaim(ctx)
	if err != nil {
		return err
	}
	elig, err := api.svc.CanRate(ctx.Request().Context(), claim.SubjectID, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "checking rating eligibility")
	}
	return ctx.JSON(http.StatusOK, elig)
}

func (api *courseApi) courseRate(ctx echo.Context) error {
	claim, err := getContextClaim(ctx)
	if err != nil {
		return err
	}

	var data course.NewRating
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRating")
	}
	rating, err := api.svc.RateCourse(ctx.Request().Context(), claim.SubjectID, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "rating course")
	}
	return ctx.JSON(http.StatusOK, rating)
}
