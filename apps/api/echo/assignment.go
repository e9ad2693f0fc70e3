package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core/assignment"
	"github.com/trezcool/elimu/core/auth"
)

type assignmentApi struct {
	svc *assignment.Service
}

func registerAssignmentAPI(g *echo.Group, authn echo.MiddlewareFunc, svc *assignment.Service) {
	api := assignmentApi{svc: svc}

	mentor, student := requireRoles(auth.RoleMentor), requireRoles(auth.RoleStudent)

	ag := g.Group("/assignments", authn)
	ag.POST("/module/:moduleId", api.assignmentCreate, mentor)
	ag.GET("/module/:moduleId", api.assignmentQuery)
	ag.GET("/student/submissions", api.studentSubmissions, student)
	ag.GET("/course/:courseId/submissions", api.courseSubmissions, mentor)
	ag.PUT("/submissions/:id/grade", api.submissionGrade, mentor)

	// detail endpoints
	ag.GET("/:id", api.assignmentRetrieve)
	ag.POST("/:id/submit", api.assignmentSubmit, student)
	ag.DELETE("/:id", api.assignmentDestroy, mentor)
}

// Handlers

func (api *assignmentApi) assignmentCreate(ctx echo.Context) error {
	claim, err := getContextClaim(ctx)
	if err != nil {
		return err
	}

	var data assignment.NewAssignment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}
	asg, err := api.svc.Create(ctx.Request().Context(), claim.SubjectID, ctx.Param("moduleId"), data)
	if err != nil {
		return errors.Wrap(err, "creating assignment")
	}
	return ctx.JSON(http.StatusCreated, asg)
}

func (api *assignmentApi) assignmentQuery(ctx echo.Context) error {
	asgs, err := api.svc.ListByModule(ctx.Request().Context(), ctx.Param("moduleId"))
	if err != nil {
		return errors.Wrap(err, "listing module assignments")
	}
	return ctx.JSON(http.StatusOK, nonNil(asgs))
}

func (api *assignmentApi) assignmentRetrieve(ctx echo.Context) error {
	asg, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting assignment")
	}
	return ctx.JSON(http.StatusOK, asg)
}

func (api *assignmentApi) assignmentSubmit(ctx echo.Context) error {
	claim, err := getContextClaim(ctx)
	if err != nil {
		return err
	}

	var data assignment.NewSubmission
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubmission")
	}
	sub, err := api.svc.Submit(ctx.Request().Context(), claim.SubjectID, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "submitting assignment")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *assignmentApi) submissionGrade(ctx echo.Context) error {
	claim, err := getContextClaim(ctx)
	if err != nil {
		return err
	}

	var data assignment.Grade
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Grade")
	}
	sub, err := api.svc.Grade(ctx.Request().Context(), claim.SubjectID, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "grading submission")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *assignmentApi) studentSubmissions(ctx echo.Context) error {
	claim, err := getContextClaim(ctx)
	if err != nil {
		return err
	}
	subs, err := api.svc.ListStudentSubmissions(ctx.Request().Context(), claim.SubjectID, ctx.QueryParam("course_id"))
	if err != nil {
		return errors.Wrap(err, "listing student submissions")
	}
	return ctx.JSON(http.StatusOK, nonNil(subs))
}

func (api *assignmentApi) courseSubmissions(ctx echo.Context) error {
	claim, err := getContextClaim(ctx)
	if err != nil {
		return err
	}
	subs, err := api.svc.ListCourseSubmissions(ctx.Request().Context(), claim.SubjectID, ctx.Param("courseId"))
	if err != nil {
		return errors.Wrap(err, "listing course submissions")
	}
	return ctx.JSON(http.StatusOK, nonNil(subs))
}

func (api *assignmentApi) assignmentDestroy(ctx echo.Context) error {
	claim, err := getContextClaim(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), claim.SubjectID, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	return ctx.NoContent(http.StatusNoContent)
}
