package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core/auth"
	"github.com/trezcool/elimu/core/certificate"
)

type certificateApi struct {
	svc *certificate.Service
}

func registerCertificateAPI(g *echo.Group, authn echo.MiddlewareFunc, svc *certificate.Service) {
	api := certificateApi{svc: svc}

	cg := g.Group("/certificates")

	// un-authed endpoints
	cg.GET("/verify/:number", api.certificateVerify)
	cg.GET("/:id", api.certificateRetrieve)

	// authed endpoints
	cg.POST("/generate/:courseId", api.certificateGenerate, authn, requireRoles(auth.RoleStudent))
	cg.GET("/student/my-certificates", api.studentCertificates, authn, requireRoles(auth.RoleStudent))
	cg.GET("/course/:courseId", api.courseCertificates, authn)
}

// Handlers

func (api *certificateApi) certificateVerify(ctx echo.Context) error {
	v, err := api.svc.Verify(ctx.Request().Context(), ctx.Param("number"))
	if err != nil {
		return errors.Wrap(err, "verifying certificate")
	}
	return ctx.JSON(http.StatusOK, v)
}

func (api *certificateApi) certificateRetrieve(ctx echo.Context) error {
	cert, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting certificate")
	}
	return ctx.JSON(http.StatusOK, cert)
}

func (api *certificateApi) certificateGenerate(ctx echo.Context) error {
	claim, err := getContextClaim(ctx)
	if err != nil {
		return err
	}
	cert, err := api.svc.Generate(ctx.Request().Context(), claim.SubjectID, ctx.Param("courseId"))
	if err != nil {
		return errors.Wrap(err, "generating certificate")
	}
	return ctx.JSON(http.StatusOK, cert) // issued by now, or on an earlier call
}

func (api *certificateApi) studentCertificates(ctx echo.Context) error {
	claim, err := getContextClaim(ctx)
	if err != nil {
		return err
	}
	certs, err := api.svc.ListByStudent(ctx.Request().Context(), claim.SubjectID)
	if err != nil {
		return errors.Wrap(err, "listing student certificates")
	}
	return ctx.JSON(http.StatusOK, nonNil(certs))
}

func (api *certificateApi) courseCertificates(ctx echo.Context) error {
	certs, err := api.svc.ListByCourse(ctx.Request().Context(), ctx.Param("courseId"))
	if err != nil {
		return errors.Wrap(err, "listing course certificates")
	}
	return ctx.JSON(http.StatusOK, nonNil(certs))
}
