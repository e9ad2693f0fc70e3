package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core/ai"
)

type aiApi struct {
	svc *ai.Service
}

func registerAIAPI(g *echo.Group, authn, adminOnly echo.MiddlewareFunc, svc *ai.Service) {
	api := aiApi{svc: svc}

	ag := g.Group("/ai", authn)
	ag.POST("/analyze-performance", api.analyzePerformance)
	ag.POST("/course-insights", api.courseInsights)
	ag.POST("/learning-path", api.learningPath)
	ag.POST("/generate-quiz", api.generateQuiz)
	ag.POST("/generate-document-data", api.generateDocumentData)
	ag.GET("/health", api.health)

	g.POST("/ai-insights/analyze", api.platformInsights, adminOnly)
}

type (
	InsightsResponse struct {
		Insights string `json:"insights"`
		Source   string `json:"source"`
	}

	RecommendationsResponse struct {
		Recommendations string `json:"recommendations"`
		Source          string `json:"source"`
	}
)

// Handlers

func (api *aiApi) analyzePerformance(ctx echo.Context) error {
	var data ai.AnalyzePerformance
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AnalyzePerformance")
	}
	txt, err := api.svc.AnalyzePerformance(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "analyzing performance")
	}
	return ctx.JSON(http.StatusOK, InsightsResponse{Insights: txt.Text, Source: txt.Source})
}

func (api *aiApi) courseInsights(ctx echo.Context) error {
	var data ai.CourseInsightsRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CourseInsightsRequest")
	}
	txt, err := api.svc.CourseInsights(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "generating course insights")
	}
	return ctx.JSON(http.StatusOK, InsightsResponse{Insights: txt.Text, Source: txt.Source})
}

func (api *aiApi) learningPath(ctx echo.Context) error {
	var data ai.LearningProfile
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LearningProfile")
	}
	txt, err := api.svc.LearningPath(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "generating learning path")
	}
	return ctx.JSON(http.StatusOK, RecommendationsResponse{Recommendations: txt.Text, Source: txt.Source})
}

func (api *aiApi) generateQuiz(ctx echo.Context) error {
	var data ai.QuizRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to QuizRequest")
	}
	questions, err := api.svc.GenerateQuiz(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "generating quiz")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"questions": nonNil(questions)})
}

func (api *aiApi) generateDocumentData(ctx echo.Context) error {
	var data ai.DocumentRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to DocumentRequest")
	}
	doc, err := api.svc.GenerateDocumentData(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "generating document data")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"data": doc})
}

func (api *aiApi) platformInsights(ctx echo.Context) error {
	var data ai.PlatformData
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PlatformData")
	}
	insights, err := api.svc.PlatformInsights(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "generating platform insights")
	}
	return ctx.JSON(http.StatusOK, insights)
}

func (api *aiApi) health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.svc.Health(ctx.Request().Context()))
}
