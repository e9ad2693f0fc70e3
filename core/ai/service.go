package ai

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/course"
)

const (
	maxTokens    = 1024
	temperature  = 0.7
	defaultCount = 5

	performanceFallback  = "Unable to generate performance analysis at this time. Please ensure your Groq API key is valid."
	courseFallback       = "Unable to generate course insights at this time."
	learningPathFallback = "Unable to generate personalized recommendations at this time."
)

var (
	jsonArrayRegex  = regexp.MustCompile(`(?s)\[.*\]`)
	jsonObjectRegex = regexp.MustCompile(`(?s)\{.*\}`)
)

// CourseStats provides the figures course insights are drawn from.
type CourseStats interface {
	Stats(ctx context.Context, courseID string) (course.Stats, error)
}

type Service struct {
	gen      Generator
	ca       *CacheAside
	courses  CourseStats
	validate *validator.Validate
	conf     core.AIConfig
	logger   core.Logger
}

func NewService(gen Generator, cache Cache, courses CourseStats, validate *validator.Validate, conf core.AIConfig, logger core.Logger) *Service {
	return &Service{
		gen:      gen,
		ca:       NewCacheAside(cache, conf, logger),
		courses:  courses,
		validate: validate,
		conf:     conf,
		logger:   logger,
	}
}

func (svc *Service) complete(prompt string) func(ctx context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		text, err := svc.gen.Generate(ctx, prompt, maxTokens, temperature)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(text) == "" {
			return "", ErrInvalidResponse
		}
		return text, nil
	}
}

// cachedText serves a free-text feature through the cache-aside.
func (svc *Service) cachedText(ctx context.Context, namespace string, payload interface{}, prompt, fallback string) Text {
	key, err := Key(namespace, payload)
	if err != nil {
		return Text{Text: fallback, Source: OutcomeFallback.Source()}
	}
	res := svc.ca.CachedGenerate(ctx, key, svc.conf.CacheTTL, fallback, svc.complete(prompt))
	return Text{Text: res.Value, Source: res.Outcome.Source()}
}

// AnalyzePerformance never fails on AI errors; it answers with a fallback text instead.
func (svc *Service) AnalyzePerformance(ctx context.Context, req AnalyzePerformance) (Text, error) {
	if err := svc.validate.Struct(req); err != nil {
		return Text{}, err
	}
	sd := req.StudentData.normalized()
	prompt, err := performancePrompt(sd)
	if err != nil {
		return Text{}, errors.Wrap(err, "rendering prompt")
	}
	return svc.cachedText(ctx, "performance", sd, prompt, performanceFallback), nil
}

func (svc *Service) CourseInsights(ctx context.Context, req CourseInsightsRequest) (Text, error) {
	if err := svc.validate.Struct(req); err != nil {
		return Text{}, err
	}
	stats, err := svc.courses.Stats(ctx, req.CourseID)
	if err != nil {
		return Text{}, err
	}
	prompt, err := coursePrompt(stats)
	if err != nil {
		return Text{}, errors.Wrap(err, "rendering prompt")
	}
	return svc.cachedText(ctx, "course", stats, prompt, courseFallback), nil
}

func (svc *Service) LearningPath(ctx context.Context, profile LearningProfile) (Text, error) {
	lp := profile.normalized()
	prompt, err := learningPathPrompt(lp)
	if err != nil {
		return Text{}, errors.Wrap(err, "rendering prompt")
	}
	return svc.cachedText(ctx, "learning_path", lp, prompt, learningPathFallback), nil
}

// PlatformInsights answers with three strategic insights, or the documented fallback ones.
func (svc *Service) PlatformInsights(ctx context.Context, pd PlatformData) (PlatformInsights, error) {
	if err := svc.validate.Struct(pd); err != nil {
		return PlatformInsights{}, err
	}
	pd.Revenue = core.Round(pd.Revenue, 2)
	prompt, err := platformPrompt(pd)
	if err != nil {
		return PlatformInsights{}, errors.Wrap(err, "rendering prompt")
	}

	fallback := PlatformInsights{Insights: platformFallback, Source: OutcomeFallback.Source()}
	key, err := Key("platform", pd)
	if err != nil {
		return fallback, nil
	}

	gen := func(ctx context.Context) (string, error) {
		text, err := svc.complete(prompt)(ctx)
		if err != nil {
			return "", err
		}
		var out struct {
			Insights []string `json:"insights"`
		}
		if err = extractJSON(jsonObjectRegex, text, &out); err != nil || len(out.Insights) == 0 {
			return "", ErrInvalidResponse
		}
		b, err := json.Marshal(out.Insights)
		return string(b), err
	}

	res := svc.ca.CachedGenerate(ctx, key, svc.conf.CacheTTL, "", gen)
	if res.Degraded() {
		return fallback, nil
	}
	insights := PlatformInsights{Source: res.Outcome.Source()}
	if err = json.Unmarshal([]byte(res.Value), &insights.Insights); err != nil {
		svc.logger.Warn("ai.PlatformInsights: unreadable cached insights: " + err.Error())
		return fallback, nil
	}
	return insights, nil
}

// GenerateQuiz returns no question at all when the AI cannot produce them.
func (svc *Service) GenerateQuiz(ctx context.Context, qr QuizRequest) ([]Question, error) {
	if qr.Difficulty == "" {
		qr.Difficulty = "medium"
	}
	if qr.NumberOfQuestions == 0 {
		qr.NumberOfQuestions = defaultCount
	}
	qr.Topic = core.CleanString(qr.Topic)
	if err := svc.validate.Struct(qr); err != nil {
		return nil, err
	}
	prompt, err := quizPrompt(qr)
	if err != nil {
		return nil, errors.Wrap(err, "rendering prompt")
	}

	questions := make([]Question, 0)
	text, err := svc.ca.Generate(ctx, svc.complete(prompt))
	if err != nil {
		return questions, nil
	}
	if err = extractJSON(jsonArrayRegex, text, &questions); err != nil {
		svc.logger.Warn("ai.GenerateQuiz: " + err.Error())
		return make([]Question, 0), nil
	}
	return questions, nil
}

// GenerateDocumentData returns nil data when the AI cannot produce it.
func (svc *Service) GenerateDocumentData(ctx context.Context, dr DocumentRequest) (map[string]interface{}, error) {
	dr.Type = core.CleanString(dr.Type, true /* lower */)
	if err := svc.validate.Struct(dr); err != nil {
		return nil, err
	}
	if dr.Data == nil {
		dr.Data = make(map[string]interface{})
	}
	prompt, err := documentPrompt(dr)
	if err != nil {
		return nil, errors.Wrap(err, "rendering prompt")
	}

	text, err := svc.ca.Generate(ctx, svc.complete(prompt))
	if err != nil {
		return nil, nil
	}
	var data map[string]interface{}
	if err = extractJSON(jsonObjectRegex, text, &data); err != nil {
		svc.logger.Warn("ai.GenerateDocumentData: " + err.Error())
		return nil, nil
	}
	return data, nil
}

func (svc *Service) Health(ctx context.Context) Health {
	h := Health{Status: "healthy", Model: svc.conf.Model}
	_, err := svc.ca.Generate(ctx, func(ctx context.Context) (string, error) {
		return svc.gen.Generate(ctx, "test", 5, temperature)
	})
	if err != nil {
		h.Status = "unhealthy"
	}
	return h
}

// extractJSON decodes the first-to-last bracketed span of text into dest.
func extractJSON(re *regexp.Regexp, text string, dest interface{}) error {
	match := re.FindString(text)
	if match == "" {
		return errors.Wrap(ErrInvalidResponse, "no JSON in response")
	}
	if err := json.Unmarshal([]byte(match), dest); err != nil {
		return errors.Wrap(ErrInvalidResponse, err.Error())
	}
	return nil
}
