package ai_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/elimu/core/ai"
	"github.com/trezcool/elimu/core/course"
	kvstore "github.com/trezcool/elimu/storage/kv"
	testutil "github.com/trezcool/elimu/tests"
)

// fakeGenerator answers every prompt with reply (or err) and records the prompts.
type fakeGenerator struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []string
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string, _ int, _ float64) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	return g.reply, g.err
}

func (g *fakeGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

type statsFunc func(ctx context.Context, courseID string) (course.Stats, error)

func (f statsFunc) Stats(ctx context.Context, courseID string) (course.Stats, error) { return f(ctx, courseID) }

func setup(t *testing.T, gen *fakeGenerator) *ai.Service {
	t.Helper()
	store, _ := testutil.NewKV(t)
	validate, _ := testutil.NewValidator(t)
	stats := statsFunc(func(_ context.Context, id string) (course.Stats, error) {
		if id != "c1" {
			return course.Stats{}, course.ErrNotFound
		}
		return course.Stats{CourseID: "c1", Title: "Go 101", Enrollments: 10, Completions: 4, CompletionRate: 40, ModuleCount: 3}, nil
	})
	return ai.NewService(gen, kvstore.NewCache(store), stats, validate, testutil.NewConfig().AI, testutil.NewLogger(t))
}

func TestService_AnalyzePerformance(t *testing.T) {
	ctx := context.Background()
	req := ai.AnalyzePerformance{StudentData: ai.StudentData{Enrollments: 3, CompletedCourses: 1, AverageProgress: 55.555, AverageScore: 80}}

	t.Run("generated once, then cached", func(t *testing.T) {
		gen := &fakeGenerator{reply: "Keep going!"}
		svc := setup(t, gen)

		text, err := svc.AnalyzePerformance(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, ai.Text{Text: "Keep going!", Source: "AI"}, text)
		assert.Contains(t, gen.prompts[0], "Average Progress: 55.56%")

		text, err = svc.AnalyzePerformance(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, ai.Text{Text: "Keep going!", Source: "cache"}, text)
		assert.Equal(t, 1, gen.calls())
	})

	t.Run("upstream failure answers the fallback", func(t *testing.T) {
		gen := &fakeGenerator{err: ai.ErrUnauthorized}
		svc := setup(t, gen)

		text, err := svc.AnalyzePerformance(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, "System-Fallback", text.Source)
		assert.True(t, strings.HasPrefix(text.Text, "Unable to generate performance analysis"))
	})

	t.Run("empty answer is a failure", func(t *testing.T) {
		svc := setup(t, &fakeGenerator{reply: "   "})
		text, err := svc.AnalyzePerformance(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, "System-Fallback", text.Source)
	})

	t.Run("invalid figures", func(t *testing.T) {
		svc := setup(t, &fakeGenerator{reply: "x"})
		_, err := svc.AnalyzePerformance(ctx, ai.AnalyzePerformance{StudentData: ai.StudentData{AverageProgress: 150}})
		assert.Error(t, err)
	})
}

func TestService_CourseInsights(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{reply: "Add more quizzes."}
	svc := setup(t, gen)

	text, err := svc.CourseInsights(ctx, ai.CourseInsightsRequest{CourseID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, ai.Text{Text: "Add more quizzes.", Source: "AI"}, text)
	assert.Contains(t, gen.prompts[0], "Go 101")

	_, err = svc.CourseInsights(ctx, ai.CourseInsightsRequest{CourseID: "unknown"})
	assert.Equal(t, course.ErrNotFound, err)

	_, err = svc.CourseInsights(ctx, ai.CourseInsightsRequest{})
	assert.Error(t, err)
}

func TestService_LearningPath(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{reply: "Learn Go, then Postgres."}
	svc := setup(t, gen)

	first, err := svc.LearningPath(ctx, ai.LearningProfile{Interests: []string{"Go", "SQL"}, SkillLevel: "Beginner"})
	require.NoError(t, err)
	assert.Equal(t, "AI", first.Source)

	second, err := svc.LearningPath(ctx, ai.LearningProfile{Interests: []string{" sql", "go"}, SkillLevel: "beginner "})
	require.NoError(t, err)
	assert.Equal(t, ai.Text{Text: first.Text, Source: "cache"}, second)
	assert.Equal(t, 1, gen.calls())
}

func TestService_PlatformInsights(t *testing.T) {
	ctx := context.Background()
	pd := ai.PlatformData{TotalStudents: 120, ActiveCourses: 8, RecentEnrollments: 30, Revenue: 0}

	tests := []struct {
		name       string
		reply      string
		err        error
		wantSource string
		want       []string
	}{
		{
			name:       "parsed from surrounding prose",
			reply:      "Sure! {\"insights\": [\"one\", \"two\", \"three\"]} Hope it helps.",
			wantSource: "AI",
			want:       []string{"one", "two", "three"},
		},
		{
			name:       "unparseable answer",
			reply:      "I cannot answer that.",
			wantSource: "System-Fallback",
			want: []string{
				"Growth is stable (AI Service Unavailable)",
				"Check Groq API Key configuration",
				"Ensure student engagement remains high",
			},
		},
		{
			name:       "upstream unavailable",
			err:        ai.ErrUnavailable,
			wantSource: "System-Fallback",
			want: []string{
				"Growth is stable (AI Service Unavailable)",
				"Check Groq API Key configuration",
				"Ensure student engagement remains high",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := setup(t, &fakeGenerator{reply: tt.reply, err: tt.err})
			got, err := svc.PlatformInsights(ctx, pd)
			require.NoError(t, err)
			assert.Equal(t, ai.PlatformInsights{Insights: tt.want, Source: tt.wantSource}, got)
		})
	}

	t.Run("cached as a list", func(t *testing.T) {
		gen := &fakeGenerator{reply: `{"insights": ["a", "b", "c"]}`}
		svc := setup(t, gen)
		_, err := svc.PlatformInsights(ctx, pd)
		require.NoError(t, err)
		got, err := svc.PlatformInsights(ctx, pd)
		require.NoError(t, err)
		assert.Equal(t, ai.PlatformInsights{Insights: []string{"a", "b", "c"}, Source: "cache"}, got)
		assert.Equal(t, 1, gen.calls())
	})
}

func TestService_GenerateQuiz(t *testing.T) {
	ctx := context.Background()
	reply := "Here you go:\n```json\n[{\"question\": \"2+2?\", \"options\": [\"3\", \"4\"], \"correct_answer\": 1, \"explanation\": \"math\"}]\n```"

	t.Run("parsed and never cached", func(t *testing.T) {
		gen := &fakeGenerator{reply: reply}
		svc := setup(t, gen)
		req := ai.QuizRequest{CourseID: "c1", Topic: "arithmetic"}

		questions, err := svc.GenerateQuiz(ctx, req)
		require.NoError(t, err)
		require.Len(t, questions, 1)
		assert.Equal(t, ai.Question{Question: "2+2?", Options: []string{"3", "4"}, CorrectAnswer: 1, Explanation: "math"}, questions[0])
		assert.Contains(t, gen.prompts[0], "5 multiple-choice")
		assert.Contains(t, gen.prompts[0], "medium")

		_, err = svc.GenerateQuiz(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, 2, gen.calls())
	})

	t.Run("failure yields no questions", func(t *testing.T) {
		svc := setup(t, &fakeGenerator{err: ai.ErrRateLimited})
		questions, err := svc.GenerateQuiz(ctx, ai.QuizRequest{CourseID: "c1", Topic: "arithmetic"})
		require.NoError(t, err)
		assert.NotNil(t, questions)
		assert.Empty(t, questions)
	})

	t.Run("invalid request", func(t *testing.T) {
		svc := setup(t, &fakeGenerator{reply: reply})
		tests := []ai.QuizRequest{
			{Topic: "x"},
			{CourseID: "c1"},
			{CourseID: "c1", Topic: "x", Difficulty: "extreme"},
			{CourseID: "c1", Topic: "x", NumberOfQuestions: 50},
		}
		for _, req := range tests {
			_, err := svc.GenerateQuiz(ctx, req)
			assert.Error(t, err, "%+v", req)
		}
	})
}

func TestService_GenerateDocumentData(t *testing.T) {
	ctx := context.Background()

	gen := &fakeGenerator{reply: `{"title": "Go 101 Syllabus", "weeks": 4}`}
	svc := setup(t, gen)
	data, err := svc.GenerateDocumentData(ctx, ai.DocumentRequest{Type: " Syllabus ", Prompt: "a 4 week syllabus"})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"title": "Go 101 Syllabus", "weeks": float64(4)}, data)

	_, err = svc.GenerateDocumentData(ctx, ai.DocumentRequest{Type: "invoice", Prompt: "x"})
	assert.Error(t, err)

	svc = setup(t, &fakeGenerator{err: ai.ErrUnavailable})
	data, err = svc.GenerateDocumentData(ctx, ai.DocumentRequest{Type: "report", Prompt: "monthly report"})
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestService_Health(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, ai.Health{Status: "healthy", Model: "llama-3.3-70b-versatile"}, setup(t, &fakeGenerator{reply: "ok"}).Health(ctx))
	assert.Equal(t, ai.Health{Status: "unhealthy", Model: "llama-3.3-70b-versatile"}, setup(t, &fakeGenerator{err: ai.ErrUnauthorized}).Health(ctx))
}
