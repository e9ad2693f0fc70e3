package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/elimu/core/ai"
	"github.com/trezcool/elimu/core/auth"
	"github.com/trezcool/elimu/core/course"
	testutil "github.com/trezcool/elimu/tests"
)

func Test_aiApi_access(t *testing.T) {
	a := setup(t)
	student := a.createUser(t, "Student", "student@test.cd", auth.RoleStudent)

	runHTTPTests(t, a, []httpTest{
		{
			name:     "no token",
			method:   http.MethodGet,
			path:     "/ai/health",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "platform insights are for admins",
			method:   http.MethodPost,
			path:     "/ai-insights/analyze",
			body:     []byte(`{}`),
			token:    a.getToken(t, student),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
	})
}

func Test_aiApi_analyzePerformance(t *testing.T) {
	a := setup(t)
	token := a.getToken(t, a.createUser(t, "Student", "student@test.cd", auth.RoleStudent))
	body := []byte(`{"student_data": {"enrollments": 3, "completed_courses": 1, "average_progress": 42.5}}`)

	req, rec := newAuthRequest(http.MethodPost, "/ai/analyze-performance", token, body)
	a.do(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"insights": "Keep going!", "source": "AI"}`, rec.Body.String())

	// the same figures are answered from the cache
	a.gen.set("Something else", nil)
	req, rec = newAuthRequest(http.MethodPost, "/ai/analyze-performance", token, body)
	a.do(req, rec)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"insights": "Keep going!", "source": "cache"}`, rec.Body.String())
	assert.Equal(t, 1, a.gen.calls)

	req, rec = newAuthRequest(http.MethodPost, "/ai/analyze-performance", token, []byte(`{"student_data": {"average_progress": 120}}`))
	a.do(req, rec)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func Test_aiApi_fallbacks(t *testing.T) {
	a := setup(t)
	mentor := a.createUser(t, "Mentor", "mentor@test.cd", auth.RoleMentor)
	adm := a.createUser(t, "Admin", "admin@test.cd", auth.RoleAdmin)
	token := a.getToken(t, mentor)
	crs := testutil.CreateCourse(t, a.crsRepo, mentor.ID, "Go Basics", true)
	a.gen.set("", ai.ErrUnavailable)

	runHTTPTests(t, a, []httpTest{
		{
			name:     "course insights",
			method:   http.MethodPost,
			path:     "/ai/course-insights",
			body:     marchallObj(t, ai.CourseInsightsRequest{CourseID: crs.ID}),
			token:    token,
			wantCode: http.StatusOK,
			wantData: []byte(`{"insights": "Unable to generate course insights at this time.", "source": "System-Fallback"}`),
		},
		{
			name:     "course insights on unknown course",
			method:   http.MethodPost,
			path:     "/ai/course-insights",
			body:     marchallObj(t, ai.CourseInsightsRequest{CourseID: "nope"}),
			token:    token,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: course.ErrNotFound.Error()}),
		},
		{
			name:     "learning path",
			method:   http.MethodPost,
			path:     "/ai/learning-path",
			body:     []byte(`{"interests": ["Go"], "skill_level": "beginner"}`),
			token:    token,
			wantCode: http.StatusOK,
			wantData: []byte(`{"recommendations": "Unable to generate personalized recommendations at this time.", "source": "System-Fallback"}`),
		},
		{
			name:     "quiz",
			method:   http.MethodPost,
			path:     "/ai/generate-quiz",
			body:     marchallObj(t, ai.QuizRequest{CourseID: crs.ID, Topic: "channels"}),
			token:    token,
			wantCode: http.StatusOK,
			wantData: []byte(`{"questions": []}`),
		},
		{
			name:     "document data",
			method:   http.MethodPost,
			path:     "/ai/generate-document-data",
			body:     []byte(`{"type": "syllabus", "prompt": "Go course"}`),
			token:    token,
			wantCode: http.StatusOK,
			wantData: []byte(`{"data": null}`),
		},
		{
			name:     "health",
			method:   http.MethodGet,
			path:     "/ai/health",
			token:    token,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, ai.Health{Status: "unhealthy", Model: a.conf.AI.Model}),
		},
		{
			name:     "platform insights",
			method:   http.MethodPost,
			path:     "/ai-insights/analyze",
			body:     []byte(`{"total_students": 10, "active_courses": 2}`),
			token:    a.getToken(t, adm),
			wantCode: http.StatusOK,
			wantData: []byte(`{"insights": [
				"Growth is stable (AI Service Unavailable)",
				"Check Groq API Key configuration",
				"Ensure student engagement remains high"
			], "source": "System-Fallback"}`),
		},
	})
}

func Test_aiApi_generation(t *testing.T) {
	a := setup(t)
	adm := a.createUser(t, "Admin", "admin@test.cd", auth.RoleAdmin)
	token := a.getToken(t, adm)

	t.Run("quiz", func(t *testing.T) {
		a.gen.set("Here you go:\n```json\n[{\"question\": \"2+2?\", \"options\": [\"3\", \"4\"], \"correct_answer\": 1, \"explanation\": \"maths\"}]\n```", nil)
		req, rec := newAuthRequest(http.MethodPost, "/ai/generate-quiz", token, []byte(`{"course_id": "c1", "topic": "sums", "difficulty": "easy"}`))
		a.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got struct {
			Questions []ai.Question `json:"questions"`
		}
		unmarchall(t, rec, &got)
		require.Len(t, got.Questions, 1)
		assert.Equal(t, 1, got.Questions[0].CorrectAnswer)
	})

	t.Run("quiz validation", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/ai/generate-quiz", token, []byte(`{"course_id": "c1", "topic": "sums", "difficulty": "insane"}`))
		a.do(req, rec)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("document data", func(t *testing.T) {
		a.gen.set(`{"title": "Go 101", "weeks": 4}`, nil)
		req, rec := newAuthRequest(http.MethodPost, "/ai/generate-document-data", token, []byte(`{"type": "Syllabus", "prompt": "Go course"}`))
		a.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.JSONEq(t, `{"data": {"title": "Go 101", "weeks": 4}}`, rec.Body.String())
	})

	t.Run("platform insights", func(t *testing.T) {
		a.gen.set(`{"insights": ["a", "b", "c"]}`, nil)
		req, rec := newAuthRequest(http.MethodPost, "/ai-insights/analyze", token, []byte(`{"total_students": 10}`))
		a.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.JSONEq(t, `{"insights": ["a", "b", "c"], "source": "AI"}`, rec.Body.String())
	})

	t.Run("health", func(t *testing.T) {
		a.gen.set("ok", nil)
		req, rec := newAuthRequest(http.MethodGet, "/ai/health", token)
		a.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, string(marchallObj(t, ai.Health{Status: "healthy", Model: a.conf.AI.Model})), rec.Body.String())
	})
}
