package tests

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/elimu/core/auth"
	"github.com/trezcool/elimu/core/certificate"
	"github.com/trezcool/elimu/core/course"
	testutil "github.com/trezcool/elimu/tests"
)

func Test_courseApi_catalog(t *testing.T) {
	a := setup(t)
	mentor := a.createUser(t, "Mentor", "mentor@test.cd", auth.RoleMentor)

	now := time.Now().UTC()
	goCrs := testutil.CreateCourse(t, a.crsRepo, mentor.ID, "Go Basics", true, now.Add(-2*time.Hour))
	sqlCrs := testutil.CreateCourse(t, a.crsRepo, mentor.ID, "SQL Joins", true, now.Add(-time.Hour))
	draft := testutil.CreateCourse(t, a.crsRepo, mentor.ID, "Go Draft", false)
	mod2 := testutil.CreateModule(t, a.crsRepo, goCrs.ID, "Goroutines", 2)
	mod1 := testutil.CreateModule(t, a.crsRepo, goCrs.ID, "Types", 1)

	// reads carry the mentor and the ordered modules
	mentorSum := mentor.Summary()
	sqlCrs.Mentor = &mentorSum
	goCrs.Mentor = &mentorSum
	goCrs.Modules = []course.Module{mod1, mod2}

	runHTTPTests(t, a, []httpTest{
		{
			name:     "published only, newest first",
			method:   http.MethodGet,
			path:     "/courses",
			wantCode: http.StatusOK,
			wantData: marchallObj(t, []course.Course{sqlCrs, goCrs}),
		},
		{
			name:     "search",
			method:   http.MethodGet,
			path:     "/courses?search=go",
			wantCode: http.StatusOK,
			wantData: marchallObj(t, []course.Course{goCrs}),
		},
		{
			name:     "by mentor",
			method:   http.MethodGet,
			path:     "/courses?mentor_id=someone-else",
			wantCode: http.StatusOK,
			wantData: []byte(`[]`),
		},
		{
			name:     "detail with ordered modules",
			method:   http.MethodGet,
			path:     "/courses/" + goCrs.ID,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, goCrs),
		},
		{
			name:     "unknown",
			method:   http.MethodGet,
			path:     "/courses/nope",
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: course.ErrNotFound.Error()}),
		},
		{
			name:     "no ratings yet",
			method:   http.MethodGet,
			path:     "/courses/" + draft.ID + "/ratings",
			wantCode: http.StatusOK,
			wantData: []byte(`{"average_rating": 0, "total_ratings": 0, "ratings": []}`),
		},
		{
			name:     "unknown sub-path",
			method:   http.MethodGet,
			path:     "/courses/" + goCrs.ID + "/nope",
			wantCode: http.StatusNotFound,
		},
		{
			name:     "unknown sub-path, POST",
			method:   http.MethodPost,
			path:     "/courses/" + goCrs.ID + "/nope",
			wantCode: http.StatusNotFound,
		},
	})
}

func Test_courseApi_authoring(t *testing.T) {
	a := setup(t)
	mentor := a.createUser(t, "Mentor", "mentor@test.cd", auth.RoleMentor)
	other := a.createUser(t, "Other Mentor", "other@test.cd", auth.RoleMentor)
	student := a.createUser(t, "Student", "student@test.cd", auth.RoleStudent)
	mentorToken := a.getToken(t, mentor)

	crs := testutil.CreateCourse(t, a.crsRepo, mentor.ID, "Go Basics", true)
	testutil.CreateModule(t, a.crsRepo, crs.ID, "Intro", 1)

	runHTTPTests(t, a, []httpTest{
		{
			name:     "no token",
			method:   http.MethodPost,
			path:     "/courses",
			body:     []byte(`{"title": "Rust"}`),
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "students cannot author",
			method:   http.MethodPost,
			path:     "/courses",
			body:     []byte(`{"title": "Rust"}`),
			token:    a.getToken(t, student),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "blank title",
			method:   http.MethodPost,
			path:     "/courses",
			body:     []byte(`{"title": "   "}`),
			token:    mentorToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"title": "this field is required"}),
		},
		{
			name:     "module on someone else's course",
			method:   http.MethodPost,
			path:     "/courses/" + crs.ID + "/modules",
			body:     []byte(`{"title": "Hijack"}`),
			token:    a.getToken(t, other),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: course.ErrNotOwner.Error()}),
		},
		{
			name:     "module on unknown course",
			method:   http.MethodPost,
			path:     "/courses/nope/modules",
			body:     []byte(`{"title": "Lost"}`),
			token:    mentorToken,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: course.ErrNotFound.Error()}),
		},
	})

	t.Run("create course", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/courses", mentorToken, []byte(`{"title": " Rust ", "is_published": false}`))
		a.do(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var got course.Course
		unmarchall(t, rec, &got)
		assert.NotEmpty(t, got.ID)
		assert.Equal(t, "Rust", got.Title)
		assert.Equal(t, mentor.ID, got.MentorID)
		assert.False(t, got.IsPublished)
	})

	t.Run("module order defaults to the next position", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/courses/"+crs.ID+"/modules", mentorToken, []byte(`{"title": "Channels", "content": "..."}`))
		a.do(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var got course.Module
		unmarchall(t, rec, &got)
		assert.Equal(t, crs.ID, got.CourseID)
		assert.Equal(t, 2, got.Order)
	})
}

func Test_courseApi_learning(t *testing.T) {
	a := setup(t)
	mentor := a.createUser(t, "Mentor", "mentor@test.cd", auth.RoleMentor)
	student := a.createUser(t, "Student", "student@test.cd", auth.RoleStudent)
	lurker := a.createUser(t, "Lurker", "lurker@test.cd", auth.RoleStudent)
	token := a.getToken(t, student)
	crs := testutil.CreateCourse(t, a.crsRepo, mentor.ID, "Go Basics", true)
	coursePath := "/courses/" + crs.ID

	runHTTPTests(t, a, []httpTest{
		{
			name:     "mentors cannot enroll",
			method:   http.MethodPost,
			path:     coursePath + "/enroll",
			token:    a.getToken(t, mentor),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "enroll in unknown course",
			method:   http.MethodPost,
			path:     "/courses/nope/enroll",
			token:    token,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: course.ErrNotFound.Error()}),
		},
		{
			name:     "complete before enrolling",
			method:   http.MethodPost,
			path:     coursePath + "/complete",
			token:    token,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: course.ErrEnrollmentNotFound.Error()}),
		},
		{
			name:     "cannot rate before enrolling",
			method:   http.MethodGet,
			path:     coursePath + "/can-rate",
			token:    token,
			wantCode: http.StatusOK,
			wantData: []byte(`{"can_rate": false, "has_rated": false, "completed_at": null}`),
		},
		{
			name:     "rate without enrollment",
			method:   http.MethodPost,
			path:     coursePath + "/rate",
			body:     []byte(`{"rating": 5}`),
			token:    a.getToken(t, lurker),
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: course.ErrNotEnrolled.Error()}),
		},
	})

	t.Run("enroll", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, coursePath+"/enroll", token)
		a.do(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var enr course.Enrollment
		unmarchall(t, rec, &enr)
		assert.Equal(t, student.ID, enr.UserID)
		assert.Equal(t, 0, enr.Progress)
		assert.Nil(t, enr.CompletedAt)

		req, rec = newAuthRequest(http.MethodPost, coursePath+"/enroll", token)
		a.do(req, rec)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("rate before completing", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, coursePath+"/rate", token, []byte(`{"rating": 5}`))
		a.do(req, rec)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, string(marchallObj(t, httpErr{Error: course.ErrNotCompleted.Error()})), rec.Body.String())
	})

	t.Run("complete issues the certificate", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, coursePath+"/complete", token)
		a.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var enr course.Enrollment
		unmarchall(t, rec, &enr)
		require.NotNil(t, enr.CompletedAt)
		assert.Equal(t, 100, enr.Progress)

		cert, err := a.certRepo.GetCertificate(context.Background(), certificate.GetFilter{StudentID: student.ID, CourseID: crs.ID})
		require.NoError(t, err)
		assert.Regexp(t, `^CERT-\d+-\d{1,4}$`, cert.CertificateNumber)

		sent := a.mailSvc.Sent()
		require.Len(t, sent, 1)
		assert.Equal(t, student.Email, sent[0].To[0].Address)
		assert.Contains(t, sent[0].TextContent, cert.CertificateNumber)

		req, rec = newAuthRequest(http.MethodPost, coursePath+"/complete", token)
		a.do(req, rec)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.JSONEq(t, string(marchallObj(t, httpErr{Error: course.ErrAlreadyCompleted.Error()})), rec.Body.String())
	})

	t.Run("rate", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, coursePath+"/rate", token, []byte(`{"rating": 6}`))
		a.do(req, rec)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		for _, body := range []string{`{"rating": 3}`, `{"rating": 4, "review": " Great "}`} {
			req, rec = newAuthRequest(http.MethodPost, coursePath+"/rate", token, []byte(body))
			a.do(req, rec)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		}

		req, rec = newRequest(http.MethodGet, coursePath+"/ratings")
		a.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)
		var summary course.RatingSummary
		unmarchall(t, rec, &summary)
		assert.Equal(t, 1, summary.TotalRatings) // re-rating replaces
		assert.Equal(t, 4.0, summary.AverageRating)
		require.Len(t, summary.Ratings, 1)
		assert.Equal(t, "Great", summary.Ratings[0].Review)
		reviewer := student.Summary()
		assert.Equal(t, &reviewer, summary.Ratings[0].User)

		req, rec = newAuthRequest(http.MethodGet, coursePath+"/can-rate", token)
		a.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)
		var elig course.Eligibility
		unmarchall(t, rec, &elig)
		assert.True(t, elig.CanRate)
		assert.True(t, elig.HasRated)
		assert.NotNil(t, elig.CompletedAt)
	})
}
