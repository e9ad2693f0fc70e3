package assignment_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/assignment"
	"github.com/trezcool/elimu/core/auth"
	"github.com/trezcool/elimu/core/course"
	"github.com/trezcool/elimu/core/user"
	inmemdb "github.com/trezcool/elimu/storage/database/inmem"
	testutil "github.com/trezcool/elimu/tests"
)

type fixture struct {
	svc        *assignment.Service
	courseRepo course.Repository
	usrRepo    user.Repository
	mentor     user.User
	student    user.User
	crs        course.Course
	mod        course.Module
}

func setup(t *testing.T) fixture {
	t.Helper()
	db := inmemdb.Open()
	validate, _ := testutil.NewValidator(t)

	f := fixture{
		courseRepo: inmemdb.NewCourseRepository(db),
		usrRepo:    inmemdb.NewUserRepository(db),
	}
	f.svc = assignment.NewService(inmemdb.NewAssignmentRepository(db), f.courseRepo, validate)
	f.mentor = testutil.CreateUser(t, f.usrRepo, "Mentor", "mentor@elimu.test", "", auth.RoleMentor, true)
	f.student = testutil.CreateUser(t, f.usrRepo, "Student", "student@elimu.test", "", auth.RoleStudent, true)
	f.crs = testutil.CreateCourse(t, f.courseRepo, f.mentor.ID, "Go 101", true)
	f.mod = testutil.CreateModule(t, f.courseRepo, f.crs.ID, "Intro", 1)
	return f
}

func TestService_Create(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	other := testutil.CreateUser(t, f.usrRepo, "Other", "other@elimu.test", "", auth.RoleMentor, true)
	due := time.Date(2030, 1, 2, 15, 0, 0, 0, time.FixedZone("WAT", 3600))

	tests := []struct {
		name         string
		mentorID     string
		moduleID     string
		data         assignment.NewAssignment
		wantMaxScore int
		wantErr      error
		wantInvalid  bool
	}{
		{name: "default max score", mentorID: f.mentor.ID, moduleID: f.mod.ID, data: assignment.NewAssignment{Title: "Essay"}, wantMaxScore: 100},
		{name: "custom max score", mentorID: f.mentor.ID, moduleID: f.mod.ID, data: assignment.NewAssignment{Title: "Quiz", MaxScore: 20, DueDate: &due}, wantMaxScore: 20},
		{name: "unknown module", mentorID: f.mentor.ID, moduleID: "nope", data: assignment.NewAssignment{Title: "X"}, wantErr: course.ErrModuleNotFound},
		{name: "not the owner", mentorID: other.ID, moduleID: f.mod.ID, data: assignment.NewAssignment{Title: "X"}, wantErr: course.ErrNotOwner},
		{name: "blank title", mentorID: f.mentor.ID, moduleID: f.mod.ID, data: assignment.NewAssignment{Title: " "}, wantInvalid: true},
		{name: "max score too high", mentorID: f.mentor.ID, moduleID: f.mod.ID, data: assignment.NewAssignment{Title: "X", MaxScore: 5000}, wantInvalid: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			asg, err := f.svc.Create(ctx, tt.mentorID, tt.moduleID, tt.data)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, errors.Cause(err))
			case tt.wantInvalid:
				assert.Error(t, err)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.wantMaxScore, asg.MaxScore)
				assert.Equal(t, f.mod.ID, asg.ModuleID)
				if tt.data.DueDate != nil {
					require.NotNil(t, asg.DueDate)
					assert.Equal(t, time.UTC, asg.DueDate.Location())
					assert.True(t, asg.DueDate.Equal(*tt.data.DueDate))
				}
			}
		})
	}

	asgs, err := f.svc.ListByModule(ctx, f.mod.ID)
	require.NoError(t, err)
	require.Len(t, asgs, 2)
	assert.Equal(t, "Essay", asgs[0].Title)

	_, err = f.svc.ListByModule(ctx, "nope")
	assert.Equal(t, course.ErrModuleNotFound, err)
}

func TestService_SubmitAndGrade(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	asg, err := f.svc.Create(ctx, f.mentor.ID, f.mod.ID, assignment.NewAssignment{Title: "Essay", MaxScore: 50})
	require.NoError(t, err)

	_, err = f.svc.Submit(ctx, f.student.ID, asg.ID, assignment.NewSubmission{Content: "answer"})
	assert.Equal(t, course.ErrNotEnrolled, err)

	testutil.Enroll(t, f.courseRepo, f.student.ID, f.crs.ID)

	_, err = f.svc.Submit(ctx, f.student.ID, asg.ID, assignment.NewSubmission{Content: "   "})
	assert.Error(t, err)
	_, err = f.svc.Submit(ctx, f.student.ID, "nope", assignment.NewSubmission{Content: "answer"})
	assert.Equal(t, assignment.ErrNotFound, err)

	sub, err := f.svc.Submit(ctx, f.student.ID, asg.ID, assignment.NewSubmission{Content: " first ", FileURL: "https://files.test/a.pdf"})
	require.NoError(t, err)
	assert.Equal(t, "first", sub.Content)
	assert.False(t, sub.IsGraded())

	t.Run("grading", func(t *testing.T) {
		other := testutil.CreateUser(t, f.usrRepo, "Other", "other@elimu.test", "", auth.RoleMentor, true)

		_, err := f.svc.Grade(ctx, other.ID, sub.ID, assignment.Grade{Score: 10})
		assert.Equal(t, course.ErrNotOwner, err)
		assert.Equal(t, core.KindForbidden, core.KindOf(err))

		_, err = f.svc.Grade(ctx, f.mentor.ID, sub.ID, assignment.Grade{Score: 51})
		var vErr *core.ValidationError
		require.True(t, errors.As(err, &vErr))
		assert.Equal(t, "score", vErr.Fields[0].Field)

		_, err = f.svc.Grade(ctx, f.mentor.ID, "nope", assignment.Grade{Score: 1})
		assert.Equal(t, assignment.ErrSubmissionNotFound, err)

		graded, err := f.svc.Grade(ctx, f.mentor.ID, sub.ID, assignment.Grade{Score: 42, Feedback: " nice "})
		require.NoError(t, err)
		require.NotNil(t, graded.Score)
		assert.Equal(t, 42, *graded.Score)
		assert.Equal(t, "nice", graded.Feedback)
		assert.True(t, graded.IsGraded())
	})

	t.Run("resubmission replaces the answer", func(t *testing.T) {
		resub, err := f.svc.Submit(ctx, f.student.ID, asg.ID, assignment.NewSubmission{Content: "second"})
		require.NoError(t, err)
		assert.Equal(t, sub.ID, resub.ID)
		assert.Equal(t, "second", resub.Content)
		assert.False(t, resub.SubmittedAt.Before(sub.SubmittedAt))

		got, err := f.svc.Get(ctx, asg.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, got.SubmissionCount)
	})

	t.Run("listing", func(t *testing.T) {
		subs, err := f.svc.ListStudentSubmissions(ctx, f.student.ID, "")
		require.NoError(t, err)
		assert.Len(t, subs, 1)

		subs, err = f.svc.ListStudentSubmissions(ctx, f.student.ID, "other-course")
		require.NoError(t, err)
		assert.Empty(t, subs)

		subs, err = f.svc.ListCourseSubmissions(ctx, f.mentor.ID, f.crs.ID)
		require.NoError(t, err)
		assert.Len(t, subs, 1)

		_, err = f.svc.ListCourseSubmissions(ctx, f.student.ID, f.crs.ID)
		assert.Equal(t, course.ErrNotOwner, err)
	})
}

func TestService_Delete(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	asg, err := f.svc.Create(ctx, f.mentor.ID, f.mod.ID, assignment.NewAssignment{Title: "Essay"})
	require.NoError(t, err)

	assert.Equal(t, course.ErrNotOwner, f.svc.Delete(ctx, f.student.ID, asg.ID))
	require.NoError(t, f.svc.Delete(ctx, f.mentor.ID, asg.ID))
	assert.Equal(t, assignment.ErrNotFound, f.svc.Delete(ctx, f.mentor.ID, asg.ID))

	_, err = f.svc.Get(ctx, asg.ID)
	assert.Equal(t, assignment.ErrNotFound, err)
}
