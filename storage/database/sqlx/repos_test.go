package sqlxrepos

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/elimu/core/admin"
	"github.com/trezcool/elimu/core/assignment"
	"github.com/trezcool/elimu/core/auth"
	"github.com/trezcool/elimu/core/certificate"
	"github.com/trezcool/elimu/core/course"
)

func TestWhere(t *testing.T) {
	var w where
	assert.Equal(t, "", w.String())

	w.add("(name ILIKE ? OR email ILIKE ?)", "%a%")
	w.add("role = ?", "ADMIN")
	limit := w.next(10)

	assert.Equal(t, " WHERE (name ILIKE $1 OR email ILIKE $1) AND role = $2", w.String())
	assert.Equal(t, "$3", limit)
	assert.Equal(t, []interface{}{"%a%", "ADMIN", 10}, w.args)
}

func TestTranslate(t *testing.T) {
	notMine := &pq.Error{Code: "23505", Constraint: "other_key"}
	byConstraint := map[string]error{"users_email_key": errors.New("taken")}

	assert.NoError(t, translate(nil, "x", byConstraint))
	assert.Equal(t, byConstraint["users_email_key"], translate(&pq.Error{Code: "23505", Constraint: "users_email_key"}, "x", byConstraint))
	assert.Equal(t, byConstraint["users_email_key"], translate(errors.Wrap(&pq.Error{Code: "23505", Constraint: "users_email_key"}, "wrapped"), "x", byConstraint))
	assert.EqualError(t, translate(notMine, "inserting", byConstraint), "inserting: "+notMine.Error())
	// only unique and foreign-key violations are mapped
	assert.NotEqual(t, byConstraint["users_email_key"], translate(&pq.Error{Code: "23514", Constraint: "users_email_key"}, "x", byConstraint))
}

func TestCertificateRepository_CreateCertificate(t *testing.T) {
	tests := []struct {
		name       string
		constraint string
		wantErr    error
	}{
		{name: "already issued", constraint: "certificates_student_id_course_id_key", wantErr: certificate.ErrExists},
		{name: "number collision", constraint: "certificates_certificate_number_key", wantErr: certificate.ErrNumberTaken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMock(t)
			mock.ExpectExec("INSERT INTO certificates").WillReturnError(&pq.Error{Code: "23505", Constraint: tt.constraint})
			_, err := NewCertificateRepository(db).CreateCertificate(context.Background(), certificate.Certificate{StudentID: uid1, CourseID: uid2})
			assert.Equal(t, tt.wantErr, err)
		})
	}

	t.Run("issued", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectExec("INSERT INTO certificates").
			WithArgs(sqlmock.AnyArg(), uid1, uid2, "CERT-1-2", "/certificates/CERT-1-2.pdf", tstamp).
			WillReturnResult(sqlmock.NewResult(0, 1))
		cert, err := NewCertificateRepository(db).CreateCertificate(context.Background(), certificate.Certificate{
			StudentID: uid1, CourseID: uid2, CertificateNumber: "CERT-1-2", CertificateURL: "/certificates/CERT-1-2.pdf", IssuedAt: tstamp,
		})
		require.NoError(t, err)
		assert.True(t, validID(cert.ID))
	})
}

func TestCertificateRepository_GetCertificate(t *testing.T) {
	certRows := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "student_id", "course_id", "certificate_number", "certificate_url", "issued_at"})
	}
	tests := []struct {
		name      string
		filter    certificate.GetFilter
		wantQuery string
		wantArgs  []driver.Value
	}{
		{name: "by id", filter: certificate.GetFilter{ID: uid1, Number: "ignored"}, wantQuery: `WHERE id = $1`, wantArgs: []driver.Value{uid1}},
		{name: "by number", filter: certificate.GetFilter{Number: "CERT-1-2"}, wantQuery: `WHERE certificate_number = $1`, wantArgs: []driver.Value{"CERT-1-2"}},
		{
			name:      "by student and course",
			filter:    certificate.GetFilter{StudentID: uid1, CourseID: uid2},
			wantQuery: `WHERE student_id = $1 AND course_id = $2`,
			wantArgs:  []driver.Value{uid1, uid2},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMock(t)
			mock.ExpectQuery(regexp.QuoteMeta(tt.wantQuery) + "$").
				WithArgs(tt.wantArgs...).
				WillReturnRows(certRows().AddRow(uid1, uid1, uid2, "CERT-1-2", "/certificates/CERT-1-2.pdf", tstamp))
			cert, err := NewCertificateRepository(db).GetCertificate(context.Background(), tt.filter)
			require.NoError(t, err)
			assert.Equal(t, "CERT-1-2", cert.CertificateNumber)
			assert.Equal(t, tstamp, cert.IssuedAt)
		})
	}

	t.Run("not found", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery("FROM certificates").WillReturnRows(certRows())
		repo := NewCertificateRepository(db)
		_, err := repo.GetCertificate(context.Background(), certificate.GetFilter{Number: "CERT-0-0"})
		assert.Equal(t, certificate.ErrNotFound, err)

		for _, filter := range []certificate.GetFilter{{}, {StudentID: uid1}, {ID: "1"}, {StudentID: "x", CourseID: uid2}} {
			_, err = repo.GetCertificate(context.Background(), filter)
			assert.Equal(t, certificate.ErrNotFound, err)
		}
	})
}

func TestAssignmentRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("create on unknown module", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectExec("INSERT INTO assignments").WillReturnError(&pq.Error{Code: "23503", Constraint: "assignments_module_id_fkey"})
		_, err := NewAssignmentRepository(db).CreateAssignment(ctx, assignment.Assignment{ModuleID: uid1, Title: "Essay", MaxScore: 100})
		assert.Equal(t, course.ErrModuleNotFound, err)
	})

	t.Run("delete missing", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM assignments WHERE id = $1`)).WithArgs(uid1).WillReturnResult(sqlmock.NewResult(0, 0))
		assert.Equal(t, assignment.ErrNotFound, NewAssignmentRepository(db).DeleteAssignment(ctx, uid1))
	})

	t.Run("delete", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectExec("DELETE FROM assignments").WithArgs(uid1).WillReturnResult(sqlmock.NewResult(0, 1))
		assert.NoError(t, NewAssignmentRepository(db).DeleteAssignment(ctx, uid1))
	})

	t.Run("submit to unknown assignment", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery("INSERT INTO submissions").WillReturnError(&pq.Error{Code: "23503", Constraint: "submissions_assignment_id_fkey"})
		_, err := NewAssignmentRepository(db).UpsertSubmission(ctx, assignment.Submission{AssignmentID: uid1, StudentID: uid2, Content: "x"})
		assert.Equal(t, assignment.ErrNotFound, err)
	})

	t.Run("submissions by course", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery(regexp.QuoteMeta(`JOIN modules m ON m.id = a.module_id WHERE s.student_id = $1 AND m.course_id = $2 ORDER BY s.submitted_at DESC`)).
			WithArgs(uid1, uid2).
			WillReturnRows(sqlmock.NewRows([]string{"id", "assignment_id", "student_id", "content", "file_url", "score", "feedback", "submitted_at", "graded_at"}).
				AddRow(uid2, uid2, uid1, "answer", nil, 80, "good", tstamp, tstamp))

		subs, err := NewAssignmentRepository(db).QuerySubmissions(ctx, assignment.SubmissionFilter{StudentID: uid1, CourseID: uid2})
		require.NoError(t, err)
		require.Len(t, subs, 1)
		require.NotNil(t, subs[0].Score)
		assert.Equal(t, 80, *subs[0].Score)
		assert.Equal(t, "good", subs[0].Feedback)
		assert.True(t, subs[0].IsGraded())
	})

	t.Run("grade missing", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery("UPDATE submissions SET score").WillReturnRows(sqlmock.NewRows([]string{"id"}))
		_, err := NewAssignmentRepository(db).GradeSubmission(ctx, uid1, 90, "", tstamp)
		assert.Equal(t, assignment.ErrSubmissionNotFound, err)
	})
}

func TestAdminRepository_EnrollmentTotals(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("FROM enrollments").
		WithArgs(tstamp).
		WillReturnRows(sqlmock.NewRows([]string{"total", "recent", "completed", "progress_sum"}).AddRow(4, 1, 2, 250))

	totals, err := NewAdminRepository(db).EnrollmentTotals(context.Background(), tstamp)
	require.NoError(t, err)
	assert.Equal(t, admin.EnrollmentTotals{Total: 4, Recent: 1, Completed: 2, ProgressSum: 250}, totals)
}

func TestAdminRepository_PageUsers(t *testing.T) {
	ctx := context.Background()
	count := regexp.QuoteMeta(`SELECT COUNT(*) FROM users WHERE role = $1`)

	t.Run("page", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery(count).WithArgs("MENTOR").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
		mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE role = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`)).
			WithArgs("MENTOR", 2, 2).
			WillReturnRows(userRows().AddRow(uid1, "m@elimu.test", "M", nil, nil, nil, nil, "MENTOR", true, []byte("h"), tstamp, tstamp, nil))

		users, total, err := NewAdminRepository(db).PageUsers(ctx, auth.RoleMentor, 2, 2)
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		require.Len(t, users, 1)
		assert.Equal(t, auth.RoleMentor, users[0].Role)
	})

	t.Run("past the end", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery(count).WithArgs("MENTOR").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

		users, total, err := NewAdminRepository(db).PageUsers(ctx, auth.RoleMentor, 2, 4)
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		assert.Empty(t, users)
	})

	t.Run("negative offset", func(t *testing.T) {
		db, _ := newMock(t) // no query expected

		_, _, err := NewAdminRepository(db).PageUsers(ctx, "", 100, -9223372036854775716)
		assert.Equal(t, admin.ErrInvalidPage, err)
	})
}

func TestAdminRepository_UserActivity(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE u.id = ANY($1)`)).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "enrollments", "courses_owned"}).
			AddRow(uid1, 3, 0).
			AddRow(uid2, 0, 0))

	activity, err := NewAdminRepository(db).UserActivity(context.Background(), []string{uid1, uid2})
	require.NoError(t, err)
	assert.Equal(t, map[string]admin.Activity{uid1: {EnrollmentCount: 3}}, activity)
}
