package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/elimu/core/assignment"
	"github.com/trezcool/elimu/core/course"
)

const (
	assignmentColumns = `a.id, a.module_id, a.title, a.description, a.due_date, a.max_score, a.created_at, a.updated_at,
	(SELECT COUNT(*) FROM submissions s WHERE s.assignment_id = a.id) AS submission_count`
	submissionColumns = `id, assignment_id, student_id, content, file_url, score, feedback, submitted_at, graded_at`
)

var (
	assignmentConstraints = map[string]error{"assignments_module_id_fkey": course.ErrModuleNotFound}
	submissionConstraints = map[string]error{"submissions_assignment_id_fkey": assignment.ErrNotFound}
)

type assignmentRow struct {
	ID              string    `db:"id"`
	ModuleID        string    `db:"module_id"`
	Title           string    `db:"title"`
	Description     string    `db:"description"`
	DueDate         null.Time `db:"due_date"`
	MaxScore        int       `db:"max_score"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
	SubmissionCount int       `db:"submission_count"`
}

func (r assignmentRow) toAssignment() assignment.Assignment {
	asg := assignment.Assignment{
		ID:              r.ID,
		ModuleID:        r.ModuleID,
		Title:           r.Title,
		Description:     r.Description,
		MaxScore:        r.MaxScore,
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
		SubmissionCount: r.SubmissionCount,
	}
	if r.DueDate.Valid {
		due := r.DueDate.Time.UTC()
		asg.DueDate = &due
	}
	return asg
}

type submissionRow struct {
	ID           string      `db:"id"`
	AssignmentID string      `db:"assignment_id"`
	StudentID    string      `db:"student_id"`
	Content      string      `db:"content"`
	FileURL      null.String `db:"file_url"`
	Score        null.Int    `db:"score"`
	Feedback     null.String `db:"feedback"`
	SubmittedAt  time.Time   `db:"submitted_at"`
	GradedAt     null.Time   `db:"graded_at"`
}

func (r submissionRow) toSubmission() assignment.Submission {
	sub := assignment.Submission{
		ID:           r.ID,
		AssignmentID: r.AssignmentID,
		StudentID:    r.StudentID,
		Content:      r.Content,
		FileURL:      r.FileURL.String,
		Feedback:     r.Feedback.String,
		SubmittedAt:  r.SubmittedAt.UTC(),
	}
	if r.Score.Valid {
		score := r.Score.Int
		sub.Score = &score
	}
	if r.GradedAt.Valid {
		at := r.GradedAt.Time.UTC()
		sub.GradedAt = &at
	}
	return sub
}

type assignmentRepository struct {
	db *sqlx.DB
}

var _ assignment.Repository = (*assignmentRepository)(nil)

func NewAssignmentRepository(db *sqlx.DB) assignment.Repository {
	return &assignmentRepository{db: db}
}

func (repo *assignmentRepository) CreateAssignment(ctx context.Context, asg assignment.Assignment) (assignment.Assignment, error) {
	if !validID(asg.ModuleID) {
		return assignment.Assignment{}, course.ErrModuleNotFound
	}
	asg.ID = newID()
	asg.SubmissionCount = 0
	var due null.Time
	if asg.DueDate != nil {
		due = null.TimeFrom(asg.DueDate.UTC())
	}
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO assignments (id, module_id, title, description, due_date, max_score, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		asg.ID, asg.ModuleID, asg.Title, asg.Description, due, asg.MaxScore, asg.CreatedAt.UTC(), asg.UpdatedAt.UTC(),
	)
	if err != nil {
		return assignment.Assignment{}, translate(err, "inserting assignment", assignmentConstraints)
	}
	return asg, nil
}

func (repo *assignmentRepository) GetAssignment(ctx context.Context, id string) (assignment.Assignment, error) {
	if !validID(id) {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	var row assignmentRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+assignmentColumns+` FROM assignments a WHERE a.id = $1`, id); err != nil {
		return assignment.Assignment{}, notFound(err, assignment.ErrNotFound, "selecting assignment")
	}
	return row.toAssignment(), nil
}

func (repo *assignmentRepository) QueryAssignments(ctx context.Context, moduleID string) ([]assignment.Assignment, error) {
	asgs := make([]assignment.Assignment, 0)
	if !validID(moduleID) {
		return asgs, nil
	}
	var rows []assignmentRow
	q := `SELECT ` + assignmentColumns + ` FROM assignments a WHERE a.module_id = $1 ORDER BY a.created_at`
	if err := repo.db.SelectContext(ctx, &rows, q, moduleID); err != nil {
		return nil, errors.Wrap(err, "selecting assignments")
	}
	for _, row := range rows {
		asgs = append(asgs, row.toAssignment())
	}
	return asgs, nil
}

// DeleteAssignment also deletes its submissions (ON DELETE CASCADE).
func (repo *assignmentRepository) DeleteAssignment(ctx context.Context, id string) error {
	if !validID(id) {
		return assignment.ErrNotFound
	}
	res, err := repo.db.ExecContext(ctx, `DELETE FROM assignments WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	if n == 0 {
		return assignment.ErrNotFound
	}
	return nil
}

// UpsertSubmission keeps the grade of a replaced submission.
func (repo *assignmentRepository) UpsertSubmission(ctx context.Context, sub assignment.Submission) (assignment.Submission, error) {
	var row submissionRow
	err := repo.db.GetContext(ctx, &row,
		`INSERT INTO submissions (`+submissionColumns+`) VALUES ($1, $2, $3, $4, $5, NULL, NULL, $6, NULL)
		ON CONFLICT (assignment_id, student_id) DO UPDATE
		SET content = EXCLUDED.content, file_url = EXCLUDED.file_url, submitted_at = EXCLUDED.submitted_at
		RETURNING `+submissionColumns,
		newID(), sub.AssignmentID, sub.StudentID, sub.Content, nullString(sub.FileURL), sub.SubmittedAt.UTC(),
	)
	if err != nil {
		return assignment.Submission{}, translate(err, "upserting submission", submissionConstraints)
	}
	return row.toSubmission(), nil
}

func (repo *assignmentRepository) GetSubmission(ctx context.Context, id string) (assignment.Submission, error) {
	if !validID(id) {
		return assignment.Submission{}, assignment.ErrSubmissionNotFound
	}
	var row submissionRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id); err != nil {
		return assignment.Submission{}, notFound(err, assignment.ErrSubmissionNotFound, "selecting submission")
	}
	return row.toSubmission(), nil
}

func (repo *assignmentRepository) GradeSubmission(ctx context.Context, id string, score int, feedback string, at time.Time) (assignment.Submission, error) {
	if !validID(id) {
		return assignment.Submission{}, assignment.ErrSubmissionNotFound
	}
	var row submissionRow
	err := repo.db.GetContext(ctx, &row,
		`UPDATE submissions SET score = $2, feedback = $3, graded_at = $4 WHERE id = $1 RETURNING `+submissionColumns,
		id, score, nullString(feedback), at.UTC(),
	)
	if err != nil {
		return assignment.Submission{}, notFound(err, assignment.ErrSubmissionNotFound, "grading submission")
	}
	return row.toSubmission(), nil
}

func (repo *assignmentRepository) QuerySubmissions(ctx context.Context, filter assignment.SubmissionFilter) ([]assignment.Submission, error) {
	subs := make([]assignment.Submission, 0)
	var w where
	for _, cond := range []struct{ col, id string }{
		{"s.assignment_id", filter.AssignmentID},
		{"s.student_id", filter.StudentID},
		{"m.course_id", filter.CourseID},
	} {
		if cond.id == "" {
			continue
		}
		if !validID(cond.id) {
			return subs, nil
		}
		w.add(cond.col+" = ?", cond.id)
	}

	q := `SELECT s.id, s.assignment_id, s.student_id, s.content, s.file_url, s.score, s.feedback, s.submitted_at, s.graded_at
	FROM submissions s
	JOIN assignments a ON a.id = s.assignment_id
	JOIN modules m ON m.id = a.module_id` + w.String() + ` ORDER BY s.submitted_at DESC`
	var rows []submissionRow
	if err := repo.db.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting submissions")
	}
	for _, row := range rows {
		subs = append(subs, row.toSubmission())
	}
	return subs, nil
}
