package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/elimu/core/course"
)

const (
	courseColumns     = `id, title, description, mentor_id, is_published, created_at, updated_at`
	moduleColumns     = `id, course_id, title, content, position, created_at`
	enrollmentColumns = `id, user_id, course_id, progress, enrolled_at, completed_at`
	ratingColumns     = `id, user_id, course_id, rating, review, created_at, updated_at`
)

var (
	moduleConstraints     = map[string]error{"modules_course_id_fkey": course.ErrNotFound}
	enrollmentConstraints = map[string]error{
		"enrollments_user_id_course_id_key": course.ErrAlreadyEnrolled,
		"enrollments_course_id_fkey":        course.ErrNotFound,
	}
	ratingConstraints = map[string]error{"course_ratings_course_id_fkey": course.ErrNotFound}
)

type courseRow struct {
	ID          string    `db:"id"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	MentorID    string    `db:"mentor_id"`
	IsPublished bool      `db:"is_published"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r courseRow) toCourse() course.Course {
	return course.Course{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		MentorID:    r.MentorID,
		IsPublished: r.IsPublished,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

type moduleRow struct {
	ID        string    `db:"id"`
	CourseID  string    `db:"course_id"`
	Title     string    `db:"title"`
	Content   string    `db:"content"`
	Position  int       `db:"position"`
	CreatedAt time.Time `db:"created_at"`
}

func (r moduleRow) toModule() course.Module {
	return course.Module{
		ID:        r.ID,
		CourseID:  r.CourseID,
		Title:     r.Title,
		Content:   r.Content,
		Order:     r.Position,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

type enrollmentRow struct {
	ID          string    `db:"id"`
	UserID      string    `db:"user_id"`
	CourseID    string    `db:"course_id"`
	Progress    int       `db:"progress"`
	EnrolledAt  time.Time `db:"enrolled_at"`
	CompletedAt null.Time `db:"completed_at"`
}

func (r enrollmentRow) toEnrollment() course.Enrollment {
	enr := course.Enrollment{
		ID:         r.ID,
		UserID:     r.UserID,
		CourseID:   r.CourseID,
		Progress:   r.Progress,
		EnrolledAt: r.EnrolledAt.UTC(),
	}
	if r.CompletedAt.Valid {
		at := r.CompletedAt.Time.UTC()
		enr.CompletedAt = &at
	}
	return enr
}

type ratingRow struct {
	ID        string      `db:"id"`
	UserID    string      `db:"user_id"`
	CourseID  string      `db:"course_id"`
	Rating    int         `db:"rating"`
	Review    null.String `db:"review"`
	CreatedAt time.Time   `db:"created_at"`
	UpdatedAt time.Time   `db:"updated_at"`
}

func (r ratingRow) toRating() course.Rating {
	return course.Rating{
		ID:        r.ID,
		UserID:    r.UserID,
		CourseID:  r.CourseID,
		Rating:    r.Rating,
		Review:    r.Review.String,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type courseRepository struct {
	db *sqlx.DB
}

var _ course.Repository = (*courseRepository)(nil)

func NewCourseRepository(db *sqlx.DB) course.Repository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) CreateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	crs.ID = newID()
	crs.Mentor, crs.Modules = nil, nil
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO courses (`+courseColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		crs.ID, crs.Title, crs.Description, crs.MentorID, crs.IsPublished, crs.CreatedAt.UTC(), crs.UpdatedAt.UTC(),
	)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return crs, nil
}

func (repo *courseRepository) GetCourse(ctx context.Context, id string) (course.Course, error) {
	if !validID(id) {
		return course.Course{}, course.ErrNotFound
	}
	var row courseRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+courseColumns+` FROM courses WHERE id = $1`, id); err != nil {
		return course.Course{}, notFound(err, course.ErrNotFound, "selecting course")
	}
	return row.toCourse(), nil
}

func (repo *courseRepository) QueryCourses(ctx context.Context, filter *course.QueryFilter) ([]course.Course, error) {
	var w where
	if filter != nil {
		if filter.PublishedOnly {
			w.add("is_published = ?", true)
		}
		if filter.MentorID != "" {
			if !validID(filter.MentorID) {
				return []course.Course{}, nil
			}
			w.add("mentor_id = ?", filter.MentorID)
		}
		if filter.Search != "" {
			w.add("(title ILIKE ? OR description ILIKE ?)", "%"+filter.Search+"%")
		}
	}

	var rows []courseRow
	q := `SELECT ` + courseColumns + ` FROM courses` + w.String() + ` ORDER BY created_at DESC`
	if err := repo.db.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, row.toCourse())
	}
	return courses, nil
}

func (repo *courseRepository) CreateModule(ctx context.Context, mod course.Module) (course.Module, error) {
	if !validID(mod.CourseID) {
		return course.Module{}, course.ErrNotFound
	}
	mod.ID = newID()
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO modules (`+moduleColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		mod.ID, mod.CourseID, mod.Title, mod.Content, mod.Order, mod.CreatedAt.UTC(),
	)
	if err != nil {
		return course.Module{}, translate(err, "inserting module", moduleConstraints)
	}
	return mod, nil
}

func (repo *courseRepository) GetModule(ctx context.Context, id string) (course.Module, error) {
	if !validID(id) {
		return course.Module{}, course.ErrModuleNotFound
	}
	var row moduleRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+moduleColumns+` FROM modules WHERE id = $1`, id); err != nil {
		return course.Module{}, notFound(err, course.ErrModuleNotFound, "selecting module")
	}
	return row.toModule(), nil
}

func (repo *courseRepository) QueryModules(ctx context.Context, courseID string) ([]course.Module, error) {
	modules := make([]course.Module, 0)
	if !validID(courseID) {
		return modules, nil
	}
	var rows []moduleRow
	q := `SELECT ` + moduleColumns + ` FROM modules WHERE course_id = $1 ORDER BY position, title`
	if err := repo.db.SelectContext(ctx, &rows, q, courseID); err != nil {
		return nil, errors.Wrap(err, "selecting modules")
	}
	for _, row := range rows {
		modules = append(modules, row.toModule())
	}
	return modules, nil
}

func (repo *courseRepository) CountModules(ctx context.Context, courseID string) (int, error) {
	if !validID(courseID) {
		return 0, nil
	}
	var count int
	if err := repo.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM modules WHERE course_id = $1`, courseID); err != nil {
		return 0, errors.Wrap(err, "counting modules")
	}
	return count, nil
}

func (repo *courseRepository) CreateEnrollment(ctx context.Context, enr course.Enrollment) (course.Enrollment, error) {
	if !validID(enr.CourseID) {
		return course.Enrollment{}, course.ErrNotFound
	}
	enr.ID = newID()
	var completedAt null.Time
	if enr.CompletedAt != nil {
		completedAt = null.TimeFrom(enr.CompletedAt.UTC())
	}
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO enrollments (`+enrollmentColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		enr.ID, enr.UserID, enr.CourseID, enr.Progress, enr.EnrolledAt.UTC(), completedAt,
	)
	if err != nil {
		return course.Enrollment{}, translate(err, "inserting enrollment", enrollmentConstraints)
	}
	return enr, nil
}

func (repo *courseRepository) GetEnrollment(ctx context.Context, userID, courseID string) (course.Enrollment, error) {
	if !validID(userID) || !validID(courseID) {
		return course.Enrollment{}, course.ErrEnrollmentNotFound
	}
	var row enrollmentRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT `+enrollmentColumns+` FROM enrollments WHERE user_id = $1 AND course_id = $2`, userID, courseID)
	if err != nil {
		return course.Enrollment{}, notFound(err, course.ErrEnrollmentNotFound, "selecting enrollment")
	}
	return row.toEnrollment(), nil
}

func (repo *courseRepository) QueryEnrollments(ctx context.Context, filter course.EnrollmentFilter) ([]course.Enrollment, error) {
	enrollments := make([]course.Enrollment, 0)
	var w where
	for _, cond := range []struct{ col, id string }{{"user_id", filter.UserID}, {"course_id", filter.CourseID}} {
		if cond.id == "" {
			continue
		}
		if !validID(cond.id) {
			return enrollments, nil
		}
		w.add(cond.col+" = ?", cond.id)
	}

	var rows []enrollmentRow
	q := `SELECT ` + enrollmentColumns + ` FROM enrollments` + w.String() + ` ORDER BY enrolled_at DESC`
	if err := repo.db.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting enrollments")
	}
	for _, row := range rows {
		enrollments = append(enrollments, row.toEnrollment())
	}
	return enrollments, nil
}

// CompleteEnrollment relies on `completed_at IS NULL`: of concurrent completions, exactly one updates the row.
func (repo *courseRepository) CompleteEnrollment(ctx context.Context, id string, at time.Time) (course.Enrollment, error) {
	if !validID(id) {
		return course.Enrollment{}, course.ErrEnrollmentNotFound
	}
	var row enrollmentRow
	err := repo.db.GetContext(ctx, &row,
		`UPDATE enrollments SET completed_at = $2, progress = 100
		WHERE id = $1 AND completed_at IS NULL RETURNING `+enrollmentColumns,
		id, at.UTC(),
	)
	if err == nil {
		return row.toEnrollment(), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return course.Enrollment{}, errors.Wrap(err, "completing enrollment")
	}

	var exists bool
	if err = repo.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM enrollments WHERE id = $1)`, id); err != nil {
		return course.Enrollment{}, errors.Wrap(err, "checking enrollment")
	}
	if exists {
		return course.Enrollment{}, course.ErrAlreadyCompleted
	}
	return course.Enrollment{}, course.ErrEnrollmentNotFound
}

func (repo *courseRepository) UpsertRating(ctx context.Context, r course.Rating) (course.Rating, error) {
	var row ratingRow
	err := repo.db.GetContext(ctx, &row,
		`INSERT INTO course_ratings (`+ratingColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, course_id) DO UPDATE
		SET rating = EXCLUDED.rating, review = EXCLUDED.review, updated_at = EXCLUDED.updated_at
		RETURNING `+ratingColumns,
		newID(), r.UserID, r.CourseID, r.Rating, nullString(r.Review), r.CreatedAt.UTC(), r.UpdatedAt.UTC(),
	)
	if err != nil {
		return course.Rating{}, translate(err, "upserting rating", ratingConstraints)
	}
	return row.toRating(), nil
}

func (repo *courseRepository) GetRating(ctx context.Context, userID, courseID string) (course.Rating, error) {
	if !validID(userID) || !validID(courseID) {
		return course.Rating{}, course.ErrRatingNotFound
	}
	var row ratingRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT `+ratingColumns+` FROM course_ratings WHERE user_id = $1 AND course_id = $2`, userID, courseID)
	if err != nil {
		return course.Rating{}, notFound(err, course.ErrRatingNotFound, "selecting rating")
	}
	return row.toRating(), nil
}

func (repo *courseRepository) QueryRatings(ctx context.Context, courseID string) ([]course.Rating, error) {
	ratings := make([]course.Rating, 0)
	if !validID(courseID) {
		return ratings, nil
	}
	var rows []ratingRow
	q := `SELECT ` + ratingColumns + ` FROM course_ratings WHERE course_id = $1 ORDER BY created_at DESC`
	if err := repo.db.SelectContext(ctx, &rows, q, courseID); err != nil {
		return nil, errors.Wrap(err, "selecting ratings")
	}
	for _, row := range rows {
		ratings = append(ratings, row.toRating())
	}
	return ratings, nil
}
