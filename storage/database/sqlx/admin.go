package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core/admin"
	"github.com/trezcool/elimu/core/auth"
	"github.com/trezcool/elimu/core/user"
)

type adminRepository struct {
	db *sqlx.DB
}

var _ admin.Repository = (*adminRepository)(nil)

func NewAdminRepository(db *sqlx.DB) admin.Repository {
	return &adminRepository{db: db}
}

func (repo *adminRepository) CountUsers(ctx context.Context, role auth.Role) (int, error) {
	var w where
	if role != "" {
		w.add("role = ?", string(role))
	}
	var count int
	if err := repo.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM users`+w.String(), w.args...); err != nil {
		return 0, errors.Wrap(err, "counting users")
	}
	return count, nil
}

func (repo *adminRepository) CountCourses(ctx context.Context, publishedOnly bool) (int, error) {
	q := `SELECT COUNT(*) FROM courses`
	if publishedOnly {
		q += ` WHERE is_published`
	}
	var count int
	if err := repo.db.GetContext(ctx, &count, q); err != nil {
		return 0, errors.Wrap(err, "counting courses")
	}
	return count, nil
}

func (repo *adminRepository) EnrollmentTotals(ctx context.Context, since time.Time) (admin.EnrollmentTotals, error) {
	var row struct {
		Total       int `db:"total"`
		Recent      int `db:"recent"`
		Completed   int `db:"completed"`
		ProgressSum int `db:"progress_sum"`
	}
	err := repo.db.GetContext(ctx, &row,
		`SELECT COUNT(*) AS total,
			COUNT(*) FILTER (WHERE enrolled_at >= $1) AS recent,
			COUNT(completed_at) AS completed,
			COALESCE(SUM(progress), 0) AS progress_sum
		FROM enrollments`,
		since.UTC(),
	)
	if err != nil {
		return admin.EnrollmentTotals{}, errors.Wrap(err, "summing enrollments")
	}
	return admin.EnrollmentTotals(row), nil
}

func (repo *adminRepository) UserSignups(ctx context.Context, start, end time.Time) ([]admin.Signups, error) {
	var rows []struct {
		Day   time.Time `db:"day"`
		Role  string    `db:"role"`
		Count int       `db:"count"`
	}
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT date_trunc('day', created_at AT TIME ZONE 'UTC') AS day, role, COUNT(*) AS count
		FROM users
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY day, role
		ORDER BY day, role`,
		start.UTC(), end.UTC(),
	)
	if err != nil {
		return nil, errors.Wrap(err, "grouping signups")
	}
	signups := make([]admin.Signups, 0, len(rows))
	for _, row := range rows {
		d := row.Day
		signups = append(signups, admin.Signups{
			Day:   time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC),
			Role:  auth.Role(row.Role),
			Count: row.Count,
		})
	}
	return signups, nil
}

func (repo *adminRepository) CourseEnrollmentStats(ctx context.Context) ([]admin.CourseStat, error) {
	var rows []struct {
		CourseID    string `db:"course_id"`
		Title       string `db:"title"`
		Enrollments int    `db:"enrollments"`
		Completions int    `db:"completions"`
	}
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT c.id AS course_id, c.title, COUNT(e.id) AS enrollments, COUNT(e.completed_at) AS completions
		FROM courses c
		LEFT JOIN enrollments e ON e.course_id = c.id
		GROUP BY c.id, c.title
		ORDER BY c.title`,
	)
	if err != nil {
		return nil, errors.Wrap(err, "selecting course stats")
	}
	stats := make([]admin.CourseStat, 0, len(rows))
	for _, row := range rows {
		stats = append(stats, admin.CourseStat{
			CourseID:    row.CourseID,
			Title:       row.Title,
			Enrollments: row.Enrollments,
			Completions: row.Completions,
		})
	}
	return stats, nil
}

func (repo *adminRepository) PageUsers(ctx context.Context, role auth.Role, limit, offset int) ([]user.User, int, error) {
	if offset < 0 || limit < 1 {
		return nil, 0, admin.ErrInvalidPage
	}
	var w where
	if role != "" {
		w.add("role = ?", string(role))
	}
	var total int
	if err := repo.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM users`+w.String(), w.args...); err != nil {
		return nil, 0, errors.Wrap(err, "counting users")
	}

	users := make([]user.User, 0, limit)
	if offset >= total {
		return users, total, nil
	}
	q := `SELECT ` + userColumns + ` FROM users` + w.String() + ` ORDER BY created_at DESC LIMIT ` + w.next(limit) + ` OFFSET ` + w.next(offset)
	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, 0, errors.Wrap(err, "selecting users page")
	}
	for _, row := range rows {
		users = append(users, row.toUser())
	}
	return users, total, nil
}

func (repo *adminRepository) UserActivity(ctx context.Context, userIDs []string) (map[string]admin.Activity, error) {
	var rows []struct {
		UserID       string `db:"user_id"`
		Enrollments  int    `db:"enrollments"`
		CoursesOwned int    `db:"courses_owned"`
	}
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT u.id AS user_id,
			(SELECT COUNT(*) FROM enrollments e WHERE e.user_id = u.id) AS enrollments,
			(SELECT COUNT(*) FROM courses c WHERE c.mentor_id = u.id) AS courses_owned
		FROM users u
		WHERE u.id = ANY($1)`,
		pq.Array(userIDs),
	)
	if err != nil {
		return nil, errors.Wrap(err, "selecting user activity")
	}
	activity := make(map[string]admin.Activity, len(rows))
	for _, row := range rows {
		if row.Enrollments > 0 || row.CoursesOwned > 0 {
			activity[row.UserID] = admin.Activity{EnrollmentCount: row.Enrollments, CoursesOwned: row.CoursesOwned}
		}
	}
	return activity, nil
}

func (repo *adminRepository) CreateSnapshot(ctx context.Context, snap admin.Snapshot) (admin.Snapshot, error) {
	snap.ID = newID()
	snap.CreatedAt = snap.CreatedAt.UTC()
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO analytics_snapshots (id, total_users, total_students, total_mentors, total_admins, active_courses,
		total_enrollments, recent_enrollments, completion_rate, average_progress, revenue, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		snap.ID, snap.TotalUsers, snap.TotalStudents, snap.TotalMentors, snap.TotalAdmins, snap.ActiveCourses,
		snap.TotalEnrollments, snap.RecentEnrollments, snap.CompletionRate, snap.AverageProgress, snap.Revenue, snap.CreatedAt,
	)
	if err != nil {
		return admin.Snapshot{}, errors.Wrap(err, "inserting snapshot")
	}
	return snap, nil
}
