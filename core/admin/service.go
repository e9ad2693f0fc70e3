package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/auth"
	"github.com/trezcool/elimu/core/user"
)

const (
	recentWindow     = 30 * 24 * time.Hour
	analyticsDefault = 30 * 24 * time.Hour
	day              = 24 * time.Hour
	maxAnalyticsDays = 366
)

var (
	ErrInvalidRange = core.NewError(core.KindInvalidInput, "start must be before end")
	ErrRangeTooLong = core.NewError(core.KindInvalidInput, fmt.Sprintf("the range cannot exceed %d days", maxAnalyticsDays))
	ErrInvalidPage  = core.NewError(core.KindInvalidInput, "page is out of range")

	nowFunc = time.Now
)

type Repository interface {
	// CountUsers counts the users of role, or all users when role is empty.
	CountUsers(ctx context.Context, role auth.Role) (int, error)
	CountCourses(ctx context.Context, publishedOnly bool) (int, error)
	// EnrollmentTotals counts enrollments; Recent counts those enrolled at or after since.
	EnrollmentTotals(ctx context.Context, since time.Time) (EnrollmentTotals, error)
	// UserSignups groups the users created in [start, end) by UTC day and role.
	UserSignups(ctx context.Context, start, end time.Time) ([]Signups, error)
	// CourseEnrollmentStats returns every course with its enrollment and completion counts.
	CourseEnrollmentStats(ctx context.Context) ([]CourseStat, error)
	// PageUsers returns a page of users (newest first) and the total matching count.
	// It fails with ErrInvalidPage on a negative offset or a non-positive limit.
	PageUsers(ctx context.Context, role auth.Role, limit, offset int) ([]user.User, int, error)
	// UserActivity returns the activity of the given users; users without any are left out.
	UserActivity(ctx context.Context, userIDs []string) (map[string]Activity, error)
	CreateSnapshot(ctx context.Context, snap Snapshot) (Snapshot, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Stats(ctx context.Context) (Stats, error) {
	var (
		stats Stats
		err   error
	)
	counts := []struct {
		role auth.Role
		dest *int
	}{
		{"", &stats.TotalUsers},
		{auth.RoleStudent, &stats.TotalStudents},
		{auth.RoleMentor, &stats.TotalMentors},
		{auth.RoleAdmin, &stats.TotalAdmins},
	}
	for _, c := range counts {
		if *c.dest, err = svc.repo.CountUsers(ctx, c.role); err != nil {
			return Stats{}, err
		}
	}
	if stats.ActiveCourses, err = svc.repo.CountCourses(ctx, true); err != nil {
		return Stats{}, err
	}

	totals, err := svc.repo.EnrollmentTotals(ctx, nowFunc().UTC().Add(-recentWindow))
	if err != nil {
		return Stats{}, err
	}
	stats.TotalEnrollments = totals.Total
	stats.RecentEnrollments = totals.Recent
	if totals.Total > 0 {
		stats.CompletionRate = core.Round(float64(totals.Completed)*100/float64(totals.Total), 2)
		stats.AverageProgress = core.Round(float64(totals.ProgressSum)/float64(totals.Total), 2)
	}
	return stats, nil
}

// Analytics reports daily signups and per-course completion over [start, end].
// Zero bounds default to the last 30 days.
func (svc *Service) Analytics(ctx context.Context, start, end time.Time) (Analytics, error) {
	if end.IsZero() {
		end = nowFunc()
	}
	if start.IsZero() {
		start = end.Add(-analyticsDefault)
	}
	start, end = start.UTC().Truncate(day), end.UTC().Truncate(day)
	if end.Before(start) {
		return Analytics{}, ErrInvalidRange
	}
	if end.Sub(start) >= maxAnalyticsDays*day {
		return Analytics{}, ErrRangeTooLong
	}

	signups, err := svc.repo.UserSignups(ctx, start, end.Add(day))
	if err != nil {
		return Analytics{}, err
	}
	byDay := make(map[string]*DailyGrowth)
	growth := make([]DailyGrowth, 0, int(end.Sub(start)/day)+1)
	for d := start; !d.After(end); d = d.Add(day) {
		growth = append(growth, DailyGrowth{Date: d.Format(dateLayout)})
	}
	for i := range growth {
		byDay[growth[i].Date] = &growth[i]
	}
	for _, s := range signups {
		dg, ok := byDay[s.Day.UTC().Format(dateLayout)]
		if !ok {
			continue
		}
		switch s.Role {
		case auth.RoleStudent:
			dg.Students += s.Count
		case auth.RoleMentor:
			dg.Mentors += s.Count
		}
	}

	courses, err := svc.repo.CourseEnrollmentStats(ctx)
	if err != nil {
		return Analytics{}, err
	}
	for i, c := range courses {
		if c.Enrollments > 0 {
			courses[i].CompletionRate = core.Round(float64(c.Completions)*100/float64(c.Enrollments), 2)
		}
	}

	return Analytics{
		Start:      start.Format(dateLayout),
		End:        end.Format(dateLayout),
		UserGrowth: growth,
		Courses:    courses,
	}, nil
}

func (svc *Service) Users(ctx context.Context, p core.Pagination, role auth.Role) (UserPage, error) {
	p.Clean()
	if role != "" && !role.Valid() {
		return UserPage{}, core.NewValidationError(nil, core.FieldError{Field: "role", Error: "invalid role"})
	}
	users, total, err := svc.repo.PageUsers(ctx, role, p.Limit, p.Offset())
	if err != nil {
		return UserPage{}, err
	}

	rows := make([]UserRow, len(users))
	if len(users) > 0 {
		ids := make([]string, len(users))
		for i, usr := range users {
			ids[i] = usr.ID
		}
		activity, err := svc.repo.UserActivity(ctx, ids)
		if err != nil {
			return UserPage{}, err
		}
		for i, usr := range users {
			rows[i] = UserRow{User: usr, Activity: activity[usr.ID]}
		}
	}

	return UserPage{
		Users:      rows,
		Total:      total,
		Page:       p.Page,
		Limit:      p.Limit,
		TotalPages: p.TotalPages(total),
	}, nil
}

// SaveSnapshot persists the current platform stats.
func (svc *Service) SaveSnapshot(ctx context.Context) (Snapshot, error) {
	stats, err := svc.Stats(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return svc.repo.CreateSnapshot(ctx, Snapshot{Stats: stats, CreatedAt: nowFunc().UTC()})
}
