package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/elimu/core/admin"
	"github.com/trezcool/elimu/core/auth"
	"github.com/trezcool/elimu/core/user"
)

type adminRepository struct {
	db *DB
}

var _ admin.Repository = (*adminRepository)(nil)

func NewAdminRepository(db *DB) admin.Repository {
	return &adminRepository{db: db}
}

func (repo *adminRepository) CountUsers(_ context.Context, role auth.Role) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var count int
	for _, usr := range repo.db.users {
		if role == "" || usr.Role == role {
			count++
		}
	}
	return count, nil
}

func (repo *adminRepository) CountCourses(_ context.Context, publishedOnly bool) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var count int
	for _, crs := range repo.db.courses {
		if !publishedOnly || crs.IsPublished {
			count++
		}
	}
	return count, nil
}

func (repo *adminRepository) EnrollmentTotals(_ context.Context, since time.Time) (admin.EnrollmentTotals, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var totals admin.EnrollmentTotals
	for _, enr := range repo.db.enrollments {
		totals.Total++
		totals.ProgressSum += enr.Progress
		if !enr.EnrolledAt.Before(since) {
			totals.Recent++
		}
		if enr.CompletedAt != nil {
			totals.Completed++
		}
	}
	return totals, nil
}

func (repo *adminRepository) UserSignups(_ context.Context, start, end time.Time) ([]admin.Signups, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	type bucket struct {
		day  time.Time
		role auth.Role
	}
	counts := make(map[bucket]int)
	for _, usr := range repo.db.users {
		created := usr.CreatedAt.UTC()
		if created.Before(start) || !created.Before(end) {
			continue
		}
		counts[bucket{day: created.Truncate(24 * time.Hour), role: usr.Role}]++
	}

	signups := make([]admin.Signups, 0, len(counts))
	for b, n := range counts {
		signups = append(signups, admin.Signups{Day: b.day, Role: b.role, Count: n})
	}
	sort.Slice(signups, func(i, j int) bool {
		if !signups[i].Day.Equal(signups[j].Day) {
			return signups[i].Day.Before(signups[j].Day)
		}
		return signups[i].Role < signups[j].Role
	})
	return signups, nil
}

func (repo *adminRepository) CourseEnrollmentStats(_ context.Context) ([]admin.CourseStat, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	byCourse := make(map[string]*admin.CourseStat, len(repo.db.courses))
	stats := make([]admin.CourseStat, 0, len(repo.db.courses))
	for _, crs := range repo.db.courses {
		stats = append(stats, admin.CourseStat{CourseID: crs.ID, Title: crs.Title})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Title < stats[j].Title })
	for i := range stats {
		byCourse[stats[i].CourseID] = &stats[i]
	}
	for _, enr := range repo.db.enrollments {
		if cs, ok := byCourse[enr.CourseID]; ok {
			cs.Enrollments++
			if enr.CompletedAt != nil {
				cs.Completions++
			}
		}
	}
	return stats, nil
}

func (repo *adminRepository) PageUsers(_ context.Context, role auth.Role, limit, offset int) ([]user.User, int, error) {
	if offset < 0 || limit < 1 {
		return nil, 0, admin.ErrInvalidPage
	}
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	users := make([]user.User, 0)
	for _, usr := range repo.db.users {
		if role == "" || usr.Role == role {
			users = append(users, *usr)
		}
	}
	sortUsers(users, nil)

	total := len(users)
	if offset >= total {
		return []user.User{}, total, nil
	}
	end := offset + limit
	if end > total || end < offset {
		end = total
	}
	return users[offset:end], total, nil
}

func (repo *adminRepository) UserActivity(_ context.Context, userIDs []string) (map[string]admin.Activity, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	wanted := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		wanted[id] = true
	}
	activity := make(map[string]admin.Activity)
	for _, enr := range repo.db.enrollments {
		if wanted[enr.UserID] {
			act := activity[enr.UserID]
			act.EnrollmentCount++
			activity[enr.UserID] = act
		}
	}
	for _, crs := range repo.db.courses {
		if wanted[crs.MentorID] {
			act := activity[crs.MentorID]
			act.CoursesOwned++
			activity[crs.MentorID] = act
		}
	}
	return activity, nil
}

func (repo *adminRepository) CreateSnapshot(_ context.Context, snap admin.Snapshot) (admin.Snapshot, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	snap.ID = newID()
	repo.db.snapshots[snap.ID] = &snap
	return snap, nil
}
