package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/trezcool/elimu/core/course"
)

type courseRepository struct {
	db *DB
}

var _ course.Repository = (*courseRepository)(nil)

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) CreateCourse(_ context.Context, crs course.Course) (course.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	crs.ID = newID()
	crs.Mentor, crs.Modules = nil, nil
	repo.db.courses[crs.ID] = &crs
	return crs, nil
}

func (repo *courseRepository) GetCourse(_ context.Context, id string) (course.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if crs, ok := repo.db.courses[id]; ok {
		return *crs, nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) QueryCourses(_ context.Context, filter *course.QueryFilter) ([]course.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	courses := make([]course.Course, 0, len(repo.db.courses))
	for _, crs := range repo.db.courses {
		if filter != nil {
			if filter.PublishedOnly && !crs.IsPublished {
				continue
			}
			if filter.MentorID != "" && crs.MentorID != filter.MentorID {
				continue
			}
			if filter.Search != "" {
				kw := strings.ToLower(filter.Search)
				if !strings.Contains(strings.ToLower(crs.Title), kw) && !strings.Contains(strings.ToLower(crs.Description), kw) {
					continue
				}
			}
		}
		courses = append(courses, *crs)
	}
	sort.SliceStable(courses, func(i, j int) bool { return courses[i].CreatedAt.After(courses[j].CreatedAt) })
	return courses, nil
}

func (repo *courseRepository) CreateModule(_ context.Context, mod course.Module) (course.Module, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.courses[mod.CourseID]; !ok {
		return course.Module{}, course.ErrNotFound
	}
	mod.ID = newID()
	repo.db.modules[mod.ID] = &mod
	return mod, nil
}

func (repo *courseRepository) GetModule(_ context.Context, id string) (course.Module, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if mod, ok := repo.db.modules[id]; ok {
		return *mod, nil
	}
	return course.Module{}, course.ErrModuleNotFound
}

func (repo *courseRepository) QueryModules(_ context.Context, courseID string) ([]course.Module, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	modules := make([]course.Module, 0)
	for _, mod := range repo.db.modules {
		if mod.CourseID == courseID {
			modules = append(modules, *mod)
		}
	}
	sort.SliceStable(modules, func(i, j int) bool {
		if modules[i].Order != modules[j].Order {
			return modules[i].Order < modules[j].Order
		}
		return modules[i].Title < modules[j].Title
	})
	return modules, nil
}

func (repo *courseRepository) CountModules(_ context.Context, courseID string) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var count int
	for _, mod := range repo.db.modules {
		if mod.CourseID == courseID {
			count++
		}
	}
	return count, nil
}

func (repo *courseRepository) CreateEnrollment(_ context.Context, enr course.Enrollment) (course.Enrollment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, e := range repo.db.enrollments {
		if e.UserID == enr.UserID && e.CourseID == enr.CourseID {
			return course.Enrollment{}, course.ErrAlreadyEnrolled
		}
	}
	enr.ID = newID()
	repo.db.enrollments[enr.ID] = &enr
	return enr, nil
}

func (repo *courseRepository) GetEnrollment(_ context.Context, userID, courseID string) (course.Enrollment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, enr := range repo.db.enrollments {
		if enr.UserID == userID && enr.CourseID == courseID {
			return copyEnrollment(enr), nil
		}
	}
	return course.Enrollment{}, course.ErrEnrollmentNotFound
}

func (repo *courseRepository) QueryEnrollments(_ context.Context, filter course.EnrollmentFilter) ([]course.Enrollment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	enrollments := make([]course.Enrollment, 0)
	for _, enr := range repo.db.enrollments {
		if (filter.UserID == "" || enr.UserID == filter.UserID) && (filter.CourseID == "" || enr.CourseID == filter.CourseID) {
			enrollments = append(enrollments, copyEnrollment(enr))
		}
	}
	sort.SliceStable(enrollments, func(i, j int) bool { return enrollments[i].EnrolledAt.After(enrollments[j].EnrolledAt) })
	return enrollments, nil
}

func (repo *courseRepository) CompleteEnrollment(_ context.Context, id string, at time.Time) (course.Enrollment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	enr, ok := repo.db.enrollments[id]
	if !ok {
		return course.Enrollment{}, course.ErrEnrollmentNotFound
	}
	if enr.CompletedAt != nil {
		return course.Enrollment{}, course.ErrAlreadyCompleted
	}
	at = at.UTC()
	enr.CompletedAt = &at
	enr.Progress = 100
	return copyEnrollment(enr), nil
}

func copyEnrollment(enr *course.Enrollment) course.Enrollment {
	cp := *enr
	if enr.CompletedAt != nil {
		at := *enr.CompletedAt
		cp.CompletedAt = &at
	}
	return cp
}

func (repo *courseRepository) UpsertRating(_ context.Context, r course.Rating) (course.Rating, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, existing := range repo.db.ratings {
		if existing.UserID == r.UserID && existing.CourseID == r.CourseID {
			existing.Rating = r.Rating
			existing.Review = r.Review
			existing.UpdatedAt = r.UpdatedAt
			return *existing, nil
		}
	}
	r.ID = newID()
	repo.db.ratings[r.ID] = &r
	return r, nil
}

func (repo *courseRepository) GetRating(_ context.Context, userID, courseID string) (course.Rating, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, r := range repo.db.ratings {
		if r.UserID == userID && r.CourseID == courseID {
			return *r, nil
		}
	}
	return course.Rating{}, course.ErrRatingNotFound
}

func (repo *courseRepository) QueryRatings(_ context.Context, courseID string) ([]course.Rating, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	ratings := make([]course.Rating, 0)
	for _, r := range repo.db.ratings {
		if r.CourseID == courseID {
			ratings = append(ratings, *r)
		}
	}
	sort.SliceStable(ratings, func(i, j int) bool { return ratings[i].CreatedAt.After(ratings[j].CreatedAt) })
	return ratings, nil
}
