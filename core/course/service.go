package course

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/user"
)

var (
	ErrNotFound           = core.NewError(core.KindNotFound, "course not found")
	ErrModuleNotFound     = core.NewError(core.KindNotFound, "module not found")
	ErrEnrollmentNotFound = core.NewError(core.KindNotFound, "enrollment not found")
	ErrNotEnrolled        = core.NewError(core.KindNotFound, "you are not enrolled in this course")
	ErrRatingNotFound     = core.NewError(core.KindNotFound, "rating not found")
	ErrAlreadyEnrolled    = core.NewError(core.KindConflict, "already enrolled in this course")
	ErrAlreadyCompleted   = core.NewError(core.KindConflict, "course already completed")
	ErrNotCompleted       = core.NewError(core.KindInvalidInput, "you must complete the course first")
	ErrNotOwner           = core.NewError(core.KindForbidden, "you do not own this course")
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, c Course) (Course, error)
		GetCourse(ctx context.Context, id string) (Course, error)
		// QueryCourses returns the newest courses first.
		QueryCourses(ctx context.Context, filter *QueryFilter) ([]Course, error)

		CreateModule(ctx context.Context, m Module) (Module, error)
		GetModule(ctx context.Context, id string) (Module, error)
		// QueryModules returns a course's modules ordered by Order, then Title.
		QueryModules(ctx context.Context, courseID string) ([]Module, error)
		CountModules(ctx context.Context, courseID string) (int, error)

		// CreateEnrollment fails with ErrAlreadyEnrolled when (user, course) is taken.
		CreateEnrollment(ctx context.Context, enr Enrollment) (Enrollment, error)
		GetEnrollment(ctx context.Context, userID, courseID string) (Enrollment, error)
		QueryEnrollments(ctx context.Context, filter EnrollmentFilter) ([]Enrollment, error)
		// CompleteEnrollment sets CompletedAt and a full Progress in one conditional update.
		// It fails with ErrAlreadyCompleted when the enrollment was already completed.
		CompleteEnrollment(ctx context.Context, id string, at time.Time) (Enrollment, error)

		// UpsertRating creates or replaces the (user, course) rating.
		UpsertRating(ctx context.Context, r Rating) (Rating, error)
		GetRating(ctx context.Context, userID, courseID string) (Rating, error)
		// QueryRatings returns the newest ratings first.
		QueryRatings(ctx context.Context, courseID string) ([]Rating, error)
	}

	// CertificateIssuer issues the certificate for a completed enrollment.
	CertificateIssuer interface {
		IssueFor(ctx context.Context, enr Enrollment) error
	}

	// UserReader resolves mentors and reviewers. *user.Service implements it.
	UserReader interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	Service struct {
		repo     Repository
		issuer   CertificateIssuer
		users    UserReader
		validate *validator.Validate
		logger   core.Logger
	}
)

func NewService(repo Repository, issuer CertificateIssuer, users UserReader, validate *validator.Validate, logger core.Logger) *Service {
	return &Service{repo: repo, issuer: issuer, users: users, validate: validate, logger: logger}
}

// summaries looks up each distinct user once. Deleted users are left out.
func (svc *Service) summaries(ctx context.Context, ids ...string) (map[string]*user.Summary, error) {
	found := make(map[string]*user.Summary, len(ids))
	if svc.users == nil {
		return found, nil
	}
	for _, id := range ids {
		if _, seen := found[id]; seen {
			continue
		}
		usr, err := svc.users.GetByID(ctx, id)
		switch {
		case err == nil:
			sum := usr.Summary()
			found[id] = &sum
		case errors.Is(err, user.ErrNotFound):
			found[id] = nil
		default:
			return nil, errors.Wrap(err, "finding user")
		}
	}
	return found, nil
}

func (svc *Service) CreateCourse(ctx context.Context, mentorID string, nc NewCourse) (Course, error) {
	if err := nc.Validate(svc.validate); err != nil {
		return Course{}, err
	}
	published := true
	if nc.IsPublished != nil {
		published = *nc.IsPublished
	}

	now := time.Now().UTC()
	return svc.repo.CreateCourse(ctx, Course{
		Title:       nc.Title,
		Description: nc.Description,
		MentorID:    mentorID,
		IsPublished: published,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

// AddModule appends a module to a course owned by mentorID.
func (svc *Service) AddModule(ctx context.Context, mentorID, courseID string, nm NewModule) (Module, error) {
	crs, err := svc.repo.GetCourse(ctx, courseID)
	if err != nil {
		return Module{}, err
	}
	if crs.MentorID != mentorID {
		return Module{}, ErrNotOwner
	}
	if err = nm.Validate(svc.validate); err != nil {
		return Module{}, err
	}

	if nm.Order == 0 {
		count, err := svc.repo.CountModules(ctx, courseID)
		if err != nil {
			return Module{}, err
		}
		nm.Order = count + 1
	}
	return svc.repo.CreateModule(ctx, Module{
		CourseID:  courseID,
		Title:     nm.Title,
		Content:   nm.Content,
		Order:     nm.Order,
		CreatedAt: time.Now().UTC(),
	})
}

// List returns the matching courses with their mentor and ordered modules.
func (svc *Service) List(ctx context.Context, filter *QueryFilter) ([]Course, error) {
	if filter != nil {
		filter.Clean()
	}
	courses, err := svc.repo.QueryCourses(ctx, filter)
	if err != nil {
		return nil, err
	}

	mentorIDs := make([]string, len(courses))
	for i, crs := range courses {
		mentorIDs[i] = crs.MentorID
	}
	mentors, err := svc.summaries(ctx, mentorIDs...)
	if err != nil {
		return nil, err
	}
	for i := range courses {
		courses[i].Mentor = mentors[courses[i].MentorID]
		if courses[i].Modules, err = svc.repo.QueryModules(ctx, courses[i].ID); err != nil {
			return nil, err
		}
	}
	return courses, nil
}

// Get returns the course with its mentor and ordered modules.
func (svc *Service) Get(ctx context.Context, id string) (Course, error) {
	crs, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return Course{}, err
	}
	if crs.Modules, err = svc.repo.QueryModules(ctx, id); err != nil {
		return Course{}, err
	}
	mentors, err := svc.summaries(ctx, crs.MentorID)
	if err != nil {
		return Course{}, err
	}
	crs.Mentor = mentors[crs.MentorID]
	return crs, nil
}

func (svc *Service) GetModule(ctx context.Context, id string) (Module, error) {
	return svc.repo.GetModule(ctx, id)
}

func (svc *Service) Enroll(ctx context.Context, studentID, courseID string) (Enrollment, error) {
	if _, err := svc.repo.GetCourse(ctx, courseID); err != nil {
		return Enrollment{}, err
	}
	return svc.repo.CreateEnrollment(ctx, Enrollment{
		UserID:     studentID,
		CourseID:   courseID,
		EnrolledAt: time.Now().UTC(),
	})
}

func (svc *Service) GetEnrollment(ctx context.Context, studentID, courseID string) (Enrollment, error) {
	return svc.repo.GetEnrollment(ctx, studentID, courseID)
}

func (svc *Service) ListEnrollments(ctx context.Context, filter EnrollmentFilter) ([]Enrollment, error) {
	return svc.repo.QueryEnrollments(ctx, filter)
}

// CompleteCourse marks the enrollment completed, then issues its certificate.
// Issuance failures are logged and never undo the completion.
// The work is detached from ctx's cancellation once it starts.
func (svc *Service) CompleteCourse(ctx context.Context, studentID, courseID string) (Enrollment, error) {
	enr, err := svc.repo.GetEnrollment(ctx, studentID, courseID)
	if err != nil {
		return Enrollment{}, err
	}
	if enr.IsCompleted() {
		return Enrollment{}, ErrAlreadyCompleted
	}

	ctx = context.WithoutCancel(ctx)
	enr, err = svc.repo.CompleteEnrollment(ctx, enr.ID, time.Now().UTC())
	if err != nil {
		return Enrollment{}, err
	}

	if svc.issuer != nil {
		if err = svc.issuer.IssueFor(ctx, enr); err != nil {
			svc.logger.Error(
				fmt.Sprintf("course.CompleteCourse: issuing certificate (student %s, course %s): %v", studentID, courseID, err),
				errors.WithStack(err),
			)
		}
	}
	return enr, nil
}

// CanRate reports whether the student may rate the course. It never writes.
func (svc *Service) CanRate(ctx context.Context, studentID, courseID string) (Eligibility, error) {
	enr, err := svc.repo.GetEnrollment(ctx, studentID, courseID)
	if err != nil {
		if errors.Is(err, ErrEnrollmentNotFound) {
			return Eligibility{}, nil
		}
		return Eligibility{}, err
	}

	elig := Eligibility{CanRate: enr.IsCompleted(), CompletedAt: enr.CompletedAt}
	switch _, err = svc.repo.GetRating(ctx, studentID, courseID); {
	case err == nil:
		elig.HasRated = true
	case !errors.Is(err, ErrRatingNotFound):
		return Eligibility{}, err
	}
	return elig, nil
}

// RateCourse stores the student's rating, replacing any earlier one.
func (svc *Service) RateCourse(ctx context.Context, studentID, courseID string, nr NewRating) (Rating, error) {
	if err := nr.Validate(svc.validate); err != nil {
		return Rating{}, err
	}

	enr, err := svc.repo.GetEnrollment(ctx, studentID, courseID)
	if err != nil {
		if errors.Is(err, ErrEnrollmentNotFound) {
			return Rating{}, ErrNotEnrolled
		}
		return Rating{}, err
	}
	if !enr.IsCompleted() {
		return Rating{}, ErrNotCompleted
	}

	now := time.Now().UTC()
	return svc.repo.UpsertRating(ctx, Rating{
		UserID:    studentID,
		CourseID:  courseID,
		Rating:    nr.Rating,
		Review:    nr.Review,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (svc *Service) GetCourseRatings(ctx context.Context, courseID string) (RatingSummary, error) {
	if _, err := svc.repo.GetCourse(ctx, courseID); err != nil {
		return RatingSummary{}, err
	}
	ratings, err := svc.repo.QueryRatings(ctx, courseID)
	if err != nil {
		return RatingSummary{}, err
	}

	reviewerIDs := make([]string, len(ratings))
	for i, r := range ratings {
		reviewerIDs[i] = r.UserID
	}
	reviewers, err := svc.summaries(ctx, reviewerIDs...)
	if err != nil {
		return RatingSummary{}, err
	}
	for i := range ratings {
		ratings[i].User = reviewers[ratings[i].UserID]
	}

	summary := RatingSummary{TotalRatings: len(ratings), Ratings: ratings}
	if len(ratings) > 0 {
		var sum int
		for _, r := range ratings {
			sum += r.Rating
		}
		summary.AverageRating = core.Round(float64(sum)/float64(len(ratings)), 1)
	}
	return summary, nil
}

func (svc *Service) Stats(ctx context.Context, courseID string) (Stats, error) {
	crs, err := svc.repo.GetCourse(ctx, courseID)
	if err != nil {
		return Stats{}, err
	}
	enrollments, err := svc.repo.QueryEnrollments(ctx, EnrollmentFilter{CourseID: courseID})
	if err != nil {
		return Stats{}, err
	}
	modules, err := svc.repo.CountModules(ctx, courseID)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{CourseID: crs.ID, Title: crs.Title, Enrollments: len(enrollments), ModuleCount: modules}
	var progress int
	for _, enr := range enrollments {
		progress += enr.Progress
		if enr.IsCompleted() {
			stats.Completions++
		}
	}
	if stats.Enrollments > 0 {
		stats.CompletionRate = core.Round(float64(stats.Completions)*100/float64(stats.Enrollments), 2)
		stats.AverageProgress = core.Round(float64(progress)/float64(stats.Enrollments), 2)
	}
	return stats, nil
}
