package assignment

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/course"
)

var (
	ErrNotFound           = core.NewError(core.KindNotFound, "assignment not found")
	ErrSubmissionNotFound = core.NewError(core.KindNotFound, "submission not found")
)

type (
	Repository interface {
		CreateAssignment(ctx context.Context, asg Assignment) (Assignment, error)
		// GetAssignment fills SubmissionCount.
		GetAssignment(ctx context.Context, id string) (Assignment, error)
		// QueryAssignments returns a module's assignments, oldest first, with SubmissionCount filled.
		QueryAssignments(ctx context.Context, moduleID string) ([]Assignment, error)
		DeleteAssignment(ctx context.Context, id string) error

		// UpsertSubmission creates the (assignment, student) submission or replaces its
		// content, file and submission time.
		UpsertSubmission(ctx context.Context, sub Submission) (Submission, error)
		GetSubmission(ctx context.Context, id string) (Submission, error)
		GradeSubmission(ctx context.Context, id string, score int, feedback string, at time.Time) (Submission, error)
		// QuerySubmissions returns the latest submissions first.
		QuerySubmissions(ctx context.Context, filter SubmissionFilter) ([]Submission, error)
	}

	CourseReader interface {
		GetCourse(ctx context.Context, id string) (course.Course, error)
		GetModule(ctx context.Context, id string) (course.Module, error)
		GetEnrollment(ctx context.Context, userID, courseID string) (course.Enrollment, error)
	}

	Service struct {
		repo     Repository
		courses  CourseReader
		validate *validator.Validate
	}
)

func NewService(repo Repository, courses CourseReader, validate *validator.Validate) *Service {
	return &Service{repo: repo, courses: courses, validate: validate}
}

// courseOf returns the course a module belongs to.
func (svc *Service) courseOf(ctx context.Context, moduleID string) (course.Course, error) {
	mod, err := svc.courses.GetModule(ctx, moduleID)
	if err != nil {
		return course.Course{}, err
	}
	return svc.courses.GetCourse(ctx, mod.CourseID)
}

func (svc *Service) checkOwner(ctx context.Context, mentorID, moduleID string) error {
	crs, err := svc.courseOf(ctx, moduleID)
	if err != nil {
		return err
	}
	if crs.MentorID != mentorID {
		return course.ErrNotOwner
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, mentorID, moduleID string, na NewAssignment) (Assignment, error) {
	if err := svc.checkOwner(ctx, mentorID, moduleID); err != nil {
		return Assignment{}, err
	}
	if err := na.Validate(svc.validate); err != nil {
		return Assignment{}, err
	}

	now := time.Now().UTC()
	asg := Assignment{
		ModuleID:    moduleID,
		Title:       na.Title,
		Description: na.Description,
		MaxScore:    na.MaxScore,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if na.DueDate != nil {
		due := na.DueDate.UTC()
		asg.DueDate = &due
	}
	return svc.repo.CreateAssignment(ctx, asg)
}

func (svc *Service) ListByModule(ctx context.Context, moduleID string) ([]Assignment, error) {
	if _, err := svc.courses.GetModule(ctx, moduleID); err != nil {
		return nil, err
	}
	return svc.repo.QueryAssignments(ctx, moduleID)
}

func (svc *Service) Get(ctx context.Context, id string) (Assignment, error) {
	return svc.repo.GetAssignment(ctx, id)
}

// Submit records the student's answer. Resubmitting replaces the previous answer.
func (svc *Service) Submit(ctx context.Context, studentID, assignmentID string, ns NewSubmission) (Submission, error) {
	asg, err := svc.repo.GetAssignment(ctx, assignmentID)
	if err != nil {
		return Submission{}, err
	}
	crs, err := svc.courseOf(ctx, asg.ModuleID)
	if err != nil {
		return Submission{}, err
	}
	if _, err = svc.courses.GetEnrollment(ctx, studentID, crs.ID); err != nil {
		if errors.Is(err, course.ErrEnrollmentNotFound) {
			return Submission{}, course.ErrNotEnrolled
		}
		return Submission{}, err
	}
	if err = ns.Validate(svc.validate); err != nil {
		return Submission{}, err
	}

	return svc.repo.UpsertSubmission(ctx, Submission{
		AssignmentID: assignmentID,
		StudentID:    studentID,
		Content:      ns.Content,
		FileURL:      ns.FileURL,
		SubmittedAt:  time.Now().UTC(),
	})
}

func (svc *Service) Grade(ctx context.Context, mentorID, submissionID string, g Grade) (Submission, error) {
	sub, err := svc.repo.GetSubmission(ctx, submissionID)
	if err != nil {
		return Submission{}, err
	}
	asg, err := svc.repo.GetAssignment(ctx, sub.AssignmentID)
	if err != nil {
		return Submission{}, err
	}
	if err = svc.checkOwner(ctx, mentorID, asg.ModuleID); err != nil {
		return Submission{}, err
	}
	if err = g.Validate(svc.validate); err != nil {
		return Submission{}, err
	}
	if g.Score > asg.MaxScore {
		msg := fmt.Sprintf("score cannot exceed %d", asg.MaxScore)
		return Submission{}, core.NewValidationError(nil, core.FieldError{Field: "score", Error: msg})
	}
	return svc.repo.GradeSubmission(ctx, submissionID, g.Score, g.Feedback, time.Now().UTC())
}

// ListStudentSubmissions lists the student's submissions, optionally within one course.
func (svc *Service) ListStudentSubmissions(ctx context.Context, studentID, courseID string) ([]Submission, error) {
	return svc.repo.QuerySubmissions(ctx, SubmissionFilter{StudentID: studentID, CourseID: courseID})
}

func (svc *Service) ListCourseSubmissions(ctx context.Context, mentorID, courseID string) ([]Submission, error) {
	crs, err := svc.courses.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if crs.MentorID != mentorID {
		return nil, course.ErrNotOwner
	}
	return svc.repo.QuerySubmissions(ctx, SubmissionFilter{CourseID: courseID})
}

func (svc *Service) Delete(ctx context.Context, mentorID, id string) error {
	asg, err := svc.repo.GetAssignment(ctx, id)
	if err != nil {
		return err
	}
	if err = svc.checkOwner(ctx, mentorID, asg.ModuleID); err != nil {
		return err
	}
	return svc.repo.DeleteAssignment(ctx, id)
}
