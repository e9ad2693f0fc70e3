package certificate

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/course"
	"github.com/trezcool/elimu/core/user"
)

const maxNumberAttempts = 3

var (
	ErrNotFound = core.NewError(core.KindNotFound, "certificate not found")
	// ErrExists is returned by the Repository when (student, course) already has a certificate.
	ErrExists = core.NewError(core.KindConflict, "a certificate already exists for this course")
	// ErrNumberTaken is returned by the Repository when the generated number collides.
	ErrNumberTaken = core.NewError(core.KindConflict, "certificate number already taken")
)

type (
	Repository interface {
		CreateCertificate(ctx context.Context, cert Certificate) (Certificate, error)
		GetCertificate(ctx context.Context, filter GetFilter) (Certificate, error)
		// QueryCertificates returns the most recently issued certificates first.
		QueryCertificates(ctx context.Context, filter QueryFilter) ([]Certificate, error)
	}

	// GetFilter finds a certificate by ID, by number, or by (StudentID, CourseID).
	GetFilter struct {
		ID        string
		Number    string
		StudentID string
		CourseID  string
	}

	QueryFilter struct {
		StudentID string
		CourseID  string
	}

	CourseReader interface {
		GetCourse(ctx context.Context, id string) (course.Course, error)
		GetEnrollment(ctx context.Context, userID, courseID string) (course.Enrollment, error)
	}

	UserReader interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	Service struct {
		repo    Repository
		courses CourseReader
		users   UserReader
		mailSvc core.EmailService
		logger  core.Logger
	}
)

var _ course.CertificateIssuer = (*Service)(nil)

func NewService(repo Repository, courses CourseReader, users UserReader, mailSvc core.EmailService, logger core.Logger) *Service {
	return &Service{repo: repo, courses: courses, users: users, mailSvc: mailSvc, logger: logger}
}

// Generate returns the student's certificate for a completed course, issuing it on first call.
func (svc *Service) Generate(ctx context.Context, studentID, courseID string) (Certificate, error) {
	enr, err := svc.courses.GetEnrollment(ctx, studentID, courseID)
	if err != nil {
		return Certificate{}, err
	}
	if !enr.IsCompleted() {
		return Certificate{}, course.ErrNotCompleted
	}
	return svc.issue(ctx, enr)
}

// IssueFor issues the certificate of an enrollment that was just completed.
func (svc *Service) IssueFor(ctx context.Context, enr course.Enrollment) error {
	if !enr.IsCompleted() {
		return course.ErrNotCompleted
	}
	_, err := svc.issue(ctx, enr)
	return err
}

// issue is idempotent per (student, course): the unique constraint decides concurrent races
// and the loser returns the stored certificate.
func (svc *Service) issue(ctx context.Context, enr course.Enrollment) (Certificate, error) {
	existing, err := svc.repo.GetCertificate(ctx, GetFilter{StudentID: enr.UserID, CourseID: enr.CourseID})
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Certificate{}, err
	}

	for attempt := 1; ; attempt++ {
		now := time.Now().UTC()
		number := newNumber(now)
		cert, err := svc.repo.CreateCertificate(ctx, Certificate{
			StudentID:         enr.UserID,
			CourseID:          enr.CourseID,
			CertificateNumber: number,
			CertificateURL:    urlFor(number),
			IssuedAt:          now,
		})
		switch {
		case err == nil:
			svc.notify(ctx, cert)
			return cert, nil
		case errors.Is(err, ErrExists):
			return svc.repo.GetCertificate(ctx, GetFilter{StudentID: enr.UserID, CourseID: enr.CourseID})
		case errors.Is(err, ErrNumberTaken) && attempt < maxNumberAttempts:
			continue
		default:
			return Certificate{}, err
		}
	}
}

type issuedMailData struct {
	StudentName       string
	CourseTitle       string
	CertificateNumber string
}

// notify emails the student about a new certificate. Failures are only logged.
func (svc *Service) notify(ctx context.Context, cert Certificate) {
	if svc.mailSvc == nil {
		return
	}
	usr, err := svc.users.GetByID(ctx, cert.StudentID)
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("certificate.notify: loading student %s: %v", cert.StudentID, err))
		return
	}
	crs, err := svc.courses.GetCourse(ctx, cert.CourseID)
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("certificate.notify: loading course %s: %v", cert.CourseID, err))
		return
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Your certificate for " + crs.Title,
		TemplateName: "certificate_issued",
		TemplateData: issuedMailData{
			StudentName:       usr.Name,
			CourseTitle:       crs.Title,
			CertificateNumber: cert.CertificateNumber,
		},
	})
}

func (svc *Service) Get(ctx context.Context, id string) (Certificate, error) {
	if id == "" {
		return Certificate{}, ErrNotFound
	}
	return svc.repo.GetCertificate(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByNumber(ctx context.Context, number string) (Certificate, error) {
	number = core.CleanString(number)
	if number == "" {
		return Certificate{}, ErrNotFound
	}
	return svc.repo.GetCertificate(ctx, GetFilter{Number: number})
}

// Verify never fails on an unknown number; it reports it as invalid.
func (svc *Service) Verify(ctx context.Context, number string) (Verification, error) {
	cert, err := svc.GetByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Verification{Valid: false}, nil
		}
		return Verification{}, err
	}
	return Verification{Valid: true, Certificate: &cert}, nil
}

func (svc *Service) ListByStudent(ctx context.Context, studentID string) ([]Certificate, error) {
	return svc.repo.QueryCertificates(ctx, QueryFilter{StudentID: studentID})
}

func (svc *Service) ListByCourse(ctx context.Context, courseID string) ([]Certificate, error) {
	if _, err := svc.courses.GetCourse(ctx, courseID); err != nil {
		return nil, err
	}
	return svc.repo.QueryCertificates(ctx, QueryFilter{CourseID: courseID})
}
