package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core/certificate"
)

const certificateColumns = `id, student_id, course_id, certificate_number, certificate_url, issued_at`

var certificateConstraints = map[string]error{
	"certificates_student_id_course_id_key": certificate.ErrExists,
	"certificates_certificate_number_key":   certificate.ErrNumberTaken,
}

type certificateRow struct {
	ID                string    `db:"id"`
	StudentID         string    `db:"student_id"`
	CourseID          string    `db:"course_id"`
	CertificateNumber string    `db:"certificate_number"`
	CertificateURL    string    `db:"certificate_url"`
	IssuedAt          time.Time `db:"issued_at"`
}

func (r certificateRow) toCertificate() certificate.Certificate {
	return certificate.Certificate{
		ID:                r.ID,
		StudentID:         r.StudentID,
		CourseID:          r.CourseID,
		CertificateNumber: r.CertificateNumber,
		CertificateURL:    r.CertificateURL,
		IssuedAt:          r.IssuedAt.UTC(),
	}
}

type certificateRepository struct {
	db *sqlx.DB
}

var _ certificate.Repository = (*certificateRepository)(nil)

func NewCertificateRepository(db *sqlx.DB) certificate.Repository {
	return &certificateRepository{db: db}
}

func (repo *certificateRepository) CreateCertificate(ctx context.Context, cert certificate.Certificate) (certificate.Certificate, error) {
	cert.ID = newID()
	cert.IssuedAt = cert.IssuedAt.UTC()
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO certificates (`+certificateColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		cert.ID, cert.StudentID, cert.CourseID, cert.CertificateNumber, cert.CertificateURL, cert.IssuedAt,
	)
	if err != nil {
		return certificate.Certificate{}, translate(err, "inserting certificate", certificateConstraints)
	}
	return cert, nil
}

func (repo *certificateRepository) GetCertificate(ctx context.Context, filter certificate.GetFilter) (certificate.Certificate, error) {
	var w where
	switch {
	case filter.ID != "":
		if !validID(filter.ID) {
			return certificate.Certificate{}, certificate.ErrNotFound
		}
		w.add("id = ?", filter.ID)
	case filter.Number != "":
		w.add("certificate_number = ?", filter.Number)
	case filter.StudentID != "" && filter.CourseID != "":
		if !validID(filter.StudentID) || !validID(filter.CourseID) {
			return certificate.Certificate{}, certificate.ErrNotFound
		}
		w.add("student_id = ?", filter.StudentID)
		w.add("course_id = ?", filter.CourseID)
	default:
		return certificate.Certificate{}, certificate.ErrNotFound
	}

	var row certificateRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+certificateColumns+` FROM certificates`+w.String(), w.args...); err != nil {
		return certificate.Certificate{}, notFound(err, certificate.ErrNotFound, "selecting certificate")
	}
	return row.toCertificate(), nil
}

func (repo *certificateRepository) QueryCertificates(ctx context.Context, filter certificate.QueryFilter) ([]certificate.Certificate, error) {
	certs := make([]certificate.Certificate, 0)
	var w where
	for _, cond := range []struct{ col, id string }{{"student_id", filter.StudentID}, {"course_id", filter.CourseID}} {
		if cond.id == "" {
			continue
		}
		if !validID(cond.id) {
			return certs, nil
		}
		w.add(cond.col+" = ?", cond.id)
	}

	var rows []certificateRow
	q := `SELECT ` + certificateColumns + ` FROM certificates` + w.String() + ` ORDER BY issued_at DESC`
	if err := repo.db.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting certificates")
	}
	for _, row := range rows {
		certs = append(certs, row.toCertificate())
	}
	return certs, nil
}
