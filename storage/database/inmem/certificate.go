package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/elimu/core/certificate"
)

type certificateRepository struct {
	db *DB
}

var _ certificate.Repository = (*certificateRepository)(nil)

func NewCertificateRepository(db *DB) certificate.Repository {
	return &certificateRepository{db: db}
}

func (repo *certificateRepository) CreateCertificate(_ context.Context, cert certificate.Certificate) (certificate.Certificate, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, c := range repo.db.certificates {
		if c.StudentID == cert.StudentID && c.CourseID == cert.CourseID {
			return certificate.Certificate{}, certificate.ErrExists
		}
		if c.CertificateNumber == cert.CertificateNumber {
			return certificate.Certificate{}, certificate.ErrNumberTaken
		}
	}
	cert.ID = newID()
	repo.db.certificates[cert.ID] = &cert
	return cert, nil
}

func (repo *certificateRepository) GetCertificate(_ context.Context, filter certificate.GetFilter) (certificate.Certificate, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, c := range repo.db.certificates {
		switch {
		case filter.ID != "":
			if c.ID != filter.ID {
				continue
			}
		case filter.Number != "":
			if c.CertificateNumber != filter.Number {
				continue
			}
		case filter.StudentID != "" && filter.CourseID != "":
			if c.StudentID != filter.StudentID || c.CourseID != filter.CourseID {
				continue
			}
		default:
			return certificate.Certificate{}, certificate.ErrNotFound
		}
		return *c, nil
	}
	return certificate.Certificate{}, certificate.ErrNotFound
}

func (repo *certificateRepository) QueryCertificates(_ context.Context, filter certificate.QueryFilter) ([]certificate.Certificate, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	certs := make([]certificate.Certificate, 0)
	for _, c := range repo.db.certificates {
		if (filter.StudentID == "" || c.StudentID == filter.StudentID) && (filter.CourseID == "" || c.CourseID == filter.CourseID) {
			certs = append(certs, *c)
		}
	}
	sort.SliceStable(certs, func(i, j int) bool { return certs[i].IssuedAt.After(certs[j].IssuedAt) })
	return certs, nil
}
