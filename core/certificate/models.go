package certificate

import (
	"fmt"
	"math/rand"
	"time"
)

const numberPrefix = "CERT-"

type Certificate struct {
	ID                string    `json:"id"`
	StudentID         string    `json:"student_id"`
	CourseID          string    `json:"course_id"`
	CertificateNumber string    `json:"certificate_number"`
	CertificateURL    string    `json:"certificate_url"`
	IssuedAt          time.Time `json:"issued_at"` // UTC
}

// Verification is the public answer to "is this certificate number genuine?".
type Verification struct {
	Valid       bool         `json:"valid"`
	Certificate *Certificate `json:"certificate,omitempty"`
}

// newNumber returns CERT-<unix ms>-<0..9999>.
func newNumber(now time.Time) string {
	return fmt.Sprintf("%s%d-%d", numberPrefix, now.UnixMilli(), rand.Intn(10000))
}

func urlFor(number string) string {
	return "/certificates/" + number + ".pdf"
}
