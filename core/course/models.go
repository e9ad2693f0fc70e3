package course

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/user"
)

type Course struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	MentorID    string    `json:"mentor_id"`
	IsPublished bool      `json:"is_published"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC

	// filled on reads
	Mentor  *user.Summary `json:"mentor,omitempty"`
	Modules []Module      `json:"modules,omitempty"`
}

type Module struct {
	ID        string    `json:"id"`
	CourseID  string    `json:"course_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Order     int       `json:"order"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

// Enrollment links a student to a course. CompletedAt is set exactly once.
type Enrollment struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	CourseID    string     `json:"course_id"`
	Progress    int        `json:"progress"`
	EnrolledAt  time.Time  `json:"enrolled_at"` // UTC
	CompletedAt *time.Time `json:"completed_at"`
}

func (enr Enrollment) IsCompleted() bool { return enr.CompletedAt != nil }

type Rating struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CourseID  string    `json:"course_id"`
	Rating    int       `json:"rating"`
	Review    string    `json:"review,omitempty"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC

	User *user.Summary `json:"user,omitempty"` // the reviewer, filled on reads
}

type RatingSummary struct {
	AverageRating float64  `json:"average_rating"`
	TotalRatings  int      `json:"total_ratings"`
	Ratings       []Rating `json:"ratings"`
}

type Eligibility struct {
	CanRate     bool       `json:"can_rate"`
	HasRated    bool       `json:"has_rated"`
	CompletedAt *time.Time `json:"completed_at"`
}

// Stats summarizes a course's engagement.
type Stats struct {
	CourseID        string  `json:"course_id"`
	Title           string  `json:"title"`
	Enrollments     int     `json:"enrollments"`
	Completions     int     `json:"completions"`
	CompletionRate  float64 `json:"completion_rate"`
	AverageProgress float64 `json:"average_progress"`
	ModuleCount     int     `json:"module_count"`
}

type NewCourse struct {
	Title       string `json:"title" validate:"required,notblank,max=255"`
	Description string `json:"description" validate:"omitempty,max=10000"`
	IsPublished *bool  `json:"is_published"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	nc.Description = core.CleanString(nc.Description)
	return validate.Struct(nc)
}

type NewModule struct {
	Title   string `json:"title" validate:"required,notblank,max=255"`
	Content string `json:"content"`
	Order   int    `json:"order" validate:"gte=0"`
}

func (nm *NewModule) Validate(validate *validator.Validate) error {
	nm.Title = core.CleanString(nm.Title)
	return validate.Struct(nm)
}

type NewRating struct {
	Rating int    `json:"rating" validate:"required,min=1,max=5"`
	Review string `json:"review" validate:"omitempty,max=5000"`
}

func (nr *NewRating) Validate(validate *validator.Validate) error {
	nr.Review = core.CleanString(nr.Review)
	return validate.Struct(nr)
}

type QueryFilter struct {
	Search        string `query:"search"`
	MentorID      string `query:"mentor_id"`
	PublishedOnly bool   `query:"-"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.MentorID = core.CleanString(qf.MentorID)
}

type EnrollmentFilter struct {
	UserID   string
	CourseID string
}
