package assignment

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/elimu/core"
)

const defaultMaxScore = 100

type Assignment struct {
	ID          string     `json:"id"`
	ModuleID    string     `json:"module_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date"`
	MaxScore    int        `json:"max_score"`
	CreatedAt   time.Time  `json:"created_at"` // UTC
	UpdatedAt   time.Time  `json:"updated_at"` // UTC

	SubmissionCount int `json:"submission_count"`
}

// Submission is a student's answer to an assignment. A student has at most one per assignment.
type Submission struct {
	ID           string     `json:"id"`
	AssignmentID string     `json:"assignment_id"`
	StudentID    string     `json:"student_id"`
	Content      string     `json:"content"`
	FileURL      string     `json:"file_url,omitempty"`
	Score        *int       `json:"score"`
	Feedback     string     `json:"feedback,omitempty"`
	SubmittedAt  time.Time  `json:"submitted_at"` // UTC
	GradedAt     *time.Time `json:"graded_at"`
}

func (sub Submission) IsGraded() bool { return sub.GradedAt != nil }

type NewAssignment struct {
	Title       string     `json:"title" validate:"required,notblank,max=255"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date"`
	MaxScore    int        `json:"max_score" validate:"gte=0,lte=1000"`
}

func (na *NewAssignment) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	na.Description = core.CleanString(na.Description)
	if na.MaxScore == 0 {
		na.MaxScore = defaultMaxScore
	}
	return validate.Struct(na)
}

type NewSubmission struct {
	Content string `json:"content" validate:"required,notblank"`
	FileURL string `json:"file_url" validate:"omitempty,url,max=1024"`
}

func (ns *NewSubmission) Validate(validate *validator.Validate) error {
	ns.Content = core.CleanString(ns.Content)
	ns.FileURL = core.CleanString(ns.FileURL)
	return validate.Struct(ns)
}

type Grade struct {
	Score    int    `json:"score" validate:"gte=0"`
	Feedback string `json:"feedback" validate:"omitempty,max=5000"`
}

func (g *Grade) Validate(validate *validator.Validate) error {
	g.Feedback = core.CleanString(g.Feedback)
	return validate.Struct(g)
}

type SubmissionFilter struct {
	AssignmentID string
	StudentID    string
	CourseID     string
}
