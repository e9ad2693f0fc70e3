package admin

import (
	"time"

	"github.com/trezcool/elimu/core/auth"
	"github.com/trezcool/elimu/core/user"
)

const dateLayout = "2006-01-02"

type Stats struct {
	TotalUsers        int     `json:"total_users"`
	TotalStudents     int     `json:"total_students"`
	TotalMentors      int     `json:"total_mentors"`
	TotalAdmins       int     `json:"total_admins"`
	ActiveCourses     int     `json:"active_courses"`
	TotalEnrollments  int     `json:"total_enrollments"`
	RecentEnrollments int     `json:"recent_enrollments"`
	CompletionRate    float64 `json:"completion_rate"`
	AverageProgress   float64 `json:"average_progress"`
	Revenue           float64 `json:"revenue"`
}

// EnrollmentTotals are raw enrollment aggregates.
type EnrollmentTotals struct {
	Total       int
	Recent      int
	Completed   int
	ProgressSum int
}

// Signups is the number of users of Role created on Day.
type Signups struct {
	Day   time.Time
	Role  auth.Role
	Count int
}

type DailyGrowth struct {
	Date     string `json:"date"`
	Students int    `json:"students"`
	Mentors  int    `json:"mentors"`
}

type CourseStat struct {
	CourseID       string  `json:"course_id"`
	Title          string  `json:"title"`
	Enrollments    int     `json:"enrollments"`
	Completions    int     `json:"-"`
	CompletionRate float64 `json:"completion_rate"`
}

type Analytics struct {
	Start      string        `json:"start"`
	End        string        `json:"end"`
	UserGrowth []DailyGrowth `json:"user_growth"`
	Courses    []CourseStat  `json:"courses"`
}

// Activity counts what a user took part in.
type Activity struct {
	EnrollmentCount int `json:"enrollment_count"`
	CoursesOwned    int `json:"courses_owned"`
}

type UserRow struct {
	user.User
	Activity
}

type UserPage struct {
	Users      []UserRow   `json:"users"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"total_pages"`
}

type Snapshot struct {
	ID string `json:"id"`
	Stats
	CreatedAt time.Time `json:"created_at"` // UTC
}
