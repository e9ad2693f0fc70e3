package ai

import (
	"sort"
	"strings"

	"github.com/trezcool/elimu/core"
)

const (
	DocCertificate = "certificate"
	DocSyllabus    = "syllabus"
	DocReport      = "report"
)

type StudentData struct {
	Enrollments          int     `json:"enrollments" validate:"gte=0"`
	CompletedCourses     int     `json:"completed_courses" validate:"gte=0"`
	AverageProgress      float64 `json:"average_progress" validate:"gte=0,lte=100"`
	AssignmentsSubmitted int     `json:"assignments_submitted" validate:"gte=0"`
	AverageScore         float64 `json:"average_score" validate:"gte=0,lte=100"`
}

func (sd StudentData) normalized() StudentData {
	sd.AverageProgress = core.Round(sd.AverageProgress, 2)
	sd.AverageScore = core.Round(sd.AverageScore, 2)
	return sd
}

type AnalyzePerformance struct {
	StudentData StudentData `json:"student_data"`
}

type CourseInsightsRequest struct {
	CourseID string `json:"course_id" validate:"required"`
}

type LearningProfile struct {
	CompletedCourses []string `json:"completed_courses"`
	Interests        []string `json:"interests"`
	SkillLevel       string   `json:"skill_level"`
	Goals            string   `json:"goals"`
	AvailableTime    string   `json:"available_time"`
}

// normalized trims and lower-cases every field and sorts the sets, so that profiles that
// differ only by formatting or ordering are the same request.
func (lp LearningProfile) normalized() LearningProfile {
	set := func(in []string) []string {
		seen := make(map[string]bool, len(in))
		out := make([]string, 0, len(in))
		for _, s := range in {
			s = core.CleanString(s, true /* lower */)
			if s != "" && !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
		sort.Strings(out)
		return out
	}
	return LearningProfile{
		CompletedCourses: set(lp.CompletedCourses),
		Interests:        set(lp.Interests),
		SkillLevel:       core.CleanString(lp.SkillLevel, true),
		Goals:            strings.Join(strings.Fields(strings.ToLower(lp.Goals)), " "),
		AvailableTime:    core.CleanString(lp.AvailableTime, true),
	}
}

// PlatformData are the dashboard figures an admin asks insights about.
type PlatformData struct {
	TotalStudents     int     `json:"total_students" validate:"gte=0"`
	ActiveCourses     int     `json:"active_courses" validate:"gte=0"`
	RecentEnrollments int     `json:"recent_enrollments" validate:"gte=0"`
	Revenue           float64 `json:"revenue" validate:"gte=0"`
}

type PlatformInsights struct {
	Insights []string `json:"insights"`
	Source   string   `json:"source"`
}

var platformFallback = []string{
	"Growth is stable (AI Service Unavailable)",
	"Check Groq API Key configuration",
	"Ensure student engagement remains high",
}

type QuizRequest struct {
	CourseID          string `json:"course_id" validate:"required"`
	Topic             string `json:"topic" validate:"required,notblank,max=500"`
	Difficulty        string `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	NumberOfQuestions int    `json:"number_of_questions" validate:"gte=0,lte=20"`
}

type Question struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correct_answer"`
	Explanation   string   `json:"explanation"`
}

type DocumentRequest struct {
	Type   string                 `json:"type" validate:"required,oneof=certificate syllabus report"`
	Prompt string                 `json:"prompt" validate:"required,notblank"`
	Data   map[string]interface{} `json:"data"`
}

// Text is a generated free-text answer with its provenance.
type Text struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

type Health struct {
	Status string `json:"status"`
	Model  string `json:"model"`
}
