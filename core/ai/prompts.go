package ai

import (
	"bytes"
	"encoding/json"
	"strings"
	"text/template"

	"github.com/trezcool/elimu/core/course"
)

var prompts = template.Must(template.New("prompts").Funcs(template.FuncMap{
	"join": func(items []string, empty string) string {
		if len(items) == 0 {
			return empty
		}
		return strings.Join(items, ", ")
	},
	"orDefault": func(s, empty string) string {
		if s == "" {
			return empty
		}
		return s
	},
	"json": func(v interface{}) string {
		b, _ := json.Marshal(v)
		return string(b)
	},
}).Parse(`
{{define "performance"}}You are an educational AI assistant analyzing student performance data.

Student Performance Data:
- Total Enrollments: {{.Enrollments}}
- Completed Courses: {{.CompletedCourses}}
- Average Progress: {{.AverageProgress}}%
- Assignments Submitted: {{.AssignmentsSubmitted}}
- Average Score: {{.AverageScore}}%

Provide a concise, actionable analysis (max 200 words) covering:
1. Overall performance assessment
2. Strengths and areas for improvement
3. Specific recommendations for the student
4. Suggested next steps

Format your response in a friendly, encouraging tone.{{end}}

{{define "course"}}You are an educational AI assistant analyzing course performance.

Course Data:
- Title: {{.Title}}
- Total Enrollments: {{.Enrollments}}
- Completion Rate: {{.CompletionRate}}%
- Average Student Progress: {{.AverageProgress}}%
- Number of Modules: {{.ModuleCount}}

Provide actionable insights (max 200 words) for the course instructor:
1. What's working well
2. Areas that need improvement
3. Specific recommendations to increase engagement and completion
4. Suggestions for content enhancement

Be specific and data-driven.{{end}}

{{define "learning_path"}}You are an educational AI creating personalized learning recommendations.

Student Profile:
- Completed Courses: {{join .CompletedCourses "None"}}
- Interests: {{join .Interests "Not specified"}}
- Skill Level: {{orDefault .SkillLevel "Beginner"}}
- Learning Goals: {{orDefault .Goals "Not specified"}}
- Available Time: {{orDefault .AvailableTime "Not specified"}}

Recommend 3-5 courses or learning paths that would be most beneficial. For each recommendation:
1. Course/topic name
2. Why it's recommended
3. Expected time commitment
4. Prerequisites (if any)

Keep it concise and actionable (max 250 words).{{end}}

{{define "platform"}}Analyze this LMS Data:
- Students: {{.TotalStudents}}
- Active Courses: {{.ActiveCourses}}
- Recent Enrollments: {{.RecentEnrollments}}
- Revenue: ${{.Revenue}}

Task: Provide 3 strategic insights for the Admin.
Format: Return ONLY a JSON object with a single key 'insights' which is an array of strings.{{end}}

{{define "quiz"}}Generate {{.NumberOfQuestions}} multiple-choice quiz questions about "{{.Topic}}" at {{.Difficulty}} difficulty level.

Return ONLY a valid JSON array with this exact structure (no additional text):
[
  {
    "question": "Question text here?",
    "options": ["Option A", "Option B", "Option C", "Option D"],
    "correct_answer": 0,
    "explanation": "Brief explanation of the correct answer"
  }
]

Make questions educational, clear, and appropriate for the difficulty level.{{end}}

{{define "certificate"}}Generate certificate data in JSON format:
{
  "studentName": "string",
  "courseName": "string",
  "completionDate": "YYYY-MM-DD",
  "grade": "string",
  "instructor": "string",
  "certificateNumber": "string"
}

Context: {{json .Data}}
User Request: {{.Prompt}}

Return ONLY valid JSON, no additional text.{{end}}

{{define "syllabus"}}Generate course syllabus data in JSON format:
{
  "courseTitle": "string",
  "instructor": "string",
  "duration": "string",
  "description": "string",
  "objectives": ["string"],
  "topics": [{"week": number, "title": "string", "content": "string"}],
  "assessments": ["string"],
  "resources": ["string"]
}

User Request: {{.Prompt}}

Return ONLY valid JSON, no additional text.{{end}}

{{define "report"}}Generate performance report data in JSON format:
{
  "studentName": "string",
  "reportPeriod": "string",
  "coursesCompleted": number,
  "averageScore": number,
  "strengths": ["string"],
  "improvements": ["string"],
  "recommendations": ["string"]
}

Context: {{json .Data}}
User Request: {{.Prompt}}

Return ONLY valid JSON, no additional text.{{end}}
`))

func render(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := prompts.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func performancePrompt(sd StudentData) (string, error) { return render("performance", sd) }
func coursePrompt(stats course.Stats) (string, error) { return render("course", stats) }
func learningPathPrompt(lp LearningProfile) (string, error) { return render("learning_path", lp) }
func platformPrompt(pd PlatformData) (string, error) { return render("platform", pd) }
func quizPrompt(qr QuizRequest) (string, error) { return render("quiz", qr) }
func documentPrompt(dr DocumentRequest) (string, error) { return render(dr.Type, dr) }
