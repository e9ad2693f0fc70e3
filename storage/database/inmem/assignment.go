package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/elimu/core/assignment"
	"github.com/trezcool/elimu/core/course"
)

type assignmentRepository struct {
	db *DB
}

var _ assignment.Repository = (*assignmentRepository)(nil)

func NewAssignmentRepository(db *DB) assignment.Repository {
	return &assignmentRepository{db: db}
}

// withCount must be called with the lock held.
func (repo *assignmentRepository) withCount(asg assignment.Assignment) assignment.Assignment {
	asg.SubmissionCount = 0
	for _, sub := range repo.db.submissions {
		if sub.AssignmentID == asg.ID {
			asg.SubmissionCount++
		}
	}
	return asg
}

func (repo *assignmentRepository) CreateAssignment(_ context.Context, asg assignment.Assignment) (assignment.Assignment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.modules[asg.ModuleID]; !ok {
		return assignment.Assignment{}, course.ErrModuleNotFound
	}
	asg.ID = newID()
	asg.SubmissionCount = 0
	repo.db.assignments[asg.ID] = &asg
	return asg, nil
}

func (repo *assignmentRepository) GetAssignment(_ context.Context, id string) (assignment.Assignment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if asg, ok := repo.db.assignments[id]; ok {
		return repo.withCount(*asg), nil
	}
	return assignment.Assignment{}, assignment.ErrNotFound
}

func (repo *assignmentRepository) QueryAssignments(_ context.Context, moduleID string) ([]assignment.Assignment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	assignments := make([]assignment.Assignment, 0)
	for _, asg := range repo.db.assignments {
		if asg.ModuleID == moduleID {
			assignments = append(assignments, repo.withCount(*asg))
		}
	}
	sort.SliceStable(assignments, func(i, j int) bool { return assignments[i].CreatedAt.Before(assignments[j].CreatedAt) })
	return assignments, nil
}

func (repo *assignmentRepository) DeleteAssignment(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.assignments[id]; !ok {
		return assignment.ErrNotFound
	}
	delete(repo.db.assignments, id)
	for subID, sub := range repo.db.submissions {
		if sub.AssignmentID == id {
			delete(repo.db.submissions, subID)
		}
	}
	return nil
}

func (repo *assignmentRepository) UpsertSubmission(_ context.Context, sub assignment.Submission) (assignment.Submission, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.assignments[sub.AssignmentID]; !ok {
		return assignment.Submission{}, assignment.ErrNotFound
	}
	for _, existing := range repo.db.submissions {
		if existing.AssignmentID == sub.AssignmentID && existing.StudentID == sub.StudentID {
			existing.Content = sub.Content
			existing.FileURL = sub.FileURL
			existing.SubmittedAt = sub.SubmittedAt
			return copySubmission(existing), nil
		}
	}
	sub.ID = newID()
	repo.db.submissions[sub.ID] = &sub
	return copySubmission(&sub), nil
}

func (repo *assignmentRepository) GetSubmission(_ context.Context, id string) (assignment.Submission, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if sub, ok := repo.db.submissions[id]; ok {
		return copySubmission(sub), nil
	}
	return assignment.Submission{}, assignment.ErrSubmissionNotFound
}

func (repo *assignmentRepository) GradeSubmission(_ context.Context, id string, score int, feedback string, at time.Time) (assignment.Submission, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	sub, ok := repo.db.submissions[id]
	if !ok {
		return assignment.Submission{}, assignment.ErrSubmissionNotFound
	}
	at = at.UTC()
	sub.Score = &score
	sub.Feedback = feedback
	sub.GradedAt = &at
	return copySubmission(sub), nil
}

func (repo *assignmentRepository) QuerySubmissions(_ context.Context, filter assignment.SubmissionFilter) ([]assignment.Submission, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	subs := make([]assignment.Submission, 0)
	for _, sub := range repo.db.submissions {
		if filter.AssignmentID != "" && sub.AssignmentID != filter.AssignmentID {
			continue
		}
		if filter.StudentID != "" && sub.StudentID != filter.StudentID {
			continue
		}
		if filter.CourseID != "" && repo.courseOf(sub.AssignmentID) != filter.CourseID {
			continue
		}
		subs = append(subs, copySubmission(sub))
	}
	sort.SliceStable(subs, func(i, j int) bool { return subs[i].SubmittedAt.After(subs[j].SubmittedAt) })
	return subs, nil
}

// courseOf must be called with the lock held.
func (repo *assignmentRepository) courseOf(assignmentID string) string {
	asg, ok := repo.db.assignments[assignmentID]
	if !ok {
		return ""
	}
	mod, ok := repo.db.modules[asg.ModuleID]
	if !ok {
		return ""
	}
	return mod.CourseID
}

func copySubmission(sub *assignment.Submission) assignment.Submission {
	cp := *sub
	if sub.Score != nil {
		score := *sub.Score
		cp.Score = &score
	}
	if sub.GradedAt != nil {
		at := *sub.GradedAt
		cp.GradedAt = &at
	}
	return cp
}
