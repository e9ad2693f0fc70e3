// Package inmemdb keeps every table in memory. It enforces the same unique
// constraints as the postgres schema, so it can stand in for it in tests and demos.
package inmemdb

import (
	"sync"

	"github.com/google/uuid"

	"github.com/trezcool/elimu/core/admin"
	"github.com/trezcool/elimu/core/assignment"
	"github.com/trezcool/elimu/core/certificate"
	"github.com/trezcool/elimu/core/course"
	"github.com/trezcool/elimu/core/user"
)

type DB struct {
	mu sync.RWMutex

	users        map[string]*user.User
	courses      map[string]*course.Course
	modules      map[string]*course.Module
	enrollments  map[string]*course.Enrollment
	ratings      map[string]*course.Rating
	certificates map[string]*certificate.Certificate
	assignments  map[string]*assignment.Assignment
	submissions  map[string]*assignment.Submission
	snapshots    map[string]*admin.Snapshot
}

func Open() *DB {
	return &DB{
		users:        make(map[string]*user.User),
		courses:      make(map[string]*course.Course),
		modules:      make(map[string]*course.Module),
		enrollments:  make(map[string]*course.Enrollment),
		ratings:      make(map[string]*course.Rating),
		certificates: make(map[string]*certificate.Certificate),
		assignments:  make(map[string]*assignment.Assignment),
		submissions:  make(map[string]*assignment.Submission),
		snapshots:    make(map[string]*admin.Snapshot),
	}
}

func newID() string { return uuid.NewString() }
