package core

import (
	"context"
	"database/sql"
	"math"

	"github.com/jmoiron/sqlx"
)

// DBExecutor is satisfied by both *sqlx.DB and *sqlx.Tx.
type DBExecutor interface {
	sqlx.ExtContext

	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
}

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// Pagination is a 1-based page request.
type Pagination struct {
	Page  int `query:"page"`
	Limit int `query:"limit"`
}

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// Clean applies defaults and bounds.
func (p *Pagination) Clean() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = defaultPageLimit
	} else if p.Limit > maxPageLimit {
		p.Limit = maxPageLimit
	}
	// keeps Offset from overflowing
	if p.Page-1 > math.MaxInt/p.Limit {
		p.Page = math.MaxInt / p.Limit
	}
}

func (p Pagination) Offset() int { return (p.Page - 1) * p.Limit }

// TotalPages returns the number of pages needed to hold `total` items.
func (p Pagination) TotalPages(total int) int {
	if p.Limit < 1 {
		return 0
	}
	return (total + p.Limit - 1) / p.Limit
}
