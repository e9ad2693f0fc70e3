// Package sqlxrepos implements the domain repositories on postgres with sqlx.
// Unique and foreign-key constraint violations are translated to the domain
// errors by constraint name, so invariants are enforced by the schema.
package sqlxrepos

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
)

const (
	uniqueViolation     = pq.ErrorCode("23505")
	foreignKeyViolation = pq.ErrorCode("23503")
)

func newID() string { return uuid.NewString() }

// validID tells whether id can be compared to a UUID column without a cast error.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// violation returns the name of the constraint err violates, when its code is one of codes.
func violation(err error, codes ...pq.ErrorCode) (string, bool) {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return "", false
	}
	for _, code := range codes {
		if pqErr.Code == code {
			return pqErr.Constraint, true
		}
	}
	return "", false
}

// translate maps constraint violations to domain errors; unknown errors are wrapped with msg.
func translate(err error, msg string, byConstraint map[string]error) error {
	if err == nil {
		return nil
	}
	if constraint, ok := violation(err, uniqueViolation, foreignKeyViolation); ok {
		if domainErr, found := byConstraint[constraint]; found {
			return domainErr
		}
	}
	return errors.Wrap(err, msg)
}

// notFound maps sql.ErrNoRows to notFoundErr.
func notFound(err error, notFoundErr error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFoundErr
	}
	return errors.Wrap(err, msg)
}

// where accumulates AND-ed conditions with positional args.
type where struct {
	conds []string
	args  []interface{}
}

// add appends cond, whose `?` is replaced by the next positional placeholder.
func (w *where) add(cond string, arg interface{}) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, strings.Replace(cond, "?", fmt.Sprintf("$%d", len(w.args)), -1))
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// next returns the placeholder of the next arg.
func (w *where) next(arg interface{}) string {
	w.args = append(w.args, arg)
	return fmt.Sprintf("$%d", len(w.args))
}

// orderBy renders ordering on the allowed columns, falling back to def.
func orderBy(ordering []core.DBOrdering, allowed map[string]bool, def core.DBOrdering) string {
	parts := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		if allowed[ord.Field] {
			parts = append(parts, ord.String())
		}
	}
	if len(parts) == 0 {
		parts = append(parts, def.String())
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}
