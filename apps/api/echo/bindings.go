package echoapi

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/elimu/core"
)

const (
	orderingParam = "ordering"
	dateLayout    = "2006-01-02"
)

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind reads `?ordering=name,-created_at` (a leading "-" means descending).
func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}
	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field != "" {
			ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
		}
	}
}

// bindPagination reads `?page=&limit=`; bad values fall back to the defaults.
func bindPagination(ctx echo.Context) core.Pagination {
	var p core.Pagination
	_ = echo.QueryParamsBinder(ctx).
		Int("page", &p.Page).
		Int("limit", &p.Limit).
		BindError()
	p.Clean()
	return p
}

// bindDate reads an optional YYYY-MM-DD query param as a UTC day.
func bindDate(ctx echo.Context, name string) (time.Time, error) {
	val := ctx.QueryParam(name)
	if val == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(dateLayout, val, time.UTC)
	if err != nil {
		return time.Time{}, core.NewValidationError(nil, core.FieldError{Field: name, Error: "expected a YYYY-MM-DD date"})
	}
	return t, nil
}

// nonNil makes empty lists render as `[]` rather than `null`.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
