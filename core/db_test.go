package core

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPagination_Clean(t *testing.T) {
	tests := []struct {
		name       string
		page       Pagination
		wantPage   int
		wantLimit  int
		wantOffset int
	}{
		{name: "defaults", page: Pagination{}, wantPage: 1, wantLimit: 20, wantOffset: 0},
		{name: "negative values", page: Pagination{Page: -3, Limit: -1}, wantPage: 1, wantLimit: 20, wantOffset: 0},
		{name: "limit capped", page: Pagination{Page: 2, Limit: 500}, wantPage: 2, wantLimit: 100, wantOffset: 100},
		{name: "regular page", page: Pagination{Page: 3, Limit: 10}, wantPage: 3, wantLimit: 10, wantOffset: 20},
		{
			name:       "huge page",
			page:       Pagination{Page: 92233720368547760, Limit: 100},
			wantPage:   math.MaxInt / 100,
			wantLimit:  100,
			wantOffset: (math.MaxInt/100 - 1) * 100,
		},
		{
			name:       "max int page",
			page:       Pagination{Page: math.MaxInt, Limit: 1},
			wantPage:   math.MaxInt,
			wantLimit:  1,
			wantOffset: math.MaxInt - 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.page
			p.Clean()
			assert.Equal(t, tt.wantPage, p.Page)
			assert.Equal(t, tt.wantLimit, p.Limit)
			assert.Equal(t, tt.wantOffset, p.Offset())
			assert.GreaterOrEqual(t, p.Offset(), 0)
		})
	}
}

func TestPagination_TotalPages(t *testing.T) {
	p := Pagination{Page: 1, Limit: 3}
	assert.Equal(t, 0, p.TotalPages(0))
	assert.Equal(t, 1, p.TotalPages(3))
	assert.Equal(t, 2, p.TotalPages(4))
	assert.Equal(t, 0, Pagination{}.TotalPages(4))
}
