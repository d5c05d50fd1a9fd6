package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func contextWithQuery(query string) *gin.Context {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/transactions?"+query, nil)
	return c
}

func TestParseParams(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"no params uses defaults", "", DefaultLimit, DefaultOffset},
		{"valid limit and offset", "limit=50&offset=40", 50, 40},
		{"limit at max", "limit=100", MaxLimit, DefaultOffset},
		{"limit above max is capped", "limit=500", MaxLimit, DefaultOffset},
		{"zero limit uses default", "limit=0", DefaultLimit, DefaultOffset},
		{"negative limit uses default", "limit=-5", DefaultLimit, DefaultOffset},
		{"non-numeric limit uses default", "limit=abc", DefaultLimit, DefaultOffset},
		{"float limit uses default", "limit=10.5", DefaultLimit, DefaultOffset},
		{"zero offset is valid", "offset=0", DefaultLimit, 0},
		{"negative offset uses default", "offset=-20", DefaultLimit, DefaultOffset},
		{"non-numeric offset uses default", "offset=xyz", DefaultLimit, DefaultOffset},
		{"large offset is kept", "offset=100000", DefaultLimit, 100000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := ParseParams(contextWithQuery(tt.query))
			assert.Equal(t, tt.wantLimit, params.Limit)
			assert.Equal(t, tt.wantOffset, params.Offset)
		})
	}
}

func TestBuildMeta(t *testing.T) {
	tests := []struct {
		name           string
		limit          int
		offset         int
		total          int64
		wantTotalPages int
	}{
		{"exact multiple", 10, 0, 100, 10},
		{"partial last page rounds up", 10, 0, 95, 10},
		{"single page", 20, 0, 5, 1},
		{"single row", 1, 0, 1, 1},
		{"zero total", 10, 0, 0, 0},
		{"zero limit", 0, 0, 100, 0},
		{"negative limit", -10, 0, 100, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := BuildMeta(tt.limit, tt.offset, tt.total)
			require.NotNil(t, meta)
			assert.Equal(t, tt.limit, meta.Limit)
			assert.Equal(t, tt.offset, meta.Offset)
			assert.Equal(t, tt.total, meta.Total)
			assert.Equal(t, tt.wantTotalPages, meta.TotalPages)
		})
	}
}

func TestHasMore(t *testing.T) {
	tests := []struct {
		name   string
		offset int
		limit  int
		total  int64
		want   bool
	}{
		{"first page of many", 0, 10, 100, true},
		{"middle page", 50, 10, 100, true},
		{"last full page", 90, 10, 100, false},
		{"past the end", 200, 10, 100, false},
		{"empty result set", 0, 10, 0, false},
		{"window exactly covers total", 0, 10, 10, false},
		{"window one short of total", 0, 10, 11, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasMore(tt.offset, tt.limit, tt.total))
		})
	}
}

func TestGetCurrentPage(t *testing.T) {
	tests := []struct {
		name   string
		offset int
		limit  int
		want   int
	}{
		{"first page", 0, 10, 1},
		{"second page", 10, 10, 2},
		{"mid-window offset stays on page", 15, 10, 2},
		{"deep page", 1000, 10, 101},
		{"offset below one page", 5, 10, 1},
		{"zero limit is page one", 0, 0, 1},
		{"negative limit is page one", 10, -5, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetCurrentPage(tt.offset, tt.limit))
		})
	}
}
