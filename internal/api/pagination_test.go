package api

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPagination(t *testing.T) {
	cases := []struct {
		name       string
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"defaults", "", 50, 0},
		{"explicit", "page=3&limit=20", 20, 40},
		{"limit capped", "limit=500", 50, 0},
		{"page floor", "page=0", 50, 0},
		{"non-numeric falls back", "page=abc&limit=xyz", 50, 0},
		{"overflowing number falls back", "page=99999999999999999999&limit=10", 10, 0},
		{"negative rejected", "page=-2&limit=-5", 50, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/api/channels/c1/messages?"+tc.query, nil)
			limit, offset := pagination(r)
			assert.Equal(t, tc.wantLimit, limit)
			assert.Equal(t, tc.wantOffset, offset)
		})
	}
}
