package validation_test

import (
	"strings"
	"testing"

	"github.com/geocoder89/coursehub/internal/apperr"
	"github.com/geocoder89/coursehub/internal/validation"
)

func TestSortFields(t *testing.T) {
	tests := []struct {
		name      string
		fields    map[string]string
		wantErr   bool
		mustName  []string
		mustNotIn []string
	}{
		{name: "valid", fields: map[string]string{"title": "asc", "created_at": "DESC"}},
		{name: "empty", fields: map[string]string{}},
		{name: "unknown_field", fields: map[string]string{"title": "asc", "bogus": "desc"}, wantErr: true, mustName: []string{"bogus"}, mustNotIn: []string{"title,"}},
		{name: "bad_direction", fields: map[string]string{"title": "sideways"}, wantErr: true, mustName: []string{"sideways"}},
		{
			name:     "aggregates_all",
			fields:   map[string]string{"bogus": "asc", "nope": "up", "title": "down"},
			wantErr:  true,
			mustName: []string{"bogus", "nope", "up", "down"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			err := validation.SortFields(tt.fields, validation.ChapterSortFields)

			if !tt.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}

			if !apperr.Is(err, apperr.KindInvalid) {
				t.Fatalf("got %v want invalid", err)
			}

			msg := apperr.ResponseFor(err).Message
			for _, name := range tt.mustName {
				if !strings.Contains(msg, name) {
					t.Fatalf("message %q does not name %q", msg, name)
				}
			}
			for _, name := range tt.mustNotIn {
				if strings.Contains(strings.SplitN(msg, ". Valid", 2)[0], name) {
					t.Fatalf("message %q should not flag %q", msg, name)
				}
			}
		})
	}
}

func TestParseSortAndOrderBy(t *testing.T) {
	fields := validation.ParseSort(" status:desc, title ,status:asc,, created_at:ASC")

	want := []validation.SortField{
		{Field: "status", Direction: "desc"},
		{Field: "title", Direction: "asc"},
		{Field: "created_at", Direction: "ASC"},
	}
	if len(fields) != len(want) {
		t.Fatalf("got %v want %v", fields, want)
	}
	for i := range want {
		if fields[i] != want[i] {
			t.Fatalf("field %d: got %v want %v", i, fields[i], want[i])
		}
	}

	columns := map[string]string{"status": "c.status", "title": "c.title", "created_at": "c.created_at"}

	got := validation.OrderBy(fields, columns, "c.order_number ASC", "c.id ASC")
	if got != "ORDER BY c.status DESC, c.title ASC, c.created_at ASC, c.id ASC" {
		t.Fatalf("unexpected order by: %q", got)
	}

	if got := validation.OrderBy(nil, columns, "c.order_number ASC", "c.id ASC"); got != "ORDER BY c.order_number ASC, c.id ASC" {
		t.Fatalf("unexpected fallback: %q", got)
	}
}

func TestPagination(t *testing.T) {
	p, err := validation.Pagination(0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Page != 1 || p.Limit != 10 || p.Offset() != 0 {
		t.Fatalf("unexpected defaults: %+v", p)
	}

	p, err = validation.Pagination(3, 20)
	if err != nil || p.Offset() != 40 {
		t.Fatalf("got %+v, %v", p, err)
	}

	if _, err := validation.Pagination(-1, 500); !apperr.Is(err, apperr.KindInvalid) {
		t.Fatalf("expected invalid, got %v", err)
	}
}
