package validation

import (
	"sort"
	"strings"
)

const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

var (
	ChapterSortFields    = []string{"title", "order_number", "status", "created_at", "updated_at"}
	CourseSortFields     = []string{"title", "created_at", "updated_at", "status"}
	CategorySortFields   = []string{"name", "created_at", "updated_at"}
	EnrollmentSortFields = []string{"enrollment_date", "status"}
	LessonSortFields     = []string{"title", "order_number", "status", "type", "created_at"}
	RatingSortFields     = []string{"rating", "created_at"}
	UserSortFields       = []string{"username", "email", "created_at"}
)

type SortField struct {
	Field     string
	Direction string
}

// ParseSort reads "field:dir,field2" keeping the order given. A missing
// direction defaults to asc; a repeated field keeps its first occurrence.
func ParseSort(raw string) []SortField {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	out := make([]SortField, 0, 4)
	seen := make(map[string]struct{})

	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		field, dir, found := strings.Cut(part, ":")
		field = strings.TrimSpace(field)
		dir = strings.TrimSpace(dir)
		if !found || dir == "" {
			dir = SortAsc
		}

		if _, dup := seen[field]; dup {
			continue
		}
		seen[field] = struct{}{}

		out = append(out, SortField{Field: field, Direction: dir})
	}

	return out
}

// SortFields validates a field->direction map. Keys are visited in sorted
// order so the error text is stable.
func SortFields(fields map[string]string, allowed []string) error {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	list := make([]SortField, 0, len(keys))
	for _, k := range keys {
		list = append(list, SortField{Field: k, Direction: fields[k]})
	}

	return ValidateSort(list, allowed)
}

// ValidateSort rejects unknown fields and directions other than asc/desc,
// reporting every offender at once.
func ValidateSort(fields []SortField, allowed []string) error {
	valid := make(map[string]struct{}, len(allowed))
	for _, f := range allowed {
		valid[f] = struct{}{}
	}

	var badFields, badDirs []string
	for _, f := range fields {
		if _, ok := valid[f.Field]; !ok {
			badFields = append(badFields, f.Field)
		}
		switch strings.ToLower(f.Direction) {
		case SortAsc, SortDesc:
		default:
			badDirs = append(badDirs, f.Direction)
		}
	}

	var v Violations
	if len(badFields) > 0 {
		v.Add("Invalid sort fields: %s. Valid fields are: %s",
			strings.Join(badFields, ", "), strings.Join(allowed, ", "))
	}
	for _, d := range badDirs {
		v.Add("Invalid sort direction: %s. Must be 'asc' or 'desc'", d)
	}

	return v.Err()
}

// OrderBy renders a validated sort list as SQL. columns maps public field
// names to qualified columns; unmapped fields are skipped. tiebreak is
// appended for stable pagination.
func OrderBy(fields []SortField, columns map[string]string, fallback, tiebreak string) string {
	parts := make([]string, 0, len(fields)+1)

	for _, f := range fields {
		col, ok := columns[f.Field]
		if !ok {
			continue
		}
		dir := "ASC"
		if strings.EqualFold(f.Direction, SortDesc) {
			dir = "DESC"
		}
		parts = append(parts, col+" "+dir)
	}

	if len(parts) == 0 {
		if fallback == "" {
			return ""
		}
		parts = append(parts, fallback)
	}
	if tiebreak != "" {
		parts = append(parts, tiebreak)
	}

	return "ORDER BY " + strings.Join(parts, ", ")
}
