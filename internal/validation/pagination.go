package validation

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

type Page struct {
	Page  int
	Limit int
}

func (p Page) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Pagination applies defaults to zero values and bounds the rest.
func Pagination(page, limit int) (Page, error) {
	if page == 0 {
		page = DefaultPage
	}
	if limit == 0 {
		limit = DefaultLimit
	}

	var v Violations
	if page < 1 {
		v.Add("page must be at least 1")
	}
	if limit < 1 || limit > MaxLimit {
		v.Add("limit must be between 1 and %d", MaxLimit)
	}
	if err := v.Err(); err != nil {
		return Page{}, err
	}

	return Page{Page: page, Limit: limit}, nil
}
