// Package service holds the course platform use cases. Every operation reads
// the caller from the request context; role checks are composed with
// authz.Guard at construction time.
package service

import (
	"context"

	"github.com/geocoder89/coursehub/internal/apperr"
	"github.com/geocoder89/coursehub/internal/authz"
	"github.com/geocoder89/coursehub/internal/domain/course"
	"github.com/geocoder89/coursehub/internal/domain/user"
	"github.com/geocoder89/coursehub/internal/identity"
	"github.com/geocoder89/coursehub/internal/validation"
)

var (
	adminOnly = authz.Require(user.RoleAdmin)
	staff     = authz.Require(user.RoleAdmin, user.RoleInstructor)
	members   = authz.Require(user.RoleAdmin, user.RoleInstructor, user.RoleUser)
	readers   = authz.Require(user.RoleAdmin, user.RoleUser)
)

// Page is one slice of a paginated listing.
type Page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

func newPage[T any](items []T, p validation.Page, total int) Page[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if p.Limit > 0 {
		pages = (total + p.Limit - 1) / p.Limit
	}
	return Page[T]{Items: items, Page: p.Page, Limit: p.Limit, Total: total, TotalPages: pages}
}

// ListQuery is the raw paging and sorting input of a listing endpoint.
type ListQuery struct {
	Page  int
	Limit int
	Sort  string
}

// resolve validates paging and sort input against the allowed fields and
// renders the ORDER BY clause.
func (q ListQuery) resolve(allowed []string, columns map[string]string, fallback, tiebreak string) (validation.Page, string, error) {
	p, err := validation.Pagination(q.Page, q.Limit)
	if err != nil {
		return validation.Page{}, "", err
	}

	fields := validation.ParseSort(q.Sort)
	if err := validation.ValidateSort(fields, allowed); err != nil {
		return validation.Page{}, "", err
	}

	return p, validation.OrderBy(fields, columns, fallback, tiebreak), nil
}

func currentIdentity(ctx context.Context) (identity.Identity, error) {
	id, ok := identity.From(ctx)
	if !ok {
		return identity.Identity{}, apperr.Unauthorized(authz.MsgNotAuthenticated)
	}
	return id, nil
}

// canModifyCourse allows administrators and the course's own instructor.
func canModifyCourse(id identity.Identity, c course.Course) error {
	if id.IsAdmin() {
		return nil
	}
	if id.HasRole(user.RoleInstructor) && c.InstructorID == id.UserID {
		return nil
	}
	return apperr.Forbidden("You don't have permission to modify this course")
}

// writableCourse loads a course whose content the caller may change.
func writableCourse(ctx context.Context, courses CourseReader, courseID int64) (course.Course, error) {
	caller, err := currentIdentity(ctx)
	if err != nil {
		return course.Course{}, err
	}

	c, err := courses.GetByID(ctx, courseID)
	if err != nil {
		return course.Course{}, mapCourseErr(err)
	}
	if err := canModifyCourse(caller, c); err != nil {
		return course.Course{}, err
	}
	if c.Archived() {
		return course.Course{}, apperr.Forbidden("Cannot modify content of an archived course")
	}
	return c, nil
}
