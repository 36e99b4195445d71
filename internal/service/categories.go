package service

import (
	"context"
	"errors"
	"strings"

	"github.com/geocoder89/coursehub/internal/apperr"
	"github.com/geocoder89/coursehub/internal/authz"
	"github.com/geocoder89/coursehub/internal/domain/category"
	"github.com/geocoder89/coursehub/internal/validation"
)

type CategoryStore interface {
	Create(ctx context.Context, req category.UpsertCategoryRequest) (category.Category, error)
	Update(ctx context.Context, id int64, req category.UpsertCategoryRequest) (category.Category, error)
	GetByID(ctx context.Context, id int64) (category.Category, error)
	List(ctx context.Context, filter category.ListFilter, orderBy string) ([]category.Category, int, error)
	SetDeleted(ctx context.Context, id int64, deleted bool) (category.Category, error)
	CountLive(ctx context.Context, ids []int64) (int, error)
}

type CategoryUpdate struct {
	ID  int64
	Req category.UpsertCategoryRequest
}

type CategoryListQuery struct {
	ListQuery
	Name           string
	IncludeDeleted bool
}

var categorySortColumns = map[string]string{
	"name":       "c.name",
	"created_at": "c.created_at",
	"updated_at": "c.updated_at",
}

type CategoryService struct {
	categories CategoryStore

	create  func(context.Context, category.UpsertCategoryRequest) (category.Category, error)
	update  func(context.Context, CategoryUpdate) (category.Category, error)
	remove  func(context.Context, int64) error
	restore func(context.Context, int64) (category.Category, error)
}

func NewCategoryService(categories CategoryStore) *CategoryService {
	s := &CategoryService{categories: categories}

	s.create = authz.Guard(adminOnly, s.doCreate)
	s.update = authz.Guard(adminOnly, s.doUpdate)
	s.remove = authz.GuardErr(adminOnly, s.doDelete)
	s.restore = authz.Guard(adminOnly, s.doRestore)

	return s
}

func mapCategoryErr(err error, id int64) error {
	switch {
	case errors.Is(err, category.ErrNotFound):
		return apperr.NotFound("Category not found with id: %d", id)
	case errors.Is(err, category.ErrNameTaken):
		return apperr.Conflict("Category with name already exists")
	}
	return err
}

func normalizeCategory(req category.UpsertCategoryRequest) category.UpsertCategoryRequest {
	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	return req
}

func (s *CategoryService) Create(ctx context.Context, req category.UpsertCategoryRequest) (category.Category, error) {
	return s.create(ctx, req)
}

func (s *CategoryService) doCreate(ctx context.Context, req category.UpsertCategoryRequest) (category.Category, error) {
	c, err := s.categories.Create(ctx, normalizeCategory(req))
	return c, mapCategoryErr(err, 0)
}

func (s *CategoryService) Update(ctx context.Context, u CategoryUpdate) (category.Category, error) {
	return s.update(ctx, u)
}

func (s *CategoryService) doUpdate(ctx context.Context, u CategoryUpdate) (category.Category, error) {
	current, err := s.categories.GetByID(ctx, u.ID)
	if err != nil {
		return category.Category{}, mapCategoryErr(err, u.ID)
	}
	if current.DeletedAt != nil {
		return category.Category{}, apperr.NotFound("Category not found with id: %d", u.ID)
	}

	c, err := s.categories.Update(ctx, u.ID, normalizeCategory(u.Req))
	return c, mapCategoryErr(err, u.ID)
}

func (s *CategoryService) Delete(ctx context.Context, id int64) error {
	return s.remove(ctx, id)
}

func (s *CategoryService) doDelete(ctx context.Context, id int64) error {
	current, err := s.categories.GetByID(ctx, id)
	if err != nil {
		return mapCategoryErr(err, id)
	}
	if current.DeletedAt != nil {
		return apperr.Invalid("Category is already deleted")
	}

	_, err = s.categories.SetDeleted(ctx, id, true)
	return mapCategoryErr(err, id)
}

func (s *CategoryService) Restore(ctx context.Context, id int64) (category.Category, error) {
	return s.restore(ctx, id)
}

func (s *CategoryService) doRestore(ctx context.Context, id int64) (category.Category, error) {
	current, err := s.categories.GetByID(ctx, id)
	if err != nil {
		return category.Category{}, mapCategoryErr(err, id)
	}
	if current.DeletedAt == nil {
		return category.Category{}, apperr.Invalid("Category is not soft deleted")
	}

	c, err := s.categories.SetDeleted(ctx, id, false)
	return c, mapCategoryErr(err, id)
}

// Get returns a live category; deleted ones are reported as missing.
func (s *CategoryService) Get(ctx context.Context, id int64) (category.Category, error) {
	c, err := s.categories.GetByID(ctx, id)
	if err != nil {
		return category.Category{}, mapCategoryErr(err, id)
	}
	if c.DeletedAt != nil {
		return category.Category{}, apperr.NotFound("Category not found with id: %d", id)
	}
	return c, nil
}

func (s *CategoryService) List(ctx context.Context, q CategoryListQuery) (Page[category.Category], error) {
	p, orderBy, err := q.resolve(validation.CategorySortFields, categorySortColumns, "c.name ASC", "c.id ASC")
	if err != nil {
		return Page[category.Category]{}, err
	}

	// Only administrators may list deleted categories.
	includeDeleted := false
	if q.IncludeDeleted {
		if id, err := currentIdentity(ctx); err == nil && id.IsAdmin() {
			includeDeleted = true
		}
	}

	items, total, err := s.categories.List(ctx, category.ListFilter{
		Name:           strings.TrimSpace(q.Name),
		IncludeDeleted: includeDeleted,
		Limit:          p.Limit,
		Offset:         p.Offset(),
	}, orderBy)
	if err != nil {
		return Page[category.Category]{}, err
	}
	return newPage(items, p, total), nil
}
