package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/geocoder89/coursehub/internal/domain/category"
	"github.com/geocoder89/coursehub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CategoriesRepo struct {
	base
}

func NewCategoriesRepo(pool *pgxpool.Pool, prom *observability.Prom) *CategoriesRepo {
	return &CategoriesRepo{base{pool: pool, prom: prom}}
}

const categoryColumns = `c.id, c.name, c.description, c.created_at, c.updated_at, c.deleted_at`

func scanCategory(row pgx.Row, extra ...any) (category.Category, error) {
	var c category.Category
	dest := append([]any{&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt, &c.DeletedAt}, extra...)
	err := row.Scan(dest...)
	return c, err
}

func mapCategoryErr(err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return category.ErrNotFound
	case violatedConstraint(err) == "categories_name_live_uq":
		return category.ErrNameTaken
	}
	return err
}

func (r *CategoriesRepo) Create(ctx context.Context, req category.UpsertCategoryRequest) (category.Category, error) {
	var c category.Category

	err := r.observe("categories.create", func() error {
		var err error
		c, err = scanCategory(r.pool.QueryRow(ctx,
			`INSERT INTO categories AS c (name, description)
			VALUES ($1, $2)
			RETURNING `+categoryColumns,
			strings.TrimSpace(req.Name), req.Description,
		))
		return err
	})
	if err != nil {
		return category.Category{}, mapCategoryErr(err)
	}
	return c, nil
}

func (r *CategoriesRepo) Update(ctx context.Context, id int64, req category.UpsertCategoryRequest) (category.Category, error) {
	var c category.Category

	err := r.observe("categories.update", func() error {
		var err error
		c, err = scanCategory(r.pool.QueryRow(ctx,
			`UPDATE categories AS c SET name = $2, description = $3, updated_at = now()
			WHERE c.id = $1 AND c.deleted_at IS NULL
			RETURNING `+categoryColumns,
			id, strings.TrimSpace(req.Name), req.Description,
		))
		return err
	})
	if err != nil {
		return category.Category{}, mapCategoryErr(err)
	}
	return c, nil
}

// GetByID returns soft deleted categories too; callers decide visibility.
func (r *CategoriesRepo) GetByID(ctx context.Context, id int64) (category.Category, error) {
	var c category.Category

	err := r.observe("categories.get_by_id", func() error {
		var err error
		c, err = scanCategory(r.pool.QueryRow(ctx, `SELECT `+categoryColumns+` FROM categories c WHERE c.id = $1`, id))
		return err
	})
	if err != nil {
		return category.Category{}, mapCategoryErr(err)
	}
	return c, nil
}

func (r *CategoriesRepo) List(ctx context.Context, filter category.ListFilter, orderBy string) ([]category.Category, int, error) {
	var conds []string
	var args []any

	if !filter.IncludeDeleted {
		conds = append(conds, "c.deleted_at IS NULL")
	}
	if name := strings.TrimSpace(filter.Name); name != "" {
		args = append(args, "%"+name+"%")
		conds = append(conds, fmt.Sprintf("c.name ILIKE $%d", len(args)))
	}

	query := `SELECT ` + categoryColumns + `, COUNT(*) OVER() AS total FROM categories c`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	if orderBy == "" {
		orderBy = "ORDER BY c.name ASC, c.id ASC"
	}
	args = append(args, filter.Limit, filter.Offset)
	query += " " + orderBy + fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	out := make([]category.Category, 0, filter.Limit)
	total := 0

	err := r.observe("categories.list", func() error {
		rows, err := r.pool.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var t int
			c, err := scanCategory(rows, &t)
			if err != nil {
				return err
			}
			total = t
			out = append(out, c)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// SetDeleted soft deletes (deleted=true) or restores a category.
func (r *CategoriesRepo) SetDeleted(ctx context.Context, id int64, deleted bool) (category.Category, error) {
	var c category.Category

	err := r.observe("categories.set_deleted", func() error {
		var err error
		c, err = scanCategory(r.pool.QueryRow(ctx,
			`UPDATE categories AS c
			SET deleted_at = CASE WHEN $2 THEN now() ELSE NULL END, updated_at = now()
			WHERE c.id = $1
			RETURNING `+categoryColumns,
			id, deleted,
		))
		return err
	})
	if err != nil {
		return category.Category{}, mapCategoryErr(err)
	}
	return c, nil
}

// CountLive counts how many of ids are existing, non deleted categories.
func (r *CategoriesRepo) CountLive(ctx context.Context, ids []int64) (int, error) {
	var n int
	err := r.observe("categories.count_live", func() error {
		return r.pool.QueryRow(ctx,
			`SELECT COUNT(*) FROM categories WHERE id = ANY($1) AND deleted_at IS NULL`,
			int64Set(ids),
		).Scan(&n)
	})
	return n, err
}
