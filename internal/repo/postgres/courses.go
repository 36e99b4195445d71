package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/geocoder89/coursehub/internal/domain/course"
	"github.com/geocoder89/coursehub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CoursesRepo struct {
	base
}

func NewCoursesRepo(pool *pgxpool.Pool, prom *observability.Prom) *CoursesRepo {
	return &CoursesRepo{base{pool: pool, prom: prom}}
}

const (
	courseColumns = `c.id, c.title, c.description, c.instructor_id, u.username, c.status,
		c.created_at, c.updated_at, c.deleted_at,
		COALESCE((SELECT array_agg(cc.category_id ORDER BY cc.category_id)
			FROM course_categories cc WHERE cc.course_id = c.id), '{}') AS category_ids`
	courseFrom = `
	FROM courses c
	JOIN users u ON u.id = c.instructor_id`
)

func scanCourse(row pgx.Row, extra ...any) (course.Course, error) {
	var c course.Course
	dest := append([]any{
		&c.ID, &c.Title, &c.Description, &c.InstructorID, &c.InstructorUsername, &c.Status,
		&c.CreatedAt, &c.UpdatedAt, &c.DeletedAt, &c.CategoryIDs,
	}, extra...)
	err := row.Scan(dest...)
	return c, err
}

func replaceCategories(ctx context.Context, tx pgx.Tx, courseID int64, categoryIDs []int64) error {
	if _, err := tx.Exec(ctx, `DELETE FROM course_categories WHERE course_id = $1`, courseID); err != nil {
		return err
	}
	if len(categoryIDs) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx,
		`INSERT INTO course_categories (course_id, category_id)
		SELECT $1, unnest($2::bigint[])
		ON CONFLICT DO NOTHING`,
		courseID, categoryIDs,
	)
	return err
}

func (r *CoursesRepo) Create(ctx context.Context, c course.Course) (course.Course, error) {
	var id int64

	err := r.observe("courses.create", func() error {
		return r.inTx(ctx, func(tx pgx.Tx) error {
			err := tx.QueryRow(ctx,
				`INSERT INTO courses (title, description, instructor_id, status)
				VALUES ($1, $2, $3, $4)
				RETURNING id`,
				c.Title, c.Description, c.InstructorID, c.Status,
			).Scan(&id)
			if err != nil {
				return err
			}
			return replaceCategories(ctx, tx, id, c.CategoryIDs)
		})
	})
	if err != nil {
		return course.Course{}, err
	}
	return r.GetByID(ctx, id)
}

// Update persists title, description, status, deleted_at and the category
// set of c in one transaction.
func (r *CoursesRepo) Update(ctx context.Context, c course.Course) (course.Course, error) {
	err := r.observe("courses.update", func() error {
		return r.inTx(ctx, func(tx pgx.Tx) error {
			tag, err := tx.Exec(ctx,
				`UPDATE courses SET title = $2, description = $3, status = $4, deleted_at = $5, updated_at = now()
				WHERE id = $1`,
				c.ID, c.Title, c.Description, c.Status, c.DeletedAt,
			)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return pgx.ErrNoRows
			}
			return replaceCategories(ctx, tx, c.ID, c.CategoryIDs)
		})
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return course.Course{}, course.ErrNotFound
		}
		return course.Course{}, err
	}
	return r.GetByID(ctx, c.ID)
}

// GetByID includes archived and soft deleted courses.
func (r *CoursesRepo) GetByID(ctx context.Context, id int64) (course.Course, error) {
	var c course.Course

	err := r.observe("courses.get_by_id", func() error {
		var err error
		c, err = scanCourse(r.pool.QueryRow(ctx, `SELECT `+courseColumns+courseFrom+` WHERE c.id = $1`, id))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return course.Course{}, course.ErrNotFound
		}
		return course.Course{}, err
	}
	return c, nil
}

// Search lists non deleted courses. filter.OrderBy must come from the sort
// whitelist.
func (r *CoursesRepo) Search(ctx context.Context, filter course.SearchFilter) ([]course.Course, int, error) {
	conds := []string{"c.deleted_at IS NULL"}
	var args []any

	if filter.Title != nil && strings.TrimSpace(*filter.Title) != "" {
		args = append(args, "%"+strings.TrimSpace(*filter.Title)+"%")
		conds = append(conds, fmt.Sprintf("c.title ILIKE $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conds = append(conds, fmt.Sprintf("c.status = $%d", len(args)))
	}
	if filter.InstructorID != nil {
		args = append(args, *filter.InstructorID)
		conds = append(conds, fmt.Sprintf("c.instructor_id = $%d", len(args)))
	}
	if filter.CategoryID != nil {
		args = append(args, *filter.CategoryID)
		conds = append(conds, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM course_categories cc WHERE cc.course_id = c.id AND cc.category_id = $%d)", len(args)))
	}

	orderBy := filter.OrderBy
	if orderBy == "" {
		orderBy = "ORDER BY c.created_at DESC, c.id DESC"
	}

	args = append(args, filter.Limit, filter.Offset)
	query := `SELECT ` + courseColumns + `, COUNT(*) OVER() AS total` + courseFrom +
		` WHERE ` + strings.Join(conds, " AND ") + " " + orderBy +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	out := make([]course.Course, 0, filter.Limit)
	total := 0

	err := r.observe("courses.search", func() error {
		rows, err := r.pool.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var t int
			c, err := scanCourse(rows, &t)
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

// Latest returns the most recently created published courses.
func (r *CoursesRepo) Latest(ctx context.Context, limit int) ([]course.Course, error) {
	out := make([]course.Course, 0, limit)

	err := r.observe("courses.latest", func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT `+courseColumns+courseFrom+`
			WHERE c.deleted_at IS NULL AND c.status = $1
			ORDER BY c.created_at DESC, c.id DESC
			LIMIT $2`,
			course.StatusPublished, limit,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			c, err := scanCourse(rows)
			if err != nil {
				return err
			}
			out = append(out, c)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CountLessons counts live lessons across the course's live chapters.
func (r *CoursesRepo) CountLessons(ctx context.Context, courseID int64) (int, error) {
	var n int
	err := r.observe("courses.count_lessons", func() error {
		return r.pool.QueryRow(ctx,
			`SELECT COUNT(*)
			FROM lessons l
			JOIN chapters ch ON ch.id = l.chapter_id
			WHERE ch.course_id = $1 AND ch.deleted_at IS NULL AND l.deleted_at IS NULL`,
			courseID,
		).Scan(&n)
	})
	return n, err
}
