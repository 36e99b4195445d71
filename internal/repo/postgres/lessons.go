package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/geocoder89/coursehub/internal/domain/course"
	"github.com/geocoder89/coursehub/internal/domain/lesson"
	"github.com/geocoder89/coursehub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type LessonsRepo struct {
	base
}

func NewLessonsRepo(pool *pgxpool.Pool, prom *observability.Prom) *LessonsRepo {
	return &LessonsRepo{base{pool: pool, prom: prom}}
}

const lessonColumns = `l.id, l.chapter_id, l.title, l.content, l.order_number, l.type, l.status,
	l.created_at, l.updated_at, l.deleted_at`

func scanLesson(row pgx.Row, extra ...any) (lesson.Lesson, error) {
	var l lesson.Lesson
	dest := append([]any{
		&l.ID, &l.ChapterID, &l.Title, &l.Content, &l.Order, &l.Type, &l.Status,
		&l.CreatedAt, &l.UpdatedAt, &l.DeletedAt,
	}, extra...)
	err := row.Scan(dest...)
	return l, err
}

func mapLessonErr(err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return lesson.ErrNotFound
	case violatedConstraint(err) == "lessons_chapter_order_live_uq":
		return lesson.ErrOrderTaken
	}
	return err
}

func insertLesson(ctx context.Context, q querier, nl lesson.NewLesson) (lesson.Lesson, error) {
	return scanLesson(q.QueryRow(ctx,
		`INSERT INTO lessons AS l (chapter_id, title, content, order_number, type, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+lessonColumns,
		nl.ChapterID, nl.Title, nl.Content, nl.Order, nl.Type, course.StatusDraft,
	))
}

func listLessons(ctx context.Context, b base, chapterID int64) ([]lesson.Lesson, error) {
	out := make([]lesson.Lesson, 0)

	err := b.observe("lessons.list_by_chapter", func() error {
		rows, err := b.pool.Query(ctx,
			`SELECT `+lessonColumns+` FROM lessons l
			WHERE l.chapter_id = $1 AND l.deleted_at IS NULL
			ORDER BY l.order_number ASC, l.id ASC`,
			chapterID,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			l, err := scanLesson(rows)
			if err != nil {
				return err
			}
			out = append(out, l)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// OrderTaken reports whether a live lesson of the chapter already uses order.
func (r *LessonsRepo) OrderTaken(ctx context.Context, chapterID int64, order int, excludeID int64) (bool, error) {
	var taken bool
	err := r.observe("lessons.order_taken", func() error {
		return r.pool.QueryRow(ctx,
			`SELECT EXISTS(
				SELECT 1 FROM lessons
				WHERE chapter_id = $1 AND order_number = $2 AND deleted_at IS NULL AND id <> $3
			)`,
			chapterID, order, excludeID,
		).Scan(&taken)
	})
	return taken, err
}

func (r *LessonsRepo) Create(ctx context.Context, nl lesson.NewLesson) (lesson.Lesson, error) {
	var l lesson.Lesson

	err := r.observe("lessons.create", func() error {
		var err error
		l, err = insertLesson(ctx, r.pool, nl)
		return err
	})
	if err != nil {
		return lesson.Lesson{}, mapLessonErr(err)
	}
	return l, nil
}

func (r *LessonsRepo) GetByID(ctx context.Context, id int64) (lesson.Lesson, error) {
	var l lesson.Lesson

	err := r.observe("lessons.get_by_id", func() error {
		var err error
		l, err = scanLesson(r.pool.QueryRow(ctx, `SELECT `+lessonColumns+` FROM lessons l WHERE l.id = $1`, id))
		return err
	})
	if err != nil {
		return lesson.Lesson{}, mapLessonErr(err)
	}
	return l, nil
}

func (r *LessonsRepo) ListByChapter(ctx context.Context, chapterID int64) ([]lesson.Lesson, error) {
	return listLessons(ctx, r.base, chapterID)
}

func updateLesson(ctx context.Context, q querier, id int64, changes lesson.Changes) (lesson.Lesson, error) {
	return scanLesson(q.QueryRow(ctx,
		`UPDATE lessons AS l SET
			title = COALESCE($2, l.title),
			content = COALESCE($3, l.content),
			order_number = COALESCE($4, l.order_number),
			type = COALESCE($5, l.type),
			status = COALESCE($6, l.status),
			updated_at = now()
		WHERE l.id = $1 AND l.deleted_at IS NULL
		RETURNING `+lessonColumns,
		id, changes.Title, changes.Content, changes.Order, changes.Type, changes.Status,
	))
}

func (r *LessonsRepo) Update(ctx context.Context, id int64, changes lesson.Changes) (lesson.Lesson, error) {
	var l lesson.Lesson

	err := r.observe("lessons.update", func() error {
		var err error
		l, err = updateLesson(ctx, r.pool, id, changes)
		return err
	})
	if err != nil {
		return lesson.Lesson{}, mapLessonErr(err)
	}
	return l, nil
}

// BulkUpdate applies every update or none of them.
func (r *LessonsRepo) BulkUpdate(ctx context.Context, updates []lesson.Update) ([]lesson.Lesson, error) {
	out := make([]lesson.Lesson, 0, len(updates))

	err := r.observe("lessons.bulk_update", func() error {
		return r.inTx(ctx, func(tx pgx.Tx) error {
			for _, u := range updates {
				l, err := updateLesson(ctx, tx, u.ID, u.Changes)
				if err != nil {
					return err
				}
				out = append(out, l)
			}
			return nil
		})
	})
	if err != nil {
		return nil, mapLessonErr(err)
	}
	return out, nil
}

// BulkCreate inserts every lesson or none of them.
func (r *LessonsRepo) BulkCreate(ctx context.Context, items []lesson.NewLesson) ([]lesson.Lesson, error) {
	out := make([]lesson.Lesson, 0, len(items))

	err := r.observe("lessons.bulk_create", func() error {
		return r.inTx(ctx, func(tx pgx.Tx) error {
			for _, nl := range items {
				l, err := insertLesson(ctx, tx, nl)
				if err != nil {
					return err
				}
				out = append(out, l)
			}
			return nil
		})
	})
	if err != nil {
		return nil, mapLessonErr(err)
	}
	return out, nil
}

// GetMany loads the lessons among ids that exist, deleted or not.
func (r *LessonsRepo) GetMany(ctx context.Context, ids []int64) ([]lesson.Lesson, error) {
	out := make([]lesson.Lesson, 0, len(ids))

	err := r.observe("lessons.get_many", func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT `+lessonColumns+` FROM lessons l WHERE l.id = ANY($1) ORDER BY l.id`,
			int64Set(ids),
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			l, err := scanLesson(rows)
			if err != nil {
				return err
			}
			out = append(out, l)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SetDeleted soft deletes or restores every lesson in ids. It fails without
// changes if any id is missing.
func (r *LessonsRepo) SetDeleted(ctx context.Context, ids []int64, deleted bool) ([]lesson.Lesson, error) {
	out := make([]lesson.Lesson, 0, len(ids))

	err := r.observe("lessons.set_deleted", func() error {
		return r.inTx(ctx, func(tx pgx.Tx) error {
			rows, err := tx.Query(ctx,
				`UPDATE lessons AS l SET
					deleted_at = CASE WHEN $2 THEN COALESCE(l.deleted_at, now()) ELSE NULL END,
					updated_at = now()
				WHERE l.id = ANY($1)
				RETURNING `+lessonColumns,
				int64Set(ids), deleted,
			)
			if err != nil {
				return err
			}
			defer rows.Close()

			for rows.Next() {
				l, err := scanLesson(rows)
				if err != nil {
					return err
				}
				out = append(out, l)
			}
			if err := rows.Err(); err != nil {
				return err
			}

			if len(out) != len(ids) {
				return fmt.Errorf("set deleted: %w", pgx.ErrNoRows)
			}
			return nil
		})
	})
	if err != nil {
		return nil, mapLessonErr(err)
	}
	return out, nil
}

// Search lists live lessons of live chapters.
func (r *LessonsRepo) Search(ctx context.Context, filter lesson.SearchFilter) ([]lesson.Lesson, int, error) {
	var args []any
	query := `SELECT ` + lessonColumns + `, COUNT(*) OVER() AS total
		FROM lessons l JOIN chapters ch ON ch.id = l.chapter_id
		WHERE l.deleted_at IS NULL AND ch.deleted_at IS NULL`

	if filter.ChapterID != nil {
		args = append(args, *filter.ChapterID)
		query += fmt.Sprintf(" AND l.chapter_id = $%d", len(args))
	}
	if filter.CourseID != nil {
		args = append(args, *filter.CourseID)
		query += fmt.Sprintf(" AND ch.course_id = $%d", len(args))
	}
	if filter.Title != "" {
		args = append(args, "%"+filter.Title+"%")
		query += fmt.Sprintf(" AND l.title ILIKE $%d", len(args))
	}
	if filter.Type != nil {
		args = append(args, *filter.Type)
		query += fmt.Sprintf(" AND l.type = $%d", len(args))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		query += fmt.Sprintf(" AND l.status = $%d", len(args))
	}

	orderBy := filter.OrderBy
	if orderBy == "" {
		orderBy = "ORDER BY l.created_at DESC, l.id DESC"
	}
	args = append(args, filter.Limit, filter.Offset)
	query += " " + orderBy + fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	out := make([]lesson.Lesson, 0, filter.Limit)
	total := 0

	err := r.observe("lessons.search", func() error {
		rows, err := r.pool.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var t int
			l, err := scanLesson(rows, &t)
			if err != nil {
				return err
			}
			total = t
			out = append(out, l)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Renumber rewrites the live lessons of a chapter to orders 1..N, keeping
// their current relative order.
func (r *LessonsRepo) Renumber(ctx context.Context, chapterID int64) ([]lesson.Lesson, error) {
	err := r.observe("lessons.renumber", func() error {
		return r.inTx(ctx, func(tx pgx.Tx) error {
			return renumber(ctx, tx, "lessons", "chapter_id", chapterID)
		})
	})
	if err != nil {
		return nil, mapLessonErr(err)
	}
	return listLessons(ctx, r.base, chapterID)
}

func (r *LessonsRepo) SoftDelete(ctx context.Context, id int64) error {
	err := r.observe("lessons.soft_delete", func() error {
		tag, err := r.pool.Exec(ctx,
			`UPDATE lessons SET deleted_at = now(), updated_at = now() WHERE id = $1 AND deleted_at IS NULL`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		return nil
	})
	if err != nil {
		return mapLessonErr(err)
	}
	return nil
}
