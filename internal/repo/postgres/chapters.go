package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/geocoder89/coursehub/internal/domain/chapter"
	"github.com/geocoder89/coursehub/internal/domain/course"
	"github.com/geocoder89/coursehub/internal/domain/lesson"
	"github.com/geocoder89/coursehub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ChaptersRepo struct {
	base
}

func NewChaptersRepo(pool *pgxpool.Pool, prom *observability.Prom) *ChaptersRepo {
	return &ChaptersRepo{base{pool: pool, prom: prom}}
}

const chapterColumns = `ch.id, ch.course_id, ch.title, ch.description, ch.order_number, ch.status,
	ch.created_at, ch.updated_at, ch.deleted_at`

func scanChapter(row pgx.Row, extra ...any) (chapter.Chapter, error) {
	var c chapter.Chapter
	dest := append([]any{
		&c.ID, &c.CourseID, &c.Title, &c.Description, &c.Order, &c.Status,
		&c.CreatedAt, &c.UpdatedAt, &c.DeletedAt,
	}, extra...)
	err := row.Scan(dest...)
	return c, err
}

func mapChapterErr(err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return chapter.ErrNotFound
	case violatedConstraint(err) == "chapters_course_order_live_uq":
		return chapter.ErrOrderTaken
	case violatedConstraint(err) == "lessons_chapter_order_live_uq":
		return lesson.ErrOrderTaken
	}
	return err
}

// OrderTaken reports whether a live chapter of the course already uses order.
func (r *ChaptersRepo) OrderTaken(ctx context.Context, courseID int64, order int, excludeID int64) (bool, error) {
	var taken bool
	err := r.observe("chapters.order_taken", func() error {
		return r.pool.QueryRow(ctx,
			`SELECT EXISTS(
				SELECT 1 FROM chapters
				WHERE course_id = $1 AND order_number = $2 AND deleted_at IS NULL AND id <> $3
			)`,
			courseID, order, excludeID,
		).Scan(&taken)
	})
	return taken, err
}

func insertChapter(ctx context.Context, q querier, nc chapter.NewChapter) (chapter.Chapter, error) {
	c, err := scanChapter(q.QueryRow(ctx,
		`INSERT INTO chapters AS ch (course_id, title, description, order_number, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+chapterColumns,
		nc.CourseID, nc.Title, nc.Description, nc.Order, course.StatusDraft,
	))
	if err != nil {
		return chapter.Chapter{}, err
	}

	for _, nl := range nc.Lessons {
		nl.ChapterID = c.ID
		l, err := insertLesson(ctx, q, nl)
		if err != nil {
			return chapter.Chapter{}, err
		}
		c.Lessons = append(c.Lessons, l)
	}
	return c, nil
}

func (r *ChaptersRepo) Create(ctx context.Context, nc chapter.NewChapter) (chapter.Chapter, error) {
	var c chapter.Chapter

	err := r.observe("chapters.create", func() error {
		return r.inTx(ctx, func(tx pgx.Tx) error {
			var err error
			c, err = insertChapter(ctx, tx, nc)
			return err
		})
	})
	if err != nil {
		return chapter.Chapter{}, mapChapterErr(err)
	}
	return c, nil
}

// BulkCreate inserts every chapter with its lessons or none of them.
func (r *ChaptersRepo) BulkCreate(ctx context.Context, items []chapter.NewChapter) ([]chapter.Chapter, error) {
	out := make([]chapter.Chapter, 0, len(items))

	err := r.observe("chapters.bulk_create", func() error {
		return r.inTx(ctx, func(tx pgx.Tx) error {
			for _, nc := range items {
				c, err := insertChapter(ctx, tx, nc)
				if err != nil {
					return err
				}
				out = append(out, c)
			}
			return nil
		})
	})
	if err != nil {
		return nil, mapChapterErr(err)
	}
	return out, nil
}

// GetByID includes soft deleted chapters.
func (r *ChaptersRepo) GetByID(ctx context.Context, id int64) (chapter.Chapter, error) {
	var c chapter.Chapter

	err := r.observe("chapters.get_by_id", func() error {
		var err error
		c, err = scanChapter(r.pool.QueryRow(ctx, `SELECT `+chapterColumns+` FROM chapters ch WHERE ch.id = $1`, id))
		return err
	})
	if err != nil {
		return chapter.Chapter{}, mapChapterErr(err)
	}
	return c, nil
}

// GetMany loads the chapters among ids that exist, deleted or not.
func (r *ChaptersRepo) GetMany(ctx context.Context, ids []int64) ([]chapter.Chapter, error) {
	out := make([]chapter.Chapter, 0, len(ids))

	err := r.observe("chapters.get_many", func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT `+chapterColumns+` FROM chapters ch WHERE ch.id = ANY($1) ORDER BY ch.id`,
			int64Set(ids),
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			c, err := scanChapter(rows)
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

func (r *ChaptersRepo) ListByCourse(ctx context.Context, filter chapter.ListFilter) ([]chapter.Chapter, int, error) {
	query := `SELECT ` + chapterColumns + `, COUNT(*) OVER() AS total FROM chapters ch WHERE ch.course_id = $1`
	if !filter.IncludeDeleted {
		query += " AND ch.deleted_at IS NULL"
	}

	orderBy := filter.OrderBy
	if orderBy == "" {
		orderBy = "ORDER BY ch.order_number ASC, ch.id ASC"
	}
	query += " " + orderBy + " LIMIT $2 OFFSET $3"

	out := make([]chapter.Chapter, 0, filter.Limit)
	total := 0

	err := r.observe("chapters.list_by_course", func() error {
		rows, err := r.pool.Query(ctx, query, filter.CourseID, filter.Limit, filter.Offset)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var t int
			c, err := scanChapter(rows, &t)
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

// Update applies changes to one chapter. Archiving soft deletes the chapter
// and archives its live lessons; restoring brings back, in DRAFT, only the
// lessons that were removed together with it.
func (r *ChaptersRepo) Update(ctx context.Context, id int64, changes chapter.Changes) (chapter.Chapter, error) {
	var c chapter.Chapter

	err := r.observe("chapters.update", func() error {
		return r.inTx(ctx, func(tx pgx.Tx) error {
			draft, archived := course.StatusDraft, course.StatusArchived

			if changes.Restore {
				if err := restoreLessons(ctx, tx, []int64{id}, &draft); err != nil {
					return err
				}
			}

			var err error
			c, err = scanChapter(tx.QueryRow(ctx,
				`UPDATE chapters AS ch SET
					title = COALESCE($2, ch.title),
					description = COALESCE($3, ch.description),
					order_number = COALESCE($4, ch.order_number),
					status = COALESCE($5, ch.status),
					deleted_at = CASE WHEN $6 THEN now() WHEN $7 THEN NULL ELSE ch.deleted_at END,
					updated_at = now()
				WHERE ch.id = $1
				RETURNING `+chapterColumns,
				id, changes.Title, changes.Description, changes.Order, changes.Status,
				changes.Archive, changes.Restore,
			))
			if err != nil {
				return err
			}

			if changes.Archive {
				return hideLessons(ctx, tx, []int64{id}, &archived)
			}
			return nil
		})
	})
	if err != nil {
		return chapter.Chapter{}, mapChapterErr(err)
	}
	return c, nil
}

// hideLessons soft deletes the live lessons of the chapters. Inside one
// transaction now() is fixed, so they share their chapter's deleted_at.
// Lessons deleted earlier keep their own timestamp.
func hideLessons(ctx context.Context, tx pgx.Tx, chapterIDs []int64, status *course.Status) error {
	_, err := tx.Exec(ctx,
		`UPDATE lessons SET
			status = COALESCE($2::text, status),
			deleted_at = now(),
			updated_at = now()
		WHERE chapter_id = ANY($1) AND deleted_at IS NULL`,
		int64Set(chapterIDs), status,
	)
	return err
}

// restoreLessons revives the lessons whose deleted_at matches their still
// deleted chapter. It must run before the chapters are restored.
func restoreLessons(ctx context.Context, tx pgx.Tx, chapterIDs []int64, status *course.Status) error {
	_, err := tx.Exec(ctx,
		`UPDATE lessons AS l SET
			status = COALESCE($2::text, l.status),
			deleted_at = NULL,
			updated_at = now()
		FROM chapters ch
		WHERE ch.id = l.chapter_id
			AND ch.id = ANY($1)
			AND ch.deleted_at IS NOT NULL
			AND l.deleted_at = ch.deleted_at`,
		int64Set(chapterIDs), status,
	)
	return err
}

// SetDeleted soft deletes or restores every chapter in ids together with
// their lessons. It fails without changes if any id is missing.
func (r *ChaptersRepo) SetDeleted(ctx context.Context, ids []int64, deleted bool) ([]chapter.Chapter, error) {
	out := make([]chapter.Chapter, 0, len(ids))

	err := r.observe("chapters.set_deleted", func() error {
		return r.inTx(ctx, func(tx pgx.Tx) error {
			if !deleted {
				if err := restoreLessons(ctx, tx, ids, nil); err != nil {
					return err
				}
			}

			rows, err := tx.Query(ctx,
				`UPDATE chapters AS ch SET
					deleted_at = CASE WHEN $2 THEN COALESCE(ch.deleted_at, now()) ELSE NULL END,
					updated_at = now()
				WHERE ch.id = ANY($1)
				RETURNING `+chapterColumns,
				int64Set(ids), deleted,
			)
			if err != nil {
				return err
			}

			for rows.Next() {
				c, err := scanChapter(rows)
				if err != nil {
					rows.Close()
					return err
				}
				out = append(out, c)
			}
			rows.Close()
			if err := rows.Err(); err != nil {
				return err
			}

			if len(out) != len(ids) {
				return fmt.Errorf("set deleted: %w", pgx.ErrNoRows)
			}

			if deleted {
				return hideLessons(ctx, tx, ids, nil)
			}
			return nil
		})
	})
	if err != nil {
		return nil, mapChapterErr(err)
	}
	return out, nil
}

// Renumber rewrites the live chapters of a course to orders 1..N, keeping
// their current relative order.
func (r *ChaptersRepo) Renumber(ctx context.Context, courseID int64) ([]chapter.Chapter, error) {
	out := make([]chapter.Chapter, 0)

	err := r.observe("chapters.renumber", func() error {
		return r.inTx(ctx, func(tx pgx.Tx) error {
			if err := renumber(ctx, tx, "chapters", "course_id", courseID); err != nil {
				return err
			}

			rows, err := tx.Query(ctx,
				`SELECT `+chapterColumns+` FROM chapters ch
				WHERE ch.course_id = $1 AND ch.deleted_at IS NULL
				ORDER BY ch.order_number ASC`,
				courseID,
			)
			if err != nil {
				return err
			}
			defer rows.Close()

			for rows.Next() {
				c, err := scanChapter(rows)
				if err != nil {
					return err
				}
				out = append(out, c)
			}
			return rows.Err()
		})
	})
	if err != nil {
		return nil, mapChapterErr(err)
	}
	return out, nil
}

func (r *ChaptersRepo) Lessons(ctx context.Context, chapterID int64) ([]lesson.Lesson, error) {
	return listLessons(ctx, r.base, chapterID)
}
