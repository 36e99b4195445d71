package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/coursehub/internal/domain/enrollment"
	"github.com/geocoder89/coursehub/internal/domain/progress"
	"github.com/geocoder89/coursehub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ProgressRepo struct {
	base
}

func NewProgressRepo(pool *pgxpool.Pool, prom *observability.Prom) *ProgressRepo {
	return &ProgressRepo{base{pool: pool, prom: prom}}
}

const progressColumns = `p.id, p.user_id, p.course_id, p.chapter_id, p.lesson_id, p.status,
	p.last_accessed_at, p.completion_date`

func scanProgress(row pgx.Row) (progress.Progress, error) {
	var p progress.Progress
	err := row.Scan(
		&p.ID, &p.UserID, &p.CourseID, &p.ChapterID, &p.LessonID, &p.Status,
		&p.LastAccessedAt, &p.CompletionDate,
	)
	return p, err
}

func mapProgressErr(err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return progress.ErrNotFound
	case IsUniqueViolation(err):
		return progress.ErrAlreadyStarted
	}
	return err
}

func (r *ProgressRepo) Get(ctx context.Context, userID, lessonID int64) (progress.Progress, error) {
	var p progress.Progress

	err := r.observe("progress.get", func() error {
		var err error
		p, err = scanProgress(r.pool.QueryRow(ctx,
			`SELECT `+progressColumns+` FROM lesson_progress p WHERE p.user_id = $1 AND p.lesson_id = $2`,
			userID, lessonID,
		))
		return err
	})
	if err != nil {
		return progress.Progress{}, mapProgressErr(err)
	}
	return p, nil
}

// Start records the lesson as in progress and moves a fresh enrollment to
// IN_PROGRESS in the same transaction.
func (r *ProgressRepo) Start(ctx context.Context, k progress.Key) (progress.Progress, error) {
	var p progress.Progress

	err := r.observe("progress.start", func() error {
		return r.inTx(ctx, func(tx pgx.Tx) error {
			var err error
			p, err = scanProgress(tx.QueryRow(ctx,
				`INSERT INTO lesson_progress AS p (user_id, course_id, chapter_id, lesson_id, status)
				VALUES ($1, $2, $3, $4, $5)
				RETURNING `+progressColumns,
				k.UserID, k.CourseID, k.ChapterID, k.LessonID, progress.StatusInProgress,
			))
			if err != nil {
				return err
			}

			_, err = tx.Exec(ctx,
				`UPDATE enrollments SET status = $3
				WHERE user_id = $1 AND course_id = $2 AND status = $4`,
				k.UserID, k.CourseID, enrollment.StatusInProgress, enrollment.StatusEnrolled,
			)
			return err
		})
	})
	if err != nil {
		return progress.Progress{}, mapProgressErr(err)
	}
	return p, nil
}

// Complete marks an in-progress lesson done. When no live lesson of the
// course is left unfinished the enrollment becomes COMPLETED as well.
func (r *ProgressRepo) Complete(ctx context.Context, id int64) (progress.Progress, error) {
	var p progress.Progress

	err := r.observe("progress.complete", func() error {
		return r.inTx(ctx, func(tx pgx.Tx) error {
			var err error
			p, err = scanProgress(tx.QueryRow(ctx,
				`UPDATE lesson_progress AS p SET
					status = $2,
					completion_date = now(),
					last_accessed_at = now()
				WHERE p.id = $1 AND p.status = $3
				RETURNING `+progressColumns,
				id, progress.StatusCompleted, progress.StatusInProgress,
			))
			if err != nil {
				return err
			}

			tag, err := tx.Exec(ctx,
				`UPDATE enrollments e SET status = $3, completion_date = now()
				WHERE e.user_id = $1 AND e.course_id = $2 AND e.status IN ($4, $5)
					AND NOT EXISTS (
						SELECT 1 FROM lessons l
						JOIN chapters ch ON ch.id = l.chapter_id
						WHERE ch.course_id = $2 AND l.deleted_at IS NULL AND ch.deleted_at IS NULL
							AND NOT EXISTS (
								SELECT 1 FROM lesson_progress lp
								WHERE lp.user_id = $1 AND lp.lesson_id = l.id AND lp.status = $6
							)
					)`,
				p.UserID, p.CourseID, enrollment.StatusCompleted,
				enrollment.StatusEnrolled, enrollment.StatusInProgress, progress.StatusCompleted,
			)
			if err != nil {
				return err
			}
			p.CourseCompleted = tag.RowsAffected() == 1
			return nil
		})
	})
	if err != nil {
		return progress.Progress{}, mapProgressErr(err)
	}
	return p, nil
}

func (r *ProgressRepo) ListByCourse(ctx context.Context, userID, courseID int64) ([]progress.Progress, error) {
	out := make([]progress.Progress, 0)

	err := r.observe("progress.list_by_course", func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT `+progressColumns+` FROM lesson_progress p
			WHERE p.user_id = $1 AND p.course_id = $2
			ORDER BY p.chapter_id, p.lesson_id`,
			userID, courseID,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			p, err := scanProgress(rows)
			if err != nil {
				return err
			}
			out = append(out, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
