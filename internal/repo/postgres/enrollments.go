package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/coursehub/internal/domain/enrollment"
	"github.com/geocoder89/coursehub/internal/domain/progress"
	"github.com/geocoder89/coursehub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type EnrollmentsRepo struct {
	base
}

func NewEnrollmentsRepo(pool *pgxpool.Pool, prom *observability.Prom) *EnrollmentsRepo {
	return &EnrollmentsRepo{base{pool: pool, prom: prom}}
}

const (
	enrollmentColumns = `e.id, e.user_id, e.course_id, c.title, e.status, e.enrollment_date, e.completion_date`
	enrollmentFrom    = ` FROM enrollments e JOIN courses c ON c.id = e.course_id`
)

func scanEnrollment(row pgx.Row, extra ...any) (enrollment.Enrollment, error) {
	var e enrollment.Enrollment
	dest := append([]any{
		&e.ID, &e.UserID, &e.CourseID, &e.CourseTitle, &e.Status, &e.EnrollmentDate, &e.CompletionDate,
	}, extra...)
	err := row.Scan(dest...)
	return e, err
}

func (r *EnrollmentsRepo) Create(ctx context.Context, userID, courseID int64) (enrollment.Enrollment, error) {
	err := r.observe("enrollments.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO enrollments (user_id, course_id, status) VALUES ($1, $2, $3)`,
			userID, courseID, enrollment.StatusEnrolled,
		)
		return err
	})
	if err != nil {
		if IsUniqueViolation(err) {
			return enrollment.Enrollment{}, enrollment.ErrAlreadyEnrolled
		}
		return enrollment.Enrollment{}, err
	}
	return r.Get(ctx, userID, courseID)
}

func (r *EnrollmentsRepo) Get(ctx context.Context, userID, courseID int64) (enrollment.Enrollment, error) {
	var e enrollment.Enrollment

	err := r.observe("enrollments.get", func() error {
		var err error
		e, err = scanEnrollment(r.pool.QueryRow(ctx,
			`SELECT `+enrollmentColumns+enrollmentFrom+` WHERE e.user_id = $1 AND e.course_id = $2`,
			userID, courseID,
		))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return enrollment.Enrollment{}, enrollment.ErrNotFound
		}
		return enrollment.Enrollment{}, err
	}
	return e, nil
}

func (r *EnrollmentsRepo) List(ctx context.Context, filter enrollment.ListFilter) ([]enrollment.Enrollment, int, error) {
	args := []any{filter.UserID}
	query := `SELECT ` + enrollmentColumns + `, COUNT(*) OVER() AS total` + enrollmentFrom + ` WHERE e.user_id = $1`

	if filter.Status != nil {
		args = append(args, *filter.Status)
		query += fmt.Sprintf(" AND e.status = $%d", len(args))
	}

	orderBy := filter.OrderBy
	if orderBy == "" {
		orderBy = "ORDER BY e.enrollment_date DESC, e.id DESC"
	}
	args = append(args, filter.Limit, filter.Offset)
	query += " " + orderBy + fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	out := make([]enrollment.Enrollment, 0, filter.Limit)
	total := 0

	err := r.observe("enrollments.list", func() error {
		rows, err := r.pool.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var t int
			e, err := scanEnrollment(rows, &t)
			if err != nil {
				return err
			}
			total = t
			out = append(out, e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// UpdateStatus moves an enrollment and carries the change to its lesson
// progress: dropping parks the lessons in progress, resuming picks them up
// again. Completed lessons stay completed.
func (r *EnrollmentsRepo) UpdateStatus(ctx context.Context, id int64, status enrollment.Status, completedAt *time.Time) error {
	err := r.observe("enrollments.update_status", func() error {
		return r.inTx(ctx, func(tx pgx.Tx) error {
			var userID, courseID int64
			err := tx.QueryRow(ctx,
				`UPDATE enrollments SET status = $2, completion_date = $3 WHERE id = $1
				RETURNING user_id, course_id`,
				id, status, completedAt,
			).Scan(&userID, &courseID)
			if err != nil {
				return err
			}

			var from, to progress.Status
			switch status {
			case enrollment.StatusDropped:
				from, to = progress.StatusInProgress, progress.StatusDropped
			case enrollment.StatusInProgress:
				from, to = progress.StatusDropped, progress.StatusInProgress
			default:
				return nil
			}

			_, err = tx.Exec(ctx,
				`UPDATE lesson_progress SET status = $4, last_accessed_at = now()
				WHERE user_id = $1 AND course_id = $2 AND status = $3`,
				userID, courseID, from, to,
			)
			return err
		})
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return enrollment.ErrNotFound
	}
	return err
}
