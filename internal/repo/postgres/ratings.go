package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/coursehub/internal/domain/rating"
	"github.com/geocoder89/coursehub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RatingsRepo struct {
	base
}

func NewRatingsRepo(pool *pgxpool.Pool, prom *observability.Prom) *RatingsRepo {
	return &RatingsRepo{base{pool: pool, prom: prom}}
}

const (
	ratingColumns = `cr.id, cr.user_id, u.username, cr.course_id, cr.rating, cr.review,
		cr.created_at, cr.updated_at, cr.deleted_at`
	ratingFrom = ` FROM course_ratings cr JOIN users u ON u.id = cr.user_id`
)

func scanRating(row pgx.Row, extra ...any) (rating.Rating, error) {
	var rt rating.Rating
	dest := append([]any{
		&rt.ID, &rt.UserID, &rt.Username, &rt.CourseID, &rt.Rating, &rt.Review,
		&rt.CreatedAt, &rt.UpdatedAt, &rt.DeletedAt,
	}, extra...)
	err := row.Scan(dest...)
	return rt, err
}

func (r *RatingsRepo) Create(ctx context.Context, userID int64, req rating.CreateRatingRequest) (rating.Rating, error) {
	var id int64

	err := r.observe("ratings.create", func() error {
		return r.pool.QueryRow(ctx,
			`INSERT INTO course_ratings (user_id, course_id, rating, review)
			VALUES ($1, $2, $3, $4)
			RETURNING id`,
			userID, req.CourseID, req.Rating, req.Review,
		).Scan(&id)
	})
	if err != nil {
		if IsUniqueViolation(err) {
			return rating.Rating{}, rating.ErrAlreadyRated
		}
		return rating.Rating{}, err
	}
	return r.GetByID(ctx, id)
}

// GetByID only returns live ratings.
func (r *RatingsRepo) GetByID(ctx context.Context, id int64) (rating.Rating, error) {
	var rt rating.Rating

	err := r.observe("ratings.get_by_id", func() error {
		var err error
		rt, err = scanRating(r.pool.QueryRow(ctx,
			`SELECT `+ratingColumns+ratingFrom+` WHERE cr.id = $1 AND cr.deleted_at IS NULL`, id))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return rating.Rating{}, rating.ErrNotFound
		}
		return rating.Rating{}, err
	}
	return rt, nil
}

func (r *RatingsRepo) Update(ctx context.Context, id int64, req rating.UpdateRatingRequest) (rating.Rating, error) {
	err := r.observe("ratings.update", func() error {
		tag, err := r.pool.Exec(ctx,
			`UPDATE course_ratings SET rating = $2, review = $3, updated_at = now()
			WHERE id = $1 AND deleted_at IS NULL`,
			id, req.Rating, req.Review,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return rating.Rating{}, rating.ErrNotFound
		}
		return rating.Rating{}, err
	}
	return r.GetByID(ctx, id)
}

func (r *RatingsRepo) SoftDelete(ctx context.Context, id int64) error {
	err := r.observe("ratings.soft_delete", func() error {
		tag, err := r.pool.Exec(ctx,
			`UPDATE course_ratings SET deleted_at = now(), updated_at = now() WHERE id = $1 AND deleted_at IS NULL`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		return nil
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return rating.ErrNotFound
	}
	return err
}

func (r *RatingsRepo) ListByCourse(ctx context.Context, filter rating.ListFilter) ([]rating.Rating, int, error) {
	orderBy := filter.OrderBy
	if orderBy == "" {
		orderBy = "ORDER BY cr.created_at DESC, cr.id DESC"
	}

	query := `SELECT ` + ratingColumns + `, COUNT(*) OVER() AS total` + ratingFrom + `
		WHERE cr.course_id = $1 AND cr.deleted_at IS NULL ` + orderBy + ` LIMIT $2 OFFSET $3`

	out := make([]rating.Rating, 0, filter.Limit)
	total := 0

	err := r.observe("ratings.list_by_course", func() error {
		rows, err := r.pool.Query(ctx, query, filter.CourseID, filter.Limit, filter.Offset)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var t int
			rt, err := scanRating(rows, &t)
			if err != nil {
				return err
			}
			total = t
			out = append(out, rt)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Counts returns live rating counts keyed by star value.
func (r *RatingsRepo) Counts(ctx context.Context, courseID int64) (map[int]int, error) {
	counts := make(map[int]int, 5)

	err := r.observe("ratings.counts", func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT rating, COUNT(*) FROM course_ratings
			WHERE course_id = $1 AND deleted_at IS NULL
			GROUP BY rating`,
			courseID,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var star, n int
			if err := rows.Scan(&star, &n); err != nil {
				return err
			}
			counts[star] = n
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}
