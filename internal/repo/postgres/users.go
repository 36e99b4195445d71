package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/geocoder89/coursehub/internal/domain/user"
	"github.com/geocoder89/coursehub/internal/identity"
	"github.com/geocoder89/coursehub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrUserNotFound = user.ErrNotFound

type UsersRepo struct {
	base
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{base{pool: pool, prom: prom}}
}

const (
	userColumns = `u.id, u.username, u.email, u.password_hash, u.first_name, u.last_name,
		u.created_at, u.updated_at, u.deleted_at,
		COALESCE(array_agg(r.name ORDER BY r.name) FILTER (WHERE r.name IS NOT NULL), '{}') AS roles`
	userFrom = `
	FROM users u
	LEFT JOIN user_roles ur ON ur.user_id = u.id
	LEFT JOIN roles r ON r.id = ur.role_id`
	userSelect = `SELECT ` + userColumns + userFrom
)

func scanUser(row pgx.Row, extra ...any) (user.User, error) {
	var u user.User
	var roles []string

	dest := []any{
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.CreatedAt, &u.UpdatedAt, &u.DeletedAt, &roles,
	}
	dest = append(dest, extra...)

	if err := row.Scan(dest...); err != nil {
		return user.User{}, err
	}

	u.Roles = make([]user.Role, 0, len(roles))
	for _, name := range roles {
		u.Roles = append(u.Roles, user.Role(name))
	}
	return u, nil
}

// LoadByUsernameOrEmail resolves a token subject to the principal used for
// authorization. One query, roles included.
func (r *UsersRepo) LoadByUsernameOrEmail(ctx context.Context, usernameOrEmail string) (identity.Identity, error) {
	var u user.User

	err := r.observe("users.load_principal", func() error {
		var err error
		u, err = scanUser(r.pool.QueryRow(ctx,
			userSelect+`
			WHERE u.username = $1 OR u.email = $1
			GROUP BY u.id
			ORDER BY (u.username = $1) DESC
			LIMIT 1`,
			usernameOrEmail,
		))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return identity.Identity{}, ErrUserNotFound
		}
		return identity.Identity{}, err
	}

	return identity.Identity{
		UserID:       u.ID,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Roles:        u.Roles,
		DeletedAt:    u.DeletedAt,
	}, nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id int64) (user.User, error) {
	var u user.User

	err := r.observe("users.get_by_id", func() error {
		var err error
		u, err = scanUser(r.pool.QueryRow(ctx, userSelect+` WHERE u.id = $1 GROUP BY u.id`, id))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, ErrUserNotFound
		}
		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.observe("users.exists_by_username", func() error {
		return r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`, username).Scan(&exists)
	})
	return exists, err
}

func (r *UsersRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.observe("users.exists_by_email", func() error {
		return r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	})
	return exists, err
}

func (r *UsersRepo) Create(ctx context.Context, nu user.NewUser) (user.User, error) {
	var id int64

	err := r.observe("users.create", func() error {
		return r.inTx(ctx, func(tx pgx.Tx) error {
			err := tx.QueryRow(ctx,
				`INSERT INTO users (username, email, password_hash, first_name, last_name)
				VALUES ($1, $2, $3, $4, $5)
				RETURNING id`,
				nu.Username, nu.Email, nu.PasswordHash, nu.FirstName, nu.LastName,
			).Scan(&id)
			if err != nil {
				return err
			}
			return setRoles(ctx, tx, id, nu.Roles)
		})
	})
	if err != nil {
		switch violatedConstraint(err) {
		case "users_email_key":
			return user.User{}, user.ErrEmailTaken
		case "users_username_key":
			return user.User{}, user.ErrUsernameTaken
		}
		return user.User{}, err
	}

	return r.GetByID(ctx, id)
}

func setRoles(ctx context.Context, tx pgx.Tx, userID int64, roles []user.Role) error {
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, string(role))
	}

	if _, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, userID); err != nil {
		return err
	}

	tag, err := tx.Exec(ctx,
		`INSERT INTO user_roles (user_id, role_id)
		SELECT $1, r.id FROM roles r WHERE r.name = ANY($2)`,
		userID, names,
	)
	if err != nil {
		return err
	}
	if int(tag.RowsAffected()) != len(names) {
		return fmt.Errorf("set roles: %d of %d roles exist", tag.RowsAffected(), len(names))
	}
	return nil
}

// UpdateProfile changes the given fields; nil leaves a column untouched.
func (r *UsersRepo) UpdateProfile(ctx context.Context, id int64, firstName, lastName, passwordHash *string) (user.User, error) {
	err := r.observe("users.update_profile", func() error {
		tag, err := r.pool.Exec(ctx,
			`UPDATE users SET
				first_name = COALESCE($2, first_name),
				last_name = COALESCE($3, last_name),
				password_hash = COALESCE($4, password_hash),
				updated_at = now()
			WHERE id = $1 AND deleted_at IS NULL`,
			id, firstName, lastName, passwordHash,
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
			return user.User{}, ErrUserNotFound
		}
		return user.User{}, err
	}
	return r.GetByID(ctx, id)
}

func (r *UsersRepo) SetRoles(ctx context.Context, id int64, roles []user.Role) (user.User, error) {
	err := r.observe("users.set_roles", func() error {
		return r.inTx(ctx, func(tx pgx.Tx) error {
			tag, err := tx.Exec(ctx, `UPDATE users SET updated_at = now() WHERE id = $1 AND deleted_at IS NULL`, id)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return pgx.ErrNoRows
			}
			return setRoles(ctx, tx, id, roles)
		})
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, ErrUserNotFound
		}
		return user.User{}, err
	}
	return r.GetByID(ctx, id)
}

func (r *UsersRepo) List(ctx context.Context, filter user.ListFilter, orderBy string) ([]user.User, int, error) {
	var conds []string
	var args []any

	conds = append(conds, "u.deleted_at IS NULL")
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+s+"%")
		conds = append(conds, fmt.Sprintf("(u.username ILIKE $%d OR u.email ILIKE $%d)", len(args), len(args)))
	}

	if orderBy == "" {
		orderBy = "ORDER BY u.created_at DESC, u.id ASC"
	}

	args = append(args, filter.Limit, filter.Offset)
	query := `SELECT ` + userColumns + `, COUNT(*) OVER() AS total` + userFrom + `
		WHERE ` + strings.Join(conds, " AND ") + `
		GROUP BY u.id
		` + orderBy + fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	out := make([]user.User, 0, filter.Limit)
	total := 0

	err := r.observe("users.list", func() error {
		rows, err := r.pool.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var t int
			u, err := scanUser(rows, &t)
			if err != nil {
				return err
			}
			total = t
			out = append(out, u)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, err
	}

	return out, total, nil
}

func (r *UsersRepo) SoftDelete(ctx context.Context, id int64) error {
	err := r.observe("users.soft_delete", func() error {
		tag, err := r.pool.Exec(ctx,
			`UPDATE users SET deleted_at = now(), updated_at = now() WHERE id = $1 AND deleted_at IS NULL`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		return nil
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrUserNotFound
	}
	return err
}
