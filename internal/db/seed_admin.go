package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/geocoder89/coursehub/internal/config"
	"github.com/geocoder89/coursehub/internal/domain/user"
	"github.com/geocoder89/coursehub/internal/security"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureAdminUser creates the bootstrap administrator when ADMIN_EMAIL and
// ADMIN_PASSWORD are set and no account uses that email yet. It reports
// whether a user was created.
func EnsureAdminUser(ctx context.Context, pool *pgxpool.Pool, cfg config.AdminConfig) (bool, error) {
	if cfg.Email == "" || cfg.Password == "" {
		return false, nil
	}
	cfg.Email = strings.ToLower(strings.TrimSpace(cfg.Email))

	// check if the user exists
	var existing int64
	err := pool.QueryRow(ctx, `SELECT id FROM users WHERE email = $1`, cfg.Email).Scan(&existing)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, fmt.Errorf("look up admin: %w", err)
	}

	hash, err := security.HashPassword(cfg.Password)
	if err != nil {
		return false, fmt.Errorf("hash admin password: %w", err)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO users (username, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id`,
		cfg.Username, cfg.Email, hash,
	).Scan(&id)
	if err != nil {
		return false, fmt.Errorf("insert admin: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO user_roles (user_id, role_id)
		SELECT $1, r.id FROM roles r WHERE r.name = ANY($2)`,
		id, []string{string(user.RoleAdmin), string(user.RoleUser)},
	)
	if err != nil {
		return false, fmt.Errorf("grant admin roles: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}
