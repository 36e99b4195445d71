// Package identity carries the authenticated principal of a request.
package identity

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/coursehub/internal/domain/user"
)

var ErrAlreadySet = errors.New("request identity already set")

type Identity struct {
	UserID       int64
	Username     string
	Email        string
	PasswordHash string
	Roles        []user.Role
	DeletedAt    *time.Time
}

// Enabled is false once the account has been soft deleted.
func (i Identity) Enabled() bool {
	return i.DeletedAt == nil
}

func (i Identity) HasRole(r user.Role) bool {
	for _, have := range i.Roles {
		if have == r {
			return true
		}
	}
	return false
}

func (i Identity) HasAnyRole(roles ...user.Role) bool {
	for _, r := range roles {
		if i.HasRole(r) {
			return true
		}
	}
	return false
}

func (i Identity) IsAdmin() bool {
	return i.HasRole(user.RoleAdmin)
}

type ctxKey struct{}

// With attaches id to ctx. An identity is set at most once per request.
func With(ctx context.Context, id Identity) (context.Context, error) {
	if _, ok := From(ctx); ok {
		return ctx, ErrAlreadySet
	}
	return context.WithValue(ctx, ctxKey{}, id), nil
}

func From(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}
