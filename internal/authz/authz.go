// Package authz evaluates role requirements against the request identity.
package authz

import (
	"context"
	"strings"

	"github.com/geocoder89/coursehub/internal/apperr"
	"github.com/geocoder89/coursehub/internal/domain/user"
	"github.com/geocoder89/coursehub/internal/identity"
)

const (
	MsgNotAuthenticated = "User is not authenticated"
	MsgMissingRole      = "User does not have the required role"
)

// Requirement is an allow-list of roles. Any one of them grants access.
type Requirement struct {
	roles []user.Role
}

func Require(roles ...user.Role) Requirement {
	cp := make([]user.Role, len(roles))
	copy(cp, roles)
	return Requirement{roles: cp}
}

func (r Requirement) Roles() []user.Role {
	return r.roles
}

func (r Requirement) String() string {
	names := make([]string, 0, len(r.roles))
	for _, role := range r.roles {
		names = append(names, string(role))
	}
	return strings.Join(names, ",")
}

func (r Requirement) Allows(id identity.Identity) bool {
	return id.HasAnyRole(r.roles...)
}

// Check fails with an Unauthorized error when ctx carries no identity and a
// Forbidden error when the identity holds none of the required roles.
func (r Requirement) Check(ctx context.Context) error {
	id, ok := identity.From(ctx)
	if !ok {
		return apperr.Unauthorized(MsgNotAuthenticated)
	}
	if !r.Allows(id) {
		return apperr.Forbidden(MsgMissingRole)
	}
	return nil
}

// Guard wraps op so it only runs once the requirement holds.
func Guard[In, Out any](r Requirement, op func(context.Context, In) (Out, error)) func(context.Context, In) (Out, error) {
	return func(ctx context.Context, in In) (Out, error) {
		if err := r.Check(ctx); err != nil {
			var zero Out
			return zero, err
		}
		return op(ctx, in)
	}
}

// GuardErr is Guard for operations without a result.
func GuardErr[In any](r Requirement, op func(context.Context, In) error) func(context.Context, In) error {
	return func(ctx context.Context, in In) error {
		if err := r.Check(ctx); err != nil {
			return err
		}
		return op(ctx, in)
	}
}
