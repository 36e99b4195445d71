package authz_test

import (
	"context"
	"errors"
	"testing"

	"github.com/geocoder89/coursehub/internal/apperr"
	"github.com/geocoder89/coursehub/internal/authz"
	"github.com/geocoder89/coursehub/internal/domain/user"
	"github.com/geocoder89/coursehub/internal/identity"
)

func withRoles(t *testing.T, roles ...user.Role) context.Context {
	t.Helper()

	ctx, err := identity.With(context.Background(), identity.Identity{UserID: 1, Username: "alice", Roles: roles})
	if err != nil {
		t.Fatalf("identity: %v", err)
	}
	return ctx
}

func TestRequirementCheck(t *testing.T) {
	adminOnly := authz.Require(user.RoleAdmin)

	tests := []struct {
		name     string
		ctx      context.Context
		req      authz.Requirement
		wantKind apperr.Kind
		wantOK   bool
	}{
		{name: "anonymous", ctx: context.Background(), req: adminOnly, wantKind: apperr.KindUnauthorized},
		{name: "missing_role", ctx: withRoles(t, user.RoleUser), req: adminOnly, wantKind: apperr.KindForbidden},
		{name: "one_of_many", ctx: withRoles(t, user.RoleUser, user.RoleAdmin), req: adminOnly, wantOK: true},
		{name: "any_listed_role", ctx: withRoles(t, user.RoleInstructor), req: authz.Require(user.RoleAdmin, user.RoleInstructor), wantOK: true},
		{name: "no_roles", ctx: withRoles(t), req: adminOnly, wantKind: apperr.KindForbidden},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Check(tt.ctx)

			if tt.wantOK {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}

			if !apperr.Is(err, tt.wantKind) {
				t.Fatalf("got %v want kind %v", err, tt.wantKind)
			}
		})
	}
}

func TestGuardSkipsOperationWhenDenied(t *testing.T) {
	called := false
	op := authz.Guard(authz.Require(user.RoleAdmin), func(ctx context.Context, id int64) (string, error) {
		called = true
		return "deleted", nil
	})

	_, err := op(withRoles(t, user.RoleUser), 7)
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("got %v want forbidden", err)
	}
	if called {
		t.Fatalf("operation must not run when denied")
	}
}

func TestGuardPassesResultThrough(t *testing.T) {
	boom := errors.New("boom")

	op := authz.Guard(authz.Require(user.RoleAdmin), func(ctx context.Context, id int64) (int64, error) {
		if id == 0 {
			return 0, boom
		}
		return id * 2, nil
	})

	ctx := withRoles(t, user.RoleAdmin)

	got, err := op(ctx, 21)
	if err != nil || got != 42 {
		t.Fatalf("got %d, %v", got, err)
	}

	if _, err := op(ctx, 0); !errors.Is(err, boom) {
		t.Fatalf("expected operation error unchanged, got %v", err)
	}
}

func TestGuardErr(t *testing.T) {
	op := authz.GuardErr(authz.Require(user.RoleAdmin), func(ctx context.Context, id int64) error { return nil })

	if err := op(context.Background(), 1); !apperr.Is(err, apperr.KindUnauthorized) {
		t.Fatalf("got %v want unauthorized", err)
	}
	if err := op(withRoles(t, user.RoleAdmin), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
