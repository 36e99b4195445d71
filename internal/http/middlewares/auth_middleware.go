package middlewares

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/geocoder89/coursehub/internal/apperr"
	"github.com/geocoder89/coursehub/internal/auth"
	"github.com/geocoder89/coursehub/internal/authz"
	"github.com/geocoder89/coursehub/internal/domain/user"
	"github.com/geocoder89/coursehub/internal/identity"
	"github.com/geocoder89/coursehub/internal/observability"
	"github.com/gin-gonic/gin"
)

const (
	MsgTokenExpired  = "Token has expired"
	MsgTokenInvalid  = "Invalid token"
	MsgAuthRequired  = "Authentication required"
	MsgAuthFailed    = "Authentication failed"
	MsgAccessDenied  = "Access denied: You don't have permission to access this resource"
	bearerPrefix     = "Bearer "
	authorizationHdr = "Authorization"
)

// Keep these small so tests can fake them easily.
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

type PrincipalLoader interface {
	LoadByUsernameOrEmail(ctx context.Context, usernameOrEmail string) (identity.Identity, error)
}

type AuthMiddleware struct {
	tokens TokenValidator
	loader PrincipalLoader
	prom   *observability.Prom
}

func NewAuthMiddleware(tokens TokenValidator, loader PrincipalLoader, prom *observability.Prom) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, loader: loader, prom: prom}
}

// Authenticate resolves the bearer token, when present, into the request
// identity. Requests without a bearer token continue anonymously; a bad
// token or an unusable account ends the request with 401.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		// HandleContext re-dispatches reset the gin keys but keep the request.
		if _, done := c.Get(ctxAuthenticated); done {
			c.Next()
			return
		}
		if id, ok := identity.From(c.Request.Context()); ok {
			c.Set(ctxAuthenticated, true)
			c.Set(ctxIdentity, id)
			c.Next()
			return
		}
		c.Set(ctxAuthenticated, true)

		header := c.GetHeader(authorizationHdr)
		if !strings.HasPrefix(header, bearerPrefix) {
			c.Next()
			return
		}
		raw := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))

		claims, err := m.tokens.Validate(raw)
		if err != nil {
			failure := failureInvalid
			if errors.Is(err, auth.ErrTokenExpired) {
				failure = failureExpired
			}
			c.Set(ctxAuthFailure, failure)
			m.prom.IncAuthFailure(failure)

			slog.Default().DebugContext(c.Request.Context(), "bearer token rejected", "reason", failure)
			Unauthenticated(c)
			return
		}

		principal, err := m.loader.LoadByUsernameOrEmail(c.Request.Context(), claims.Username())
		if err != nil || !principal.Enabled() {
			m.prom.IncAuthFailure("principal")

			switch {
			case err == nil:
				slog.Default().WarnContext(c.Request.Context(), "token for disabled account", "user_id", principal.UserID)
			case errors.Is(err, user.ErrNotFound):
				slog.Default().WarnContext(c.Request.Context(), "token for unknown account", "subject", claims.Username())
			default:
				slog.Default().ErrorContext(c.Request.Context(), "load principal failed", "err", err)
			}

			abortJSON(c, http.StatusUnauthorized, MsgAuthFailed)
			return
		}

		ctx, err := identity.With(c.Request.Context(), principal)
		if err != nil {
			slog.Default().ErrorContext(c.Request.Context(), "attach identity failed", "err", err)
			abortJSON(c, http.StatusUnauthorized, MsgAuthFailed)
			return
		}
		c.Request = c.Request.WithContext(ctx)
		c.Set(ctxIdentity, principal)

		c.Next()
	}
}

// RequireAuth rejects anonymous requests.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := IdentityFrom(c); !ok {
			Unauthenticated(c)
			return
		}
		c.Next()
	}
}

// RequireRoles lets the request through when the identity holds any of roles.
func (m *AuthMiddleware) RequireRoles(roles ...user.Role) gin.HandlerFunc {
	req := authz.Require(roles...)

	return func(c *gin.Context) {
		err := req.Check(c.Request.Context())
		switch {
		case err == nil:
			c.Next()
		case apperr.Is(err, apperr.KindUnauthorized):
			Unauthenticated(c)
		default:
			route := c.FullPath()
			m.prom.IncAccessDenied(route)

			id, _ := IdentityFrom(c)
			slog.Default().WarnContext(c.Request.Context(), "access denied",
				"route", route, "user_id", id.UserID, "required", req.String())
			AccessDenied(c)
		}
	}
}

// Unauthenticated answers 401 with a message that names the token failure
// recorded by Authenticate, if any.
func Unauthenticated(c *gin.Context) {
	msg := MsgAuthRequired

	failure, _ := c.Get(ctxAuthFailure)
	switch failure {
	case failureExpired:
		msg = MsgTokenExpired
	case failureInvalid:
		msg = MsgTokenInvalid
	}

	abortJSON(c, http.StatusUnauthorized, msg)
}

func AccessDenied(c *gin.Context) {
	abortJSON(c, http.StatusForbidden, MsgAccessDenied)
}

// IdentityFrom returns the authenticated identity of the request.
func IdentityFrom(c *gin.Context) (identity.Identity, bool) {
	if v, ok := c.Get(ctxIdentity); ok {
		if id, ok := v.(identity.Identity); ok {
			return id, true
		}
	}
	return identity.From(c.Request.Context())
}

func abortJSON(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, apperr.NewResponse(status, msg))
}
