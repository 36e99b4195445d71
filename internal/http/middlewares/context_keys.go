package middlewares

// gin context keys set by the middlewares in this package.
const (
	CtxRequestID = "request_id"

	ctxIdentity      = "auth.identity"
	ctxAuthFailure   = "auth.failure"
	ctxAuthenticated = "auth.filtered"
)

// Values stored under ctxAuthFailure.
const (
	failureExpired = "expired"
	failureInvalid = "invalid"
)
