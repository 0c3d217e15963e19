package middlewares

// gin context keys shared by middlewares and handlers
const (
	CtxRequestID   = "request_id"
	CtxPrincipal   = "auth.principal"
	CtxAuthFailure = "auth.failure"
)
