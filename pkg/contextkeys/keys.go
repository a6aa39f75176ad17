// Package contextkeys provides centralized context key definitions
//
// All context keys used across the application are defined here. This
// prevents typos, documents dependencies, and makes key usage discoverable.
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// AuthKey contains *identity.AuthorizedContext
	// Set by: guard middleware after a successful authorization
	// Required by: protected handlers, tenant scoper
	AuthKey Key = "auth_context"

	// RequestIDKey contains request ID string (UUID)
	// Set by: request-id middleware
	// Used by: logger, response headers
	RequestIDKey Key = "request_id"

	// UserIDKey contains the authenticated user id string
	// Set by: guard middleware
	// Used by: logger correlation
	UserIDKey Key = "user_id"

	// LoggerKey contains *observability.Logger
	// Set by: logging middleware
	// Used by: handlers needing request-scoped structured logging
	LoggerKey Key = "logger"
)

// Values are stored as interface{} so this package stays dependency-free;
// owning packages provide the typed accessors.

// WithAuth adds the authorized context to the context
func WithAuth(ctx context.Context, authCtx interface{}) context.Context {
	return context.WithValue(ctx, AuthKey, authCtx)
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithUserID adds user ID to the context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// WithLogger adds logger to the context
func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetUserID retrieves user ID from context
func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(UserIDKey).(string); ok {
		return userID
	}
	return ""
}
