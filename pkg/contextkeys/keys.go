// Package contextkeys provides centralized context key definitions.
//
// All context keys used across the console must be defined here. This
// prevents typos, documents dependencies, and makes key usage discoverable.
package contextkeys

import (
	"context"

	"github.com/lucirr/dip-console/pkg/authz"
)

// Key is the type for context keys to prevent collisions
type Key string

const (
	// SessionKey contains *authz.Session
	// Set by: middleware.SessionLoader after projecting the session token
	// Required by: permission-wrapped handlers, menu visibility
	SessionKey Key = "session"

	// RequestIDKey contains the request ID string (UUID)
	// Set by: middleware.RequestID
	// Used by: logger, audit trail
	RequestIDKey Key = "request_id"

	// LoggerKey contains *observability.Logger
	// Set by: observability layer
	LoggerKey Key = "logger"
)

// WithSession attaches the projected session to the context.
func WithSession(ctx context.Context, sess *authz.Session) context.Context {
	return context.WithValue(ctx, SessionKey, sess)
}

// SessionFrom extracts the session from context. It returns nil when no
// session is attached; callers treat nil as unauthenticated.
func SessionFrom(ctx context.Context) *authz.Session {
	sess, ok := ctx.Value(SessionKey).(*authz.Session)
	if !ok {
		return nil
	}
	return sess
}

// WithRequestID attaches a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// RequestIDFrom extracts the request ID from context, or "".
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}
