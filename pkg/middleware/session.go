package middleware

import (
	"net/http"

	"github.com/lucirr/dip-console/pkg/contextkeys"
	"github.com/lucirr/dip-console/pkg/observability"
	"github.com/lucirr/dip-console/pkg/session"
)

// SessionLoader resolves the session cookie into a projected session on the
// request context. It never rejects a request: an absent, expired, tampered,
// or revoked cookie simply leaves the request unauthenticated, and the
// guard or the per-action permission checks decide what that means.
type SessionLoader struct {
	codec      *session.Codec
	store      *session.Store
	cookieName string
	logger     *observability.Logger
}

// NewSessionLoader creates the session-loading middleware.
func NewSessionLoader(codec *session.Codec, store *session.Store, cookieName string, logger *observability.Logger) *SessionLoader {
	return &SessionLoader{
		codec:      codec,
		store:      store,
		cookieName: cookieName,
		logger:     logger,
	}
}

// Handler wraps an HTTP handler with session loading.
func (m *SessionLoader) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(m.cookieName)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		token, err := m.codec.Parse(cookie.Value)
		if err != nil {
			// Tampered or expired cookie. Not an error condition for the
			// request itself; it proceeds unauthenticated.
			m.logger.WithContext(r.Context()).WithError(err).Debug("Rejected session cookie")
			next.ServeHTTP(w, r)
			return
		}

		// A valid signature is not enough: logout revokes the server-side
		// record before the cookie expires.
		exists, err := m.store.Exists(r.Context(), token.ID)
		if err != nil {
			m.logger.WithContext(r.Context()).WithError(err).Warn("Session store unavailable")
			next.ServeHTTP(w, r)
			return
		}
		if !exists {
			next.ServeHTTP(w, r)
			return
		}

		ctx := contextkeys.WithSession(r.Context(), session.Project(token))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
