package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/lucirr/dip-console/pkg/audit"
	"github.com/lucirr/dip-console/pkg/authz"
	"github.com/lucirr/dip-console/pkg/contextkeys"
	"github.com/lucirr/dip-console/pkg/observability"
)

// bypassPrefixes are request paths the guard never evaluates: static
// assets, the API surface (which carries its own permission checks), and
// the authentication endpoints themselves.
var bypassPrefixes = []string{
	"/api/",
	"/_next/static/",
	"/_next/image/",
	"/static/",
}

var bypassExact = map[string]bool{
	"/favicon.ico":   true,
	"/login":         true,
	"/auth/callback": true,
	"/auth/logout":   true,
}

// RouteGuard enforces the route-protection table on page routes. It is the
// outer layer of a two-layer defense: server actions re-check permissions
// individually, so a guard gap never becomes an authorization gap.
type RouteGuard struct {
	registry  *authz.Registry
	loginPath string
	logger    *observability.Logger
	metrics   *observability.Metrics
	recorder  *audit.Recorder
}

// NewRouteGuard creates the route-guarding middleware. The metrics argument
// may be nil.
func NewRouteGuard(registry *authz.Registry, loginPath string, logger *observability.Logger, metrics *observability.Metrics, recorder *audit.Recorder) *RouteGuard {
	return &RouteGuard{
		registry:  registry,
		loginPath: loginPath,
		logger:    logger,
		metrics:   metrics,
		recorder:  recorder,
	}
}

// Handler wraps an HTTP handler with route guarding.
func (m *RouteGuard) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if bypassed(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		sess := contextkeys.SessionFrom(r.Context())
		if sess == nil {
			m.redirectToLogin(w, r, "unauthenticated")
			return
		}

		rule, protected := m.registry.Lookup(r.URL.Path)
		if !protected {
			next.ServeHTTP(w, r)
			return
		}

		// The denial is indistinguishable from not being signed in at all:
		// same redirect, no hint of which roles the route wanted.
		if !sess.HasAnyRole(rule.RequiredRoles) {
			m.logger.WithContext(r.Context()).WithFields(map[string]interface{}{
				"path":     r.URL.Path,
				"username": sess.Username,
			}).Warn("Route access denied")
			if m.recorder != nil {
				m.recorder.Record(r.Context(), &audit.Event{
					EventType: audit.EventTypeRouteDenied,
					Status:    audit.EventStatusDenied,
					Username:  sess.Username,
					Path:      r.URL.Path,
				})
			}
			m.redirectToLogin(w, r, "denied")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *RouteGuard) redirectToLogin(w http.ResponseWriter, r *http.Request, reason string) {
	if m.metrics != nil {
		m.metrics.GuardRedirectsTotal.WithLabelValues(reason).Inc()
	}
	target := m.loginPath
	if r.URL.Path != "/" && r.Method == http.MethodGet {
		target += "?return_url=" + url.QueryEscape(r.URL.Path)
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func bypassed(path string) bool {
	if bypassExact[path] {
		return true
	}
	for _, prefix := range bypassPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
