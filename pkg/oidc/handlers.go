package oidc

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/lucirr/dip-console/pkg/audit"
	"github.com/lucirr/dip-console/pkg/authz"
	"github.com/lucirr/dip-console/pkg/contextkeys"
	"github.com/lucirr/dip-console/pkg/observability"
	"github.com/lucirr/dip-console/pkg/session"
)

const (
	// SessionCookie carries the signed session token.
	SessionCookie = "console_session"

	stateCookie     = "console_auth_state"
	returnURLCookie = "console_return_url"
	stateCookieAge  = 600 // seconds
)

// Handlers implements the sign-in, callback, logout, and session endpoints.
type Handlers struct {
	client   *Client
	enricher *session.Enricher
	codec    *session.Codec
	store    *session.Store
	registry *authz.Registry
	logger   *observability.Logger
	metrics  *observability.Metrics
	recorder *audit.Recorder
	baseURL  string
}

// NewHandlers creates the authentication handlers. The metrics argument may
// be nil.
func NewHandlers(client *Client, enricher *session.Enricher, codec *session.Codec,
	store *session.Store, registry *authz.Registry,
	logger *observability.Logger, metrics *observability.Metrics,
	recorder *audit.Recorder, baseURL string) *Handlers {
	return &Handlers{
		client:   client,
		enricher: enricher,
		codec:    codec,
		store:    store,
		registry: registry,
		logger:   logger,
		metrics:  metrics,
		recorder: recorder,
		baseURL:  baseURL,
	}
}

// RegisterRoutes registers authentication routes.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/login", h.initiateLogin).Methods("GET")
	router.HandleFunc("/auth/callback", h.handleCallback).Methods("GET")
	router.HandleFunc("/auth/logout", h.logout).Methods("GET", "POST")
	router.HandleFunc("/api/session", h.currentSession).Methods("GET")
	router.HandleFunc("/api/menu", h.menu).Methods("GET")
}

// initiateLogin handles GET /login
func (h *Handlers) initiateLogin(w http.ResponseWriter, r *http.Request) {
	state, err := GenerateState()
	if err != nil {
		http.Error(w, "failed to generate state", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   stateCookieAge,
	})

	if returnURL := r.URL.Query().Get("return_url"); returnURL != "" && isLocalPath(returnURL) {
		http.SetCookie(w, &http.Cookie{
			Name:     returnURLCookie,
			Value:    returnURL,
			Path:     "/",
			HttpOnly: true,
			Secure:   true,
			SameSite: http.SameSiteLaxMode,
			MaxAge:   stateCookieAge,
		})
	}

	authURL, err := h.client.AuthCodeURL(r.Context(), state)
	if err != nil {
		h.logger.WithError(err).Error("OIDC provider unavailable")
		http.Error(w, "identity provider unavailable", http.StatusBadGateway)
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

// handleCallback handles GET /auth/callback
func (h *Handlers) handleCallback(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(stateCookie)
	if err != nil {
		http.Error(w, "missing state cookie", http.StatusBadRequest)
		return
	}
	if state := r.URL.Query().Get("state"); state == "" || state != cookie.Value {
		http.Error(w, "invalid state parameter", http.StatusBadRequest)
		return
	}

	account, profile, err := h.client.HandleCallback(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		h.observeSignIn("failure")
		h.record(r, &audit.Event{
			EventType: audit.EventTypeSignInFailed,
			Status:    audit.EventStatusFailure,
			Message:   "token exchange failed",
		})
		h.logger.WithError(err).Warn("Token exchange failed")
		http.Error(w, "authentication failed", http.StatusUnauthorized)
		return
	}

	// The account-linking moment: the only place roles are fetched.
	token := h.codec.NewToken(profile.Subject)
	token = h.enricher.Enrich(r.Context(), token, account, profile)

	if err := h.store.Create(r.Context(), token); err != nil {
		h.logger.WithError(err).Error("Failed to store session")
		http.Error(w, "failed to create session", http.StatusInternalServerError)
		return
	}

	signed, err := h.codec.Sign(token)
	if err != nil {
		h.logger.WithError(err).Error("Failed to sign session token")
		http.Error(w, "failed to create session", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    signed,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		Expires:  token.ExpiresAt,
	})
	clearCookie(w, stateCookie)

	signInEvent := audit.EventTypeSignIn
	if !token.HasRoles() || len(token.Roles) == 0 {
		signInEvent = audit.EventTypeSignInRoleless
	}
	h.record(r, &audit.Event{
		EventType: signInEvent,
		Status:    audit.EventStatusSuccess,
		Username:  token.Username,
	})

	returnURL := "/"
	if returnCookie, err := r.Cookie(returnURLCookie); err == nil && isLocalPath(returnCookie.Value) {
		returnURL = returnCookie.Value
		clearCookie(w, returnURLCookie)
	}
	http.Redirect(w, r, returnURL, http.StatusFound)
}

// logout handles GET/POST /auth/logout
func (h *Handlers) logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		if token, err := h.codec.Parse(cookie.Value); err == nil {
			if err := h.store.Delete(r.Context(), token.ID); err != nil {
				h.logger.WithError(err).Warn("Failed to delete session record")
			}
			h.record(r, &audit.Event{
				EventType: audit.EventTypeLogout,
				Status:    audit.EventStatusSuccess,
				Username:  token.Username,
			})
		}
	}
	clearCookie(w, SessionCookie)

	http.Redirect(w, r, h.client.LogoutURL(h.baseURL+"/login"), http.StatusFound)
}

// currentSession handles GET /api/session
func (h *Handlers) currentSession(w http.ResponseWriter, r *http.Request) {
	sess := contextkeys.SessionFrom(r.Context())
	if err := authz.CheckPermission(sess, nil); err != nil {
		writeAuthError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sess)
}

// menu handles GET /api/menu. Visibility is advisory for rendering only;
// every listed route is still enforced server-side.
func (h *Handlers) menu(w http.ResponseWriter, r *http.Request) {
	sess := contextkeys.SessionFrom(r.Context())
	if err := authz.CheckPermission(sess, nil); err != nil {
		writeAuthError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.registry.VisibleRoutes(sess.Roles))
}

func (h *Handlers) record(r *http.Request, event *audit.Event) {
	if h.recorder != nil {
		h.recorder.Record(r.Context(), event)
	}
}

func (h *Handlers) observeSignIn(result string) {
	if h.metrics != nil {
		h.metrics.SignInsTotal.WithLabelValues(result).Inc()
	}
}

func writeAuthError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, authz.ErrAuthenticationRequired):
		status = http.StatusUnauthorized
	case errors.Is(err, authz.ErrPermissionDenied):
		status = http.StatusForbidden
	}
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:    name,
		Path:    "/",
		MaxAge:  -1,
		Expires: time.Unix(0, 0),
	})
}

// isLocalPath accepts only same-site absolute paths for post-login
// redirects, rejecting scheme-relative and absolute URLs.
func isLocalPath(p string) bool {
	return len(p) > 0 && p[0] == '/' && !(len(p) > 1 && p[1] == '/')
}
