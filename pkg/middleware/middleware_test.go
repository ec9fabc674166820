package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucirr/dip-console/pkg/authz"
	"github.com/lucirr/dip-console/pkg/contextkeys"
	"github.com/lucirr/dip-console/pkg/observability"
	"github.com/lucirr/dip-console/pkg/session"
)

const (
	testSecret = "0123456789abcdef0123456789abcdef"
	testCookie = "console_session"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

// capture records the session visible to the innermost handler.
func capture(sess **authz.Session) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*sess = contextkeys.SessionFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequestID(t *testing.T) {
	t.Run("generates when absent", func(t *testing.T) {
		var seen string
		handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = contextkeys.RequestIDFrom(r.Context())
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
	})

	t.Run("honors upstream header", func(t *testing.T) {
		var seen string
		handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = contextkeys.RequestIDFrom(r.Context())
		}))

		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set(RequestIDHeader, "upstream-id")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, "upstream-id", seen)
	})
}

type sessionFixture struct {
	codec  *session.Codec
	store  *session.Store
	redis  *miniredis.Miniredis
	loader *SessionLoader
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	codec, err := session.NewCodec(testSecret, "dip-console", time.Hour)
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	store := session.NewStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	return &sessionFixture{
		codec:  codec,
		store:  store,
		redis:  mr,
		loader: NewSessionLoader(codec, store, testCookie, testLogger()),
	}
}

func (f *sessionFixture) signedToken(t *testing.T, roles []string) (*session.Token, string) {
	t.Helper()
	token := f.codec.NewToken("subject-1")
	token.Username = "alice"
	if roles != nil {
		token.Roles = authz.NewRoleSet(roles)
	}
	require.NoError(t, f.store.Create(context.Background(), token))

	signed, err := f.codec.Sign(token)
	require.NoError(t, err)
	return token, signed
}

func TestSessionLoader(t *testing.T) {
	t.Run("no cookie leaves request unauthenticated", func(t *testing.T) {
		f := newSessionFixture(t)
		var sess *authz.Session
		rec := httptest.NewRecorder()
		f.loader.Handler(capture(&sess)).ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Nil(t, sess)
	})

	t.Run("valid cookie attaches projected session", func(t *testing.T) {
		f := newSessionFixture(t)
		_, signed := f.signedToken(t, []string{"admin"})

		var sess *authz.Session
		req := httptest.NewRequest("GET", "/", nil)
		req.AddCookie(&http.Cookie{Name: testCookie, Value: signed})
		f.loader.Handler(capture(&sess)).ServeHTTP(httptest.NewRecorder(), req)

		require.NotNil(t, sess)
		assert.Equal(t, "alice", sess.Username)
		assert.Equal(t, authz.RoleSet{authz.RoleAdmin}, sess.Roles)
	})

	t.Run("tampered cookie is ignored", func(t *testing.T) {
		f := newSessionFixture(t)
		_, signed := f.signedToken(t, []string{"admin"})

		var sess *authz.Session
		req := httptest.NewRequest("GET", "/", nil)
		req.AddCookie(&http.Cookie{Name: testCookie, Value: signed + "x"})
		rec := httptest.NewRecorder()
		f.loader.Handler(capture(&sess)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Nil(t, sess)
	})

	t.Run("revoked session is ignored", func(t *testing.T) {
		f := newSessionFixture(t)
		token, signed := f.signedToken(t, []string{"admin"})
		require.NoError(t, f.store.Delete(context.Background(), token.ID))

		var sess *authz.Session
		req := httptest.NewRequest("GET", "/", nil)
		req.AddCookie(&http.Cookie{Name: testCookie, Value: signed})
		f.loader.Handler(capture(&sess)).ServeHTTP(httptest.NewRecorder(), req)

		assert.Nil(t, sess)
	})

	t.Run("role-less token projects empty role set", func(t *testing.T) {
		f := newSessionFixture(t)
		_, signed := f.signedToken(t, nil)

		var sess *authz.Session
		req := httptest.NewRequest("GET", "/", nil)
		req.AddCookie(&http.Cookie{Name: testCookie, Value: signed})
		f.loader.Handler(capture(&sess)).ServeHTTP(httptest.NewRecorder(), req)

		require.NotNil(t, sess)
		assert.NotNil(t, sess.Roles)
		assert.Empty(t, sess.Roles)
	})
}

func newGuard(t *testing.T) *RouteGuard {
	t.Helper()
	registry, err := authz.NewRegistry(authz.DefaultRules(), false)
	require.NoError(t, err)
	return NewRouteGuard(registry, "/login", testLogger(), nil, nil)
}

func guardRequest(t *testing.T, guard *RouteGuard, path string, sess *authz.Session) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	if sess != nil {
		req = req.WithContext(contextkeys.WithSession(req.Context(), sess))
	}
	rec := httptest.NewRecorder()
	guard.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, req)
	return rec
}

func TestRouteGuard(t *testing.T) {
	guard := newGuard(t)

	admin := &authz.Session{Username: "alice", Roles: authz.RoleSet{authz.RoleAdmin}}
	member := &authz.Session{Username: "bob", Roles: authz.RoleSet{authz.RoleMember}}
	roleless := &authz.Session{Username: "carol", Roles: authz.RoleSet{}}

	t.Run("unauthenticated page request redirects to login", func(t *testing.T) {
		rec := guardRequest(t, guard, "/projects", nil)
		require.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/login?return_url=%2Fprojects", rec.Header().Get("Location"))
	})

	t.Run("authorized role passes", func(t *testing.T) {
		rec := guardRequest(t, guard, "/clusters", admin)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("denial is indistinguishable from unauthenticated", func(t *testing.T) {
		denied := guardRequest(t, guard, "/clusters", member)
		anonymous := guardRequest(t, guard, "/clusters", nil)

		require.Equal(t, http.StatusFound, denied.Code)
		assert.Equal(t, anonymous.Header().Get("Location"), denied.Header().Get("Location"))
	})

	t.Run("role-less session is denied on every protected route", func(t *testing.T) {
		for _, path := range []string{"/", "/clusters", "/projects", "/licenses"} {
			rec := guardRequest(t, guard, path, roleless)
			assert.Equal(t, http.StatusFound, rec.Code, "path %s", path)
		}
	})

	t.Run("unregistered path passes for any session", func(t *testing.T) {
		rec := guardRequest(t, guard, "/profile", roleless)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("bypass paths skip the guard entirely", func(t *testing.T) {
		for _, path := range []string{"/api/session", "/_next/static/chunk.js", "/favicon.ico", "/login", "/auth/callback"} {
			rec := guardRequest(t, guard, path, nil)
			assert.Equal(t, http.StatusOK, rec.Code, "path %s", path)
		}
	})

	t.Run("root-only route rejects admin", func(t *testing.T) {
		rec := guardRequest(t, guard, "/licenses", admin)
		assert.Equal(t, http.StatusFound, rec.Code)
	})
}
