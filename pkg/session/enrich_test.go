package session

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucirr/dip-console/pkg/authz"
	"github.com/lucirr/dip-console/pkg/observability"
	"github.com/lucirr/dip-console/pkg/roles"
)

// fakeLookup scripts role-service answers per username.
type fakeLookup struct {
	results map[string]*roles.LookupResult
	err     error
	calls   int
}

func (f *fakeLookup) Lookup(ctx context.Context, username string) (*roles.LookupResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if result, ok := f.results[username]; ok {
		return result, nil
	}
	return nil, &authz.UpstreamRoleLookupError{Username: username, StatusCode: 404}
}

func newTestEnricher(lookup RoleLookup) *Enricher {
	return NewEnricher(lookup, observability.NewLogger(observability.ErrorLevel, io.Discard), nil)
}

func TestEnrich_InitialSignIn(t *testing.T) {
	lookup := &fakeLookup{results: map[string]*roles.LookupResult{
		"alice": {Roles: []string{"admin"}, UID: "7"},
	}}
	enricher := newTestEnricher(lookup)

	token := &Token{ID: "t1"}
	got := enricher.Enrich(context.Background(), token,
		&Account{AccessToken: "idp-at"},
		&Profile{Subject: "sub-1", PreferredUsername: "alice", Name: "Alice"})

	assert.Equal(t, "idp-at", got.AccessToken)
	assert.Equal(t, "sub-1", got.Subject)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, "Alice", got.Nickname)
	assert.Equal(t, authz.RoleSet{authz.RoleAdmin}, got.Roles)
	assert.Equal(t, "7", got.UID)
	assert.Equal(t, 1, lookup.calls)
}

func TestEnrich_RefreshLeavesTokenUntouched(t *testing.T) {
	// The upstream would now answer differently, but without an account
	// payload the pipeline must not ask: roles stay as fresh as the last
	// sign-in.
	lookup := &fakeLookup{results: map[string]*roles.LookupResult{
		"alice": {Roles: []string{"root"}, UID: "99"},
	}}
	enricher := newTestEnricher(lookup)

	token := &Token{
		ID:          "t1",
		Username:    "alice",
		Roles:       authz.RoleSet{authz.RoleAdmin},
		UID:         "7",
		AccessToken: "old-at",
	}

	got := enricher.Enrich(context.Background(), token, nil, nil)

	assert.Equal(t, authz.RoleSet{authz.RoleAdmin}, got.Roles)
	assert.Equal(t, "7", got.UID)
	assert.Equal(t, "old-at", got.AccessToken)
	assert.Zero(t, lookup.calls, "refresh must not re-query the role service")
}

func TestEnrich_LookupFailureYieldsRoleLessSession(t *testing.T) {
	lookup := &fakeLookup{err: &authz.UpstreamRoleLookupError{Username: "alice", StatusCode: 500}}
	enricher := newTestEnricher(lookup)

	token := &Token{ID: "t1"}
	got := enricher.Enrich(context.Background(), token,
		&Account{AccessToken: "idp-at"},
		&Profile{PreferredUsername: "alice"})

	// Sign-in still succeeds; the session just carries no roles.
	assert.Equal(t, "idp-at", got.AccessToken)
	assert.Equal(t, "alice", got.Username)
	assert.False(t, got.HasRoles())
	assert.Empty(t, got.UID)
}

func TestEnrich_UIDDefaultsToZero(t *testing.T) {
	lookup := &fakeLookup{results: map[string]*roles.LookupResult{
		"alice": {Roles: []string{"member"}},
	}}
	enricher := newTestEnricher(lookup)

	got := enricher.Enrich(context.Background(), &Token{},
		&Account{}, &Profile{PreferredUsername: "alice"})

	assert.Equal(t, "0", got.UID)
}

func TestEnrich_MissingUsernameSkipsLookup(t *testing.T) {
	lookup := &fakeLookup{}
	enricher := newTestEnricher(lookup)

	got := enricher.Enrich(context.Background(), &Token{},
		&Account{AccessToken: "idp-at"}, &Profile{Name: "No Username"})

	assert.Zero(t, lookup.calls)
	assert.False(t, got.HasRoles())
	assert.Equal(t, "idp-at", got.AccessToken)
}

func TestEnrich_EmptyUpstreamRolesArePopulated(t *testing.T) {
	lookup := &fakeLookup{results: map[string]*roles.LookupResult{
		"alice": {Roles: []string{}, UID: "7"},
	}}
	enricher := newTestEnricher(lookup)

	got := enricher.Enrich(context.Background(), &Token{},
		&Account{}, &Profile{PreferredUsername: "alice"})

	// A successful lookup with zero roles is "populated and empty", not
	// "never populated".
	require.True(t, got.HasRoles())
	assert.Empty(t, got.Roles)
}
