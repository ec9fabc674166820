package session

import (
	"context"

	"github.com/lucirr/dip-console/pkg/authz"
	"github.com/lucirr/dip-console/pkg/observability"
	"github.com/lucirr/dip-console/pkg/roles"
)

// Account is the token set handed over by the identity provider. It is
// present only on the initial sign-in redirect and absent on refresh-driven
// invocations; its presence is what marks the account-linking moment.
type Account struct {
	AccessToken string
	Provider    string
}

// Profile carries the ID-token claims the pipeline reads.
type Profile struct {
	Subject           string
	PreferredUsername string
	Name              string
}

// RoleLookup is the upstream role query used during enrichment.
type RoleLookup interface {
	Lookup(ctx context.Context, username string) (*roles.LookupResult, error)
}

// Enricher runs once per sign-in inside the token-exchange callback and
// embeds the user's roles and uid into the session token.
type Enricher struct {
	roles   RoleLookup
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewEnricher creates the token enrichment pipeline. The metrics argument
// may be nil.
func NewEnricher(lookup RoleLookup, logger *observability.Logger, metrics *observability.Metrics) *Enricher {
	return &Enricher{roles: lookup, logger: logger, metrics: metrics}
}

// Enrich applies the sign-in side effects to the session token and returns
// it. This is the single authorization-sensitive write in the auth flow.
//
// Without an account payload (a refresh-driven invocation) the token is
// returned untouched: roles are never re-fetched after the account-linking
// moment, so a user's roles are only as fresh as their last sign-in. That
// staleness is a documented tradeoff, not a bug.
//
// A failed role lookup leaves roles unset rather than aborting sign-in; the
// user still gets a session, just one with no authorization roles.
func (e *Enricher) Enrich(ctx context.Context, token *Token, account *Account, profile *Profile) *Token {
	if account == nil {
		return token
	}

	if account.AccessToken != "" {
		token.AccessToken = account.AccessToken
	}

	if profile != nil {
		if profile.Subject != "" {
			token.Subject = profile.Subject
		}
		token.Username = profile.PreferredUsername
		token.Nickname = profile.Name
	}

	if token.Username == "" {
		e.logger.Warn("Sign-in without preferred username, session will carry no roles")
		e.observeSignIn("role_less")
		return token
	}

	result, err := e.roles.Lookup(ctx, token.Username)
	if err != nil {
		// Recovered locally: empty roles, sign-in proceeds (least privilege).
		e.logger.WithError(err).WithField("username", token.Username).
			Warn("Role lookup failed, issuing role-less session")
		e.observeSignIn("role_less")
		return token
	}

	token.Roles = authz.NewRoleSet(result.Roles)
	token.UID = result.UID
	if token.UID == "" {
		token.UID = "0"
	}

	e.logger.WithFields(map[string]interface{}{
		"username": token.Username,
		"roles":    result.Roles,
		"uid":      token.UID,
	}).Info("Session token enriched")
	e.observeSignIn("success")
	return token
}

func (e *Enricher) observeSignIn(result string) {
	if e.metrics != nil {
		e.metrics.SignInsTotal.WithLabelValues(result).Inc()
	}
}
