// Package oidc integrates the console with its OpenID Connect identity
// provider. The client is explicitly constructed and dependency-injected;
// provider discovery happens once via EnsureInitialized rather than through
// module-level state.
package oidc

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"sync"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/lucirr/dip-console/pkg/observability"
	"github.com/lucirr/dip-console/pkg/session"
)

// Config holds the OpenID Connect client configuration.
type Config struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// Validate checks the OIDC configuration.
func (c Config) Validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("client_id is required")
	}
	if c.ClientSecret == "" {
		return fmt.Errorf("client_secret is required")
	}
	if c.IssuerURL == "" {
		return fmt.Errorf("issuer_url is required")
	}
	if c.RedirectURL == "" {
		return fmt.Errorf("redirect_url is required")
	}
	if len(c.Scopes) == 0 {
		return fmt.Errorf("scopes are required")
	}
	for _, scope := range c.Scopes {
		if scope == gooidc.ScopeOpenID {
			return nil
		}
	}
	return fmt.Errorf("'openid' scope is required for OIDC")
}

// Client performs the authorization-code flow against the identity
// provider.
type Client struct {
	config Config
	logger *observability.Logger

	initOnce sync.Once
	initErr  error

	provider     *gooidc.Provider
	verifier     *gooidc.IDTokenVerifier
	oauth2Config *oauth2.Config
}

// NewClient creates an OIDC client. Provider discovery is deferred to
// EnsureInitialized so construction never blocks on the network.
func NewClient(config Config, logger *observability.Logger) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Client{config: config, logger: logger}, nil
}

// EnsureInitialized performs provider discovery exactly once. Concurrent
// first requests share a single discovery call and its result; repeated
// calls are no-ops returning the cached outcome.
func (c *Client) EnsureInitialized(ctx context.Context) error {
	c.initOnce.Do(func() {
		provider, err := gooidc.NewProvider(ctx, c.config.IssuerURL)
		if err != nil {
			c.initErr = fmt.Errorf("failed to discover OIDC provider: %w", err)
			return
		}

		c.provider = provider
		c.verifier = provider.Verifier(&gooidc.Config{ClientID: c.config.ClientID})
		c.oauth2Config = &oauth2.Config{
			ClientID:     c.config.ClientID,
			ClientSecret: c.config.ClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  c.config.RedirectURL,
			Scopes:       c.config.Scopes,
		}
		c.logger.WithField("issuer", c.config.IssuerURL).Info("OIDC provider discovered")
	})
	return c.initErr
}

// AuthCodeURL builds the authorization redirect for the given state.
func (c *Client) AuthCodeURL(ctx context.Context, state string) (string, error) {
	if err := c.EnsureInitialized(ctx); err != nil {
		return "", err
	}
	return c.oauth2Config.AuthCodeURL(state), nil
}

// HandleCallback exchanges the authorization code, verifies the ID token,
// and extracts the account and profile handed to the enrichment pipeline.
func (c *Client) HandleCallback(ctx context.Context, code string) (*session.Account, *session.Profile, error) {
	if err := c.EnsureInitialized(ctx); err != nil {
		return nil, nil, err
	}
	if code == "" {
		return nil, nil, fmt.Errorf("missing authorization code")
	}

	oauth2Token, err := c.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to exchange token: %w", err)
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		return nil, nil, fmt.Errorf("missing id_token in response")
	}

	idToken, err := c.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to verify ID token: %w", err)
	}

	var claims struct {
		PreferredUsername string `json:"preferred_username"`
		Name              string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, nil, fmt.Errorf("failed to parse claims: %w", err)
	}

	account := &session.Account{
		AccessToken: oauth2Token.AccessToken,
		Provider:    c.config.IssuerURL,
	}
	profile := &session.Profile{
		Subject:           idToken.Subject,
		PreferredUsername: claims.PreferredUsername,
		Name:              claims.Name,
	}
	return account, profile, nil
}

// LogoutURL builds the identity provider's RP-initiated logout endpoint
// with the given post-logout redirect.
func (c *Client) LogoutURL(redirectURI string) string {
	return fmt.Sprintf("%s/protocol/openid-connect/logout?redirect_uri=%s",
		strings.TrimRight(c.config.IssuerURL, "/"), url.QueryEscape(redirectURI))
}

// GenerateState returns a random URL-safe state token for CSRF protection
// of the authorization redirect.
func GenerateState() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
