// Package roles implements the client for the upstream user-role service.
//
// Each sign-in triggers exactly one lookup: no retries, no caching. A failed
// lookup is recovered by the sign-in pipeline as an empty role set, so the
// sign-in path stays available while the role service is degraded.
package roles

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lucirr/dip-console/pkg/authz"
	"github.com/lucirr/dip-console/pkg/observability"
)

// DefaultTimeout bounds the blocking lookup call during sign-in. A timeout
// is treated identically to any other upstream failure.
const DefaultTimeout = 5 * time.Second

// Config holds role-service connection settings.
type Config struct {
	// BaseURL is the role service root, e.g. https://roles.internal.example.
	BaseURL string
	// ServiceUser and ServiceToken form the static Basic-auth service
	// account credential.
	ServiceUser  string
	ServiceToken string
	// TenantHostname is sent as the X-Hostname header.
	TenantHostname string
	Timeout        time.Duration
}

// Validate checks required connection settings.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("role service base URL is required")
	}
	if c.ServiceUser == "" || c.ServiceToken == "" {
		return fmt.Errorf("role service credentials are required")
	}
	return nil
}

// LookupResult is the role service's answer for one username.
type LookupResult struct {
	Roles []string `json:"roles"`
	UID   string   `json:"uid"`
}

// Client calls the upstream role service.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *observability.Logger
	metrics    *observability.Metrics
}

// NewClient creates a role-lookup client. The metrics argument may be nil.
func NewClient(config Config, logger *observability.Logger, metrics *observability.Metrics) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		metrics:    metrics,
	}, nil
}

// Lookup performs a single synchronous GET {base}/users/{username}/roles
// call. Any non-2xx response, network error, or malformed body fails with an
// *authz.UpstreamRoleLookupError.
func (c *Client) Lookup(ctx context.Context, username string) (*LookupResult, error) {
	if username == "" {
		return nil, &authz.UpstreamRoleLookupError{Err: fmt.Errorf("username is empty")}
	}

	start := time.Now()
	result, err := c.lookup(ctx, username)
	if c.metrics != nil {
		c.metrics.RoleLookupDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			c.metrics.RoleLookupsTotal.WithLabelValues("failure").Inc()
		} else {
			c.metrics.RoleLookupsTotal.WithLabelValues("success").Inc()
		}
	}
	if err != nil {
		c.logger.WithError(err).WithField("username", username).Warn("Role lookup failed")
		return nil, err
	}
	return result, nil
}

func (c *Client) lookup(ctx context.Context, username string) (*LookupResult, error) {
	endpoint := fmt.Sprintf("%s/users/%s/roles",
		strings.TrimRight(c.config.BaseURL, "/"), url.PathEscape(username))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &authz.UpstreamRoleLookupError{Username: username, Err: err}
	}
	req.SetBasicAuth(c.config.ServiceUser, c.config.ServiceToken)
	req.Header.Set("X-Hostname", c.config.TenantHostname)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &authz.UpstreamRoleLookupError{Username: username, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &authz.UpstreamRoleLookupError{Username: username, StatusCode: resp.StatusCode}
	}

	var result LookupResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &authz.UpstreamRoleLookupError{
			Username: username,
			Err:      fmt.Errorf("malformed response body: %w", err),
		}
	}
	return &result, nil
}
