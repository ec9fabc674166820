package authz

import (
	"errors"
	"fmt"
)

// Authorization failures are decided as early as possible and never retried:
// a denied action needs a new session or an elevated role, not another
// attempt.
var (
	// ErrAuthenticationRequired means no valid session was attached to the
	// request. The route guard surfaces it as a redirect, the permission
	// wrapper as a returned error.
	ErrAuthenticationRequired = errors.New("authentication required")

	// ErrPermissionDenied means a valid session exists but holds none of the
	// required roles.
	ErrPermissionDenied = errors.New("permission denied")
)

// UpstreamRoleLookupError reports a failed call to the role service. The
// sign-in pipeline recovers from it by issuing a role-less session, so it is
// never surfaced to the end user.
type UpstreamRoleLookupError struct {
	Username   string
	StatusCode int
	Err        error
}

func (e *UpstreamRoleLookupError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("role lookup for %q failed with status %d", e.Username, e.StatusCode)
	}
	return fmt.Sprintf("role lookup for %q failed: %v", e.Username, e.Err)
}

func (e *UpstreamRoleLookupError) Unwrap() error { return e.Err }

// UpstreamAPIError reports a backend failure after permission checks passed.
// It propagates to the UI layer, which renders the extracted message.
type UpstreamAPIError struct {
	Operation string
	Message   string
	Err       error
}

func (e *UpstreamAPIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Operation, e.Message)
	}
	return fmt.Sprintf("%s: %v", e.Operation, e.Err)
}

func (e *UpstreamAPIError) Unwrap() error { return e.Err }
