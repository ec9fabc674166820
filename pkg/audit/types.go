package audit

import "time"

// EventType categorizes an authentication or authorization decision.
type EventType string

const (
	EventTypeSignIn         EventType = "auth.sign_in"
	EventTypeSignInRoleless EventType = "auth.sign_in_roleless"
	EventTypeSignInFailed   EventType = "auth.sign_in_failed"
	EventTypeLogout         EventType = "auth.logout"

	EventTypeRouteDenied  EventType = "authz.route_denied"
	EventTypeActionDenied EventType = "authz.action_denied"
)

// EventStatus is the outcome of the audited decision.
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// Event is a single audit record. Username may be empty for failures that
// happened before an identity was established.
type Event struct {
	ID        int64       `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`
	Username  string      `json:"username"`
	RequestID string      `json:"request_id"`
	Path      string      `json:"path"`
	Operation string      `json:"operation"`
	Message   string      `json:"message"`
}

// Filter narrows List queries. Zero values mean no constraint.
type Filter struct {
	EventType EventType
	Username  string
	Since     time.Time
	Limit     int
}
