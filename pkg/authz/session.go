package authz

// Session is the externally visible session consumed by the UI and by server
// actions. It is created by the sign-in pipeline, projected from the session
// token on every read, and read-only to everything outside the
// authentication subsystem.
type Session struct {
	SubjectID   string  `json:"subject_id"`
	Username    string  `json:"username"`
	Nickname    string  `json:"nickname"`
	Roles       RoleSet `json:"roles"`
	UID         string  `json:"uid"`
	AccessToken string  `json:"-"` // never serialized to clients
}

// HasAnyRole reports whether the session holds at least one of the required
// roles. An empty requirement means no restriction.
func (s *Session) HasAnyRole(required RoleSet) bool {
	if len(required) == 0 {
		return true
	}
	return s.Roles.Intersects(required)
}
