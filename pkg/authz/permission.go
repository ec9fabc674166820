package authz

// Action is a backend operation guarded by WithPermission. Results are
// returned through the closure; errors propagate to the caller unmodified.
type Action func() error

// WithPermission guards a single backend action. It is checked independently
// of the route guard because actions can be invoked from multiple routes or
// contexts; the two checks are intentionally redundant.
//
// The session-presence check always runs before any role comparison: calling
// WithPermission with an empty role requirement and no session still fails
// with ErrAuthenticationRequired. An empty or nil requirement with a valid
// session always invokes the action.
func WithPermission(sess *Session, required RoleSet, action Action) error {
	if err := CheckPermission(sess, required); err != nil {
		return err
	}
	return action()
}

// CheckPermission evaluates the guard without invoking an action. It returns
// ErrAuthenticationRequired when no session exists, ErrPermissionDenied when
// the session shares no role with the requirement, and nil otherwise.
func CheckPermission(sess *Session, required RoleSet) error {
	if sess == nil {
		return ErrAuthenticationRequired
	}
	if len(required) == 0 {
		return nil
	}
	if !sess.Roles.Intersects(required) {
		return ErrPermissionDenied
	}
	return nil
}
