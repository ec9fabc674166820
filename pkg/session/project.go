package session

import "github.com/lucirr/dip-console/pkg/authz"

// Project maps the enriched token into the externally visible session
// object. Pure copy, no business logic; field presence is checked
// explicitly so an empty-but-present role list is preserved rather than
// treated as absent.
func Project(token *Token) *authz.Session {
	if token == nil {
		return nil
	}
	sess := &authz.Session{
		SubjectID:   token.Subject,
		Username:    token.Username,
		Nickname:    token.Nickname,
		UID:         token.UID,
		AccessToken: token.AccessToken,
		Roles:       authz.RoleSet{},
	}
	if token.HasRoles() {
		sess.Roles = token.Roles
	}
	return sess
}
