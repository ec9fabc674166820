package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucirr/dip-console/pkg/authz"
)

func TestProject_CopiesWithoutTransformation(t *testing.T) {
	token := &Token{
		Subject:     "sub-1",
		Username:    "alice",
		Nickname:    "Alice",
		Roles:       authz.RoleSet{authz.RoleAdmin},
		UID:         "42",
		AccessToken: "idp-at",
	}

	sess := Project(token)
	require.NotNil(t, sess)

	assert.Equal(t, "sub-1", sess.SubjectID)
	assert.Equal(t, "alice", sess.Username)
	assert.Equal(t, "Alice", sess.Nickname)
	assert.Equal(t, authz.RoleSet{authz.RoleAdmin}, sess.Roles)
	assert.Equal(t, "42", sess.UID)
	assert.Equal(t, "idp-at", sess.AccessToken)
}

func TestProject_EmptyButPresentRolesPreserved(t *testing.T) {
	token := &Token{Username: "alice", Roles: authz.RoleSet{}}

	sess := Project(token)
	require.NotNil(t, sess)
	assert.NotNil(t, sess.Roles)
	assert.Empty(t, sess.Roles)
}

func TestProject_UnpopulatedRolesBecomeEmptySet(t *testing.T) {
	sess := Project(&Token{Username: "alice"})
	require.NotNil(t, sess)
	assert.NotNil(t, sess.Roles)
	assert.Empty(t, sess.Roles)
}

func TestProject_NilToken(t *testing.T) {
	assert.Nil(t, Project(nil))
}
