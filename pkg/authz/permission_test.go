package authz

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithPermission_NoSession(t *testing.T) {
	tests := []struct {
		name     string
		required RoleSet
	}{
		{name: "empty requirement", required: nil},
		{name: "zero-length requirement", required: RoleSet{}},
		{name: "non-empty requirement", required: RoleSet{RoleAdmin}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			err := WithPermission(nil, tt.required, func() error {
				called = true
				return nil
			})

			// Session presence is checked before any role comparison, even
			// when the requirement is empty.
			assert.ErrorIs(t, err, ErrAuthenticationRequired)
			assert.False(t, called)
		})
	}
}

func TestWithPermission_EmptyRequirementAllowsAnySession(t *testing.T) {
	sessions := []*Session{
		{Username: "alice", Roles: RoleSet{RoleAdmin}},
		{Username: "bob", Roles: RoleSet{RoleMember}},
		{Username: "carol", Roles: RoleSet{}}, // role-less session still passes
	}

	for _, sess := range sessions {
		called := false
		err := WithPermission(sess, RoleSet{}, func() error {
			called = true
			return nil
		})
		require.NoError(t, err)
		assert.True(t, called, "action must run for %s", sess.Username)
	}
}

func TestWithPermission_RoleIntersection(t *testing.T) {
	alice := &Session{Username: "alice", Roles: RoleSet{RoleAdmin}, UID: "7"}

	t.Run("denied without matching role", func(t *testing.T) {
		called := false
		err := WithPermission(alice, RoleSet{RoleRoot}, func() error {
			called = true
			return nil
		})
		assert.ErrorIs(t, err, ErrPermissionDenied)
		assert.False(t, called)
	})

	t.Run("allowed with one matching role", func(t *testing.T) {
		called := false
		err := WithPermission(alice, RoleSet{RoleRoot, RoleAdmin}, func() error {
			called = true
			return nil
		})
		require.NoError(t, err)
		assert.True(t, called)
	})
}

func TestWithPermission_RoleLessSessionDeniedEverywhere(t *testing.T) {
	// A session created while the role service was down has empty roles;
	// every restricted action must deny it.
	sess := &Session{Username: "alice", Roles: RoleSet{}}

	for _, required := range []RoleSet{
		{RoleRoot},
		{RoleAdmin},
		{RoleRoot, RoleAdmin, RoleManager, RoleMember},
	} {
		err := WithPermission(sess, required, func() error { return nil })
		assert.ErrorIs(t, err, ErrPermissionDenied)
	}
}

func TestWithPermission_ActionErrorPropagatesUnmodified(t *testing.T) {
	sess := &Session{Username: "alice", Roles: RoleSet{RoleAdmin}}
	boom := errors.New("cluster delete failed")

	err := WithPermission(sess, RoleSet{RoleAdmin}, func() error { return boom })
	assert.Same(t, boom, err)
}

func TestWithPermission_ActionResultUnmodified(t *testing.T) {
	sess := &Session{Username: "alice", Roles: RoleSet{RoleMember}}

	var got []string
	err := WithPermission(sess, nil, func() error {
		got = []string{"a", "b"}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestCheckPermission(t *testing.T) {
	tests := []struct {
		name     string
		sess     *Session
		required RoleSet
		wantErr  error
	}{
		{name: "nil session empty requirement", sess: nil, required: nil, wantErr: ErrAuthenticationRequired},
		{name: "nil session with requirement", sess: nil, required: RoleSet{RoleRoot}, wantErr: ErrAuthenticationRequired},
		{name: "valid session empty requirement", sess: &Session{}, required: nil, wantErr: nil},
		{name: "matching role", sess: &Session{Roles: RoleSet{RoleManager}}, required: RoleSet{RoleManager}, wantErr: nil},
		{name: "no matching role", sess: &Session{Roles: RoleSet{RoleMember}}, required: RoleSet{RoleRoot}, wantErr: ErrPermissionDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckPermission(tt.sess, tt.required)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestRoleSet_Intersects(t *testing.T) {
	tests := []struct {
		name string
		a, b RoleSet
		want bool
	}{
		{name: "shared role", a: RoleSet{RoleAdmin}, b: RoleSet{RoleRoot, RoleAdmin}, want: true},
		{name: "disjoint", a: RoleSet{RoleAdmin}, b: RoleSet{RoleRoot}, want: false},
		{name: "empty left", a: RoleSet{}, b: RoleSet{RoleRoot}, want: false},
		{name: "empty right", a: RoleSet{RoleRoot}, b: RoleSet{}, want: false},
		{name: "both empty", a: RoleSet{}, b: RoleSet{}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Intersects(tt.b))
		})
	}
}

func TestNewRoleSet_DropsEmptyNames(t *testing.T) {
	set := NewRoleSet([]string{"admin", "", "member"})
	assert.Equal(t, RoleSet{RoleAdmin, RoleMember}, set)
}
