package authz

// RoleName identifies an authorization role granted by the upstream role
// service. Roles carry no ordering or hierarchy; every decision is plain
// set membership.
type RoleName string

const (
	RoleRoot    RoleName = "root"
	RoleAdmin   RoleName = "admin"
	RoleManager RoleName = "manager"
	RoleMember  RoleName = "member"
)

// RoleSet is a set of role names.
type RoleSet []RoleName

// NewRoleSet builds a RoleSet from raw role strings, dropping empties.
func NewRoleSet(names []string) RoleSet {
	set := make(RoleSet, 0, len(names))
	for _, n := range names {
		if n == "" {
			continue
		}
		set = append(set, RoleName(n))
	}
	return set
}

// Strings returns the set as raw strings.
func (rs RoleSet) Strings() []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = string(r)
	}
	return out
}

// Contains reports whether the set contains the given role.
func (rs RoleSet) Contains(role RoleName) bool {
	for _, r := range rs {
		if r == role {
			return true
		}
	}
	return false
}

// Intersects reports whether the two sets share at least one role.
func (rs RoleSet) Intersects(other RoleSet) bool {
	if len(rs) == 0 || len(other) == 0 {
		return false
	}
	member := make(map[RoleName]struct{}, len(rs))
	for _, r := range rs {
		member[r] = struct{}{}
	}
	for _, r := range other {
		if _, ok := member[r]; ok {
			return true
		}
	}
	return false
}
