// Package authz implements role-based access control for the console.
//
// # Overview
//
// Access decisions are pure set membership over opaque role names issued by
// the upstream role service. The package holds the four pieces every other
// layer consumes:
//
//   - RoleSet: role-name sets with intersection semantics, no hierarchy
//   - Registry: the static route-protection table, one source of truth for
//     both the server-side route guard and client menu visibility
//   - Session: the projected, read-only session object
//   - WithPermission: the per-action guard wrapped around every backend
//     list/create/update/delete operation
//
// # Defense in Depth
//
// The route guard and WithPermission enforce the same table redundantly. The
// wrapper is the last line of defense when a route-level check was bypassed,
// skipped, or misconfigured:
//
//	err := authz.WithPermission(sess, authz.RoleSet{authz.RoleRoot, authz.RoleAdmin}, func() error {
//		return store.DeleteCluster(ctx, id)
//	})
//
// # Error Taxonomy
//
//	ErrAuthenticationRequired - no valid session; redirect or returned error
//	ErrPermissionDenied       - valid session, insufficient roles
//	UpstreamRoleLookupError   - role service failed; recovered as empty roles
//	UpstreamAPIError          - backend failure after permission checks pass
//
// Authorization failures are never retried.
package authz
