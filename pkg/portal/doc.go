// Package portal implements the console's managed-resource surface:
// clusters, catalogs, projects, and users, backed by PostgreSQL.
//
// Every mutating or reading action runs through authz.WithPermission with
// its own role requirement, independently of the route guard in front of
// the pages. The two checks are deliberately redundant.
package portal
