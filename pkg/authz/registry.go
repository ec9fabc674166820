package authz

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// RouteRule maps a navigational route to the roles permitted to reach it.
// A path with no rule carries no role restriction: any authenticated session
// may reach it.
type RouteRule struct {
	Path          string  `yaml:"path" json:"path"`
	Title         string  `yaml:"title" json:"title"`
	RequiredRoles RoleSet `yaml:"roles" json:"roles"`
}

// Registry is the single source of truth for route protection. Both the
// server-side route guard and the menu-visibility endpoint consult it by
// reference; it is loaded once at process start and read-only afterwards,
// so no locking is required.
type Registry struct {
	rules map[string]RouteRule
	paths []string // sorted, for deterministic iteration and prefix scans

	// prefixMatch extends matching to nested routes: a request for
	// /clusters/42 matches the /clusters rule. Off by default; with it off,
	// nested routes under a protected path are unprotected unless registered
	// individually.
	prefixMatch bool
}

// NewRegistry builds a registry from the given rules. Duplicate paths are
// rejected so policy can't silently shadow itself.
func NewRegistry(rules []RouteRule, prefixMatch bool) (*Registry, error) {
	r := &Registry{
		rules:       make(map[string]RouteRule, len(rules)),
		prefixMatch: prefixMatch,
	}
	for _, rule := range rules {
		if rule.Path == "" || !strings.HasPrefix(rule.Path, "/") {
			return nil, fmt.Errorf("invalid route rule path %q", rule.Path)
		}
		if _, exists := r.rules[rule.Path]; exists {
			return nil, fmt.Errorf("duplicate route rule for %q", rule.Path)
		}
		r.rules[rule.Path] = rule
		r.paths = append(r.paths, rule.Path)
	}
	sort.Strings(r.paths)
	return r, nil
}

// DefaultRules is the built-in route-protection table for the console.
func DefaultRules() []RouteRule {
	return []RouteRule{
		{Path: "/", Title: "Dashboard", RequiredRoles: RoleSet{RoleRoot, RoleAdmin, RoleManager, RoleMember}},
		{Path: "/clusters", Title: "Clusters", RequiredRoles: RoleSet{RoleRoot, RoleAdmin}},
		{Path: "/catalogs", Title: "Catalogs", RequiredRoles: RoleSet{RoleRoot, RoleAdmin, RoleManager}},
		{Path: "/projects", Title: "Projects", RequiredRoles: RoleSet{RoleRoot, RoleAdmin, RoleManager, RoleMember}},
		{Path: "/users", Title: "Users", RequiredRoles: RoleSet{RoleRoot, RoleAdmin}},
		{Path: "/licenses", Title: "Licenses", RequiredRoles: RoleSet{RoleRoot}},
		{Path: "/dns", Title: "DNS", RequiredRoles: RoleSet{RoleRoot, RoleAdmin}},
		{Path: "/system-links", Title: "System links", RequiredRoles: RoleSet{RoleRoot, RoleAdmin}},
	}
}

// LoadRulesFile reads a YAML route-rule table, replacing the built-in
// defaults. The file is read once at startup.
func LoadRulesFile(path string) ([]RouteRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read route rules: %w", err)
	}
	var doc struct {
		Routes []RouteRule `yaml:"routes"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse route rules: %w", err)
	}
	if len(doc.Routes) == 0 {
		return nil, fmt.Errorf("route rules file %q defines no routes", path)
	}
	return doc.Routes, nil
}

// Lookup finds the rule governing the given request path. The second return
// is false when no rule applies, meaning the path is public to any
// authenticated session.
func (r *Registry) Lookup(path string) (RouteRule, bool) {
	path = normalizePath(path)
	if rule, ok := r.rules[path]; ok {
		return rule, true
	}
	if !r.prefixMatch {
		return RouteRule{}, false
	}
	// Longest registered prefix wins. Root is excluded: "/" prefixes every
	// path and would swallow the whole table.
	best := ""
	for _, p := range r.paths {
		if p == "/" {
			continue
		}
		if strings.HasPrefix(path, p+"/") && len(p) > len(best) {
			best = p
		}
	}
	if best == "" {
		return RouteRule{}, false
	}
	return r.rules[best], true
}

// Allowed reports whether a session holding the given roles may reach path.
// Paths without a rule are allowed; otherwise the session must share at
// least one role with the rule.
func (r *Registry) Allowed(path string, roles RoleSet) bool {
	rule, ok := r.Lookup(path)
	if !ok {
		return true
	}
	return roles.Intersects(rule.RequiredRoles)
}

// VisibleRoutes returns the rules a session holding the given roles may
// reach, in path order. It drives menu rendering only; visibility is
// advisory and every route stays enforced by the guard and the permission
// wrapper.
func (r *Registry) VisibleRoutes(roles RoleSet) []RouteRule {
	visible := make([]RouteRule, 0, len(r.paths))
	for _, p := range r.paths {
		rule := r.rules[p]
		if roles.Intersects(rule.RequiredRoles) {
			visible = append(visible, rule)
		}
	}
	return visible
}

// Rules returns every registered rule in path order.
func (r *Registry) Rules() []RouteRule {
	out := make([]RouteRule, 0, len(r.paths))
	for _, p := range r.paths {
		out = append(out, r.rules[p])
	}
	return out
}

func normalizePath(path string) string {
	if path == "" {
		return "/"
	}
	if len(path) > 1 && strings.HasSuffix(path, "/") {
		path = strings.TrimRight(path, "/")
	}
	return path
}
