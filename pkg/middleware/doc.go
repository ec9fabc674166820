// Package middleware provides the HTTP middleware chain for the console:
// request identification, session loading, and route guarding.
//
// The chain is ordered. RequestID runs first so every log line can be
// correlated. SessionLoader attaches the projected session to the request
// context on every path, authenticated or not. RouteGuard then enforces the
// route-protection table for page routes, redirecting failures to the
// sign-in page.
package middleware
