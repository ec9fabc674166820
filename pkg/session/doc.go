// Package session owns the session token lifecycle: enrichment at sign-in,
// projection on every read, JWT signing for the browser cookie, and the
// Redis-backed record that lets logout revoke a token before it expires.
package session
