// Package audit keeps a PostgreSQL-backed trail of authentication and
// authorization decisions: sign-ins and their enrichment outcome, logouts,
// guard redirects, and per-action permission denials.
//
// Recording is best effort and asynchronous to request outcomes; an
// unavailable audit store never blocks or fails user-facing requests.
package audit
