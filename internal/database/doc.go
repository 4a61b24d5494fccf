// Package database provides PostgreSQL connectivity for the vote audit trail.
//
// Uses pgx for connection pooling. The audit trail is append-only and
// best-effort: the poll works fine without a database configured.
package database
