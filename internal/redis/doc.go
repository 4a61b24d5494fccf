// Package redis implements the Redis-backed storage and transport:
// the poll tally counters, the session vote guard, the admin state
// documents, and the Pub/Sub channel that keeps multiple instances'
// displays in sync.
//
// Key schema:
//
//	poll:votes       hash: ny, chicago
//	poll:sessions    set of session ids that already voted
//	admin:override   JSON document
//	admin:hours      JSON document
//	admin:closures   hash: date -> reason
//	admin:tv         JSON document
//	display:events   Pub/Sub channel for display fan-out
package redis
