// Package journal records every event the connection manager dispatches
// into the status_events table.
//
// Events are transformed on the delivery goroutine, buffered, and written
// in batches. The journal is append-only; when the database falls behind,
// the oldest unwritten records are evicted first.
package journal
