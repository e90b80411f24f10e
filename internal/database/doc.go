// Package database opens the PostgreSQL pool used by the event journal and
// owns the journal schema.
package database
