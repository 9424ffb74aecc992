// Package stores provides persistence layer implementations for Formulary.
// It includes SQLite-based run-history storage with WAL mode, connection
// pooling, embedded migrations, and CRUD operations for runs, steps and
// the execution event timeline.
package stores
