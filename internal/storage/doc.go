// Package storage is the tabular sink of the pipeline. It wraps a SQLite
// database (mattn/go-sqlite3) and replaces whole tables inside a single
// transaction, serialising concurrent writers per table.
package storage
