// Package store persists analysis sessions and settled song records in
// SQLite. One process at a time may hold the database; the state directory
// lock enforces that.
package store
