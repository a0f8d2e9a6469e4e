// Package sqlite stores the owner directory and processed meetings in a
// modernc.org/sqlite database migrated with goose.
package sqlite
