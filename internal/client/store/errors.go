package store

import (
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrStorageFull means the medium refused a write (disk or quota full).
	ErrStorageFull = errors.New("local storage full")

	// ErrStorageUnavailable means the database could not be opened or read.
	ErrStorageUnavailable = errors.New("local storage unavailable")

	ErrUnknownCollection = errors.New("unknown collection")
)

// mapError tags SQLite failures with the store's sentinel errors while
// keeping the original error in the chain.
func mapError(err error) error {
	if err == nil || errors.Is(err, ErrStorageFull) || errors.Is(err, ErrStorageUnavailable) {
		return err
	}

	var se *sqlite.Error
	if !errors.As(err, &se) {
		return err
	}

	switch se.Code() & 0xff {
	case sqlite3.SQLITE_FULL:
		return fmt.Errorf("%w: %w", ErrStorageFull, err)
	case sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_READONLY, sqlite3.SQLITE_IOERR, sqlite3.SQLITE_NOTADB, sqlite3.SQLITE_CORRUPT:
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return err
}
