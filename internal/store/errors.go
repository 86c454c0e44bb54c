package store

import (
	"database/sql"
	"errors"
	"strings"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// IsUnavailable reports whether err indicates the database itself is
// unusable (closed handle, I/O failure, corrupt or unopenable file)
// rather than a per-write conflict. Unavailability aborts a pipeline
// run; a conflict fails only the current item.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, sql.ErrConnDone) {
		return true
	}

	var serr *sqlite.Error
	if errors.As(err, &serr) {
		switch serr.Code() & 0xff {
		case sqlite3.SQLITE_IOERR,
			sqlite3.SQLITE_CANTOPEN,
			sqlite3.SQLITE_NOTADB,
			sqlite3.SQLITE_CORRUPT,
			sqlite3.SQLITE_FULL:
			return true
		}
	}

	// database/sql does not export its closed-handle error.
	return strings.Contains(err.Error(), "database is closed")
}
