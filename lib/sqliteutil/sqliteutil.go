package sqliteutil

import (
	"database/sql"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "modernc.org/sqlite"
)

// OpenDB opens (creating if necessary) a sqlite database and wraps it
// in a bun.DB. Pass ":memory:" for throwaway test databases.
func OpenDB(path string) (*bun.DB, error) {
	sqldb, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// modernc sqlite does not tolerate concurrent writers on one file,
	// a single pooled connection sidesteps SQLITE_BUSY entirely
	sqldb.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 10000;",
	} {
		_, err = sqldb.Exec(pragma)
		if err != nil {
			sqldb.Close()
			return nil, err
		}
	}

	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}
