package db

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/crucial707/aquamarine/internal/config"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Connect opens the store selected by cfg.DBType and verifies it with a ping.
func Connect(cfg config.Config) (*sql.DB, error) {
	var (
		database *sql.DB
		err      error
	)
	switch cfg.DBType {
	case config.DBTypePostgres:
		database, err = sql.Open("postgres", cfg.PostgresURL())
		if err != nil {
			return nil, err
		}
		database.SetMaxOpenConns(cfg.DBMaxOpenConns)
		database.SetMaxIdleConns(cfg.DBMaxIdleConns)
	case config.DBTypeSQLite:
		database, err = OpenSQLite(cfg.DBPath)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("db: unsupported DB_TYPE %q", cfg.DBType)
	}

	if err := database.Ping(); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}

// OpenSQLite opens a sqlite database at path with foreign keys enforced.
// ":memory:" gives a private in-memory database; the pool is pinned to one
// connection so every query sees the same database.
func OpenSQLite(path string) (*sql.DB, error) {
	dsn := sqliteDSN(path)
	database, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	// sqlite serialises writers; one connection avoids SQLITE_BUSY under load
	// and is required for :memory:.
	database.SetMaxOpenConns(1)
	return database, nil
}

func sqliteDSN(path string) string {
	if path == ":memory:" {
		return "file::memory:?_foreign_keys=on"
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return "file:" + path + sep + "_foreign_keys=on&_busy_timeout=5000"
}
