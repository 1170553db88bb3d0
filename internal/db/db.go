package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

func init() {
	// modernc.org/sqlite registers as "sqlite", which sqlx does not know about.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

type DB struct {
	Conn *sqlx.DB
}

// New opens the database described by databaseURL. Supported forms:
// postgres://... and sqlite://path/to/file.db
func New(databaseURL string) (*DB, error) {
	driver, dsn, err := parseDatabaseURL(databaseURL)
	if err != nil {
		return nil, err
	}

	dbConn, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("db.New: cannot connect to database: %w", err)
	}

	if driver == "sqlite" {
		// A file-backed sqlite database tolerates exactly one writer.
		dbConn.SetMaxOpenConns(1)
	} else {
		dbConn.SetMaxOpenConns(20)
		dbConn.SetMaxIdleConns(5)
		dbConn.SetConnMaxLifetime(60 * time.Minute)
	}

	return &DB{Conn: dbConn}, nil
}

func (db *DB) Close() error {
	return db.Conn.Close()
}

func parseDatabaseURL(databaseURL string) (driver string, dsn string, err error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return "postgres", databaseURL, nil
	case strings.HasPrefix(databaseURL, "sqlite://"):
		// sqlite://bot.db is relative, sqlite:///var/lib/bot.db is absolute.
		path := strings.TrimPrefix(databaseURL, "sqlite://")
		if path == "" {
			return "", "", fmt.Errorf("db.parseDatabaseURL: sqlite URL has no path: %q", databaseURL)
		}
		return "sqlite", path, nil
	default:
		return "", "", fmt.Errorf("db.parseDatabaseURL: unsupported database URL %q", databaseURL)
	}
}
