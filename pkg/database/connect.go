package database

import (
	"fmt"
	"strings"

	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// ParseConnectionURL maps a connection URL onto a driver name and DSN.
// Supported schemes: sqlite (file path after the scheme) and
// postgres/postgresql (URL passed through to lib/pq).
func ParseConnectionURL(rawURL string) (driverName string, dsn string, err error) {
	switch {
	case strings.HasPrefix(rawURL, "sqlite://"):
		path := strings.TrimPrefix(rawURL, "sqlite://")
		if path == "" {
			return "", "", fmt.Errorf("sqlite connection url %q has no path", rawURL)
		}
		// _busy_timeout keeps writers queueing instead of failing fast
		// when the single-writer lock is held.
		return "sqlite3", path + "?_busy_timeout=5000&_foreign_keys=on", nil
	case strings.HasPrefix(rawURL, "postgres://"), strings.HasPrefix(rawURL, "postgresql://"):
		return "postgres", rawURL, nil
	default:
		return "", "", fmt.Errorf("unsupported database connection url %q", rawURL)
	}
}

// Connect opens the database named by the connection URL, pings it and
// returns it wrapped in the DB interface. The sqlbuilder flavor is set
// as a side effect.
func Connect(rawURL string, logger ectologger.Logger) (DB, error) {
	driverName, dsn, err := ParseConnectionURL(rawURL)
	if err != nil {
		return nil, err
	}

	sqlxDB, err := sqlx.Connect(driverName, dsn)
	if err != nil {
		logger.WithError(err).WithField("driver", driverName).Error("failed to connect to database")
		return nil, err
	}

	if driverName == "sqlite3" {
		// the sqlite driver is not safe for concurrent writes through
		// multiple connections
		sqlxDB.SetMaxOpenConns(1)
	}

	SetFlavorForDriver(driverName)

	return NewDatabaseInstance(sqlxDB, logger), nil
}
