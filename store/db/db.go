package db

import (
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	"github.com/tsenart/nap"
	_ "modernc.org/sqlite"
)

// Open connects to the master and replicas listed in dsn (separated by ';')
// and migrates the master.
func Open(driver, dsn string) (*nap.DB, error) {
	conn, err := nap.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if err := Migrate(conn.Master(), driver); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return conn, nil
}

// DSN joins a master and its read replicas into the form Open accepts.
func DSN(master string, replicas ...string) string {
	parts := []string{master}
	for _, replica := range replicas {
		if replica != "" {
			parts = append(parts, replica)
		}
	}

	return strings.Join(parts, ";")
}
