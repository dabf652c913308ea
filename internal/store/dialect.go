package store

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

type dialect struct {
	name     string
	autoID   string
	numbered bool
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case DriverSQLite:
		return dialect{name: DriverSQLite, autoID: "INTEGER PRIMARY KEY AUTOINCREMENT"}, nil
	case DriverPostgres:
		return dialect{name: DriverPostgres, autoID: "BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY", numbered: true}, nil
	default:
		return dialect{}, fmt.Errorf("unsupported store driver %q", driver)
	}
}

// rebind rewrites '?' placeholders to $1..$n for numbered dialects.
// Queries in this package never contain a literal '?'.
func (d dialect) rebind(query string) string {
	if !d.numbered || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// mapError translates driver unique violations into ErrUniqueViolation,
// keeping the driver error in the chain.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %w", ErrUniqueViolation, err)
	}
	return err
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pgUniqueViolation
	}
	return false
}
