package store

import (
	"database/sql"
	"errors"
)

// ErrOptimisticLock is returned when a conditional update matched no row.
var ErrOptimisticLock = errors.New("optimistic lock failed")

func IsErrNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
