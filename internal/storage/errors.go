package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
)

// SchemaMismatchError reports a row whose width differs from the table's
// data columns.
type SchemaMismatchError struct {
	Table string
	Row   int
	Want  int
	Got   int
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("storage: %s row %d: %d values for %d columns", e.Table, e.Row, e.Got, e.Want)
}

// RowInsertError reports a row the store (or value coercion) rejected. Values
// are the row as handed to the loader.
type RowInsertError struct {
	Table  string
	Row    int
	Column string
	Values []any
	Err    error
}

func (e *RowInsertError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("storage: %s row %d column %q: %v", e.Table, e.Row, e.Column, e.Err)
	}
	return fmt.Sprintf("storage: %s row %d: %v", e.Table, e.Row, e.Err)
}

func (e *RowInsertError) Unwrap() error { return e.Err }

// IsFatal reports whether err should abort a load rather than skip a row.
// Cancellation and dead connections are always fatal; anything else is up to
// the dialect.
func IsFatal(d Dialect, err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone),
		errors.Is(err, sql.ErrTxDone):
		return true
	}
	return d != nil && d.IsFatal(err)
}
