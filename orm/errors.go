package orm

import "errors"

var (
	// ErrNotFound is returned by First and Get when no row matches.
	ErrNotFound = errors.New("orm: not found")

	// ErrNoPrimaryKey is returned by Update for a row whose primary key
	// is still the zero value.
	ErrNoPrimaryKey = errors.New("orm: primary key value is required")

	// ErrUnscoped guards UpdateColumns and Delete against statements
	// that would touch every row of a table.
	ErrUnscoped = errors.New("orm: statement has no WHERE clause")

	// ErrNoRows is returned when an aggregate such as COUNT yields no row.
	ErrNoRows = errors.New("orm: aggregate returned no rows")
)
