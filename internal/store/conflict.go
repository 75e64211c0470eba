package store

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

const (
	pgUniqueViolation  = "23505"
	mysqlDuplicateKey  = 1062
	mysqlDuplicateName = 1586
)

// classify turns a unique-key violation from any supported driver into
// ErrConflict. Other errors pass through unchanged.
func classify(err error) error {
	if err == nil || !isUniqueViolation(err) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrConflict, err)
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateKey || myErr.Number == mysqlDuplicateName
	}
	return false
}
