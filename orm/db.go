package orm

import (
	"context"
	"database/sql"
	"time"
)

// Querier is what query factories run against: a *DB, a *Tx, or a test
// double that records statements.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	dialect() Dialect
}

// QueryEvent describes one statement after it ran.
type QueryEvent struct {
	Query    string
	Args     []any
	Duration time.Duration
	Err      error
}

// Logger receives every statement run through a DB built with Debug and
// the transactions it opens.
type Logger interface {
	Log(ctx context.Context, e QueryEvent)
}

// DialectOf returns the Dialect a Querier was opened with.
func DialectOf(q Querier) Dialect { return q.dialect() }

type execer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// conn is the part DB and Tx share: dialect and timed, logged calls.
type conn struct {
	ex     execer
	d      Dialect
	logger Logger
}

func (c conn) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := c.ex.QueryContext(ctx, query, args...)
	c.log(ctx, query, args, start, err)
	return rows, err //nolint:wrapcheck // thin wrapper
}

func (c conn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	res, err := c.ex.ExecContext(ctx, query, args...)
	c.log(ctx, query, args, start, err)
	return res, err //nolint:wrapcheck // thin wrapper
}

func (c conn) log(ctx context.Context, query string, args []any, start time.Time, err error) {
	if c.logger == nil {
		return
	}
	c.logger.Log(ctx, QueryEvent{Query: query, Args: args, Duration: time.Since(start), Err: err})
}

func (c conn) dialect() Dialect { return c.d }

// DB wraps *sql.DB with a Dialect.
type DB struct {
	conn
	sqlDB *sql.DB
}

func New(db *sql.DB, d Dialect) *DB {
	return &DB{conn: conn{ex: db, d: d}, sqlDB: db}
}

// Debug returns a copy of db that reports every statement to l.
func (db *DB) Debug(l Logger) *DB {
	c := db.conn
	c.logger = l
	return &DB{conn: c, sqlDB: db.sqlDB}
}

// PingContext verifies the connection is alive.
func (db *DB) PingContext(ctx context.Context) error { return db.sqlDB.PingContext(ctx) } //nolint:wrapcheck // thin wrapper

// Stats reports connection pool statistics.
func (db *DB) Stats() sql.DBStats { return db.sqlDB.Stats() }

func (db *DB) Begin(ctx context.Context) (*Tx, error) {
	tx, err := db.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err //nolint:wrapcheck // thin wrapper
	}
	return &Tx{conn: conn{ex: tx, d: db.d, logger: db.logger}, sqlTx: tx}, nil
}

// Transaction commits when fn returns nil and rolls back when it
// returns an error or panics.
func (db *DB) Transaction(ctx context.Context, fn func(tx *Tx) error) (err error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (db *DB) Close() error { return db.sqlDB.Close() } //nolint:wrapcheck // thin wrapper

// Tx wraps *sql.Tx with the Dialect and Logger of the DB that began it.
type Tx struct {
	conn
	sqlTx *sql.Tx
}

func (tx *Tx) Commit() error { return tx.sqlTx.Commit() } //nolint:wrapcheck // thin wrapper

func (tx *Tx) Rollback() error { return tx.sqlTx.Rollback() } //nolint:wrapcheck // thin wrapper

// InTransaction runs fn inside a transaction on q. A *DB opens a new
// transaction; a *Tx is reused so callers compose without nesting.
// Any other Querier runs fn directly against itself.
func InTransaction(ctx context.Context, q Querier, fn func(q Querier) error) error {
	switch v := q.(type) {
	case *DB:
		return v.Transaction(ctx, func(tx *Tx) error { return fn(tx) })
	default:
		return fn(q)
	}
}
