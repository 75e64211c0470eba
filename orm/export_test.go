package orm

import (
	"context"
	"database/sql"
	"errors"
)

var errMockNotImplemented = errors.New("mock: not implemented")

// TestQuerier records the statements a Query sends instead of running
// them. Reads always fail; writes succeed with Affected rows unless
// ExecErr is set.
type TestQuerier struct {
	D        Dialect
	Queries  []TestQuery
	ExecErr  error
	Affected int64
}

// TestQuery is one captured statement.
type TestQuery struct {
	SQL  string
	Args []any
}

func NewTestQuerier(d Dialect) *TestQuerier {
	return &TestQuerier{D: d}
}

func (tq *TestQuerier) QueryContext(_ context.Context, query string, args ...any) (*sql.Rows, error) {
	tq.record(query, args)
	return nil, errMockNotImplemented
}

func (tq *TestQuerier) ExecContext(_ context.Context, query string, args ...any) (sql.Result, error) {
	tq.record(query, args)
	if tq.ExecErr != nil {
		return nil, tq.ExecErr
	}
	return testResult{affected: tq.Affected}, nil
}

var _ Querier = (*TestQuerier)(nil)

func (tq *TestQuerier) record(query string, args []any) {
	tq.Queries = append(tq.Queries, TestQuery{SQL: query, Args: args})
}

// LastQuery returns the most recent statement. It panics when nothing
// was captured.
func (tq *TestQuerier) LastQuery() TestQuery {
	return tq.Queries[len(tq.Queries)-1]
}

// Statements lists the SQL of every captured statement in order.
func (tq *TestQuerier) Statements() []string {
	out := make([]string, len(tq.Queries))
	for i, q := range tq.Queries {
		out[i] = q.SQL
	}
	return out
}

func (tq *TestQuerier) Reset() { tq.Queries = nil }

func (tq *TestQuerier) dialect() Dialect { return tq.D }

type testResult struct{ affected int64 }

func (testResult) LastInsertId() (int64, error)   { return 0, nil }
func (r testResult) RowsAffected() (int64, error) { return r.affected, nil }
