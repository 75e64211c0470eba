package orm

import (
	"context"
	"database/sql"
	"time"
)

// Rows is the result of a hand-written query: column names in SELECT
// order plus one map per row.
type Rows struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// QueryRows runs a hand-written query with ? placeholders rewritten for
// q's dialect. The caller closes the returned rows.
func QueryRows(ctx context.Context, q Querier, query string, args ...any) (*sql.Rows, error) {
	return q.QueryContext(ctx, rewritePlaceholders(q.dialect(), query), args...) //nolint:wrapcheck // pass through
}

// QueryMaps runs query like QueryRows and returns every row as a
// column-keyed map. []byte values become strings so results serialize
// cleanly.
func QueryMaps(ctx context.Context, q Querier, query string, args ...any) (Rows, error) {
	rows, err := QueryRows(ctx, q, query, args...)
	if err != nil {
		return Rows{}, err
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return Rows{}, err //nolint:wrapcheck // pass through
	}

	out := Rows{Columns: cols, Rows: []map[string]any{}}
	for rows.Next() {
		vals := make([]any, len(cols))
		dest := make([]any, len(cols))
		for i := range vals {
			dest[i] = &vals[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return Rows{}, err //nolint:wrapcheck // pass through
		}
		m := make(map[string]any, len(cols))
		for i, col := range cols {
			m[col] = normalizeValue(vals[i])
		}
		out.Rows = append(out.Rows, m)
	}
	return out, rows.Err() //nolint:wrapcheck // pass through
}

// Exec runs a hand-written statement with placeholders rewritten for q's
// dialect and reports the number of affected rows.
func Exec(ctx context.Context, q Querier, query string, args ...any) (int64, error) {
	res, err := q.ExecContext(ctx, rewritePlaceholders(q.dialect(), query), args...)
	if err != nil {
		return 0, err //nolint:wrapcheck // pass through
	}
	return res.RowsAffected() //nolint:wrapcheck // pass through
}

func normalizeValue(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case time.Time:
		if x.IsZero() {
			return nil
		}
		return x
	default:
		return x
	}
}
