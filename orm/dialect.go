package orm

import (
	"fmt"
	"strings"
)

// Dialect abstracts SQL differences between database engines.
type Dialect interface {
	// Name identifies the engine ("mysql", "postgres", "sqlite").
	Name() string

	// Placeholder returns the bind parameter placeholder for the given
	// 1-based index. MySQL and SQLite return "?" regardless of index;
	// PostgreSQL returns "$1", "$2", etc.
	Placeholder(index int) string

	// QuoteIdent quotes an identifier (table name, column name) to safely
	// handle SQL reserved words. MySQL uses backticks; PostgreSQL and
	// SQLite use double quotes.
	QuoteIdent(name string) string

	// UseReturning reports whether INSERT should use a RETURNING clause
	// to retrieve the auto-generated primary key (PostgreSQL) rather
	// than relying on LastInsertId (MySQL, SQLite).
	UseReturning() bool

	// ReturningClause returns the RETURNING clause appended to INSERT
	// statements. Returns an empty string for dialects that do not
	// use RETURNING.
	ReturningClause(pk string) string

	// UpsertClause returns the conflict clause appended to an INSERT so
	// that rows colliding on the conflict columns update the given
	// columns instead. Quoted identifiers are expected.
	UpsertClause(conflict, update []string) string
}

// MySQL is the Dialect for MySQL / MariaDB.
var MySQL Dialect = mysqlDialect{}

// PostgreSQL is the Dialect for PostgreSQL.
var PostgreSQL Dialect = postgresDialect{}

// SQLite is the Dialect for SQLite 3.24+.
var SQLite Dialect = sqliteDialect{}

type mysqlDialect struct{}

func (mysqlDialect) Name() string                    { return "mysql" }
func (mysqlDialect) Placeholder(_ int) string        { return "?" }
func (mysqlDialect) QuoteIdent(name string) string   { return "`" + name + "`" }
func (mysqlDialect) UseReturning() bool              { return false }
func (mysqlDialect) ReturningClause(_ string) string { return "" }

// MySQL resolves conflicts against any unique key, so conflict only
// supplies a no-op assignment when nothing is to be updated.
func (mysqlDialect) UpsertClause(conflict, update []string) string {
	if len(update) == 0 && len(conflict) > 0 {
		update = conflict[:1]
	}
	sets := make([]string, len(update))
	for i, col := range update {
		sets[i] = fmt.Sprintf("%s = VALUES(%s)", col, col)
	}
	return " ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
}

type postgresDialect struct{}

func (postgresDialect) Name() string                     { return "postgres" }
func (postgresDialect) Placeholder(index int) string     { return fmt.Sprintf("$%d", index) }
func (postgresDialect) QuoteIdent(name string) string    { return `"` + name + `"` }
func (postgresDialect) UseReturning() bool               { return true }
func (postgresDialect) ReturningClause(pk string) string { return ` RETURNING "` + pk + `"` }

func (postgresDialect) UpsertClause(conflict, update []string) string {
	return onConflict(conflict, update)
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string                    { return "sqlite" }
func (sqliteDialect) Placeholder(_ int) string        { return "?" }
func (sqliteDialect) QuoteIdent(name string) string   { return `"` + name + `"` }
func (sqliteDialect) UseReturning() bool              { return false }
func (sqliteDialect) ReturningClause(_ string) string { return "" }

func (sqliteDialect) UpsertClause(conflict, update []string) string {
	return onConflict(conflict, update)
}

func onConflict(conflict, update []string) string {
	if len(update) == 0 {
		return fmt.Sprintf(" ON CONFLICT (%s) DO NOTHING", strings.Join(conflict, ", "))
	}
	sets := make([]string, len(update))
	for i, col := range update {
		sets[i] = fmt.Sprintf("%s = EXCLUDED.%s", col, col)
	}
	return fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET %s", strings.Join(conflict, ", "), strings.Join(sets, ", "))
}

// usesPositional reports whether d binds arguments with plain "?".
func usesPositional(d Dialect) bool {
	return d.Placeholder(1) == "?"
}

// rewritePlaceholders converts ? to dialect-specific placeholders ($1, $2, …).
func rewritePlaceholders(d Dialect, query string) string {
	if usesPositional(d) {
		return query
	}
	var b strings.Builder
	b.Grow(len(query))
	idx := 1
	for i := range len(query) {
		if query[i] == '?' {
			b.WriteString(d.Placeholder(idx))
			idx++
		} else {
			b.WriteByte(query[i])
		}
	}
	return b.String()
}
