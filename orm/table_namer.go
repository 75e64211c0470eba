package orm

import (
	"github.com/jinzhu/inflection"

	"github.com/mickamy/golfstats/internal/naming"
)

// TableNamer can be implemented by model structs to override the
// auto-derived table name.
type TableNamer interface {
	TableName() string
}

// ResolveTableName returns the table name for type T.
// If T implements TableNamer (value or pointer receiver), that name is used;
// otherwise fallback is returned.
func ResolveTableName[T any](fallback string) string {
	var zero T
	if tn, ok := any(&zero).(TableNamer); ok {
		return tn.TableName()
	}
	return fallback
}

// InferTableName derives a table name from a Go type name: snake_case
// with the final word pluralized. "TournamentResult" → "tournament_results";
// "PlayerYearlyStats" stays plural as "player_yearly_stats".
func InferTableName(typeName string) string {
	snake := naming.CamelToSnake(typeName)
	if snake == "" {
		return ""
	}
	head, last := "", snake
	for i := len(snake) - 1; i >= 0; i-- {
		if snake[i] == '_' {
			head, last = snake[:i+1], snake[i+1:]
			break
		}
	}
	return head + inflection.Plural(last)
}
