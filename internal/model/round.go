package model

import (
	"database/sql"
	"time"

	"github.com/mickamy/golfstats/orm"
)

// Round is a single scored round within a tournament result.
type Round struct {
	ID                 int64      `db:"id,primaryKey" json:"id"`
	ResultID           int64      `db:"result_id" json:"result_id"`
	RoundNumber        int        `db:"round_number" json:"round_number"`
	Score              *int       `db:"score" json:"score,omitempty"`
	StrokesGainedTotal *float64   `db:"strokes_gained_total" json:"strokes_gained_total,omitempty"`
	FairwaysHit        *int       `db:"fairways_hit" json:"fairways_hit,omitempty"`
	GreensInRegulation *int       `db:"greens_in_regulation" json:"greens_in_regulation,omitempty"`
	Putts              *int       `db:"putts" json:"putts,omitempty"`
	DatePlayed         *time.Time `db:"date_played" json:"date_played,omitempty"`
}

// Rounds returns a new Query for the rounds table.
func Rounds(db orm.Querier) *orm.Query[Round] {
	return orm.NewQuery[Round](
		db, orm.ResolveTableName[Round](orm.InferTableName("Round")), roundsColumns, "id",
		scanRound, roundColumnValuePairs, setRoundPK,
	)
}

var roundsColumns = []string{
	"id", "result_id", "round_number", "score", "strokes_gained_total",
	"fairways_hit", "greens_in_regulation", "putts", "date_played",
}

func scanRound(rows *sql.Rows) (Round, error) {
	cols, _ := rows.Columns()
	var v Round
	dest := make([]any, len(cols))
	for i, col := range cols {
		switch col {
		case "id":
			dest[i] = &v.ID
		case "result_id":
			dest[i] = &v.ResultID
		case "round_number":
			dest[i] = &v.RoundNumber
		case "score":
			dest[i] = &v.Score
		case "strokes_gained_total":
			dest[i] = &v.StrokesGainedTotal
		case "fairways_hit":
			dest[i] = &v.FairwaysHit
		case "greens_in_regulation":
			dest[i] = &v.GreensInRegulation
		case "putts":
			dest[i] = &v.Putts
		case "date_played":
			dest[i] = &v.DatePlayed
		default:
			dest[i] = new(any)
		}
	}
	err := rows.Scan(dest...)
	return v, err
}

func roundColumnValuePairs(v *Round, includesPK bool) ([]string, []any) {
	cols := []string{
		"result_id", "round_number", "score", "strokes_gained_total",
		"fairways_hit", "greens_in_regulation", "putts", "date_played",
	}
	vals := []any{
		v.ResultID, v.RoundNumber, v.Score, v.StrokesGainedTotal,
		v.FairwaysHit, v.GreensInRegulation, v.Putts, v.DatePlayed,
	}
	if includesPK {
		return append([]string{"id"}, cols...), append([]any{v.ID}, vals...)
	}
	return cols, vals
}

func setRoundPK(v *Round, id int64) {
	v.ID = id
}
