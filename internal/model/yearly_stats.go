package model

import (
	"context"
	"database/sql"

	"github.com/mickamy/golfstats/orm"
	"github.com/mickamy/golfstats/scope"
)

// PlayerYearlyStats is a player's season aggregate.
type PlayerYearlyStats struct {
	ID                 int64    `db:"id,primaryKey" json:"id"`
	PlayerID           int64    `db:"player_id" json:"player_id"`
	Year               int      `db:"year" json:"year"`
	RoundsPlayed       *int     `db:"rounds_played" json:"rounds_played,omitempty"`
	FairwayPercentage  *float64 `db:"fairway_percentage" json:"fairway_percentage,omitempty"`
	AvgDistance        *float64 `db:"avg_distance" json:"avg_distance,omitempty"`
	GreensInRegulation *float64 `db:"greens_in_regulation" json:"greens_in_regulation,omitempty"`
	AveragePutts       *float64 `db:"average_putts" json:"average_putts,omitempty"`
	AverageScrambling  *float64 `db:"average_scrambling" json:"average_scrambling,omitempty"`
	AverageScore       *float64 `db:"average_score" json:"average_score,omitempty"`
	Points             *int     `db:"points" json:"points,omitempty"`
	Wins               *int     `db:"wins" json:"wins,omitempty"`
	Top10Finishes      *int     `db:"top_10_finishes" json:"top_10_finishes,omitempty"`
	AvgSGPutts         *float64 `db:"avg_sg_putts" json:"avg_sg_putts,omitempty"`
	AvgSGTotal         *float64 `db:"avg_sg_total" json:"avg_sg_total,omitempty"`
	SGOffTheTee        *float64 `db:"sg_off_the_tee" json:"sg_off_the_tee,omitempty"`
	SGApproach         *float64 `db:"sg_approach" json:"sg_approach,omitempty"`
	SGAroundGreen      *float64 `db:"sg_around_green" json:"sg_around_green,omitempty"`
	PrizeMoney         *float64 `db:"prize_money" json:"prize_money,omitempty"`

	Player *Player `db:"-" json:"player,omitempty"`
}

// YearlyStats returns a new Query for the player_yearly_stats table.
func YearlyStats(db orm.Querier) *orm.Query[PlayerYearlyStats] {
	q := orm.NewQuery[PlayerYearlyStats](
		db, orm.ResolveTableName[PlayerYearlyStats](orm.InferTableName("PlayerYearlyStats")), yearlyStatsColumns, "id",
		scanPlayerYearlyStats, playerYearlyStatsColumnValuePairs, setPlayerYearlyStatsPK,
	)
	q.RegisterPreloader("Player", preloadPlayerYearlyStatsPlayer)
	return q
}

var yearlyStatsColumns = []string{
	"id", "player_id", "year", "rounds_played", "fairway_percentage", "avg_distance",
	"greens_in_regulation", "average_putts", "average_scrambling", "average_score",
	"points", "wins", "top_10_finishes", "avg_sg_putts", "avg_sg_total",
	"sg_off_the_tee", "sg_approach", "sg_around_green", "prize_money",
}

func scanPlayerYearlyStats(rows *sql.Rows) (PlayerYearlyStats, error) {
	cols, _ := rows.Columns()
	var v PlayerYearlyStats
	dest := make([]any, len(cols))
	for i, col := range cols {
		switch col {
		case "id":
			dest[i] = &v.ID
		case "player_id":
			dest[i] = &v.PlayerID
		case "year":
			dest[i] = &v.Year
		case "rounds_played":
			dest[i] = &v.RoundsPlayed
		case "fairway_percentage":
			dest[i] = &v.FairwayPercentage
		case "avg_distance":
			dest[i] = &v.AvgDistance
		case "greens_in_regulation":
			dest[i] = &v.GreensInRegulation
		case "average_putts":
			dest[i] = &v.AveragePutts
		case "average_scrambling":
			dest[i] = &v.AverageScrambling
		case "average_score":
			dest[i] = &v.AverageScore
		case "points":
			dest[i] = &v.Points
		case "wins":
			dest[i] = &v.Wins
		case "top_10_finishes":
			dest[i] = &v.Top10Finishes
		case "avg_sg_putts":
			dest[i] = &v.AvgSGPutts
		case "avg_sg_total":
			dest[i] = &v.AvgSGTotal
		case "sg_off_the_tee":
			dest[i] = &v.SGOffTheTee
		case "sg_approach":
			dest[i] = &v.SGApproach
		case "sg_around_green":
			dest[i] = &v.SGAroundGreen
		case "prize_money":
			dest[i] = &v.PrizeMoney
		default:
			dest[i] = new(any)
		}
	}
	err := rows.Scan(dest...)
	return v, err
}

func playerYearlyStatsColumnValuePairs(v *PlayerYearlyStats, includesPK bool) ([]string, []any) {
	cols := []string{
		"player_id", "year", "rounds_played", "fairway_percentage", "avg_distance",
		"greens_in_regulation", "average_putts", "average_scrambling", "average_score",
		"points", "wins", "top_10_finishes", "avg_sg_putts", "avg_sg_total",
		"sg_off_the_tee", "sg_approach", "sg_around_green", "prize_money",
	}
	vals := []any{
		v.PlayerID, v.Year, v.RoundsPlayed, v.FairwayPercentage, v.AvgDistance,
		v.GreensInRegulation, v.AveragePutts, v.AverageScrambling, v.AverageScore,
		v.Points, v.Wins, v.Top10Finishes, v.AvgSGPutts, v.AvgSGTotal,
		v.SGOffTheTee, v.SGApproach, v.SGAroundGreen, v.PrizeMoney,
	}
	if includesPK {
		return append([]string{"id"}, cols...), append([]any{v.ID}, vals...)
	}
	return cols, vals
}

func setPlayerYearlyStatsPK(v *PlayerYearlyStats, id int64) {
	v.ID = id
}

func preloadPlayerYearlyStatsPlayer(ctx context.Context, db orm.Querier, results []PlayerYearlyStats) error {
	if len(results) == 0 {
		return nil
	}
	ids := make([]int64, len(results))
	for i := range results {
		ids[i] = results[i].PlayerID
	}
	related, err := Players(db).Scopes(scope.In("id", ids)).All(ctx)
	if err != nil {
		return err
	}
	byPK := make(map[int64]*Player, len(related))
	for i := range related {
		byPK[related[i].ID] = &related[i]
	}
	for i := range results {
		results[i].Player = byPK[results[i].PlayerID]
	}
	return nil
}
