package model

import (
	"context"
	"database/sql"

	"github.com/mickamy/golfstats/orm"
	"github.com/mickamy/golfstats/scope"
)

// TournamentResult is one player's finish in one tournament.
type TournamentResult struct {
	ID               int64    `db:"id,primaryKey" json:"id"`
	TournamentID     int64    `db:"tournament_id" json:"tournament_id"`
	PlayerID         int64    `db:"player_id" json:"player_id"`
	ExternalPlayerID *string  `db:"external_player_id" json:"external_player_id,omitempty"`
	TotalStrokes     *int     `db:"total_strokes" json:"total_strokes,omitempty"`
	ParTotal         *int     `db:"par_total" json:"par_total,omitempty"`
	RoundsPlayed     *int     `db:"rounds_played" json:"rounds_played,omitempty"`
	MadeCut          *bool    `db:"made_cut" json:"made_cut,omitempty"`
	FinalPosition    *string  `db:"final_position" json:"final_position,omitempty"`
	PositionNumeric  *int     `db:"position_numeric" json:"position_numeric,omitempty"`
	SGPutting        *float64 `db:"sg_putting" json:"sg_putting,omitempty"`
	SGAroundGreen    *float64 `db:"sg_around_green" json:"sg_around_green,omitempty"`
	SGApproach       *float64 `db:"sg_approach" json:"sg_approach,omitempty"`
	SGOffTheTee      *float64 `db:"sg_off_the_tee" json:"sg_off_the_tee,omitempty"`
	SGTeeToGreen     *float64 `db:"sg_tee_to_green" json:"sg_tee_to_green,omitempty"`
	SGTotal          *float64 `db:"sg_total" json:"sg_total,omitempty"`
	DKPoints         *float64 `db:"dk_points" json:"dk_points,omitempty"`
	FDPoints         *float64 `db:"fd_points" json:"fd_points,omitempty"`
	SDPoints         *float64 `db:"sd_points" json:"sd_points,omitempty"`

	Player     *Player     `db:"-" json:"player,omitempty"`
	Tournament *Tournament `db:"-" json:"tournament,omitempty"`
	Rounds     []Round     `db:"-" json:"rounds,omitempty"`
}

// TournamentResults returns a new Query for the tournament_results table.
func TournamentResults(db orm.Querier) *orm.Query[TournamentResult] {
	q := orm.NewQuery[TournamentResult](
		db, orm.ResolveTableName[TournamentResult](orm.InferTableName("TournamentResult")), tournamentResultsColumns, "id",
		scanTournamentResult, tournamentResultColumnValuePairs, setTournamentResultPK,
	)
	q.RegisterJoin("Player", orm.JoinConfig{
		TargetTable: orm.ResolveTableName[Player]("players"), TargetColumn: "id",
		SourceTable: "tournament_results", SourceColumn: "player_id",
	})
	q.RegisterJoin("Tournament", orm.JoinConfig{
		TargetTable: orm.ResolveTableName[Tournament]("tournaments"), TargetColumn: "id",
		SourceTable: "tournament_results", SourceColumn: "tournament_id",
	})
	q.RegisterPreloader("Player", preloadTournamentResultPlayer)
	q.RegisterPreloader("Tournament", preloadTournamentResultTournament)
	q.RegisterPreloader("Rounds", preloadTournamentResultRounds)
	return q
}

var tournamentResultsColumns = []string{
	"id", "tournament_id", "player_id", "external_player_id", "total_strokes", "par_total",
	"rounds_played", "made_cut", "final_position", "position_numeric",
	"sg_putting", "sg_around_green", "sg_approach", "sg_off_the_tee", "sg_tee_to_green", "sg_total",
	"dk_points", "fd_points", "sd_points",
}

func scanTournamentResult(rows *sql.Rows) (TournamentResult, error) {
	cols, _ := rows.Columns()
	var v TournamentResult
	dest := make([]any, len(cols))
	for i, col := range cols {
		switch col {
		case "id":
			dest[i] = &v.ID
		case "tournament_id":
			dest[i] = &v.TournamentID
		case "player_id":
			dest[i] = &v.PlayerID
		case "external_player_id":
			dest[i] = &v.ExternalPlayerID
		case "total_strokes":
			dest[i] = &v.TotalStrokes
		case "par_total":
			dest[i] = &v.ParTotal
		case "rounds_played":
			dest[i] = &v.RoundsPlayed
		case "made_cut":
			dest[i] = &v.MadeCut
		case "final_position":
			dest[i] = &v.FinalPosition
		case "position_numeric":
			dest[i] = &v.PositionNumeric
		case "sg_putting":
			dest[i] = &v.SGPutting
		case "sg_around_green":
			dest[i] = &v.SGAroundGreen
		case "sg_approach":
			dest[i] = &v.SGApproach
		case "sg_off_the_tee":
			dest[i] = &v.SGOffTheTee
		case "sg_tee_to_green":
			dest[i] = &v.SGTeeToGreen
		case "sg_total":
			dest[i] = &v.SGTotal
		case "dk_points":
			dest[i] = &v.DKPoints
		case "fd_points":
			dest[i] = &v.FDPoints
		case "sd_points":
			dest[i] = &v.SDPoints
		default:
			dest[i] = new(any)
		}
	}
	err := rows.Scan(dest...)
	return v, err
}

func tournamentResultColumnValuePairs(v *TournamentResult, includesPK bool) ([]string, []any) {
	cols := []string{
		"tournament_id", "player_id", "external_player_id", "total_strokes", "par_total",
		"rounds_played", "made_cut", "final_position", "position_numeric",
		"sg_putting", "sg_around_green", "sg_approach", "sg_off_the_tee", "sg_tee_to_green", "sg_total",
		"dk_points", "fd_points", "sd_points",
	}
	vals := []any{
		v.TournamentID, v.PlayerID, v.ExternalPlayerID, v.TotalStrokes, v.ParTotal,
		v.RoundsPlayed, v.MadeCut, v.FinalPosition, v.PositionNumeric,
		v.SGPutting, v.SGAroundGreen, v.SGApproach, v.SGOffTheTee, v.SGTeeToGreen, v.SGTotal,
		v.DKPoints, v.FDPoints, v.SDPoints,
	}
	if includesPK {
		return append([]string{"id"}, cols...), append([]any{v.ID}, vals...)
	}
	return cols, vals
}

func setTournamentResultPK(v *TournamentResult, id int64) {
	v.ID = id
}

func preloadTournamentResultPlayer(ctx context.Context, db orm.Querier, results []TournamentResult) error {
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

func preloadTournamentResultTournament(ctx context.Context, db orm.Querier, results []TournamentResult) error {
	if len(results) == 0 {
		return nil
	}
	ids := make([]int64, len(results))
	for i := range results {
		ids[i] = results[i].TournamentID
	}
	related, err := Tournaments(db).Scopes(scope.In("id", ids)).All(ctx)
	if err != nil {
		return err
	}
	byPK := make(map[int64]*Tournament, len(related))
	for i := range related {
		byPK[related[i].ID] = &related[i]
	}
	for i := range results {
		results[i].Tournament = byPK[results[i].TournamentID]
	}
	return nil
}

func preloadTournamentResultRounds(ctx context.Context, db orm.Querier, results []TournamentResult) error {
	if len(results) == 0 {
		return nil
	}
	ids := make([]int64, len(results))
	for i := range results {
		ids[i] = results[i].ID
	}
	related, err := Rounds(db).Scopes(scope.In("result_id", ids)).OrderBy("round_number").All(ctx)
	if err != nil {
		return err
	}
	byFK := make(map[int64][]Round)
	for _, r := range related {
		byFK[r.ResultID] = append(byFK[r.ResultID], r)
	}
	for i := range results {
		results[i].Rounds = byFK[results[i].ID]
	}
	return nil
}
