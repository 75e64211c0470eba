package model

import (
	"context"
	"database/sql"
	"time"

	"github.com/mickamy/golfstats/orm"
	"github.com/mickamy/golfstats/scope"
)

type Tournament struct {
	ID             int64      `db:"id,primaryKey" json:"id"`
	ExternalID     *string    `db:"external_id" json:"external_id,omitempty"`
	TournamentName string     `db:"tournament_name" json:"tournament_name"`
	CourseID       *int64     `db:"course_id" json:"course_id,omitempty"`
	TournamentDate *time.Time `db:"tournament_date" json:"tournament_date,omitempty"`
	EndDate        *time.Time `db:"end_date" json:"end_date,omitempty"`
	PurseMillions  *float64   `db:"purse_millions" json:"purse_millions,omitempty"`
	Season         *int       `db:"season" json:"season,omitempty"`
	HasCut         bool       `db:"has_cut" json:"has_cut"`
	FieldSize      *int       `db:"field_size" json:"field_size,omitempty"`
	WinningScore   *int       `db:"winning_score" json:"winning_score,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`

	Course *Course `db:"-" json:"course,omitempty"`
}

// Tournaments returns a new Query for the tournaments table.
func Tournaments(db orm.Querier) *orm.Query[Tournament] {
	q := orm.NewQuery[Tournament](
		db, orm.ResolveTableName[Tournament](orm.InferTableName("Tournament")), tournamentsColumns, "id",
		scanTournament, tournamentColumnValuePairs, setTournamentPK,
	)
	q.RegisterJoin("Course", orm.JoinConfig{
		TargetTable: orm.ResolveTableName[Course]("courses"), TargetColumn: "id",
		SourceTable: orm.ResolveTableName[Tournament]("tournaments"), SourceColumn: "course_id",
	})
	q.RegisterPreloader("Course", preloadTournamentCourse)
	q.RegisterTimestamps([]string{"created_at"}, setTournamentCreatedAt, nil)
	return q
}

var tournamentsColumns = []string{
	"id", "external_id", "tournament_name", "course_id", "tournament_date", "end_date",
	"purse_millions", "season", "has_cut", "field_size", "winning_score", "created_at",
}

func scanTournament(rows *sql.Rows) (Tournament, error) {
	cols, _ := rows.Columns()
	var v Tournament
	dest := make([]any, len(cols))
	for i, col := range cols {
		switch col {
		case "id":
			dest[i] = &v.ID
		case "external_id":
			dest[i] = &v.ExternalID
		case "tournament_name":
			dest[i] = &v.TournamentName
		case "course_id":
			dest[i] = &v.CourseID
		case "tournament_date":
			dest[i] = &v.TournamentDate
		case "end_date":
			dest[i] = &v.EndDate
		case "purse_millions":
			dest[i] = &v.PurseMillions
		case "season":
			dest[i] = &v.Season
		case "has_cut":
			dest[i] = &v.HasCut
		case "field_size":
			dest[i] = &v.FieldSize
		case "winning_score":
			dest[i] = &v.WinningScore
		case "created_at":
			dest[i] = &v.CreatedAt
		default:
			dest[i] = new(any)
		}
	}
	err := rows.Scan(dest...)
	return v, err
}

func tournamentColumnValuePairs(v *Tournament, includesPK bool) ([]string, []any) {
	cols := []string{
		"external_id", "tournament_name", "course_id", "tournament_date", "end_date",
		"purse_millions", "season", "has_cut", "field_size", "winning_score", "created_at",
	}
	vals := []any{
		v.ExternalID, v.TournamentName, v.CourseID, v.TournamentDate, v.EndDate,
		v.PurseMillions, v.Season, v.HasCut, v.FieldSize, v.WinningScore, v.CreatedAt,
	}
	if includesPK {
		return append([]string{"id"}, cols...), append([]any{v.ID}, vals...)
	}
	return cols, vals
}

func setTournamentPK(v *Tournament, id int64) {
	v.ID = id
}

func setTournamentCreatedAt(v *Tournament, now time.Time) {
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now
	}
}

func preloadTournamentCourse(ctx context.Context, db orm.Querier, results []Tournament) error {
	ids := make([]int64, 0, len(results))
	seen := make(map[int64]bool)
	for i := range results {
		if id := results[i].CourseID; id != nil && !seen[*id] {
			seen[*id] = true
			ids = append(ids, *id)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	related, err := Courses(db).Scopes(scope.In("id", ids)).All(ctx)
	if err != nil {
		return err
	}
	byPK := make(map[int64]*Course, len(related))
	for i := range related {
		byPK[related[i].ID] = &related[i]
	}
	for i := range results {
		if id := results[i].CourseID; id != nil {
			results[i].Course = byPK[*id]
		}
	}
	return nil
}
