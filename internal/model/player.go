package model

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/mickamy/golfstats/orm"
	"github.com/mickamy/golfstats/scope"
)

// DefaultNationality is assigned to players loaded from sources that do
// not carry a nationality column.
const DefaultNationality = "USA"

type Player struct {
	ID             int64      `db:"id,primaryKey" json:"id"`
	FirstName      string     `db:"first_name" json:"first_name"`
	LastName       string     `db:"last_name" json:"last_name"`
	Nationality    string     `db:"nationality" json:"nationality"`
	BirthDate      *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	TurnedProDate  *time.Time `db:"turned_pro_date" json:"turned_pro_date,omitempty"`
	HeightCM       *int       `db:"height_cm" json:"height_cm,omitempty"`
	WorldRanking   *int       `db:"world_ranking" json:"world_ranking,omitempty"`
	CareerEarnings *float64   `db:"career_earnings" json:"career_earnings,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`

	YearlyStats []PlayerYearlyStats `db:"-" json:"yearly_stats,omitempty"`
}

// FullName joins first and last name the way source files spell it.
func (p Player) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// SplitName splits a display name into first name and the remainder.
// "Tiger Woods" → ("Tiger", "Woods"); "Charles Howell III" →
// ("Charles", "Howell III"); a single token has an empty last name.
func SplitName(full string) (first, last string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}

// Players returns a new Query for the players table.
func Players(db orm.Querier) *orm.Query[Player] {
	q := orm.NewQuery[Player](
		db, orm.ResolveTableName[Player](orm.InferTableName("Player")), playersColumns, "id",
		scanPlayer, playerColumnValuePairs, setPlayerPK,
	)
	q.RegisterPreloader("YearlyStats", preloadPlayerYearlyStats)
	q.RegisterTimestamps([]string{"created_at"}, setPlayerCreatedAt, setPlayerUpdatedAt)
	return q
}

var playersColumns = []string{
	"id", "first_name", "last_name", "nationality", "birth_date", "turned_pro_date",
	"height_cm", "world_ranking", "career_earnings", "created_at", "updated_at",
}

func scanPlayer(rows *sql.Rows) (Player, error) {
	cols, _ := rows.Columns()
	var v Player
	dest := make([]any, len(cols))
	for i, col := range cols {
		switch col {
		case "id":
			dest[i] = &v.ID
		case "first_name":
			dest[i] = &v.FirstName
		case "last_name":
			dest[i] = &v.LastName
		case "nationality":
			dest[i] = &v.Nationality
		case "birth_date":
			dest[i] = &v.BirthDate
		case "turned_pro_date":
			dest[i] = &v.TurnedProDate
		case "height_cm":
			dest[i] = &v.HeightCM
		case "world_ranking":
			dest[i] = &v.WorldRanking
		case "career_earnings":
			dest[i] = &v.CareerEarnings
		case "created_at":
			dest[i] = &v.CreatedAt
		case "updated_at":
			dest[i] = &v.UpdatedAt
		default:
			dest[i] = new(any)
		}
	}
	err := rows.Scan(dest...)
	return v, err
}

func playerColumnValuePairs(v *Player, includesPK bool) ([]string, []any) {
	cols := []string{
		"first_name", "last_name", "nationality", "birth_date", "turned_pro_date",
		"height_cm", "world_ranking", "career_earnings", "created_at", "updated_at",
	}
	vals := []any{
		v.FirstName, v.LastName, v.Nationality, v.BirthDate, v.TurnedProDate,
		v.HeightCM, v.WorldRanking, v.CareerEarnings, v.CreatedAt, v.UpdatedAt,
	}
	if includesPK {
		return append([]string{"id"}, cols...), append([]any{v.ID}, vals...)
	}
	return cols, vals
}

func setPlayerPK(v *Player, id int64) {
	v.ID = id
}

func setPlayerCreatedAt(v *Player, now time.Time) {
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now
	}
}

func setPlayerUpdatedAt(v *Player, now time.Time) {
	v.UpdatedAt = now
}

func preloadPlayerYearlyStats(ctx context.Context, db orm.Querier, results []Player) error {
	if len(results) == 0 {
		return nil
	}
	ids := make([]int64, len(results))
	for i := range results {
		ids[i] = results[i].ID
	}
	related, err := YearlyStats(db).Scopes(scope.In("player_id", ids)).OrderBy("year DESC").All(ctx)
	if err != nil {
		return err
	}
	byFK := make(map[int64][]PlayerYearlyStats)
	for _, r := range related {
		byFK[r.PlayerID] = append(byFK[r.PlayerID], r)
	}
	for i := range results {
		results[i].YearlyStats = byFK[results[i].ID]
	}
	return nil
}
