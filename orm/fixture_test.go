package orm_test

import (
	"database/sql"

	"github.com/mickamy/golfstats/orm"
)

type Player struct {
	ID          int
	FirstName   string
	LastName    string
	Nationality string
}

var playersColumns = []string{"id", "first_name", "last_name", "nationality"}

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
		default:
			dest[i] = new(any)
		}
	}
	err := rows.Scan(dest...)
	return v, err
}

func playerColumnValuePairs(v *Player, includesPK bool) ([]string, []any) {
	if includesPK {
		return []string{"id", "first_name", "last_name", "nationality"},
			[]any{v.ID, v.FirstName, v.LastName, v.Nationality}
	}
	return []string{"first_name", "last_name", "nationality"},
		[]any{v.FirstName, v.LastName, v.Nationality}
}

func setPlayerPK(v *Player, id int64) {
	v.ID = int(id)
}

func Players(db orm.Querier) *orm.Query[Player] {
	return orm.NewQuery[Player](db, "players", playersColumns, "id", scanPlayer, playerColumnValuePairs, setPlayerPK)
}
