package nlq

import (
	"fmt"
	"strings"

	"github.com/mickamy/golfstats/internal/store"
	"github.com/mickamy/golfstats/orm"
)

// playerToken stands in for the dialect-specific full-name expression.
const playerToken = "{player}"

// SQLTemplate is one of the fixed parameterized queries an intent maps
// onto.
type SQLTemplate struct {
	Name        Kind
	Description string
	SQL         string
	// Fallback runs with the same arguments when SQL returns no rows.
	Fallback string
}

// Render substitutes dialect-specific expressions into the template.
func (t SQLTemplate) Render(d orm.Dialect) (primary, fallback string) {
	expr := store.FullNameExpr(d, "p")
	primary = strings.ReplaceAll(t.SQL, playerToken, expr)
	if t.Fallback != "" {
		fallback = strings.ReplaceAll(t.Fallback, playerToken, expr)
	}
	return primary, fallback
}

type column struct{ result, yearly string }

var categoryColumns = map[Category]column{
	CategoryTotal:       {"r.sg_total", "y.avg_sg_total"},
	CategoryPutting:     {"r.sg_putting", "y.avg_sg_putts"},
	CategoryApproach:    {"r.sg_approach", "y.sg_approach"},
	CategoryOffTheTee:   {"r.sg_off_the_tee", "y.sg_off_the_tee"},
	CategoryAroundGreen: {"r.sg_around_green", "y.sg_around_green"},
	CategoryTeeToGreen:  {"r.sg_tee_to_green", "(y.sg_off_the_tee + y.sg_approach + y.sg_around_green)"},
}

func (c Category) label() string {
	if c == CategoryTotal {
		return "total strokes gained"
	}
	return "strokes gained " + strings.ReplaceAll(string(c), "_", " ")
}

const resultJoins = `FROM tournament_results r
JOIN tournaments t ON t.id = r.tournament_id
JOIN players p ON p.id = r.player_id`

// newest orders by col descending with NULLs last on every dialect.
func newest(col string) string {
	return fmt.Sprintf("CASE WHEN %s IS NULL THEN 1 ELSE 0 END, %s DESC", col, col)
}

// where collects conditions and their arguments in order.
type where struct {
	conds []string
	args  []any
}

func (w *where) add(cond string, args ...any) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(w.conds, " AND ")
}

func likeArg(m *Match) string { return "%" + m.Like + "%" }

func seasonSuffix(season int) string {
	if season == 0 {
		return ""
	}
	return fmt.Sprintf(" in %d", season)
}

// Plan maps in onto its SQL template and arguments. Search intents have
// no SQL; the engine answers them through the store.
func Plan(in Intent) (SQLTemplate, []any) {
	limit := in.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	w := &where{}
	tmpl := SQLTemplate{Name: in.Kind}

	switch in.Kind {
	case KindWinner:
		w.add("LOWER(t.tournament_name) LIKE ?", likeArg(in.Tournament))
		if in.Season != 0 {
			w.add("t.season = ?", in.Season)
		}
		base := `SELECT t.tournament_name, t.season, t.tournament_date, ` + playerToken + ` AS player, r.total_strokes, r.final_position
` + resultJoins + `
` + w.String()
		order := "\nORDER BY " + newest("t.tournament_date") + "\nLIMIT ?"
		tmpl.SQL = base + " AND r.position_numeric = 1" + order
		tmpl.Fallback = base + ` AND r.made_cut AND r.total_strokes = (
  SELECT MIN(r2.total_strokes) FROM tournament_results r2
  WHERE r2.tournament_id = r.tournament_id AND r2.made_cut
)` + order
		tmpl.Description = fmt.Sprintf("Winners of %s%s", in.Tournament.Name, seasonSuffix(in.Season))

	case KindMostWins:
		w.add("r.position_numeric = 1")
		desc := "Players with the most wins"
		if in.Course != nil {
			w.add("c.course_name = ?", in.Course.Name)
			desc += " at " + in.Course.Name
		}
		if in.Tournament != nil {
			w.add("LOWER(t.tournament_name) LIKE ?", likeArg(in.Tournament))
			desc += " in " + in.Tournament.Name
		}
		if in.Season != 0 {
			w.add("t.season = ?", in.Season)
		}
		tmpl.SQL = `SELECT ` + playerToken + ` AS player, COUNT(*) AS wins
` + resultJoins + `
LEFT JOIN courses c ON c.id = t.course_id
` + w.String() + `
GROUP BY p.id, p.first_name, p.last_name
ORDER BY wins DESC, player
LIMIT ?`
		tmpl.Description = desc + seasonSuffix(in.Season)

	case KindMissedCut, KindMadeCut:
		w.add("LOWER(t.tournament_name) LIKE ?", likeArg(in.Tournament))
		if in.Season != 0 {
			w.add("t.season = ?", in.Season)
		}
		verb := "made"
		if in.Kind == KindMissedCut {
			w.add("NOT r.made_cut")
			verb = "missed"
		} else {
			w.add("r.made_cut")
		}
		tmpl.SQL = `SELECT ` + playerToken + ` AS player, t.tournament_name, t.season, r.total_strokes, r.final_position
` + resultJoins + `
` + w.String() + `
ORDER BY ` + newest("t.tournament_date") + `, r.total_strokes, player
LIMIT ?`
		tmpl.Description = fmt.Sprintf("Players who %s the cut at %s%s", verb, in.Tournament.Name, seasonSuffix(in.Season))

	case KindCourseScoring:
		w.add("r.total_strokes IS NOT NULL")
		w.add("r.par_total IS NOT NULL")
		w.add("r.rounds_played > 0")
		if in.Season != 0 {
			w.add("t.season = ?", in.Season)
		}
		dir, desc := "ASC", "Easiest courses by average score to par per round"
		if !in.Ascending {
			dir, desc = "DESC", "Hardest courses by average score to par per round"
		}
		tmpl.SQL = `SELECT c.course_name, c.location, c.par, COUNT(r.id) AS results,
  AVG((r.total_strokes - r.par_total) * 1.0 / r.rounds_played) AS avg_to_par
FROM tournament_results r
JOIN tournaments t ON t.id = r.tournament_id
JOIN courses c ON c.id = t.course_id
` + w.String() + `
GROUP BY c.id, c.course_name, c.location, c.par
ORDER BY avg_to_par ` + dir + `, c.course_name
LIMIT ?`
		tmpl.Description = desc + seasonSuffix(in.Season)

	case KindBestSG:
		col := categoryColumns[in.Category].result
		w.add("r.player_id = ?", in.Player.ID)
		w.add(col + " IS NOT NULL")
		if in.Tournament != nil {
			w.add("LOWER(t.tournament_name) LIKE ?", likeArg(in.Tournament))
		}
		if in.Season != 0 {
			w.add("t.season = ?", in.Season)
		}
		tmpl.SQL = `SELECT t.tournament_name, t.season, t.tournament_date, r.final_position, ` + col + ` AS sg_` + string(in.Category) + `
` + resultJoins + `
` + w.String() + `
ORDER BY ` + col + ` DESC
LIMIT ?`
		tmpl.Description = fmt.Sprintf("Best %s performances by %s%s", in.Category.label(), in.Player.Name, seasonSuffix(in.Season))

	case KindCategoryLeaders:
		col := categoryColumns[in.Category].yearly
		w.add(col + " IS NOT NULL")
		if in.Season != 0 {
			w.add("y.year = ?", in.Season)
		}
		tmpl.SQL = `SELECT ` + playerToken + ` AS player, y.year, ` + col + ` AS sg_` + string(in.Category) + `, y.rounds_played
FROM player_yearly_stats y
JOIN players p ON p.id = y.player_id
` + w.String() + `
ORDER BY ` + col + ` DESC, y.year DESC
LIMIT ?`
		tmpl.Description = fmt.Sprintf("Season leaders in %s%s", in.Category.label(), seasonSuffix(in.Season))

	case KindMoneyLeaders:
		w.add("y.prize_money IS NOT NULL")
		desc := "Prize money leaders"
		if in.Player != nil {
			w.add("y.player_id = ?", in.Player.ID)
			desc = "Prize money for " + in.Player.Name
		}
		if in.Season != 0 {
			w.add("y.year = ?", in.Season)
		}
		tmpl.SQL = `SELECT ` + playerToken + ` AS player, y.year, y.prize_money, y.wins, y.top_10_finishes
FROM player_yearly_stats y
JOIN players p ON p.id = y.player_id
` + w.String() + `
ORDER BY y.prize_money DESC, y.year DESC
LIMIT ?`
		tmpl.Description = desc + seasonSuffix(in.Season)

	case KindPlayerResults:
		w.add("r.player_id = ?", in.Player.ID)
		desc := "Recent results for " + in.Player.Name
		if in.Tournament != nil {
			w.add("LOWER(t.tournament_name) LIKE ?", likeArg(in.Tournament))
			desc += " at " + in.Tournament.Name
		}
		if in.Season != 0 {
			w.add("t.season = ?", in.Season)
		}
		tmpl.SQL = `SELECT t.tournament_name, t.season, t.tournament_date, r.final_position, r.total_strokes, r.made_cut, r.sg_total
` + resultJoins + `
` + w.String() + `
ORDER BY ` + newest("t.tournament_date") + `
LIMIT ?`
		tmpl.Description = desc + seasonSuffix(in.Season)

	case KindLeaderboard:
		// The most recent matching edition only.
		inner := &where{}
		inner.add("LOWER(t2.tournament_name) LIKE ?", likeArg(in.Tournament))
		if in.Season != 0 {
			inner.add("t2.season = ?", in.Season)
		}
		w.args = inner.args
		tmpl.SQL = `SELECT t.tournament_name, t.season, r.final_position, ` + playerToken + ` AS player, r.total_strokes, r.sg_total
` + resultJoins + `
WHERE t.id = (
  SELECT t2.id FROM tournaments t2
  ` + inner.String() + `
  ORDER BY ` + newest("t2.tournament_date") + `, t2.id DESC
  LIMIT 1
)
ORDER BY CASE WHEN r.position_numeric IS NULL THEN 1 ELSE 0 END, r.position_numeric, r.total_strokes, player
LIMIT ?`
		tmpl.Description = fmt.Sprintf("Leaderboard for %s%s", in.Tournament.Name, seasonSuffix(in.Season))

	case KindCourseTournaments:
		w.add("c.course_name = ?", in.Course.Name)
		if in.Season != 0 {
			w.add("t.season = ?", in.Season)
		}
		tmpl.SQL = `SELECT t.tournament_name, t.season, t.tournament_date, c.location, t.purse_millions
FROM tournaments t
JOIN courses c ON c.id = t.course_id
` + w.String() + `
ORDER BY ` + newest("t.tournament_date") + `
LIMIT ?`
		tmpl.Description = "Tournaments played at " + in.Course.Name + seasonSuffix(in.Season)

	default:
		tmpl.Name = KindSearch
		tmpl.Description = fmt.Sprintf("Search for %q", in.Text)
		return tmpl, []any{in.Text, limit}
	}

	return tmpl, append(w.args, limit)
}
