package store

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/mickamy/golfstats/internal/model"
	"github.com/mickamy/golfstats/orm"
	"github.com/mickamy/golfstats/scope"
)

const (
	DefaultSearchLimit = 10
	DefaultResultLimit = 50
	MaxResultLimit     = 500
)

// Counts are table totals.
type Counts struct {
	Players     int64 `json:"players"`
	Courses     int64 `json:"courses"`
	Tournaments int64 `json:"tournaments"`
	Results     int64 `json:"tournament_results"`
	YearlyStats int64 `json:"yearly_stats"`
	Rounds      int64 `json:"rounds"`
}

// Total is the sum over all tables.
func (c Counts) Total() int64 {
	return c.Players + c.Courses + c.Tournaments + c.Results + c.YearlyStats + c.Rounds
}

// Counts returns the row count of every table.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	var g errgroup.Group
	count := func(dst *int64, fn func(context.Context) (int64, error)) {
		g.Go(func() error {
			n, err := fn(ctx)
			*dst = n
			return err
		})
	}
	count(&c.Players, model.Players(s.db).Count)
	count(&c.Courses, model.Courses(s.db).Count)
	count(&c.Tournaments, model.Tournaments(s.db).Count)
	count(&c.Results, model.TournamentResults(s.db).Count)
	count(&c.YearlyStats, model.YearlyStats(s.db).Count)
	count(&c.Rounds, model.Rounds(s.db).Count)
	if err := g.Wait(); err != nil {
		return Counts{}, fmt.Errorf("counting rows: %w", err)
	}
	return c, nil
}

// SearchResults groups matches by entity.
type SearchResults struct {
	Players     []model.Player     `json:"players"`
	Tournaments []model.Tournament `json:"tournaments"`
	Courses     []model.Course     `json:"courses"`
}

// Total is the number of matches across entities.
func (r SearchResults) Total() int {
	return len(r.Players) + len(r.Tournaments) + len(r.Courses)
}

// Search looks term up in player names, tournament names and course
// names or locations, at most limit of each.
func (s *Store) Search(ctx context.Context, term string, limit int) (SearchResults, error) {
	term = strings.TrimSpace(term)
	out := SearchResults{Players: []model.Player{}, Tournaments: []model.Tournament{}, Courses: []model.Course{}}
	if term == "" {
		return out, nil
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	var err error
	if out.Players, err = s.Players().Search(ctx, term, scope.Limit(limit)); err != nil {
		return SearchResults{}, fmt.Errorf("searching players: %w", err)
	}
	if out.Tournaments, err = s.Tournaments().List(ctx, scope.Like("tournament_name", term), scope.Limit(limit)); err != nil {
		return SearchResults{}, fmt.Errorf("searching tournaments: %w", err)
	}
	like := "%" + strings.ToLower(term) + "%"
	if out.Courses, err = s.Courses().List(ctx,
		scope.Where("LOWER(course_name) LIKE ? OR LOWER(location) LIKE ?", like, like),
		scope.Limit(limit),
	); err != nil {
		return SearchResults{}, fmt.Errorf("searching courses: %w", err)
	}
	return out, nil
}

// ResultFilter narrows ResultRows. Empty fields do not filter.
type ResultFilter struct {
	Player     string `json:"player,omitempty"`
	Tournament string `json:"tournament,omitempty"`
	Season     int    `json:"season,omitempty"`
	PlayerID   int64  `json:"player_id,omitempty"`
	Limit      int    `json:"limit"`
}

// ResultRow is the flattened joined view of one tournament result.
type ResultRow struct {
	ID              int64    `json:"id"`
	PlayerID        int64    `json:"player_id"`
	PlayerName      string   `json:"player_name"`
	TournamentID    int64    `json:"tournament_id"`
	TournamentName  string   `json:"tournament_name"`
	TournamentDate  *string  `json:"tournament_date"`
	Season          *int     `json:"season"`
	CourseName      *string  `json:"course_name"`
	FinalPosition   *string  `json:"final_position"`
	PositionNumeric *int     `json:"position_numeric"`
	TotalStrokes    *int     `json:"total_strokes"`
	MadeCut         *bool    `json:"made_cut"`
	SGTotal         *float64 `json:"sg_total"`
	SGPutting       *float64 `json:"sg_putting"`
	SGApproach      *float64 `json:"sg_approach"`
	SGOffTheTee     *float64 `json:"sg_off_the_tee"`
}

// NewResultRow flattens a result with Player and Tournament (and the
// tournament's Course) loaded.
func NewResultRow(r model.TournamentResult) ResultRow {
	row := ResultRow{
		ID:              r.ID,
		PlayerID:        r.PlayerID,
		TournamentID:    r.TournamentID,
		FinalPosition:   r.FinalPosition,
		PositionNumeric: r.PositionNumeric,
		TotalStrokes:    r.TotalStrokes,
		MadeCut:         r.MadeCut,
		SGTotal:         r.SGTotal,
		SGPutting:       r.SGPutting,
		SGApproach:      r.SGApproach,
		SGOffTheTee:     r.SGOffTheTee,
	}
	if r.Player != nil {
		row.PlayerName = r.Player.FullName()
	}
	if t := r.Tournament; t != nil {
		row.TournamentName = t.TournamentName
		row.Season = t.Season
		if t.TournamentDate != nil {
			d := t.TournamentDate.Format("2006-01-02")
			row.TournamentDate = &d
		}
		if t.Course != nil {
			row.CourseName = &t.Course.CourseName
		}
	}
	return row
}

// ClampLimit applies the default and maximum result limits.
func ClampLimit(limit, def, upper int) int {
	if limit <= 0 {
		return def
	}
	return min(limit, upper)
}

// ResultRows returns the joined results view, newest tournaments first
// and best finishers first within a tournament.
func (s *Store) ResultRows(ctx context.Context, f ResultFilter) ([]ResultRow, error) {
	q := s.resultQuery(f).
		OrderBy("tournaments.tournament_date IS NULL, tournaments.tournament_date DESC, " +
			"tournament_results.position_numeric IS NULL, tournament_results.position_numeric, tournament_results.id").
		Limit(ClampLimit(f.Limit, DefaultResultLimit, MaxResultLimit)).
		Preload("Player").
		Preload("Tournament")

	results, err := q.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing results: %w", err)
	}
	if err := preloadCourses(ctx, s.db, results); err != nil {
		return nil, err
	}

	rows := make([]ResultRow, len(results))
	for i, r := range results {
		rows[i] = NewResultRow(r)
	}
	return rows, nil
}

// CountResults counts results matching f, ignoring its limit.
func (s *Store) CountResults(ctx context.Context, f ResultFilter) (int64, error) {
	return s.resultQuery(f).Count(ctx)
}

func (s *Store) resultQuery(f ResultFilter) *orm.Query[model.TournamentResult] {
	q := model.TournamentResults(s.db).Join("Player").Join("Tournament")
	if f.Player != "" {
		like := "%" + strings.ToLower(strings.TrimSpace(f.Player)) + "%"
		full := FullNameExpr(s.Dialect(), "players")
		q = q.Where("(LOWER(players.first_name) LIKE ? OR LOWER(players.last_name) LIKE ? OR LOWER("+full+") LIKE ?)",
			like, like, like)
	}
	if f.Tournament != "" {
		q = q.Scopes(scope.Like("tournaments.tournament_name", strings.TrimSpace(f.Tournament)))
	}
	if f.Season != 0 {
		q = q.Where("tournaments.season = ?", f.Season)
	}
	if f.PlayerID != 0 {
		q = q.Where("tournament_results.player_id = ?", f.PlayerID)
	}
	return q
}

// preloadCourses attaches courses to the tournaments already preloaded
// onto results, one query for the whole batch.
func preloadCourses(ctx context.Context, q orm.Querier, results []model.TournamentResult) error {
	var ids []int64
	for _, r := range results {
		if r.Tournament != nil && r.Tournament.CourseID != nil {
			ids = append(ids, *r.Tournament.CourseID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	courses, err := model.Courses(q).Scopes(scope.In("id", ids)).All(ctx)
	if err != nil {
		return fmt.Errorf("loading courses: %w", err)
	}
	byID := make(map[int64]*model.Course, len(courses))
	for i := range courses {
		byID[courses[i].ID] = &courses[i]
	}
	for i := range results {
		if t := results[i].Tournament; t != nil && t.CourseID != nil {
			t.Course = byID[*t.CourseID]
		}
	}
	return nil
}
