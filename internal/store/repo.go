package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mickamy/golfstats/internal/model"
	"github.com/mickamy/golfstats/orm"
	"github.com/mickamy/golfstats/scope"
)

// Repository wraps a model query factory with CRUD by primary key.
type Repository[T any] struct {
	db       orm.Querier
	query    func(orm.Querier) *orm.Query[T]
	order    string
	validate func(*T) error
	refs     func(*T) []reference
}

// reference is a foreign key that must point at an existing row.
type reference struct {
	field string
	table string
	id    *int64
}

func (r *Repository[T]) Create(ctx context.Context, t *T) error {
	if err := r.check(ctx, t); err != nil {
		return err
	}
	return classify(r.query(r.db).Create(ctx, t))
}

// Get loads one row by id with the named preloads. Missing rows report
// orm.ErrNotFound.
func (r *Repository[T]) Get(ctx context.Context, id int64, preloads ...string) (T, error) {
	q := r.query(r.db).Where("id = ?", id)
	for _, p := range preloads {
		q = q.Preload(p)
	}
	return q.First(ctx)
}

// List returns rows in the repository's default order.
func (r *Repository[T]) List(ctx context.Context, scopes ...scope.Scope) ([]T, error) {
	return r.query(r.db).Scopes(scopes...).OrderBy(r.order).All(ctx)
}

// ListWith is List with preloads.
func (r *Repository[T]) ListWith(ctx context.Context, preloads []string, scopes ...scope.Scope) ([]T, error) {
	q := r.query(r.db).Scopes(scopes...).OrderBy(r.order)
	for _, p := range preloads {
		q = q.Preload(p)
	}
	return q.All(ctx)
}

func (r *Repository[T]) Count(ctx context.Context, scopes ...scope.Scope) (int64, error) {
	return r.query(r.db).Scopes(scopes...).Count(ctx)
}

// Update writes every column of t, whose primary key must already be
// id. The row must exist.
func (r *Repository[T]) Update(ctx context.Context, id int64, t *T) error {
	if err := r.exists(ctx, id); err != nil {
		return err
	}
	if err := r.check(ctx, t); err != nil {
		return err
	}
	return classify(r.query(r.db).Update(ctx, t))
}

// Delete removes one row by id without touching dependents.
func (r *Repository[T]) Delete(ctx context.Context, id int64) error {
	n, err := r.query(r.db).Where("id = ?", id).Delete(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		return orm.ErrNotFound
	}
	return nil
}

func (r *Repository[T]) exists(ctx context.Context, id int64) error {
	ok, err := r.query(r.db).Where("id = ?", id).Exists(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return orm.ErrNotFound
	}
	return nil
}

// check runs the field validation, then confirms every non-nil
// reference names an existing row.
func (r *Repository[T]) check(ctx context.Context, t *T) error {
	if r.validate != nil {
		if err := r.validate(t); err != nil {
			return err
		}
	}
	if r.refs == nil {
		return nil
	}
	for _, ref := range r.refs(t) {
		if ref.id == nil {
			continue
		}
		rows, err := orm.QueryMaps(ctx, r.db, "SELECT id FROM "+ref.table+" WHERE id = ?", *ref.id)
		if err != nil {
			return fmt.Errorf("checking %s: %w", ref.field, err)
		}
		if len(rows.Rows) == 0 {
			return invalid("%s %d does not exist", ref.field, *ref.id)
		}
	}
	return nil
}

func (r *Repository[T]) inTx(ctx context.Context, fn func(q orm.Querier) error) error {
	return orm.InTransaction(ctx, r.db, fn)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// PlayerRepository manages players and cascades deletes to their results,
// rounds and yearly stats.
type PlayerRepository struct{ Repository[model.Player] }

func (s *Store) Players() *PlayerRepository {
	return &PlayerRepository{Repository[model.Player]{
		db: s.db, query: model.Players, order: "last_name, first_name, id",
		validate: func(p *model.Player) error {
			p.FirstName = strings.TrimSpace(p.FirstName)
			p.LastName = strings.TrimSpace(p.LastName)
			if p.FirstName == "" {
				return invalid("first_name is required")
			}
			if p.Nationality == "" {
				p.Nationality = model.DefaultNationality
			}
			return nil
		},
	}}
}

// Delete removes the player and everything recorded against them.
func (r *PlayerRepository) Delete(ctx context.Context, id int64) error {
	return r.inTx(ctx, func(q orm.Querier) error {
		if _, err := model.Rounds(q).
			Where("result_id IN (SELECT id FROM tournament_results WHERE player_id = ?)", id).
			Delete(ctx); err != nil {
			return fmt.Errorf("deleting rounds: %w", err)
		}
		if _, err := model.TournamentResults(q).Where("player_id = ?", id).Delete(ctx); err != nil {
			return fmt.Errorf("deleting results: %w", err)
		}
		if _, err := model.YearlyStats(q).Where("player_id = ?", id).Delete(ctx); err != nil {
			return fmt.Errorf("deleting yearly stats: %w", err)
		}
		return (&Repository[model.Player]{db: q, query: model.Players}).Delete(ctx, id)
	})
}

// NameFilter matches first, last or full name case-insensitively.
func (r *PlayerRepository) NameFilter(term string) scope.Scope {
	like := "%" + strings.ToLower(strings.TrimSpace(term)) + "%"
	full := FullNameExpr(orm.DialectOf(r.db), "")
	return scope.Where(
		"(LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER("+full+") LIKE ?)",
		like, like, like,
	)
}

// Search lists players matching NameFilter(term).
func (r *PlayerRepository) Search(ctx context.Context, term string, scopes ...scope.Scope) ([]model.Player, error) {
	return r.List(ctx, append([]scope.Scope{r.NameFilter(term)}, scopes...)...)
}

// FindByName looks a player up by display name.
func (r *PlayerRepository) FindByName(ctx context.Context, full string) (model.Player, error) {
	first, last := model.SplitName(full)
	return model.Players(r.db).Where("first_name = ? AND last_name = ?", first, last).First(ctx)
}

// CourseRepository manages courses. Deleting a course detaches its
// tournaments rather than deleting them.
type CourseRepository struct{ Repository[model.Course] }

func (s *Store) Courses() *CourseRepository {
	return &CourseRepository{Repository[model.Course]{
		db: s.db, query: model.Courses, order: "course_name, location, id",
		validate: func(c *model.Course) error {
			c.CourseName = strings.TrimSpace(c.CourseName)
			c.Location = strings.TrimSpace(c.Location)
			if c.CourseName == "" {
				return invalid("course_name is required")
			}
			return nil
		},
	}}
}

func (r *CourseRepository) Delete(ctx context.Context, id int64) error {
	return r.inTx(ctx, func(q orm.Querier) error {
		if _, err := model.Tournaments(q).Where("course_id = ?", id).
			UpdateColumns(ctx, map[string]any{"course_id": nil}); err != nil {
			return fmt.Errorf("detaching tournaments: %w", err)
		}
		return (&Repository[model.Course]{db: q, query: model.Courses}).Delete(ctx, id)
	})
}

// TournamentRepository manages tournaments and cascades deletes to
// results and rounds.
type TournamentRepository struct{ Repository[model.Tournament] }

func (s *Store) Tournaments() *TournamentRepository {
	return &TournamentRepository{Repository[model.Tournament]{
		db: s.db, query: model.Tournaments,
		order: "tournament_date IS NULL, tournament_date DESC, id",
		validate: func(t *model.Tournament) error {
			t.TournamentName = strings.TrimSpace(t.TournamentName)
			if t.TournamentName == "" {
				return invalid("tournament_name is required")
			}
			if t.EndDate != nil && t.TournamentDate != nil && t.EndDate.Before(*t.TournamentDate) {
				return invalid("end_date is before tournament_date")
			}
			return nil
		},
		refs: func(t *model.Tournament) []reference {
			return []reference{{"course_id", "courses", t.CourseID}}
		},
	}}
}

func (r *TournamentRepository) Delete(ctx context.Context, id int64) error {
	return r.inTx(ctx, func(q orm.Querier) error {
		if _, err := model.Rounds(q).
			Where("result_id IN (SELECT id FROM tournament_results WHERE tournament_id = ?)", id).
			Delete(ctx); err != nil {
			return fmt.Errorf("deleting rounds: %w", err)
		}
		if _, err := model.TournamentResults(q).Where("tournament_id = ?", id).Delete(ctx); err != nil {
			return fmt.Errorf("deleting results: %w", err)
		}
		return (&Repository[model.Tournament]{db: q, query: model.Tournaments}).Delete(ctx, id)
	})
}

// Leaderboard returns a tournament's results best position first with
// players preloaded.
func (r *TournamentRepository) Leaderboard(ctx context.Context, id int64, limit int) ([]model.TournamentResult, error) {
	if err := r.exists(ctx, id); err != nil {
		return nil, err
	}
	q := model.TournamentResults(r.db).
		Where("tournament_id = ?", id).
		OrderBy("position_numeric IS NULL, position_numeric, total_strokes IS NULL, total_strokes, id").
		Preload("Player")
	if limit > 0 {
		q = q.Limit(limit)
	}
	return q.All(ctx)
}

// ResultRepository manages tournament results.
type ResultRepository struct{ Repository[model.TournamentResult] }

func (s *Store) Results() *ResultRepository {
	return &ResultRepository{Repository[model.TournamentResult]{
		db: s.db, query: model.TournamentResults, order: "id",
		validate: func(r *model.TournamentResult) error {
			if r.TournamentID == 0 || r.PlayerID == 0 {
				return invalid("tournament_id and player_id are required")
			}
			return nil
		},
		refs: func(r *model.TournamentResult) []reference {
			return []reference{
				{"tournament_id", "tournaments", &r.TournamentID},
				{"player_id", "players", &r.PlayerID},
			}
		},
	}}
}

func (r *ResultRepository) Delete(ctx context.Context, id int64) error {
	return r.inTx(ctx, func(q orm.Querier) error {
		if _, err := model.Rounds(q).Where("result_id = ?", id).Delete(ctx); err != nil {
			return fmt.Errorf("deleting rounds: %w", err)
		}
		return (&Repository[model.TournamentResult]{db: q, query: model.TournamentResults}).Delete(ctx, id)
	})
}

// RoundRepository manages per-round scores.
type RoundRepository struct{ Repository[model.Round] }

func (s *Store) Rounds() *RoundRepository {
	return &RoundRepository{Repository[model.Round]{
		db: s.db, query: model.Rounds, order: "result_id, round_number",
		validate: func(r *model.Round) error {
			if r.ResultID == 0 {
				return invalid("result_id is required")
			}
			if r.RoundNumber < 1 || r.RoundNumber > 6 {
				return invalid("round_number must be between 1 and 6, got %d", r.RoundNumber)
			}
			return nil
		},
	}}
}

// ForResult lists a result's rounds, failing with orm.ErrNotFound when
// the result does not exist.
func (r *RoundRepository) ForResult(ctx context.Context, resultID int64) ([]model.Round, error) {
	ok, err := model.TournamentResults(r.db).Where("id = ?", resultID).Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, orm.ErrNotFound
	}
	return r.List(ctx, scope.Where("result_id = ?", resultID))
}

// Add records a round, replacing an earlier score for the same round number.
func (r *RoundRepository) Add(ctx context.Context, round *model.Round) error {
	if err := r.check(ctx, round); err != nil {
		return err
	}
	ok, err := model.TournamentResults(r.db).Where("id = ?", round.ResultID).Exists(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return orm.ErrNotFound
	}
	return classify(model.Rounds(r.db).Upsert(ctx, round, "result_id", "round_number"))
}

// YearlyStatsRepository manages season aggregates.
type YearlyStatsRepository struct{ Repository[model.PlayerYearlyStats] }

func (s *Store) YearlyStats() *YearlyStatsRepository {
	return &YearlyStatsRepository{Repository[model.PlayerYearlyStats]{
		db: s.db, query: model.YearlyStats, order: "player_id, year",
		validate: func(y *model.PlayerYearlyStats) error {
			if y.PlayerID == 0 || y.Year == 0 {
				return invalid("player_id and year are required")
			}
			return nil
		},
		refs: func(y *model.PlayerYearlyStats) []reference {
			return []reference{{"player_id", "players", &y.PlayerID}}
		},
	}}
}

// ForPlayer lists a player's seasons, newest first.
func (r *YearlyStatsRepository) ForPlayer(ctx context.Context, playerID int64) ([]model.PlayerYearlyStats, error) {
	return model.YearlyStats(r.db).Where("player_id = ?", playerID).OrderBy("year DESC").All(ctx)
}

// IsNotFound reports whether err is a missing-row error.
func IsNotFound(err error) bool { return errors.Is(err, orm.ErrNotFound) }
