package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mickamy/golfstats/internal/model"
	"github.com/mickamy/golfstats/internal/store"
	"github.com/mickamy/golfstats/scope"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

type repository[T any] interface {
	Create(ctx context.Context, t *T) error
	Get(ctx context.Context, id int64, preloads ...string) (T, error)
	Update(ctx context.Context, id int64, t *T) error
	Delete(ctx context.Context, id int64) error
}

// resource serves create, read, update and delete for one entity by id.
type resource[T any] struct {
	s        *Server
	name     string
	repo     repository[T]
	preloads []string
	setID    func(*T, int64)
	// vocab marks entities whose names feed the question vocabulary.
	vocab bool
}

func (rs resource[T]) changed() {
	if rs.vocab {
		rs.s.engine.Refresh()
	}
}

func (rs resource[T]) create(w http.ResponseWriter, r *http.Request) {
	var v T
	if err := decodeBody(w, r, &v); err != nil {
		rs.s.writeError(w, r, err)
		return
	}
	rs.setID(&v, 0)
	if err := rs.repo.Create(r.Context(), &v); err != nil {
		rs.s.writeError(w, r, err)
		return
	}
	rs.changed()
	rs.s.writeJSON(w, http.StatusCreated, map[string]any{
		rs.name:   v,
		"message": fmt.Sprintf("%s created", rs.name),
	})
}

func (rs resource[T]) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		rs.s.writeError(w, r, err)
		return
	}
	v, err := rs.repo.Get(r.Context(), id, rs.preloads...)
	if err != nil {
		rs.s.writeError(w, r, err)
		return
	}
	rs.s.writeJSON(w, http.StatusOK, v)
}

// update applies the body on top of the stored row, so omitted fields
// keep their values.
func (rs resource[T]) update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		rs.s.writeError(w, r, err)
		return
	}
	ctx := r.Context()
	v, err := rs.repo.Get(ctx, id)
	if err != nil {
		rs.s.writeError(w, r, err)
		return
	}
	if err := decodeBody(w, r, &v); err != nil {
		rs.s.writeError(w, r, err)
		return
	}
	rs.setID(&v, id)
	if err := rs.repo.Update(ctx, id, &v); err != nil {
		rs.s.writeError(w, r, err)
		return
	}
	rs.changed()
	if v, err = rs.repo.Get(ctx, id, rs.preloads...); err != nil {
		rs.s.writeError(w, r, err)
		return
	}
	rs.s.writeJSON(w, http.StatusOK, map[string]any{
		rs.name:   v,
		"message": fmt.Sprintf("%s %d updated", rs.name, id),
	})
}

func (rs resource[T]) delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		rs.s.writeError(w, r, err)
		return
	}
	if err := rs.repo.Delete(r.Context(), id); err != nil {
		rs.s.writeError(w, r, err)
		return
	}
	rs.changed()
	w.WriteHeader(http.StatusNoContent)
}

// page reads limit and offset.
func page(r *http.Request) (limit, offset int, err error) {
	if limit, err = queryInt(r, "limit"); err != nil {
		return 0, 0, err
	}
	if offset, err = queryInt(r, "offset"); err != nil {
		return 0, 0, err
	}
	return store.ClampLimit(limit, defaultPageSize, maxPageSize), offset, nil
}

func (s *Server) listPlayers(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := page(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	repo := s.store.Players()
	var filter scope.Scopes
	if q := r.URL.Query().Get("q"); q != "" {
		filter = filter.Append(repo.NameFilter(q))
	}

	ctx := r.Context()
	players, err := repo.List(ctx, filter.Append(scope.Limit(limit), scope.Offset(offset))...)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	total, err := repo.Count(ctx, filter...)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"players":       players,
		"count":         len(players),
		"total_players": total,
		"message":       fmt.Sprintf("Retrieved %d of %d players", len(players), total),
	})
}

func (s *Server) listCourses(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := page(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var filter scope.Scopes
	if q := r.URL.Query().Get("q"); q != "" {
		filter = filter.Append(scope.Like("course_name", q))
	}

	ctx := r.Context()
	repo := s.store.Courses()
	courses, err := repo.List(ctx, filter.Append(scope.Limit(limit), scope.Offset(offset))...)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	total, err := repo.Count(ctx, filter...)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"courses":       courses,
		"count":         len(courses),
		"total_courses": total,
		"message":       fmt.Sprintf("Retrieved %d of %d courses", len(courses), total),
	})
}

func (s *Server) listTournaments(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := page(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	season, err := queryInt(r, "season")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var filter scope.Scopes
	if season > 0 {
		filter = filter.Append(scope.Where("season = ?", season))
	}
	if q := r.URL.Query().Get("q"); q != "" {
		filter = filter.Append(scope.Like("tournament_name", q))
	}

	ctx := r.Context()
	repo := s.store.Tournaments()
	tournaments, err := repo.ListWith(ctx, []string{"Course"}, filter.Append(scope.Limit(limit), scope.Offset(offset))...)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	total, err := repo.Count(ctx, filter...)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"tournaments":       tournaments,
		"count":             len(tournaments),
		"total_tournaments": total,
		"message":           fmt.Sprintf("Retrieved %d of %d tournaments", len(tournaments), total),
	})
}

func (s *Server) leaderboard(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx := r.Context()
	t, err := s.store.Tournaments().Get(ctx, id, "Course")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	results, err := s.store.Tournaments().Leaderboard(ctx, id, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"tournament": t,
		"results":    leaderboardRows(t, results),
		"count":      len(results),
	})
}

func leaderboardRows(t model.Tournament, results []model.TournamentResult) []store.ResultRow {
	rows := make([]store.ResultRow, len(results))
	for i := range results {
		results[i].Tournament = &t
		rows[i] = store.NewResultRow(results[i])
	}
	return rows
}

func (s *Server) playerResults(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx := r.Context()
	p, err := s.store.Players().Get(ctx, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rows, err := s.store.ResultRows(ctx, store.ResultFilter{PlayerID: id, Limit: limit})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"player":  p,
		"results": rows,
		"count":   len(rows),
	})
}

func (s *Server) playerYearlyStats(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx := r.Context()
	p, err := s.store.Players().Get(ctx, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	stats, err := s.store.YearlyStats().ForPlayer(ctx, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"player":       p,
		"yearly_stats": stats,
		"count":        len(stats),
	})
}

func (s *Server) listResults(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	season, err := queryInt(r, "season")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	f := store.ResultFilter{
		Player:     q.Get("player"),
		Tournament: q.Get("tournament"),
		Season:     season,
		Limit:      store.ClampLimit(limit, store.DefaultResultLimit, store.MaxResultLimit),
	}

	ctx := r.Context()
	rows, err := s.store.ResultRows(ctx, f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	total, err := s.store.CountResults(ctx, f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"results":       rows,
		"count":         len(rows),
		"total_results": total,
		"filters":       f,
		"message":       fmt.Sprintf("Retrieved %d of %d tournament results", len(rows), total),
	})
}

func (s *Server) listRounds(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rounds, err := s.store.Rounds().ForResult(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"result_id": id,
		"rounds":    rounds,
		"count":     len(rounds),
	})
}

func (s *Server) addRound(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var round model.Round
	if err := decodeBody(w, r, &round); err != nil {
		s.writeError(w, r, err)
		return
	}
	round.ID = 0
	round.ResultID = id
	if err := s.store.Rounds().Add(r.Context(), &round); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]any{
		"round":   round,
		"message": fmt.Sprintf("round %d recorded", round.RoundNumber),
	})
}
