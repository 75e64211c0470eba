package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mickamy/golfstats/internal/store"
)

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.Counts(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"message":     "Golf statistics API",
		"version":     s.version,
		"status":      "running",
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"data_loaded": counts.Players > 0 || counts.Tournaments > 0,
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.store.Ping(ctx); err != nil {
		s.log.WithError(err).Error("health check: database unreachable")
		s.writeJSON(w, http.StatusInternalServerError, map[string]any{
			"status":             "unhealthy",
			"database_connected": false,
			"error":              err.Error(),
		})
		return
	}
	version, err := s.store.SchemaVersion(ctx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	counts, err := s.store.Counts(ctx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	stats := s.store.DB().Stats()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":             "healthy",
		"database_connected": true,
		"dialect":            s.store.Dialect().Name(),
		"schema_version":     version,
		"data_summary":       counts,
		"connections": map[string]int{
			"open":   stats.OpenConnections,
			"in_use": stats.InUse,
		},
	})
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	term := strings.TrimSpace(r.URL.Query().Get("q"))
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.store.Search(r.Context(), term, store.ClampLimit(limit, store.DefaultSearchLimit, maxPageSize))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	msg := fmt.Sprintf("Found %d matches for %q", res.Total(), term)
	if term == "" {
		msg = "Provide a search term with ?q="
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"search_term": term,
		"results":     res,
		"total_found": res.Total(),
		"message":     msg,
	})
}

type queryRequest struct {
	Question string `json:"question"`
}

func (s *Server) query(w http.ResponseWriter, r *http.Request) {
	question := r.URL.Query().Get("q")
	if r.Method == http.MethodPost {
		var req queryRequest
		if err := decodeBody(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		question = req.Question
	}
	ans, err := s.engine.Ask(r.Context(), question)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ans)
}

func (s *Server) courseDuplicates(w http.ResponseWriter, r *http.Request) {
	groups, err := s.store.AnalyzeCourseDuplicates(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"groups": groups,
		"count":  len(groups),
	})
}

func (s *Server) dedupeCourses(w http.ResponseWriter, r *http.Request) {
	dryRun := false
	if raw := r.URL.Query().Get("dry_run"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			s.writeError(w, r, badRequest("dry_run must be a boolean, got %q", raw))
			return
		}
		dryRun = v
	}
	report, err := s.store.DedupeCourses(r.Context(), dryRun)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !dryRun {
		s.engine.Refresh()
	}
	s.writeJSON(w, http.StatusOK, report)
}
