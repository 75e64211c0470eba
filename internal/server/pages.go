package server

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"reflect"
	"strings"

	"github.com/mickamy/golfstats/internal/naming"
	"github.com/mickamy/golfstats/internal/nlq"
	"github.com/mickamy/golfstats/internal/store"
	"github.com/mickamy/golfstats/scope"
)

//go:embed templates/*.html
var templateFS embed.FS

const pageSize = 50

var pageNames = []string{"home", "players", "tournaments", "tournament", "ask", "error"}

type pages struct {
	byName map[string]*template.Template
}

var funcs = template.FuncMap{
	"cell":  cell,
	"label": naming.Label,
	"add":   func(a, b int) int { return a + b },
}

func loadPages() (*pages, error) {
	p := &pages{byName: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		t, err := template.New("layout.html").Funcs(funcs).
			ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parsing %s template: %w", name, err)
		}
		p.byName[name] = t
	}
	return p, nil
}

// cell renders a possibly nil pointer field.
func cell(v any) string {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nlq.FormatCell(nil)
		}
		v = rv.Elem().Interface()
	}
	return nlq.FormatCell(v)
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.pages.byName[name].Execute(&buf, data); err != nil {
		s.log.WithError(err).WithField("page", name).Error("rendering page")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.log.WithField("path", r.URL.Path).WithError(err).Error("page failed")
		msg = "Something went wrong."
	}
	s.render(w, r, status, "error", map[string]any{"Status": status, "Message": msg})
}

func (s *Server) homePage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	counts, err := s.store.Counts(ctx)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	term := strings.TrimSpace(r.URL.Query().Get("q"))
	var results *store.SearchResults
	if term != "" {
		res, err := s.store.Search(ctx, term, store.DefaultSearchLimit)
		if err != nil {
			s.renderError(w, r, err)
			return
		}
		results = &res
	}
	s.render(w, r, http.StatusOK, "home", map[string]any{
		"Counts":  counts,
		"Term":    term,
		"Results": results,
	})
}

func (s *Server) playersPage(w http.ResponseWriter, r *http.Request) {
	n, err := queryInt(r, "page")
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	n = max(n, 1)
	repo := s.store.Players()
	term := strings.TrimSpace(r.URL.Query().Get("q"))
	var filter scope.Scopes
	if term != "" {
		filter = filter.Append(repo.NameFilter(term))
	}

	ctx := r.Context()
	players, err := repo.List(ctx, filter.Merge(scope.Paginate(n, pageSize))...)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	total, err := repo.Count(ctx, filter...)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "players", map[string]any{
		"Players": players,
		"Total":   total,
		"Term":    term,
		"Page":    n,
		"HasNext": int64(n*pageSize) < total,
	})
}

func (s *Server) tournamentsPage(w http.ResponseWriter, r *http.Request) {
	season, err := queryInt(r, "season")
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	n, err := queryInt(r, "page")
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	n = max(n, 1)
	var filter scope.Scopes
	if season > 0 {
		filter = filter.Append(scope.Where("season = ?", season))
	}

	ctx := r.Context()
	repo := s.store.Tournaments()
	tournaments, err := repo.ListWith(ctx, []string{"Course"}, filter.Merge(scope.Paginate(n, pageSize))...)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	total, err := repo.Count(ctx, filter...)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "tournaments", map[string]any{
		"Tournaments": tournaments,
		"Total":       total,
		"Season":      season,
		"Page":        n,
		"HasNext":     int64(n*pageSize) < total,
	})
}

func (s *Server) tournamentPage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	ctx := r.Context()
	t, err := s.store.Tournaments().Get(ctx, id, "Course")
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	results, err := s.store.Tournaments().Leaderboard(ctx, id, 0)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "tournament", map[string]any{
		"Tournament": t,
		"Rows":       leaderboardRows(t, results),
	})
}

func (s *Server) askPage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	data := map[string]any{"Question": q}
	if strings.TrimSpace(q) != "" {
		ans, err := s.engine.Ask(r.Context(), q)
		switch {
		case errors.Is(err, nlq.ErrEmptyQuestion):
			data["Error"] = "Ask a question about players, tournaments or courses."
		case err != nil:
			s.renderError(w, r, err)
			return
		default:
			data["Answer"] = ans
		}
	}
	s.render(w, r, http.StatusOK, "ask", data)
}
