// Package server exposes the golf database as a JSON API and a small
// server-rendered front end.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/mickamy/golfstats/internal/auth"
	"github.com/mickamy/golfstats/internal/model"
	"github.com/mickamy/golfstats/internal/nlq"
	"github.com/mickamy/golfstats/internal/store"
)

const shutdownTimeout = 10 * time.Second

// Options configure a Server. A nil Signer leaves mutating routes open.
type Options struct {
	Store   *store.Store
	Engine  *nlq.Engine
	Signer  *auth.Signer
	Log     *logrus.Logger
	Version string
}

type Server struct {
	store   *store.Store
	engine  *nlq.Engine
	signer  *auth.Signer
	log     *logrus.Logger
	version string
	pages   *pages
}

func New(opts Options) (*Server, error) {
	p, err := loadPages()
	if err != nil {
		return nil, err
	}
	engine := opts.Engine
	if engine == nil {
		engine = nlq.NewEngine(opts.Store, opts.Log)
	}
	version := opts.Version
	if version == "" {
		version = "dev"
	}
	return &Server{
		store:   opts.Store,
		engine:  engine,
		signer:  opts.Signer,
		log:     opts.Log,
		version: version,
		pages:   p,
	}, nil
}

// Handler returns the router wrapped in recovery, CORS and access-log
// middleware.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.StrictSlash(true)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("", s.index).Methods(http.MethodGet)
	api.HandleFunc("/health", s.health).Methods(http.MethodGet)

	players := resource[model.Player]{
		s: s, name: "player", repo: s.store.Players(), preloads: []string{"YearlyStats"}, vocab: true,
		setID: func(p *model.Player, id int64) { p.ID = id },
	}
	api.HandleFunc("/players", s.listPlayers).Methods(http.MethodGet)
	api.HandleFunc("/players", s.admin(players.create)).Methods(http.MethodPost)
	api.HandleFunc("/players/{id:[0-9]+}", players.get).Methods(http.MethodGet)
	api.HandleFunc("/players/{id:[0-9]+}", s.admin(players.update)).Methods(http.MethodPut)
	api.HandleFunc("/players/{id:[0-9]+}", s.admin(players.delete)).Methods(http.MethodDelete)
	api.HandleFunc("/players/{id:[0-9]+}/results", s.playerResults).Methods(http.MethodGet)
	api.HandleFunc("/players/{id:[0-9]+}/yearly-stats", s.playerYearlyStats).Methods(http.MethodGet)

	courses := resource[model.Course]{
		s: s, name: "course", repo: s.store.Courses(), vocab: true,
		setID: func(c *model.Course, id int64) { c.ID = id },
	}
	api.HandleFunc("/courses", s.listCourses).Methods(http.MethodGet)
	api.HandleFunc("/courses", s.admin(courses.create)).Methods(http.MethodPost)
	api.HandleFunc("/courses/{id:[0-9]+}", courses.get).Methods(http.MethodGet)
	api.HandleFunc("/courses/{id:[0-9]+}", s.admin(courses.update)).Methods(http.MethodPut)
	api.HandleFunc("/courses/{id:[0-9]+}", s.admin(courses.delete)).Methods(http.MethodDelete)

	tournaments := resource[model.Tournament]{
		s: s, name: "tournament", repo: s.store.Tournaments(), preloads: []string{"Course"}, vocab: true,
		setID: func(t *model.Tournament, id int64) { t.ID = id },
	}
	api.HandleFunc("/tournaments", s.listTournaments).Methods(http.MethodGet)
	api.HandleFunc("/tournaments", s.admin(tournaments.create)).Methods(http.MethodPost)
	api.HandleFunc("/tournaments/{id:[0-9]+}", tournaments.get).Methods(http.MethodGet)
	api.HandleFunc("/tournaments/{id:[0-9]+}", s.admin(tournaments.update)).Methods(http.MethodPut)
	api.HandleFunc("/tournaments/{id:[0-9]+}", s.admin(tournaments.delete)).Methods(http.MethodDelete)
	api.HandleFunc("/tournaments/{id:[0-9]+}/leaderboard", s.leaderboard).Methods(http.MethodGet)

	results := resource[model.TournamentResult]{
		s: s, name: "result", repo: s.store.Results(), preloads: []string{"Player", "Tournament", "Rounds"},
		setID: func(r *model.TournamentResult, id int64) { r.ID = id },
	}
	api.HandleFunc("/tournament-results", s.listResults).Methods(http.MethodGet)
	api.HandleFunc("/tournament-results", s.admin(results.create)).Methods(http.MethodPost)
	api.HandleFunc("/tournament-results/{id:[0-9]+}", results.get).Methods(http.MethodGet)
	api.HandleFunc("/tournament-results/{id:[0-9]+}", s.admin(results.update)).Methods(http.MethodPut)
	api.HandleFunc("/tournament-results/{id:[0-9]+}", s.admin(results.delete)).Methods(http.MethodDelete)
	api.HandleFunc("/results/{id:[0-9]+}/rounds", s.listRounds).Methods(http.MethodGet)
	api.HandleFunc("/results/{id:[0-9]+}/rounds", s.admin(s.addRound)).Methods(http.MethodPost)

	api.HandleFunc("/search", s.search).Methods(http.MethodGet)
	api.HandleFunc("/query", s.query).Methods(http.MethodGet, http.MethodPost)
	api.HandleFunc("/admin/course-duplicates", s.courseDuplicates).Methods(http.MethodGet)
	api.HandleFunc("/admin/dedupe-courses", s.admin(s.dedupeCourses)).Methods(http.MethodPost)
	api.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, notFound("no route for %s %s", r.Method, r.URL.Path))
	})

	r.HandleFunc("/", s.homePage).Methods(http.MethodGet)
	r.HandleFunc("/players", s.playersPage).Methods(http.MethodGet)
	r.HandleFunc("/tournaments", s.tournamentsPage).Methods(http.MethodGet)
	r.HandleFunc("/tournaments/{id:[0-9]+}", s.tournamentPage).Methods(http.MethodGet)
	r.HandleFunc("/ask", s.askPage).Methods(http.MethodGet)

	var h http.Handler = r
	h = handlers.CombinedLoggingHandler(accessLog{s.log.WithField("component", "http")}, h)
	h = handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"X-Requested-With", "Content-Type", "Authorization"}),
	)(h)
	h = handlers.RecoveryHandler(handlers.RecoveryLogger(s.log), handlers.PrintRecoveryStack(true))(h)
	return h
}

// admin guards a mutating handler with the admin token when a signer is
// configured.
func (s *Server) admin(next http.HandlerFunc) http.HandlerFunc {
	if s.signer == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.signer.Authorize(r); err != nil {
			s.writeError(w, r, err)
			return
		}
		next(w, r)
	}
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if s.signer == nil {
		s.log.Warn("SECRET_KEY is not set: write endpoints are open to anyone")
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithFields(logrus.Fields{"addr": addr, "version": s.version}).Info("server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

// accessLog sends combined-format access lines through the application
// logger.
type accessLog struct{ l logrus.FieldLogger }

func (a accessLog) Write(p []byte) (int, error) {
	a.l.Info(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}
