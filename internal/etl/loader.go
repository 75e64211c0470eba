package etl

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mickamy/golfstats/internal/model"
	"github.com/mickamy/golfstats/internal/store"
	"github.com/mickamy/golfstats/orm"
)

// Default source locations, relative to the data directory.
var (
	DefaultTournamentCSV = filepath.Join("kaggle", "pga_tour_alternative", "ASA All PGA Raw Data - Tourn Level.csv")
	DefaultYearlyCSV     = filepath.Join("kaggle", "pga_tour_alternative", "pgaTourData.csv")
)

// ErrNoSources is returned when neither CSV could be read.
var ErrNoSources = errors.New("no data files could be loaded")

// Tournament-level CSV columns.
const (
	colPlayer         = "player"
	colPlayerID       = "player id"
	colCourse         = "course"
	colHolePar        = "hole_par"
	colTournamentID   = "tournament id"
	colTournamentName = "tournament name"
	colDate           = "date"
	colPurse          = "purse"
	colSeason         = "season"
	colNoCut          = "no_cut"
	colStrokes        = "strokes"
	colRounds         = "n_rounds"
	colMadeCut        = "made_cut"
	colFinish         = "Finish"
	colPos            = "pos"
)

// Yearly CSV columns.
const (
	colPlayerName = "Player Name"
	colYear       = "Year"
)

// batchSize bounds multi-row inserts.
const batchSize = 200

// Options selects the CSV files. Empty paths fall back to the defaults
// under DataDir.
type Options struct {
	DataDir       string
	TournamentCSV string
	YearlyCSV     string
}

func (o Options) paths() (tournament, yearly string) {
	tournament, yearly = o.TournamentCSV, o.YearlyCSV
	if tournament == "" {
		tournament = filepath.Join(o.DataDir, DefaultTournamentCSV)
	}
	if yearly == "" {
		yearly = filepath.Join(o.DataDir, DefaultYearlyCSV)
	}
	return tournament, yearly
}

// Loader runs the CSV → database pipeline.
type Loader struct {
	store *store.Store
	log   logrus.FieldLogger
	now   func() time.Time

	players     map[nameKey]int64
	courses     map[nameKey]int64
	tournaments map[string]int64
}

type nameKey struct{ a, b string }

func NewLoader(s *store.Store, log logrus.FieldLogger) *Loader {
	return &Loader{store: s, log: log, now: time.Now}
}

type stage struct {
	name string
	run  func(ctx context.Context, q orm.Querier, st *StageReport) error
}

// Run loads both files. A missing file is skipped with a warning; the
// run fails only when neither loads. Each stage commits on its own.
// A Clock attached to ctx with orm.WithClock replaces the wall clock.
func (l *Loader) Run(ctx context.Context, opts Options) (*Report, error) {
	now := l.now
	if c, ok := orm.ClockFrom(ctx); ok {
		now = c.Now
	}
	rep := &Report{RunID: uuid.NewString(), StartedAt: now()}
	// Every row written by this run is stamped with the run's start.
	ctx = orm.WithClock(ctx, orm.Fixed(rep.StartedAt))
	log := l.log.WithField("run_id", rep.RunID)

	tournamentPath, yearlyPath := opts.paths()
	tourn := l.readSource(rep, log, "tournament", tournamentPath)
	yearly := l.readSource(rep, log, "yearly", yearlyPath)
	if tourn == nil && yearly == nil {
		rep.FinishedAt = now()
		return rep, ErrNoSources
	}

	l.players = map[nameKey]int64{}
	l.courses = map[nameKey]int64{}
	l.tournaments = map[string]int64{}

	stages := []stage{
		{"players", func(ctx context.Context, q orm.Querier, st *StageReport) error {
			return l.loadPlayers(ctx, q, st, tourn, yearly)
		}},
	}
	if tourn != nil {
		stages = append(stages,
			stage{"courses", func(ctx context.Context, q orm.Querier, st *StageReport) error {
				return l.loadCourses(ctx, q, st, tourn)
			}},
			stage{"tournaments", func(ctx context.Context, q orm.Querier, st *StageReport) error {
				return l.loadTournaments(ctx, q, st, tourn)
			}},
			stage{"results", func(ctx context.Context, q orm.Querier, st *StageReport) error {
				return l.loadResults(ctx, q, st, tourn)
			}},
		)
	}
	if yearly != nil {
		stages = append(stages, stage{"yearly_stats", func(ctx context.Context, q orm.Querier, st *StageReport) error {
			return l.loadYearlyStats(ctx, q, st, yearly)
		}})
	}

	for _, s := range stages {
		st := &StageReport{Name: s.name}
		start := now()
		err := orm.InTransaction(ctx, l.store.DB(), func(q orm.Querier) error {
			return s.run(ctx, q, st)
		})
		st.Duration = now().Sub(start)
		rep.Stages = append(rep.Stages, *st)
		if err != nil {
			rep.FinishedAt = now()
			return rep, fmt.Errorf("loading %s: %w", s.name, err)
		}
		rep.warn(st.warnings...)
		log.WithFields(logrus.Fields{
			"stage":   s.name,
			"added":   st.Added,
			"updated": st.Updated,
			"skipped": st.Skipped,
		}).Info("stage loaded")
	}

	rep.FinishedAt = now()
	return rep, nil
}

func (l *Loader) readSource(rep *Report, log logrus.FieldLogger, kind, path string) *Table {
	src := SourceReport{Kind: kind, Path: path}
	t, err := ReadCSVFile(path)
	if err != nil {
		src.Error = err.Error()
		rep.Sources = append(rep.Sources, src)
		rep.warn(fmt.Sprintf("%s data not loaded: %v", kind, err))
		log.WithError(err).WithField("path", path).Warn("skipping source")
		return nil
	}
	src.Loaded = true
	src.Rows = len(t.Rows)
	rep.Sources = append(rep.Sources, src)
	log.WithFields(logrus.Fields{"path": path, "rows": src.Rows}).Info("source read")
	return t
}

func playerKey(full string) (nameKey, bool) {
	first, last := model.SplitName(full)
	return nameKey{first, last}, first != ""
}

func (l *Loader) loadPlayers(ctx context.Context, q orm.Querier, st *StageReport, tourn, yearly *Table) error {
	existing, err := model.Players(q).Select("id, first_name, last_name").All(ctx)
	if err != nil {
		return err
	}
	for _, p := range existing {
		l.players[nameKey{p.FirstName, p.LastName}] = p.ID
	}

	seen := map[nameKey]bool{}
	var keys []nameKey
	collect := func(t *Table, col string) {
		if t == nil {
			return
		}
		for _, row := range t.Rows {
			name := String(row.Get(col))
			if name == nil {
				st.Skipped++
				continue
			}
			k, ok := playerKey(*name)
			if !ok || seen[k] {
				continue
			}
			seen[k] = true
			keys = append(keys, k)
		}
	}
	collect(tourn, colPlayer)
	collect(yearly, colPlayerName)
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].b != keys[j].b {
			return keys[i].b < keys[j].b
		}
		return keys[i].a < keys[j].a
	})

	var pending []*model.Player
	for _, k := range keys {
		if _, ok := l.players[k]; ok {
			continue
		}
		pending = append(pending, &model.Player{FirstName: k.a, LastName: k.b, Nationality: model.DefaultNationality})
	}
	for start := 0; start < len(pending); start += batchSize {
		batch := pending[start:min(start+batchSize, len(pending))]
		if err := model.Players(q).CreateAll(ctx, batch); err != nil {
			return err
		}
		for _, p := range batch {
			l.players[nameKey{p.FirstName, p.LastName}] = p.ID
		}
	}
	st.Added = len(pending)
	return nil
}

// coursePar turns the dataset's hole_par (total par over the rounds a
// player completed) into a per-round par.
func coursePar(row Row) *int {
	total := Int(row.Get(colHolePar))
	rounds := Int(row.Get(colRounds))
	if total == nil {
		return nil
	}
	if rounds == nil || *rounds <= 1 {
		return total
	}
	if *total%*rounds != 0 {
		return nil
	}
	par := *total / *rounds
	return &par
}

func (l *Loader) loadCourses(ctx context.Context, q orm.Querier, st *StageReport, t *Table) error {
	existing, err := model.Courses(q).Select("id, course_name, location, par").All(ctx)
	if err != nil {
		return err
	}
	pars := map[int64]*int{}
	for _, c := range existing {
		l.courses[nameKey{c.CourseName, c.Location}] = c.ID
		pars[c.ID] = c.Par
	}

	for _, row := range t.Rows {
		raw := String(row.Get(colCourse))
		if raw == nil {
			continue
		}
		name, location := model.SplitCourse(*raw)
		k := nameKey{name, location}
		par := coursePar(row)

		if id, ok := l.courses[k]; ok {
			if pars[id] == nil && par != nil {
				if _, err := model.Courses(q).Where("id = ?", id).UpdateColumns(ctx, map[string]any{"par": *par}); err != nil {
					return err
				}
				pars[id] = par
				st.Updated++
			}
			continue
		}

		c := &model.Course{CourseName: name, Location: location, Par: par}
		if err := model.Courses(q).Create(ctx, c); err != nil {
			return fmt.Errorf("course %q: %w", *raw, err)
		}
		l.courses[k] = c.ID
		pars[c.ID] = par
		st.Added++
	}
	return nil
}

func (l *Loader) loadTournaments(ctx context.Context, q orm.Querier, st *StageReport, t *Table) error {
	existing, err := model.Tournaments(q).Select("id, external_id").Where("external_id IS NOT NULL").All(ctx)
	if err != nil {
		return err
	}
	known := map[string]bool{}
	for _, tm := range existing {
		l.tournaments[*tm.ExternalID] = tm.ID
		known[*tm.ExternalID] = true
	}

	done := map[string]bool{}
	for _, row := range t.Rows {
		ext := String(row.Get(colTournamentID))
		name := String(row.Get(colTournamentName))
		if ext == nil || name == nil {
			continue
		}
		if done[*ext] {
			continue
		}
		done[*ext] = true

		tm := &model.Tournament{
			ExternalID:     ext,
			TournamentName: *name,
			TournamentDate: Date(row.Get(colDate)),
			PurseMillions:  Float(row.Get(colPurse)),
			Season:         Int(row.Get(colSeason)),
			HasCut:         true,
		}
		if noCut := Bool(row.Get(colNoCut)); noCut != nil {
			tm.HasCut = !*noCut
		}
		if raw := String(row.Get(colCourse)); raw != nil {
			name, location := model.SplitCourse(*raw)
			if id, ok := l.courses[nameKey{name, location}]; ok {
				tm.CourseID = &id
			} else {
				st.warn(fmt.Sprintf("tournament %s: course %q not found", *ext, *raw))
			}
		}

		if err := model.Tournaments(q).Upsert(ctx, tm, "external_id"); err != nil {
			return fmt.Errorf("tournament %s: %w", *ext, err)
		}
		l.tournaments[*ext] = tm.ID
		if known[*ext] {
			st.Updated++
		} else {
			st.Added++
		}
	}
	return nil
}

func (l *Loader) loadResults(ctx context.Context, q orm.Querier, st *StageReport, t *Table) error {
	existing, err := model.TournamentResults(q).Select("id, tournament_id, player_id").All(ctx)
	if err != nil {
		return err
	}
	type key struct{ tournament, player int64 }
	known := make(map[key]bool, len(existing))
	for _, r := range existing {
		known[key{r.TournamentID, r.PlayerID}] = true
	}

	for _, row := range t.Rows {
		ext := String(row.Get(colTournamentID))
		name := String(row.Get(colPlayer))
		if ext == nil || name == nil {
			st.Skipped++
			continue
		}
		tid, ok := l.tournaments[*ext]
		if !ok {
			st.Skipped++
			st.warn(fmt.Sprintf("line %d: unknown tournament %s", row.Line, *ext))
			continue
		}
		pk, _ := playerKey(*name)
		pid, ok := l.players[pk]
		if !ok {
			st.Skipped++
			st.warn(fmt.Sprintf("line %d: unknown player %q", row.Line, *name))
			continue
		}

		r := &model.TournamentResult{
			TournamentID:     tid,
			PlayerID:         pid,
			ExternalPlayerID: String(row.Get(colPlayerID)),
			TotalStrokes:     Int(row.Get(colStrokes)),
			ParTotal:         Int(row.Get(colHolePar)),
			RoundsPlayed:     Int(row.Get(colRounds)),
			MadeCut:          Bool(row.Get(colMadeCut)),
			FinalPosition:    String(row.Get(colFinish)),
			PositionNumeric:  Position(row.Get(colPos), row.Get(colFinish)),
			SGPutting:        Float(row.Get("sg_putt")),
			SGAroundGreen:    Float(row.Get("sg_arg")),
			SGApproach:       Float(row.Get("sg_app")),
			SGOffTheTee:      Float(row.Get("sg_ott")),
			SGTeeToGreen:     Float(row.Get("sg_t2g")),
			SGTotal:          Float(row.Get("sg_total")),
			DKPoints:         Float(row.Get("total_DKP")),
			FDPoints:         Float(row.Get("total_FDP")),
			SDPoints:         Float(row.Get("total_SDP")),
		}
		if err := model.TournamentResults(q).Upsert(ctx, r, "tournament_id", "player_id"); err != nil {
			return fmt.Errorf("line %d: %w", row.Line, err)
		}
		k := key{tid, pid}
		if known[k] {
			st.Updated++
		} else {
			known[k] = true
			st.Added++
		}
	}
	return nil
}

func (l *Loader) loadYearlyStats(ctx context.Context, q orm.Querier, st *StageReport, t *Table) error {
	existing, err := model.YearlyStats(q).Select("id, player_id, year").All(ctx)
	if err != nil {
		return err
	}
	type key struct {
		player int64
		year   int
	}
	known := make(map[key]bool, len(existing))
	for _, y := range existing {
		known[key{y.PlayerID, y.Year}] = true
	}

	for _, row := range t.Rows {
		name := String(row.Get(colPlayerName))
		year := Int(row.Get(colYear))
		if name == nil || year == nil {
			st.Skipped++
			continue
		}
		pk, _ := playerKey(*name)
		pid, ok := l.players[pk]
		if !ok {
			st.Skipped++
			st.warn(fmt.Sprintf("line %d: unknown player %q", row.Line, *name))
			continue
		}

		y := &model.PlayerYearlyStats{
			PlayerID:           pid,
			Year:               *year,
			RoundsPlayed:       Int(row.Get("Rounds")),
			FairwayPercentage:  Float(row.Get("Fairway Percentage")),
			AvgDistance:        Float(row.Get("Avg Distance")),
			GreensInRegulation: Float(row.Get("gir")),
			AveragePutts:       Float(row.Get("Average Putts")),
			AverageScrambling:  Float(row.Get("Average Scrambling")),
			AverageScore:       Float(row.Get("Average Score")),
			Points:             Int(row.Get("Points")),
			Wins:               Int(row.Get("Wins")),
			Top10Finishes:      Int(row.Get("Top 10")),
			AvgSGPutts:         Float(row.Get("Average SG Putts")),
			AvgSGTotal:         Float(row.Get("Average SG Total")),
			SGOffTheTee:        Float(row.Get("SG:OTT")),
			SGApproach:         Float(row.Get("SG:APR")),
			SGAroundGreen:      Float(row.Get("SG:ARG")),
			PrizeMoney:         Money(row.Get("Money")),
		}
		if err := model.YearlyStats(q).Upsert(ctx, y, "player_id", "year"); err != nil {
			return fmt.Errorf("line %d: %w", row.Line, err)
		}
		k := key{pid, *year}
		if known[k] {
			st.Updated++
		} else {
			known[k] = true
			st.Added++
		}
	}
	return nil
}
