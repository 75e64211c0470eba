package etl_test

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mickamy/golfstats/internal/etl"
	"github.com/mickamy/golfstats/internal/model"
	"github.com/mickamy/golfstats/internal/store"
	"github.com/mickamy/golfstats/orm"
)

func ptr[T any](v T) *T { return &v }

const tournamentCSV = `player,player id,tournament id,tournament name,course,date,purse,season,no_cut,hole_par,strokes,n_rounds,made_cut,pos,Finish,sg_putt,sg_arg,sg_app,sg_ott,sg_t2g,sg_total,total_DKP,total_FDP,total_SDP,Unnamed: 2
Tiger Woods,3448,401056527,Masters Tournament,"Augusta National Golf Club - Augusta, GA",2019-04-14,11.5,2019,0,288,275,4,1,1,1,1.2,0.5,2.1,0.9,3.5,4.7,120,110,95,
Brooks Koepka,6798,401056527,Masters Tournament,"Augusta National Golf Club - Augusta, GA",2019-04-14,11.5,2019,0,288,276,4,1,NA,T2,0.8,0.2,1.9,1.1,3.2,4.0,101,98,80,
Charles Howell III,1335,401056527,Masters Tournament,"Augusta National Golf Club - Augusta, GA",2019-04-14,11.5,2019,0,144,150,2,0,,CUT,-0.5,-0.2,-1.1,0.1,-1.2,-1.7,20,15,10,
Tiger Woods,3448,401056530,Memorial Tournament,"Muirfield Village Golf Club - Dublin, OH",6/2/2019,9.1,2019,0,288,280,4,1,9,T9,0.1,0.3,0.8,0.2,1.3,1.4,70,65,55,
,,401056530,Memorial Tournament,"Muirfield Village Golf Club - Dublin, OH",6/2/2019,9.1,2019,0,,,,,,,,,,,,,,,,
`

const yearlyCSV = `Player Name,Rounds,Fairway Percentage,Year,Avg Distance,gir,Average Putts,Average Scrambling,Average Score,Points,Wins,Top 10,Average SG Putts,Average SG Total,SG:OTT,SG:APR,SG:ARG,Money
Tiger Woods,60,62.5,2018,303.2,68.1,28.9,61.3,69.7,"1,234",1,7,0.3,1.5,0.4,0.6,0.2,"$5,443,841"
Jordan Spieth,85,56.0,2018,295.0,66.0,29.1,60.0,70.1,900,NaN,5,-0.1,0.9,0.1,0.5,0.4,"$2,802,384"
Tiger Woods,,,,,,,,,,,,,,,,,
`

func newStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.Open(t.Context(), "sqlite://:memory:", quietLogger(), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Migrate(t.Context()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return s
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func writeSources(t *testing.T, files map[string]string) etl.Options {
	t.Helper()

	dir := t.TempDir()
	opts := etl.Options{
		DataDir:       dir,
		TournamentCSV: filepath.Join(dir, "tourn.csv"),
		YearlyCSV:     filepath.Join(dir, "yearly.csv"),
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return opts
}

type counts struct{ added, updated, skipped int }

func checkStage(t *testing.T, rep *etl.Report, name string, want counts) {
	t.Helper()

	st := rep.Stage(name)
	got := counts{st.Added, st.Updated, st.Skipped}
	if got != want {
		t.Errorf("stage %s = %+v, want %+v", name, got, want)
	}
}

func TestLoaderRun(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	ctx := t.Context()
	opts := writeSources(t, map[string]string{"tourn.csv": tournamentCSV, "yearly.csv": yearlyCSV})

	rep, err := etl.NewLoader(s, quietLogger()).Run(ctx, opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.RunID == "" {
		t.Error("RunID is empty")
	}
	checkStage(t, rep, "players", counts{added: 4, skipped: 1})
	checkStage(t, rep, "courses", counts{added: 2})
	checkStage(t, rep, "tournaments", counts{added: 2})
	checkStage(t, rep, "results", counts{added: 4, skipped: 1})
	checkStage(t, rep, "yearly_stats", counts{added: 2, skipped: 1})

	got, err := s.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	want := store.Counts{Players: 4, Courses: 2, Tournaments: 2, Results: 4, YearlyStats: 2}
	if got != want {
		t.Errorf("counts = %+v, want %+v", got, want)
	}

	howell, err := s.Players().FindByName(ctx, "Charles Howell III")
	if err != nil {
		t.Fatalf("FindByName: %v", err)
	}
	if howell.FirstName != "Charles" || howell.LastName != "Howell III" || howell.Nationality != "USA" {
		t.Errorf("player = %+v", howell)
	}

	augusta, err := model.Courses(s.DB()).Where("course_name = ?", "Augusta National Golf Club").First(ctx)
	if err != nil {
		t.Fatalf("course: %v", err)
	}
	if augusta.Location != "Augusta, GA" || augusta.Par == nil || *augusta.Par != 72 {
		t.Errorf("course = %+v", augusta)
	}

	masters, err := model.Tournaments(s.DB()).Where("external_id = ?", "401056527").First(ctx)
	if err != nil {
		t.Fatalf("tournament: %v", err)
	}
	if masters.CourseID == nil || *masters.CourseID != augusta.ID || !masters.HasCut {
		t.Errorf("tournament = %+v", masters)
	}
	if masters.TournamentDate == nil || masters.TournamentDate.Format("2006-01-02") != "2019-04-14" {
		t.Errorf("tournament date = %v", masters.TournamentDate)
	}

	rows, err := s.ResultRows(ctx, store.ResultFilter{Tournament: "masters"})
	if err != nil {
		t.Fatalf("ResultRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("masters rows = %d, want 3", len(rows))
	}
	if rows[1].PlayerName != "Brooks Koepka" || rows[1].PositionNumeric == nil || *rows[1].PositionNumeric != 2 {
		t.Errorf("second row = %+v", rows[1])
	}
	if rows[2].MadeCut == nil || *rows[2].MadeCut {
		t.Errorf("missed cut row = %+v", rows[2])
	}

	tiger, err := s.Players().FindByName(ctx, "Tiger Woods")
	if err != nil {
		t.Fatalf("FindByName: %v", err)
	}
	stats, err := s.YearlyStats().ForPlayer(ctx, tiger.ID)
	if err != nil {
		t.Fatalf("ForPlayer: %v", err)
	}
	if len(stats) != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if st := stats[0]; st.PrizeMoney == nil || *st.PrizeMoney != 5443841 || st.Points == nil || *st.Points != 1234 {
		t.Errorf("yearly = %+v", st)
	}
}

func TestLoaderStampsRowsWithRunStart(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	start := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	ctx := orm.WithClock(t.Context(), orm.Fixed(start))
	opts := writeSources(t, map[string]string{"tourn.csv": tournamentCSV})

	rep, err := etl.NewLoader(s, quietLogger()).Run(ctx, opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !rep.StartedAt.Equal(start) {
		t.Errorf("StartedAt = %v, want %v", rep.StartedAt, start)
	}

	players, err := s.Players().List(t.Context())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	for _, p := range players {
		if !p.CreatedAt.Equal(start) {
			t.Errorf("%s created_at = %v, want %v", p.FullName(), p.CreatedAt, start)
		}
	}
	courses, err := s.Courses().List(t.Context())
	if err != nil {
		t.Fatalf("List courses: %v", err)
	}
	for _, c := range courses {
		if !c.CreatedAt.Equal(start) {
			t.Errorf("%s created_at = %v, want %v", c.CourseName, c.CreatedAt, start)
		}
	}
}

func TestLoaderRunIsIdempotent(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	ctx := t.Context()
	opts := writeSources(t, map[string]string{"tourn.csv": tournamentCSV, "yearly.csv": yearlyCSV})
	loader := etl.NewLoader(s, quietLogger())

	if _, err := loader.Run(ctx, opts); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	rep, err := loader.Run(ctx, opts)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	checkStage(t, rep, "players", counts{skipped: 1})
	checkStage(t, rep, "courses", counts{})
	checkStage(t, rep, "tournaments", counts{updated: 2})
	checkStage(t, rep, "results", counts{updated: 4, skipped: 1})
	checkStage(t, rep, "yearly_stats", counts{updated: 2, skipped: 1})

	got, err := s.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	want := store.Counts{Players: 4, Courses: 2, Tournaments: 2, Results: 4, YearlyStats: 2}
	if got != want {
		t.Errorf("counts after reload = %+v, want %+v", got, want)
	}
}

func TestLoaderSkipsMissingFile(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	opts := writeSources(t, map[string]string{"yearly.csv": yearlyCSV})

	rep, err := etl.NewLoader(s, quietLogger()).Run(t.Context(), opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rep.Warnings) == 0 || !strings.Contains(rep.Warnings[0], "tournament data not loaded") {
		t.Errorf("warnings = %v", rep.Warnings)
	}
	checkStage(t, rep, "players", counts{added: 2})
	checkStage(t, rep, "courses", counts{})
	checkStage(t, rep, "yearly_stats", counts{added: 2, skipped: 1})
}

func TestLoaderFailsWithoutSources(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	opts := writeSources(t, nil)

	if _, err := etl.NewLoader(s, quietLogger()).Run(t.Context(), opts); !errors.Is(err, etl.ErrNoSources) {
		t.Errorf("Run = %v, want ErrNoSources", err)
	}
}

func TestReportWrite(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	ctx := t.Context()
	opts := writeSources(t, map[string]string{"tourn.csv": tournamentCSV})

	rep, err := etl.NewLoader(s, quietLogger()).Run(ctx, opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	c, err := s.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}

	var buf bytes.Buffer
	if err := rep.Write(&buf, c); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"# Golf Database Load Report",
		rep.RunID,
		"| players | 3 | 0 | 1 |",
		"| yearly | yearly.csv | 0 | skipped:",
		"- **Tournament results**: 4",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}

	path := filepath.Join(t.TempDir(), "reports", "load_report.md")
	if err := rep.Save(path, c); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("report not written: %v", err)
	}
}
