package nlq_test

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mickamy/golfstats/internal/model"
	"github.com/mickamy/golfstats/internal/nlq"
	"github.com/mickamy/golfstats/internal/store"
)

func ptr[T any](v T) *T { return &v }

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type fixture struct {
	store *store.Store
	tiger model.Player
}

// newFixture loads two Masters and one Memorial with a handful of
// results and yearly stats.
func newFixture(t *testing.T) fixture {
	t.Helper()

	ctx := t.Context()
	s, err := store.Open(ctx, "sqlite://:memory:", quietLogger(), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	db := s.DB()

	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}

	augusta := model.Course{CourseName: "Augusta National Golf Club", Location: "Augusta, GA", Par: ptr(72)}
	must(model.Courses(db).Create(ctx, &augusta))
	muirfield := model.Course{CourseName: "Muirfield Village Golf Club", Location: "Dublin, OH", Par: ptr(72)}
	must(model.Courses(db).Create(ctx, &muirfield))

	players := map[string]*model.Player{}
	for _, n := range []string{"Tiger Woods", "Brooks Koepka", "Patrick Reed"} {
		first, last := model.SplitName(n)
		p := &model.Player{FirstName: first, LastName: last, Nationality: model.DefaultNationality}
		must(model.Players(db).Create(ctx, p))
		players[n] = p
	}

	tournament := func(ext, name string, course int64, date *time.Time) model.Tournament {
		tr := model.Tournament{
			ExternalID: ptr(ext), TournamentName: name, CourseID: ptr(course),
			TournamentDate: date, Season: ptr(date.Year()), HasCut: true,
		}
		must(model.Tournaments(db).Create(ctx, &tr))
		return tr
	}
	m19 := tournament("m19", "Masters Tournament", augusta.ID, day(2019, 4, 14))
	m18 := tournament("m18", "Masters Tournament", augusta.ID, day(2018, 4, 8))
	mem := tournament("mem19", "Memorial Tournament", muirfield.ID, day(2019, 6, 2))

	result := func(tr model.Tournament, player string, pos *int, finish string, strokes, rounds int, made bool) {
		r := model.TournamentResult{
			TournamentID: tr.ID, PlayerID: players[player].ID,
			TotalStrokes: ptr(strokes), ParTotal: ptr(72 * rounds), RoundsPlayed: ptr(rounds),
			MadeCut: ptr(made), PositionNumeric: pos, SGTotal: ptr(float64(300-strokes) / 10),
		}
		if finish != "" {
			r.FinalPosition = ptr(finish)
		}
		must(model.TournamentResults(db).Create(ctx, &r))
	}
	result(m19, "Tiger Woods", ptr(1), "1", 275, 4, true)
	result(m19, "Brooks Koepka", ptr(2), "T2", 276, 4, true)
	result(m19, "Patrick Reed", nil, "CUT", 150, 2, false)
	result(m18, "Patrick Reed", ptr(1), "1", 273, 4, true)
	result(m18, "Tiger Woods", ptr(32), "T32", 289, 4, true)
	result(mem, "Tiger Woods", nil, "", 280, 4, true)
	result(mem, "Brooks Koepka", nil, "", 282, 4, true)

	yearly := func(player string, year int, money float64, sgPutts float64) {
		y := model.PlayerYearlyStats{PlayerID: players[player].ID, Year: year, PrizeMoney: ptr(money), AvgSGPutts: ptr(sgPutts)}
		must(model.YearlyStats(db).Create(ctx, &y))
	}
	yearly("Tiger Woods", 2018, 5443841, 0.3)
	yearly("Brooks Koepka", 2018, 7094047, 0.1)

	return fixture{store: s, tiger: *players["Tiger Woods"]}
}

func column(a *nlq.Answer, col string) []string {
	out := make([]string, len(a.Rows))
	for i, r := range a.Rows {
		out[i] = fmt.Sprint(r[col])
	}
	return out
}

func TestEngineAsk(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	engine := nlq.NewEngine(f.store, quietLogger())

	tests := []struct {
		question string
		kind     nlq.Kind
		col      string
		want     []string
	}{
		{"Who won the Masters in 2019?", nlq.KindWinner, "player", []string{"Tiger Woods"}},
		{"Who won the Masters?", nlq.KindWinner, "season", []string{"2019", "2018"}},
		{"who won the Memorial", nlq.KindWinner, "player", []string{"Tiger Woods"}},
		{"most wins", nlq.KindMostWins, "player", []string{"Patrick Reed", "Tiger Woods"}},
		{"who missed the cut at the masters 2019", nlq.KindMissedCut, "player", []string{"Patrick Reed"}},
		{"who made the cut at the masters 2019", nlq.KindMadeCut, "player", []string{"Tiger Woods", "Brooks Koepka"}},
		{"Masters leaderboard", nlq.KindLeaderboard, "player", []string{"Tiger Woods", "Brooks Koepka", "Patrick Reed"}},
		{"Masters leaderboard 2018", nlq.KindLeaderboard, "player", []string{"Patrick Reed", "Tiger Woods"}},
		{"money leaders 2018", nlq.KindMoneyLeaders, "player", []string{"Brooks Koepka", "Tiger Woods"}},
		{"best putting 2018", nlq.KindCategoryLeaders, "player", []string{"Tiger Woods", "Brooks Koepka"}},
		{"Tiger Woods strokes gained", nlq.KindBestSG, "tournament_name", []string{"Masters Tournament", "Memorial Tournament", "Masters Tournament"}},
		{"Koepka results", nlq.KindPlayerResults, "tournament_name", []string{"Memorial Tournament", "Masters Tournament"}},
		{"tournaments at Augusta National Golf Club", nlq.KindCourseTournaments, "season", []string{"2019", "2018"}},
		{"hardest course", nlq.KindCourseScoring, "course_name", []string{"Augusta National Golf Club", "Muirfield Village Golf Club"}},
		{"tournaments in Dublin, OH", nlq.KindCourseTournaments, "tournament_name", []string{"Memorial Tournament"}},
		{"augusta", nlq.KindCourseTournaments, "season", []string{"2019", "2018"}},
		{"village", nlq.KindSearch, "type", []string{"course"}},
		{"rory", nlq.KindSearch, "type", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			t.Parallel()

			ans, err := engine.Ask(t.Context(), tt.question)
			if err != nil {
				t.Fatalf("Ask: %v", err)
			}
			if ans.Intent.Kind != tt.kind {
				t.Errorf("Kind = %s, want %s", ans.Intent.Kind, tt.kind)
			}
			got := column(ans, tt.col)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("%s = %v, want %v", tt.col, got, tt.want)
			}
			if ans.Count != len(ans.Rows) {
				t.Errorf("Count = %d, rows = %d", ans.Count, len(ans.Rows))
			}
		})
	}
}

func TestEngineAskEmpty(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	engine := nlq.NewEngine(f.store, quietLogger())
	if _, err := engine.Ask(t.Context(), "  ?! "); !errors.Is(err, nlq.ErrEmptyQuestion) {
		t.Errorf("Ask = %v, want ErrEmptyQuestion", err)
	}
}

func TestEngineRefresh(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := t.Context()
	engine := nlq.NewEngine(f.store, quietLogger())

	if ans, err := engine.Ask(ctx, "Rory McIlroy"); err != nil || ans.Intent.Kind != nlq.KindSearch {
		t.Fatalf("before insert = %+v, %v", ans, err)
	}
	rory := model.Player{FirstName: "Rory", LastName: "McIlroy", Nationality: "NIR"}
	if err := model.Players(f.store.DB()).Create(ctx, &rory); err != nil {
		t.Fatal(err)
	}
	engine.Refresh()
	ans, err := engine.Ask(ctx, "Rory McIlroy")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if ans.Intent.Kind != nlq.KindPlayerResults || ans.Intent.Player.ID != rory.ID {
		t.Errorf("after refresh = %+v", ans.Intent)
	}
}

func TestAnswerWriteText(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ans, err := nlq.NewEngine(f.store, quietLogger()).Ask(t.Context(), "Tiger Woods results")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	var buf bytes.Buffer
	if err := ans.WriteText(&buf); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Recent results for Tiger Woods", "tournament_name", "Memorial Tournament", "T32"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if f.tiger.ID == 0 {
		t.Error("fixture player has no id")
	}
}
