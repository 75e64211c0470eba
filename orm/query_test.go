package orm_test

import (
	"database/sql"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/mickamy/golfstats/orm"
	"github.com/mickamy/golfstats/scope"
)

type testCourse struct {
	ID        int
	Name      string
	Location  string
	CreatedAt time.Time
}

var testCourseColumns = []string{"id", "course_name", "location", "created_at"}

func scanTestCourse(_ *sql.Rows) (testCourse, error) {
	return testCourse{}, nil
}

func testCourseColValPairs(c *testCourse, includesPK bool) ([]string, []any) {
	if includesPK {
		return []string{"id", "course_name", "location", "created_at"}, []any{c.ID, c.Name, c.Location, c.CreatedAt}
	}
	return []string{"course_name", "location", "created_at"}, []any{c.Name, c.Location, c.CreatedAt}
}

func setTestCoursePK(c *testCourse, id int64) {
	c.ID = int(id)
}

func newTestQuery(tq *orm.TestQuerier) *orm.Query[testCourse] {
	q := orm.NewQuery[testCourse](tq, "courses", testCourseColumns, "id", scanTestCourse, testCourseColValPairs, setTestCoursePK)
	q.RegisterTimestamps([]string{"created_at"}, func(c *testCourse, now time.Time) {
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
	}, nil)
	q.RegisterJoin("Tournaments", orm.JoinConfig{
		TargetTable: "tournaments", TargetColumn: "course_id",
		SourceTable: "courses", SourceColumn: "id",
	})
	return q
}


// --- SELECT ---

func TestBuildSelect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		build func(q *orm.Query[testCourse]) *orm.Query[testCourse]
		want  string
		args  int
	}{
		{
			name:  "all",
			build: func(q *orm.Query[testCourse]) *orm.Query[testCourse] { return q },
			want:  "SELECT `id`, `course_name`, `location`, `created_at` FROM `courses`",
		},
		{
			name: "where chain",
			build: func(q *orm.Query[testCourse]) *orm.Query[testCourse] {
				return q.Where("course_name = ?", "Augusta National").Where("id > ?", 10)
			},
			want: "SELECT `id`, `course_name`, `location`, `created_at` FROM `courses` WHERE course_name = ? AND id > ?",
			args: 2,
		},
		{
			name: "order limit offset",
			build: func(q *orm.Query[testCourse]) *orm.Query[testCourse] {
				return q.OrderBy("course_name ASC").Limit(10).Offset(20)
			},
			want: "SELECT `id`, `course_name`, `location`, `created_at` FROM `courses` ORDER BY course_name ASC LIMIT 10 OFFSET 20",
		},
		{
			name:  "custom columns",
			build: func(q *orm.Query[testCourse]) *orm.Query[testCourse] { return q.Select("id") },
			want:  "SELECT id FROM `courses`",
		},
		{
			name: "join qualifies columns",
			build: func(q *orm.Query[testCourse]) *orm.Query[testCourse] {
				return q.Join("Tournaments").Where("tournaments.season = ?", 2019)
			},
			want: "SELECT `courses`.`id`, `courses`.`course_name`, `courses`.`location`, `courses`.`created_at` FROM `courses` " +
				"INNER JOIN `tournaments` ON `tournaments`.`course_id` = `courses`.`id` WHERE tournaments.season = ?",
			args: 1,
		},
		{
			name:  "unknown join is ignored",
			build: func(q *orm.Query[testCourse]) *orm.Query[testCourse] { return q.LeftJoin("Nope") },
			want:  "SELECT `id`, `course_name`, `location`, `created_at` FROM `courses`",
		},
		{
			name: "scopes",
			build: func(q *orm.Query[testCourse]) *orm.Query[testCourse] {
				return q.Scopes(
					scope.Like("location", "Georgia"),
					scope.OrderBy("id DESC"),
				).Scopes(scope.Paginate(3, 5)...)
			},
			want: "SELECT `id`, `course_name`, `location`, `created_at` FROM `courses` WHERE LOWER(location) LIKE ? ORDER BY id DESC LIMIT 5 OFFSET 10",
			args: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tq := orm.NewTestQuerier(orm.MySQL)
			_, _ = tt.build(newTestQuery(tq)).All(t.Context())

			got := tq.LastQuery()
			if got.SQL != tt.want {
				t.Errorf("SQL = %q, want %q", got.SQL, tt.want)
			}
			if len(got.Args) != tt.args {
				t.Errorf("Args = %v, want %d args", got.Args, tt.args)
			}
		})
	}
}

func TestQueryImmutability(t *testing.T) {
	t.Parallel()

	tq := orm.NewTestQuerier(orm.MySQL)
	base := newTestQuery(tq)

	_ = base.Where("course_name = ?", "Pebble Beach")
	_ = base.OrderBy("id")
	_ = base.Limit(10)
	_ = base.Offset(5)
	_ = base.Join("Tournaments")

	_, _ = base.All(t.Context())

	got := tq.LastQuery()
	want := "SELECT `id`, `course_name`, `location`, `created_at` FROM `courses`"
	if got.SQL != want {
		t.Errorf("base query was mutated: SQL = %q", got.SQL)
	}
}

func TestFirstAddsLimit(t *testing.T) {
	t.Parallel()

	tq := orm.NewTestQuerier(orm.SQLite)
	_, _ = newTestQuery(tq).Where("id = ?", 3).First(t.Context())

	got := tq.LastQuery()
	want := `SELECT "id", "course_name", "location", "created_at" FROM "courses" WHERE id = ? LIMIT 1`
	if got.SQL != want {
		t.Errorf("SQL = %q, want %q", got.SQL, want)
	}
}

func TestRewritePostgreSQLSelect(t *testing.T) {
	t.Parallel()

	tq := orm.NewTestQuerier(orm.PostgreSQL)
	_, _ = newTestQuery(tq).Where("course_name = ?", "Augusta").Where("id > ?", 10).All(t.Context())

	got := tq.LastQuery()
	want := `SELECT "id", "course_name", "location", "created_at" FROM "courses" WHERE course_name = $1 AND id > $2`
	if got.SQL != want {
		t.Errorf("SQL = %q, want %q", got.SQL, want)
	}
}

// --- INSERT ---

func TestBuildInsert(t *testing.T) {
	t.Parallel()

	stamp := time.Date(2024, 4, 11, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		dialect orm.Dialect
		want    string
	}{
		{orm.MySQL, "INSERT INTO `courses` (`course_name`, `location`, `created_at`) VALUES (?, ?, ?)"},
		{orm.SQLite, `INSERT INTO "courses" ("course_name", "location", "created_at") VALUES (?, ?, ?)`},
		{orm.PostgreSQL, `INSERT INTO "courses" ("course_name", "location", "created_at") VALUES ($1, $2, $3) RETURNING "id"`},
	}
	for _, tt := range tests {
		t.Run(tt.dialect.Name(), func(t *testing.T) {
			t.Parallel()

			tq := orm.NewTestQuerier(tt.dialect)
			c := testCourse{Name: "Augusta National Golf Club", Location: "Augusta, Georgia"}
			_ = newTestQuery(tq).Create(orm.WithClock(t.Context(), orm.Fixed(stamp)), &c)

			got := tq.LastQuery()
			if got.SQL != tt.want {
				t.Errorf("SQL = %q, want %q", got.SQL, tt.want)
			}
			if len(got.Args) != 3 || got.Args[2] != stamp {
				t.Errorf("Args = %v, want created_at %v", got.Args, stamp)
			}
		})
	}
}

func TestBuildBatchInsert(t *testing.T) {
	t.Parallel()

	tq := orm.NewTestQuerier(orm.SQLite)
	items := []*testCourse{{Name: "A", Location: "X"}, {Name: "B", Location: "Y"}}
	_ = newTestQuery(tq).CreateAll(t.Context(), items)

	got := tq.LastQuery()
	want := `INSERT INTO "courses" ("course_name", "location", "created_at") VALUES (?, ?, ?), (?, ?, ?)`
	if got.SQL != want {
		t.Errorf("SQL = %q, want %q", got.SQL, want)
	}
	if len(got.Args) != 6 {
		t.Errorf("len(Args) = %d, want 6", len(got.Args))
	}
}

// --- UPSERT ---

func TestBuildUpsertNaturalKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		dialect orm.Dialect
		want    string
	}{
		{
			orm.MySQL,
			"INSERT INTO `courses` (`course_name`, `location`, `created_at`) VALUES (?, ?, ?) " +
				"ON DUPLICATE KEY UPDATE `location` = VALUES(`location`)",
		},
		{
			orm.PostgreSQL,
			`INSERT INTO "courses" ("course_name", "location", "created_at") VALUES ($1, $2, $3) ` +
				`ON CONFLICT ("course_name") DO UPDATE SET "location" = EXCLUDED."location" RETURNING "id"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.dialect.Name(), func(t *testing.T) {
			t.Parallel()

			tq := orm.NewTestQuerier(tt.dialect)
			c := testCourse{Name: "Pebble Beach Golf Links", Location: "Pebble Beach, California"}
			_ = newTestQuery(tq).Upsert(t.Context(), &c, "course_name")

			// PostgreSQL records the RETURNING insert; MySQL records the
			// insert followed by the natural-key lookup.
			got := tq.Queries[0]
			if got.SQL != tt.want {
				t.Errorf("SQL = %q, want %q", got.SQL, tt.want)
			}
		})
	}
}

func TestUpsertNaturalKeyLooksUpID(t *testing.T) {
	t.Parallel()

	tq := orm.NewTestQuerier(orm.SQLite)
	c := testCourse{Name: "TPC Sawgrass", Location: "Ponte Vedra Beach, Florida"}
	_ = newTestQuery(tq).Upsert(t.Context(), &c, "course_name", "location")

	if len(tq.Queries) != 2 {
		t.Fatalf("len(Queries) = %d, want 2", len(tq.Queries))
	}
	wantInsert := `INSERT INTO "courses" ("course_name", "location", "created_at") VALUES (?, ?, ?) ` +
		`ON CONFLICT ("course_name", "location") DO NOTHING`
	if got := tq.Queries[0].SQL; got != wantInsert {
		t.Errorf("SQL = %q, want %q", got, wantInsert)
	}
	wantLookup := `SELECT "id" FROM "courses" WHERE "course_name" = ? AND "location" = ? LIMIT 1`
	if got := tq.Queries[1].SQL; got != wantLookup {
		t.Errorf("SQL = %q, want %q", got, wantLookup)
	}
}

func TestBuildUpsertPrimaryKey(t *testing.T) {
	t.Parallel()

	tq := orm.NewTestQuerier(orm.SQLite)
	c := testCourse{ID: 7, Name: "Riviera", Location: "Pacific Palisades, California"}
	_ = newTestQuery(tq).Upsert(t.Context(), &c)

	got := tq.LastQuery()
	want := `INSERT INTO "courses" ("id", "course_name", "location", "created_at") VALUES (?, ?, ?, ?) ` +
		`ON CONFLICT ("id") DO UPDATE SET "course_name" = EXCLUDED."course_name", "location" = EXCLUDED."location"`
	if got.SQL != want {
		t.Errorf("SQL = %q, want %q", got.SQL, want)
	}
}

// --- UPDATE ---

func TestBuildUpdate(t *testing.T) {
	t.Parallel()

	tq := orm.NewTestQuerier(orm.PostgreSQL)
	c := testCourse{ID: 1, Name: "Bay Hill", Location: "Orlando, Florida"}
	_ = newTestQuery(tq).Update(t.Context(), &c)

	got := tq.LastQuery()
	want := `UPDATE "courses" SET "course_name" = $1, "location" = $2, "created_at" = $3 WHERE "id" = $4`
	if got.SQL != want {
		t.Errorf("SQL = %q, want %q", got.SQL, want)
	}
	if len(got.Args) != 4 || got.Args[3] != 1 {
		t.Errorf("Args = %v", got.Args)
	}
}

func TestBuildUpdateColumns(t *testing.T) {
	t.Parallel()

	tq := orm.NewTestQuerier(orm.MySQL)
	_, err := newTestQuery(tq).
		Scopes(scope.In("id", []int{4, 9})).
		UpdateColumns(t.Context(), map[string]any{"location": "Augusta, Georgia", "course_name": "Augusta National"})
	if err != nil {
		t.Fatalf("UpdateColumns: %v", err)
	}

	got := tq.LastQuery()
	want := "UPDATE `courses` SET `course_name` = ?, `location` = ? WHERE id IN (?, ?)"
	if got.SQL != want {
		t.Errorf("SQL = %q, want %q", got.SQL, want)
	}
	if len(got.Args) != 4 || got.Args[0] != "Augusta National" || got.Args[3] != 9 {
		t.Errorf("Args = %v", got.Args)
	}
}

func TestUpdateColumnsWithoutWhereReturnsError(t *testing.T) {
	t.Parallel()

	tq := orm.NewTestQuerier(orm.MySQL)
	if _, err := newTestQuery(tq).UpdateColumns(t.Context(), map[string]any{"location": "x"}); !errors.Is(err, orm.ErrUnscoped) {
		t.Fatalf("err = %v, want ErrUnscoped", err)
	}
	if len(tq.Queries) != 0 {
		t.Errorf("unexpected queries: %v", tq.Queries)
	}
}

// --- DELETE ---

func TestBuildDelete(t *testing.T) {
	t.Parallel()

	tq := orm.NewTestQuerier(orm.PostgreSQL)
	_, _ = newTestQuery(tq).Where("id = ?", 1).Delete(t.Context())

	got := tq.LastQuery()
	want := `DELETE FROM "courses" WHERE id = $1`
	if got.SQL != want {
		t.Errorf("SQL = %q, want %q", got.SQL, want)
	}
}

func TestDeleteWithoutWhereReturnsError(t *testing.T) {
	t.Parallel()

	tq := orm.NewTestQuerier(orm.MySQL)
	if _, err := newTestQuery(tq).Delete(t.Context()); !errors.Is(err, orm.ErrUnscoped) {
		t.Fatalf("err = %v, want ErrUnscoped", err)
	}
	if len(tq.Queries) != 0 {
		t.Errorf("unexpected queries: %v", tq.Statements())
	}
}

func TestUpdateWithoutPrimaryKeyReturnsError(t *testing.T) {
	t.Parallel()

	tq := orm.NewTestQuerier(orm.SQLite)
	err := newTestQuery(tq).Update(t.Context(), &testCourse{Name: "Harbour Town"})
	if !errors.Is(err, orm.ErrNoPrimaryKey) {
		t.Fatalf("err = %v, want ErrNoPrimaryKey", err)
	}
	if len(tq.Queries) != 0 {
		t.Errorf("unexpected queries: %v", tq.Statements())
	}
}

func TestExecReportsRowsAndErrors(t *testing.T) {
	t.Parallel()

	tq := orm.NewTestQuerier(orm.SQLite)
	tq.Affected = 3
	n, err := newTestQuery(tq).Where("location = ?", "Ponte Vedra").Delete(t.Context())
	if err != nil || n != 3 {
		t.Fatalf("Delete = %d, %v", n, err)
	}

	boom := errors.New("disk full")
	tq.Reset()
	tq.ExecErr = boom
	_, err = newTestQuery(tq).Where("id = ?", 1).UpdateColumns(t.Context(), map[string]any{"location": "x"})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	want := []string{`UPDATE "courses" SET "location" = ? WHERE id = ?`}
	if got := tq.Statements(); !slices.Equal(got, want) {
		t.Errorf("statements = %q, want %q", got, want)
	}
}

func TestClockFunc(t *testing.T) {
	t.Parallel()

	stamp := time.Date(2019, 4, 14, 18, 0, 0, 0, time.UTC)
	ctx := orm.WithClock(t.Context(), orm.Fixed(stamp))
	c, ok := orm.ClockFrom(ctx)
	if !ok || !c.Now().Equal(stamp) {
		t.Fatalf("ClockFrom = %v, %v", c, ok)
	}
	if _, ok := orm.ClockFrom(orm.WithClock(t.Context(), nil)); ok {
		t.Error("a nil Clock was attached")
	}
}

// --- Count ---

func TestBuildCount(t *testing.T) {
	t.Parallel()

	tq := orm.NewTestQuerier(orm.SQLite)
	_, _ = newTestQuery(tq).Join("Tournaments").Where("tournaments.season = ?", 2018).Count(t.Context())

	got := tq.LastQuery()
	want := `SELECT COUNT(*) FROM "courses" INNER JOIN "tournaments" ON "tournaments"."course_id" = "courses"."id" WHERE tournaments.season = ?`
	if got.SQL != want {
		t.Errorf("SQL = %q, want %q", got.SQL, want)
	}
}

// --- Raw ---

func TestQueryMapsRewritesPlaceholders(t *testing.T) {
	t.Parallel()

	tq := orm.NewTestQuerier(orm.PostgreSQL)
	_, err := orm.QueryMaps(t.Context(), tq, "SELECT * FROM players WHERE last_name = ? AND id > ?", "Woods", 0)
	if err == nil {
		t.Fatal("expected mock error, got nil")
	}

	got := tq.LastQuery()
	want := "SELECT * FROM players WHERE last_name = $1 AND id > $2"
	if got.SQL != want {
		t.Errorf("SQL = %q, want %q", got.SQL, want)
	}
}
