package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/mickamy/golfstats/orm"
)

// Migration is one schema version: DDL statements, an optional Go step
// that runs after them, both inside a single transaction.
type Migration struct {
	Statements []string
	Step       func(ctx context.Context, q orm.Querier) error
}

// Column types differ per engine; DDL is written against these tokens.
var ddlTypes = map[string]*strings.Replacer{
	"sqlite": strings.NewReplacer(
		"{pk}", "INTEGER PRIMARY KEY AUTOINCREMENT",
		"{ref}", "INTEGER",
		"{str}", "VARCHAR(255)",
		"{ts}", "TIMESTAMP",
		"{date}", "DATE",
		"{float}", "REAL",
	),
	"postgres": strings.NewReplacer(
		"{pk}", "BIGSERIAL PRIMARY KEY",
		"{ref}", "BIGINT",
		"{str}", "VARCHAR(255)",
		"{ts}", "TIMESTAMP",
		"{date}", "DATE",
		"{float}", "DOUBLE PRECISION",
	),
	"mysql": strings.NewReplacer(
		"{pk}", "BIGINT AUTO_INCREMENT PRIMARY KEY",
		"{ref}", "BIGINT",
		"{str}", "VARCHAR(255)",
		"{ts}", "DATETIME",
		"{date}", "DATE",
		"{float}", "DOUBLE",
	),
}

// SchemaMigrations upgrades an empty database to the current schema.
var SchemaMigrations = map[string]Migration{
	"0.0.1": {Statements: []string{
		"CREATE TABLE IF NOT EXISTS schema_log (version VARCHAR(32) NOT NULL PRIMARY KEY, date_applied {ts} NOT NULL DEFAULT CURRENT_TIMESTAMP)",
	}},
	"0.0.2": {Statements: []string{
		`CREATE TABLE IF NOT EXISTS players (
			id {pk},
			first_name {str} NOT NULL,
			last_name {str} NOT NULL DEFAULT '',
			nationality {str} NOT NULL DEFAULT 'USA',
			birth_date {date},
			turned_pro_date {date},
			height_cm INTEGER,
			world_ranking INTEGER,
			career_earnings {float},
			created_at {ts} NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at {ts} NOT NULL DEFAULT CURRENT_TIMESTAMP)`,
		`CREATE TABLE IF NOT EXISTS courses (
			id {pk},
			course_name {str} NOT NULL,
			location {str} NOT NULL DEFAULT '',
			country {str},
			par INTEGER,
			yardage INTEGER,
			course_rating {float},
			slope_rating INTEGER,
			architect {str},
			established_year INTEGER,
			created_at {ts} NOT NULL DEFAULT CURRENT_TIMESTAMP)`,
		`CREATE TABLE IF NOT EXISTS tournaments (
			id {pk},
			external_id {str},
			tournament_name {str} NOT NULL,
			course_id {ref} REFERENCES courses(id),
			tournament_date {date},
			end_date {date},
			purse_millions {float},
			season INTEGER,
			has_cut BOOLEAN NOT NULL DEFAULT TRUE,
			field_size INTEGER,
			winning_score INTEGER,
			created_at {ts} NOT NULL DEFAULT CURRENT_TIMESTAMP)`,
		`CREATE TABLE IF NOT EXISTS tournament_results (
			id {pk},
			tournament_id {ref} NOT NULL REFERENCES tournaments(id),
			player_id {ref} NOT NULL REFERENCES players(id),
			external_player_id {str},
			total_strokes INTEGER,
			par_total INTEGER,
			rounds_played INTEGER,
			made_cut BOOLEAN,
			final_position VARCHAR(16),
			position_numeric INTEGER,
			sg_putting {float},
			sg_around_green {float},
			sg_approach {float},
			sg_off_the_tee {float},
			sg_tee_to_green {float},
			sg_total {float},
			dk_points {float},
			fd_points {float},
			sd_points {float})`,
		`CREATE TABLE IF NOT EXISTS rounds (
			id {pk},
			result_id {ref} NOT NULL REFERENCES tournament_results(id),
			round_number INTEGER NOT NULL,
			score INTEGER,
			strokes_gained_total {float},
			fairways_hit INTEGER,
			greens_in_regulation INTEGER,
			putts INTEGER,
			date_played {date})`,
		`CREATE TABLE IF NOT EXISTS player_yearly_stats (
			id {pk},
			player_id {ref} NOT NULL REFERENCES players(id),
			year INTEGER NOT NULL,
			rounds_played INTEGER,
			fairway_percentage {float},
			avg_distance {float},
			greens_in_regulation {float},
			average_putts {float},
			average_scrambling {float},
			average_score {float},
			points INTEGER,
			wins INTEGER,
			top_10_finishes INTEGER,
			avg_sg_putts {float},
			avg_sg_total {float},
			sg_off_the_tee {float},
			sg_approach {float},
			sg_around_green {float},
			prize_money {float})`,
		"CREATE INDEX idx_tournaments_course ON tournaments (course_id)",
		"CREATE INDEX idx_results_tournament ON tournament_results (tournament_id)",
		"CREATE INDEX idx_results_player ON tournament_results (player_id)",
		"CREATE INDEX idx_rounds_result ON rounds (result_id)",
		"CREATE INDEX idx_yearly_player ON player_yearly_stats (player_id)",
	}},
	"0.0.3": {
		Step: func(ctx context.Context, q orm.Querier) error {
			_, err := dedupeCourses(ctx, q, false)
			return err
		},
		Statements: []string{
			"CREATE UNIQUE INDEX ux_players_name ON players (first_name, last_name)",
			"CREATE UNIQUE INDEX ux_courses_name_location ON courses (course_name, location)",
			"CREATE UNIQUE INDEX ux_tournaments_external ON tournaments (external_id)",
			"CREATE UNIQUE INDEX ux_results_tournament_player ON tournament_results (tournament_id, player_id)",
			"CREATE UNIQUE INDEX ux_rounds_result_number ON rounds (result_id, round_number)",
			"CREATE UNIQUE INDEX ux_yearly_player_year ON player_yearly_stats (player_id, year)",
		},
	},
}

// tables in dependency order; Reset drops them back to front.
var tables = []string{"players", "courses", "tournaments", "tournament_results", "rounds", "player_yearly_stats"}

var schemaVersionRegex = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)$`)

// ParseSchemaVersion splits "major.minor.patch".
func ParseSchemaVersion(s string) (major, minor, patch int, err error) {
	ss := schemaVersionRegex.FindStringSubmatch(s)
	if ss == nil {
		return 0, 0, 0, fmt.Errorf("unable to parse schema version %q", s)
	}
	major, _ = strconv.Atoi(ss[1])
	minor, _ = strconv.Atoi(ss[2])
	patch, _ = strconv.Atoi(ss[3])
	return major, minor, patch, nil
}

// SchemaVersionLess orders versions numerically. Unparseable versions
// sort first.
func SchemaVersionLess(a, b string) bool {
	ma, na, pa, errA := ParseSchemaVersion(a)
	mb, nb, pb, errB := ParseSchemaVersion(b)
	if errA != nil || errB != nil {
		return errA != nil && errB == nil
	}
	if ma != mb {
		return ma < mb
	}
	if na != nb {
		return na < nb
	}
	return pa < pb
}

// SchemaVersionKeys returns the versions of migrations in ascending order.
func SchemaVersionKeys(migrations map[string]Migration) []string {
	versions := make([]string, 0, len(migrations))
	for k := range migrations {
		versions = append(versions, k)
	}
	sort.Slice(versions, func(i, j int) bool { return SchemaVersionLess(versions[i], versions[j]) })
	return versions
}

// LatestSchemaVersion is the version Migrate upgrades to.
func LatestSchemaVersion() string {
	versions := SchemaVersionKeys(SchemaMigrations)
	return versions[len(versions)-1]
}

// SchemaVersion reports the highest applied version. A database without
// schema_log is taken to be clean and reports "0.0.0".
func (s *Store) SchemaVersion(ctx context.Context) (string, error) {
	rows, err := orm.QueryRows(ctx, s.db, "SELECT version FROM schema_log")
	if err != nil {
		return "0.0.0", nil //nolint:nilerr // missing table means version zero
	}
	defer func() { _ = rows.Close() }()

	current := "0.0.0"
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return "", fmt.Errorf("reading schema_log: %w", err)
		}
		if SchemaVersionLess(current, v) {
			current = v
		}
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("reading schema_log: %w", err)
	}
	return current, nil
}

// Migrate upgrades the schema to LatestSchemaVersion. Each version runs
// in its own transaction, so a failure leaves earlier versions applied.
func (s *Store) Migrate(ctx context.Context) error {
	return s.MigrateTo(ctx, LatestSchemaVersion())
}

// MigrateTo applies the migrations after the current version up to and
// including target.
func (s *Store) MigrateTo(ctx context.Context, target string) error {
	if _, ok := SchemaMigrations[target]; !ok {
		return fmt.Errorf("%w: unknown schema version %q", ErrInvalid, target)
	}
	current, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	types, ok := ddlTypes[s.Dialect().Name()]
	if !ok {
		return fmt.Errorf("no DDL for dialect %s", s.Dialect().Name())
	}

	for _, version := range SchemaVersionKeys(SchemaMigrations) {
		if !SchemaVersionLess(current, version) {
			continue
		}
		if SchemaVersionLess(target, version) {
			break
		}
		m := SchemaMigrations[version]
		err := s.db.Transaction(ctx, func(tx *orm.Tx) error {
			if m.Step != nil {
				if err := m.Step(ctx, tx); err != nil {
					return err
				}
			}
			for _, stmt := range m.Statements {
				if _, err := orm.Exec(ctx, tx, types.Replace(stmt)); err != nil {
					return fmt.Errorf("%s: %w", firstLine(stmt), err)
				}
			}
			_, err := orm.Exec(ctx, tx, "INSERT INTO schema_log (version) VALUES (?)", version)
			return err
		})
		if err != nil {
			return fmt.Errorf("migrating to %s: %w", version, err)
		}
		s.log.WithField("version", version).Info("schema migrated")
	}
	return nil
}

// Reset drops every table including schema_log.
func (s *Store) Reset(ctx context.Context) error {
	drop := append(append([]string{}, tables...), "schema_log")
	for i := len(drop) - 1; i >= 0; i-- {
		stmt := "DROP TABLE IF EXISTS " + drop[i]
		if s.Dialect().Name() == "postgres" {
			stmt += " CASCADE"
		}
		if _, err := orm.Exec(ctx, s.db, stmt); err != nil {
			return fmt.Errorf("dropping %s: %w", drop[i], err)
		}
	}
	s.log.Warn("all tables dropped")
	return nil
}

func firstLine(stmt string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(stmt), "\n")
	return line
}

var errNoSchema = errors.New("schema is not migrated; run setup first")

// RequireSchema fails unless the database is at LatestSchemaVersion.
func (s *Store) RequireSchema(ctx context.Context) error {
	v, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	if SchemaVersionLess(v, LatestSchemaVersion()) {
		return fmt.Errorf("%w (at %s, want %s)", errNoSchema, v, LatestSchemaVersion())
	}
	return nil
}
