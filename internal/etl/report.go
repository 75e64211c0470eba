package etl

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/mickamy/golfstats/internal/store"
)

// maxStageWarnings caps the per-stage warnings kept in a report; the
// remainder are only counted.
const maxStageWarnings = 20

// SourceReport describes one input file.
type SourceReport struct {
	Kind   string `json:"kind"`
	Path   string `json:"path"`
	Loaded bool   `json:"loaded"`
	Rows   int    `json:"rows"`
	Error  string `json:"error,omitempty"`
}

// StageReport counts what one stage did.
type StageReport struct {
	Name     string        `json:"name"`
	Added    int           `json:"added"`
	Updated  int           `json:"updated"`
	Skipped  int           `json:"skipped"`
	Duration time.Duration `json:"duration"`

	warnings   []string
	suppressed int
}

func (s *StageReport) warn(msg string) {
	if len(s.warnings) >= maxStageWarnings {
		s.suppressed++
		return
	}
	s.warnings = append(s.warnings, msg)
}

// Report is the outcome of one Loader.Run.
type Report struct {
	RunID      string         `json:"run_id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Sources    []SourceReport `json:"sources"`
	Stages     []StageReport  `json:"stages"`
	Warnings   []string       `json:"warnings"`
}

func (r *Report) warn(msgs ...string) {
	r.Warnings = append(r.Warnings, msgs...)
}

// Stage returns the named stage, or a zero report when it did not run.
func (r *Report) Stage(name string) StageReport {
	for _, s := range r.Stages {
		if s.Name == name {
			return s
		}
	}
	return StageReport{Name: name}
}

// Write renders the report as markdown, with table totals from counts.
func (r *Report) Write(w io.Writer, counts store.Counts) error {
	bw := bufio.NewWriter(w)
	p := func(format string, args ...any) { fmt.Fprintf(bw, format, args...) }

	p("# Golf Database Load Report\n\n")
	p("- Run: `%s`\n", r.RunID)
	p("- Started: %s\n", r.StartedAt.Format("2006-01-02 15:04:05"))
	p("- Finished: %s (%s)\n\n", r.FinishedAt.Format("2006-01-02 15:04:05"), r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))

	p("## Sources\n\n| kind | file | rows | status |\n|---|---|---:|---|\n")
	for _, s := range r.Sources {
		status := "loaded"
		if !s.Loaded {
			status = "skipped: " + s.Error
		}
		p("| %s | %s | %d | %s |\n", s.Kind, filepath.Base(s.Path), s.Rows, status)
	}

	p("\n## Stages\n\n| stage | added | updated | skipped | time |\n|---|---:|---:|---:|---:|\n")
	for _, s := range r.Stages {
		p("| %s | %d | %d | %d | %s |\n", s.Name, s.Added, s.Updated, s.Skipped, s.Duration.Round(time.Millisecond))
	}

	p("\n## Database totals\n\n")
	p("- **Players**: %d\n", counts.Players)
	p("- **Courses**: %d\n", counts.Courses)
	p("- **Tournaments**: %d\n", counts.Tournaments)
	p("- **Tournament results**: %d\n", counts.Results)
	p("- **Yearly statistics**: %d\n", counts.YearlyStats)
	p("- **Rounds**: %d\n", counts.Rounds)

	if len(r.Warnings) > 0 || r.suppressed() > 0 {
		p("\n## Warnings\n\n")
		for _, w := range r.Warnings {
			p("- %s\n", w)
		}
		if n := r.suppressed(); n > 0 {
			p("- … and %d more\n", n)
		}
	}
	return bw.Flush() //nolint:wrapcheck // pass through
}

func (r *Report) suppressed() int {
	n := 0
	for _, s := range r.Stages {
		n += s.suppressed
	}
	return n
}

// Save writes the markdown report to path, creating parent directories.
func (r *Report) Save(path string, counts store.Counts) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report: %w", err)
	}
	if err := r.Write(f, counts); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing report: %w", err)
	}
	return f.Close() //nolint:wrapcheck // pass through
}
