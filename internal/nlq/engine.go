// Package nlq answers plain-English golf questions by matching keywords
// and known names onto a fixed set of parameterized SQL templates.
package nlq

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mickamy/golfstats/internal/store"
	"github.com/mickamy/golfstats/orm"
)

var ErrEmptyQuestion = errors.New("question is empty")

// Answer is the response to one question.
type Answer struct {
	Question    string           `json:"question"`
	Intent      Intent           `json:"intent"`
	Description string           `json:"description"`
	Columns     []string         `json:"columns"`
	Rows        []map[string]any `json:"rows"`
	Count       int              `json:"count"`
}

// Engine runs questions against a store. The vocabulary is loaded on
// first use and kept until Refresh.
type Engine struct {
	store *store.Store
	log   logrus.FieldLogger

	mu    sync.Mutex
	vocab *Vocabulary
}

func NewEngine(s *store.Store, log logrus.FieldLogger) *Engine {
	return &Engine{store: s, log: log}
}

// Vocabulary returns the cached vocabulary, loading it if needed.
func (e *Engine) Vocabulary(ctx context.Context) (*Vocabulary, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.vocab != nil {
		return e.vocab, nil
	}
	v, err := LoadVocabulary(ctx, e.store)
	if err != nil {
		return nil, err
	}
	e.vocab = v
	return v, nil
}

// Refresh drops the cached vocabulary so the next question reloads it.
func (e *Engine) Refresh() {
	e.mu.Lock()
	e.vocab = nil
	e.mu.Unlock()
}

// Ask parses question, runs the matching template and returns the rows.
func (e *Engine) Ask(ctx context.Context, question string) (*Answer, error) {
	if Normalize(question) == "" {
		return nil, ErrEmptyQuestion
	}
	vocab, err := e.Vocabulary(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	in := Parse(question, vocab)
	tmpl, args := Plan(in)
	ans := &Answer{Question: question, Intent: in, Description: tmpl.Description}

	var rows orm.Rows
	if in.Kind == KindSearch {
		rows, err = e.search(ctx, in)
	} else {
		rows, err = e.run(ctx, tmpl, args)
	}
	if err != nil {
		return nil, fmt.Errorf("answering %s question: %w", in.Kind, err)
	}
	ans.Columns, ans.Rows, ans.Count = rows.Columns, rows.Rows, len(rows.Rows)

	e.log.WithFields(logrus.Fields{
		"intent":  in.Kind,
		"rows":    ans.Count,
		"elapsed": time.Since(start).Round(time.Millisecond),
	}).Debug("question answered")
	return ans, nil
}

func (e *Engine) run(ctx context.Context, tmpl SQLTemplate, args []any) (orm.Rows, error) {
	primary, fallback := tmpl.Render(e.store.Dialect())
	rows, err := orm.QueryMaps(ctx, e.store.DB(), primary, args...)
	if err != nil || len(rows.Rows) > 0 || fallback == "" {
		return rows, err //nolint:wrapcheck // wrapped by caller
	}
	return orm.QueryMaps(ctx, e.store.DB(), fallback, args...) //nolint:wrapcheck // wrapped by caller
}

func (e *Engine) search(ctx context.Context, in Intent) (orm.Rows, error) {
	out := orm.Rows{Columns: []string{"type", "id", "name", "detail"}, Rows: []map[string]any{}}
	if in.Text == "" {
		return out, nil
	}
	res, err := e.store.Search(ctx, in.Text, in.Limit)
	if err != nil {
		return orm.Rows{}, err //nolint:wrapcheck // wrapped by caller
	}
	add := func(kind string, id int64, name, detail string) {
		out.Rows = append(out.Rows, map[string]any{"type": kind, "id": id, "name": name, "detail": detail})
	}
	for _, p := range res.Players {
		add("player", p.ID, p.FullName(), p.Nationality)
	}
	for _, t := range res.Tournaments {
		detail := ""
		if t.Season != nil {
			detail = fmt.Sprintf("season %d", *t.Season)
		}
		add("tournament", t.ID, t.TournamentName, detail)
	}
	for _, c := range res.Courses {
		add("course", c.ID, c.CourseName, c.Location)
	}
	return out, nil
}

// WriteText prints the answer as an aligned plain-text table.
func (a *Answer) WriteText(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "%s (%s)\n\n", a.Description, a.Intent.Kind); err != nil {
		return err //nolint:wrapcheck // pass through
	}
	if len(a.Rows) == 0 {
		_, err := fmt.Fprintln(w, "No results.")
		return err //nolint:wrapcheck // pass through
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for i, c := range a.Columns {
		if i > 0 {
			fmt.Fprint(tw, "\t")
		}
		fmt.Fprint(tw, c)
	}
	fmt.Fprintln(tw)
	for _, row := range a.Rows {
		for i, c := range a.Columns {
			if i > 0 {
				fmt.Fprint(tw, "\t")
			}
			fmt.Fprint(tw, FormatCell(row[c]))
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush() //nolint:wrapcheck // pass through
}

// FormatCell renders one answer value for text output.
func FormatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return "-"
	case float64:
		return fmt.Sprintf("%.2f", x)
	case time.Time:
		return x.Format("2006-01-02")
	case bool:
		if x {
			return "yes"
		}
		return "no"
	default:
		return fmt.Sprint(x)
	}
}
