package nlq

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mickamy/golfstats/internal/model"
	"github.com/mickamy/golfstats/internal/store"
	"github.com/mickamy/golfstats/orm"
)

// minLastName is the shortest last name matched on its own; shorter ones
// ("Day", "Kim") collide with ordinary words.
const minLastName = 4

// Entry is one matchable name.
type Entry struct {
	Name string // display form, as stored
	Key  string // normalized form used for matching
	ID   int64  // players only
	Like string // tournaments only: lowercase substring for LIKE
}

// Alias maps a colloquial phrase onto tournaments whose name contains
// Like (case-insensitive).
type Alias struct {
	Phrase string
	Like   string
}

// TournamentAliases are the short names people use for the majors and a
// few regular stops.
var TournamentAliases = []Alias{
	{"masters", "masters"},
	{"the masters", "masters"},
	{"memorial", "memorial"},
	{"pebble beach", "pebble beach"},
	{"players championship", "players championship"},
	{"the players", "players championship"},
	{"us open", "u.s. open"},
	{"u s open", "u.s. open"},
	{"pga championship", "pga championship"},
	{"open championship", "open championship"},
	{"british open", "open championship"},
}

// Vocabulary is the set of names a question can refer to.
type Vocabulary struct {
	Players     []Entry
	Tournaments []Entry
	Courses     []Entry

	lastNames map[string]Entry
}

// PlayerName is the minimal player shape NewVocabulary needs.
type PlayerName struct {
	ID       int64
	FullName string
}

// NewVocabulary builds a vocabulary from plain names. Aliases are always
// added to the tournaments.
func NewVocabulary(players []PlayerName, tournaments, courses []string) *Vocabulary {
	v := &Vocabulary{lastNames: map[string]Entry{}}

	lastCount := map[string]int{}
	for _, p := range players {
		key := Normalize(p.FullName)
		if key == "" {
			continue
		}
		e := Entry{Name: p.FullName, Key: key, ID: p.ID}
		v.Players = append(v.Players, e)
		if _, last := model.SplitName(key); len(last) >= minLastName {
			lastCount[last]++
			v.lastNames[last] = e
		}
	}
	for last, n := range lastCount {
		if n > 1 {
			delete(v.lastNames, last)
		}
	}

	seen := map[string]bool{}
	for _, name := range tournaments {
		key := Normalize(name)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		v.Tournaments = append(v.Tournaments, Entry{Name: name, Key: key, Like: strings.ToLower(strings.TrimSpace(name))})
	}
	for _, a := range TournamentAliases {
		key := Normalize(a.Phrase)
		if seen[key] {
			continue
		}
		seen[key] = true
		v.Tournaments = append(v.Tournaments, Entry{Name: a.Phrase, Key: key, Like: a.Like})
	}

	seen = map[string]bool{}
	for _, name := range courses {
		key := Normalize(name)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		v.Courses = append(v.Courses, Entry{Name: name, Key: key})
	}

	for _, list := range [][]Entry{v.Players, v.Tournaments, v.Courses} {
		sortLongestFirst(list)
	}
	return v
}

// CourseLocation pairs a course with where it is.
type CourseLocation struct {
	Course   string
	Location string
}

// minLocation is the shortest location key matched; shorter ones are
// state codes.
const minLocation = 4

// AddLocations lets a course be named by its location ("Ponte Vedra
// Beach, FL") or by the town alone ("Ponte Vedra Beach"). A place shared
// by several courses is dropped, as is one that spells a course name.
func (v *Vocabulary) AddLocations(locs []CourseLocation) {
	taken := map[string]bool{}
	for _, e := range v.Courses {
		taken[e.Key] = true
	}
	owner := map[string]string{}
	for _, l := range locs {
		town, _, _ := strings.Cut(l.Location, ",")
		for _, place := range []string{l.Location, town} {
			key := Normalize(place)
			if len(key) < minLocation || taken[key] {
				continue
			}
			if prev, ok := owner[key]; ok && prev != l.Course {
				owner[key] = ""
				continue
			}
			owner[key] = l.Course
		}
	}
	for key, course := range owner {
		if course != "" {
			v.Courses = append(v.Courses, Entry{Name: course, Key: key})
		}
	}
	sortLongestFirst(v.Courses)
}

// LoadVocabulary reads player, tournament and course names from s.
func LoadVocabulary(ctx context.Context, s *store.Store) (*Vocabulary, error) {
	players, err := model.Players(s.DB()).Select("id, first_name, last_name").All(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading player names: %w", err)
	}
	names := make([]PlayerName, len(players))
	for i, p := range players {
		names[i] = PlayerName{ID: p.ID, FullName: p.FullName()}
	}

	tournaments, err := distinct(ctx, s.DB(), "tournament_name", "tournaments")
	if err != nil {
		return nil, fmt.Errorf("loading tournament names: %w", err)
	}
	courses, err := distinct(ctx, s.DB(), "course_name", "courses")
	if err != nil {
		return nil, fmt.Errorf("loading course names: %w", err)
	}
	v := NewVocabulary(names, tournaments, courses)

	locs, err := courseLocations(ctx, s.DB())
	if err != nil {
		return nil, fmt.Errorf("loading course locations: %w", err)
	}
	v.AddLocations(locs)
	return v, nil
}

func courseLocations(ctx context.Context, q orm.Querier) ([]CourseLocation, error) {
	rows, err := orm.QueryRows(ctx, q, "SELECT DISTINCT course_name, location FROM courses WHERE location <> ''")
	if err != nil {
		return nil, err //nolint:wrapcheck // wrapped by caller
	}
	defer func() { _ = rows.Close() }()

	var out []CourseLocation
	for rows.Next() {
		var l CourseLocation
		if err := rows.Scan(&l.Course, &l.Location); err != nil {
			return nil, err //nolint:wrapcheck // wrapped by caller
		}
		out = append(out, l)
	}
	return out, rows.Err() //nolint:wrapcheck // wrapped by caller
}

func distinct(ctx context.Context, q orm.Querier, column, table string) ([]string, error) {
	rows, err := orm.QueryRows(ctx, q, fmt.Sprintf("SELECT DISTINCT %s FROM %s", column, table))
	if err != nil {
		return nil, err //nolint:wrapcheck // wrapped by caller
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err //nolint:wrapcheck // wrapped by caller
		}
		out = append(out, s)
	}
	return out, rows.Err() //nolint:wrapcheck // wrapped by caller
}

func sortLongestFirst(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if len(entries[i].Key) != len(entries[j].Key) {
			return len(entries[i].Key) > len(entries[j].Key)
		}
		return entries[i].Key < entries[j].Key
	})
}

// longest returns the first (longest) entry contained in text as whole
// words.
func longest(entries []Entry, text string) (Entry, bool) {
	for _, e := range entries {
		if containsWord(text, e.Key) {
			return e, true
		}
	}
	return Entry{}, false
}

// lastName finds a player by a unique last name in text.
func (v *Vocabulary) lastName(text string) (Entry, bool) {
	var best Entry
	found := false
	for last, e := range v.lastNames {
		if containsWord(text, last) && (!found || len(last) > len(best.Key) || (len(last) == len(best.Key) && last < best.Key)) {
			best, found = Entry{Name: e.Name, Key: last, ID: e.ID}, true
		}
	}
	return best, found
}
