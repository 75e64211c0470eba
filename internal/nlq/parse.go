package nlq

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Kind names what a question asks for.
type Kind string

const (
	KindWinner            Kind = "winner"
	KindMostWins          Kind = "most_wins"
	KindMissedCut         Kind = "missed_cut"
	KindMadeCut           Kind = "made_cut"
	KindCourseScoring     Kind = "course_scoring"
	KindBestSG            Kind = "best_sg"
	KindCategoryLeaders   Kind = "category_leaders"
	KindMoneyLeaders      Kind = "money_leaders"
	KindPlayerResults     Kind = "player_results"
	KindLeaderboard       Kind = "leaderboard"
	KindCourseTournaments Kind = "course_tournaments"
	KindSearch            Kind = "search"
)

// Category is a strokes-gained category.
type Category string

const (
	CategoryTotal       Category = "total"
	CategoryPutting     Category = "putting"
	CategoryApproach    Category = "approach"
	CategoryOffTheTee   Category = "off_the_tee"
	CategoryAroundGreen Category = "around_the_green"
	CategoryTeeToGreen  Category = "tee_to_green"
)

// categoryWords are checked in order, so multi-word phrases that contain
// a shorter keyword come first.
var categoryWords = []struct {
	phrases  []string
	category Category
}{
	{[]string{"tee to green", "t2g"}, CategoryTeeToGreen},
	{[]string{"off the tee", "driving", "drives", "driver", "ott"}, CategoryOffTheTee},
	{[]string{"around the green", "short game", "chipping", "arg"}, CategoryAroundGreen},
	{[]string{"putting", "putts", "putter", "putt"}, CategoryPutting},
	{[]string{"approach", "iron play", "irons"}, CategoryApproach},
}

// Match is a vocabulary entry found in a question.
type Match struct {
	Name string `json:"name"`
	ID   int64  `json:"id,omitempty"`
	Like string `json:"-"`
}

// Intent is the parsed form of a question.
type Intent struct {
	Kind       Kind     `json:"kind"`
	Question   string   `json:"question"`
	Player     *Match   `json:"player,omitempty"`
	Tournament *Match   `json:"tournament,omitempty"`
	Course     *Match   `json:"course,omitempty"`
	Season     int      `json:"season,omitempty"`
	Limit      int      `json:"limit"`
	Category   Category `json:"category,omitempty"`
	Ascending  bool     `json:"ascending,omitempty"`
	Text       string   `json:"text,omitempty"`
}

var (
	seasonPattern = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	topPattern    = regexp.MustCompile(`\btop (\d+)\b`)
)

// filler words are dropped from the text handed to the search fallback.
var filler = map[string]bool{
	"who": true, "what": true, "which": true, "when": true, "where": true, "how": true,
	"is": true, "are": true, "was": true, "were": true, "did": true, "do": true, "does": true,
	"the": true, "a": true, "an": true, "in": true, "at": true, "of": true, "on": true, "for": true,
	"show": true, "me": true, "find": true, "list": true, "tell": true, "about": true, "give": true,
	"all": true, "top": true, "search": true, "best": true, "results": true, "stats": true, "please": true,
}

// Parse maps a question onto an Intent using vocab. It does no I/O.
func Parse(question string, vocab *Vocabulary) Intent {
	if vocab == nil {
		vocab = NewVocabulary(nil, nil, nil)
	}
	text := Normalize(question)
	in := Intent{Question: question, Limit: DefaultLimit}

	if m := topPattern.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			in.Limit = min(n, MaxLimit)
		}
		text = strings.TrimSpace(topPattern.ReplaceAllString(text, " "))
	}
	if m := seasonPattern.FindString(text); m != "" {
		in.Season, _ = strconv.Atoi(m)
		text = strings.Join(strings.Fields(seasonPattern.ReplaceAllString(text, " ")), " ")
	}

	// Full player names first, then tournaments and courses, then unique
	// last names in whatever text is left.
	rest := text
	if e, ok := longest(vocab.Players, rest); ok {
		in.Player = &Match{Name: e.Name, ID: e.ID}
		rest = removeWord(rest, e.Key)
	}
	if e, ok := longest(vocab.Tournaments, rest); ok {
		in.Tournament = &Match{Name: e.Name, Like: e.Like}
		rest = removeWord(rest, e.Key)
	}
	if e, ok := longest(vocab.Courses, rest); ok {
		in.Course = &Match{Name: e.Name}
		rest = removeWord(rest, e.Key)
	}
	if in.Player == nil {
		if e, ok := vocab.lastName(rest); ok {
			in.Player = &Match{Name: e.Name, ID: e.ID}
			rest = removeWord(rest, e.Key)
		}
	}

	category, hasCategory := findCategory(text)
	strokesGained := containsAny(text, "strokes gained", "sg")

	money := containsAny(text, "money", "earnings", "earned", "prize")
	// "won the most" counts wins unless the question is about money.
	wonMost := containsAny(text, "won the most") && !money

	switch {
	case containsAny(text, "won", "winner", "winners", "who win", "who wins") && in.Tournament != nil && !wonMost:
		in.Kind = KindWinner
	case containsAny(text, "most wins", "most victories", "most titles") || wonMost:
		in.Kind = KindMostWins
	case containsAny(text, "missed the cut", "miss the cut", "missed cut") && in.Tournament != nil:
		in.Kind = KindMissedCut
	case containsAny(text, "made the cut", "made cut", "make the cut") && in.Tournament != nil:
		in.Kind = KindMadeCut
	case containsAny(text, "scoring average", "hardest", "easiest", "lowest scoring", "toughest"):
		in.Kind = KindCourseScoring
		in.Ascending = !containsAny(text, "hardest", "toughest")
	case (strokesGained || hasCategory) && in.Player != nil:
		in.Kind = KindBestSG
		in.Category = categoryOrTotal(category, hasCategory)
	case strokesGained || hasCategory:
		in.Kind = KindCategoryLeaders
		in.Category = categoryOrTotal(category, hasCategory)
	case money:
		in.Kind = KindMoneyLeaders
	case in.Player != nil:
		in.Kind = KindPlayerResults
	case in.Tournament != nil:
		in.Kind = KindLeaderboard
	case in.Course != nil:
		in.Kind = KindCourseTournaments
	default:
		in.Kind = KindSearch
		in.Text = searchText(rest)
	}
	return in
}

func findCategory(text string) (Category, bool) {
	for _, c := range categoryWords {
		if containsAny(text, c.phrases...) {
			return c.category, true
		}
	}
	return "", false
}

func categoryOrTotal(c Category, ok bool) Category {
	if !ok {
		return CategoryTotal
	}
	return c
}

func searchText(text string) string {
	var words []string
	for _, w := range strings.Fields(text) {
		if !filler[w] {
			words = append(words, w)
		}
	}
	return strings.Join(words, " ")
}
