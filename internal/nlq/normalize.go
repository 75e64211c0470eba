package nlq

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	possessive  = regexp.MustCompile(`(\p{L})['’]s\b`)
	apostrophes = strings.NewReplacer("'", "", "’", "")
)

// Normalize lowercases s, folds accents ("Åberg" → "aberg"), drops
// possessive 's, turns punctuation into spaces and collapses runs of
// whitespace. Questions and vocabulary entries go through the same
// function, so matching compares like with like.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)
	folded = possessive.ReplaceAllString(folded, "$1")
	folded = apostrophes.Replace(folded)

	var b strings.Builder
	b.Grow(len(folded))
	space := true
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

// padded wraps s in spaces so whole-word checks are plain substring tests.
func padded(s string) string { return " " + s + " " }

// containsWord reports whether phrase occurs in text on word boundaries.
// Both are expected to be normalized.
func containsWord(text, phrase string) bool {
	if phrase == "" {
		return false
	}
	return strings.Contains(padded(text), padded(phrase))
}

// containsAny is containsWord over several phrases.
func containsAny(text string, phrases ...string) bool {
	for _, p := range phrases {
		if containsWord(text, p) {
			return true
		}
	}
	return false
}

// removeWord blanks the first whole-word occurrence of phrase in text.
func removeWord(text, phrase string) string {
	p := padded(text)
	i := strings.Index(p, padded(phrase))
	if i < 0 {
		return text
	}
	return strings.Join(strings.Fields(p[:i]+" "+p[i+len(phrase)+2:]), " ")
}
