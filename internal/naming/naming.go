// Package naming converts between Go field names, column names and the
// labels shown to people.
package naming

import (
	"strings"
	"unicode"
)

// CamelToSnake turns a Go identifier into a column or table name.
// Runs of capitals stay together: "SGTotal" → "sg_total",
// "PlayerID" → "player_id".
func CamelToSnake(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		if !unicode.IsUpper(r) {
			b.WriteRune(r)
			continue
		}
		if i > 0 {
			prev := runes[i-1]
			next := rune(0)
			if i+1 < len(runes) {
				next = runes[i+1]
			}
			if unicode.IsLower(prev) || (unicode.IsUpper(prev) && unicode.IsLower(next)) {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// acronyms are column words rendered in capitals.
var acronyms = map[string]bool{
	"id":  true,
	"sg":  true,
	"gir": true,
	"ott": true,
	"app": true,
	"arg": true,
	"t2g": true,
	"pga": true,
}

// Label turns a column name into a column heading:
// "tournament_name" → "Tournament name", "avg_sg_total" → "Avg SG total".
func Label(column string) string {
	words := strings.FieldsFunc(column, func(r rune) bool { return r == '_' || r == ' ' })
	for i, w := range words {
		switch {
		case acronyms[strings.ToLower(w)]:
			words[i] = strings.ToUpper(w)
		case i == 0:
			r := []rune(w)
			r[0] = unicode.ToUpper(r[0])
			words[i] = string(r)
		}
	}
	return strings.Join(words, " ")
}
