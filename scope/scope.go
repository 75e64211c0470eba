// Package scope holds reusable query fragments shared by the store
// repositories and the HTTP list endpoints.
package scope

import "strings"

// Applier receives scope fragments. orm.Query implements it; defining it
// here keeps orm free to import scope.
type Applier interface {
	ApplyWhere(clause string, args []any)
	ApplyOrderBy(clause string)
	ApplyLimit(n int)
	ApplyOffset(n int)
	ApplySelect(columns string)
}

type scopeKind int

const (
	kindWhere scopeKind = iota
	kindOrderBy
	kindLimit
	kindOffset
	kindSelect
)

// Scope is one fragment of a query. It is immutable, so package-level
// scopes such as a "made the cut" filter can be shared freely.
type Scope struct {
	kind   scopeKind
	clause string
	args   []any
	n      int
}

// Apply dispatches this Scope to the given Applier.
func (s Scope) Apply(a Applier) {
	switch s.kind {
	case kindWhere:
		a.ApplyWhere(s.clause, s.args)
	case kindOrderBy:
		a.ApplyOrderBy(s.clause)
	case kindLimit:
		a.ApplyLimit(s.n)
	case kindOffset:
		a.ApplyOffset(s.n)
	case kindSelect:
		a.ApplySelect(s.clause)
	}
}

// Where adds a WHERE fragment. Fragments are joined with AND.
//
//	scope.Where("season = ?", 2019)
//	scope.Where("made_cut = ? AND final_position <= ?", true, 10)
func Where(clause string, args ...any) Scope {
	return Scope{kind: kindWhere, clause: clause, args: args}
}

// OrderBy sets the ORDER BY clause.
//
//	scope.OrderBy("tournament_date DESC")
func OrderBy(clause string) Scope {
	return Scope{kind: kindOrderBy, clause: clause}
}

func Limit(n int) Scope {
	return Scope{kind: kindLimit, n: n}
}

func Offset(n int) Scope {
	return Scope{kind: kindOffset, n: n}
}

// Select overrides the column list.
//
//	scope.Select("id", "course_name")
func Select(columns ...string) Scope {
	return Scope{kind: kindSelect, clause: strings.Join(columns, ", ")}
}

// In expands values into one placeholder each. An empty slice matches
// nothing.
//
//	scope.In("tournament_id", []int64{4, 9})  // → tournament_id IN (?, ?)
func In[T any](column string, values []T) Scope {
	if len(values) == 0 {
		return Where("1 = 0")
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return Where(column+" IN ("+marks+")", args...)
}

// Like returns a WHERE scope matching rows whose column contains substr,
// case-insensitively.
//
//	scope.Like("course_name", "pebble")  // → WHERE LOWER(course_name) LIKE ?
func Like(column, substr string) Scope {
	return Where("LOWER("+column+") LIKE ?", "%"+strings.ToLower(substr)+"%")
}

// Between returns a WHERE scope with an inclusive range.
func Between(column string, lo, hi any) Scope {
	return Where(column+" BETWEEN ? AND ?", lo, hi)
}

// Paginate returns LIMIT/OFFSET scopes for a 1-based page number.
// Out-of-range values are clamped to the first page and one row per page.
func Paginate(page, perPage int) Scopes {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 1
	}
	return Combine(Limit(perPage), Offset((page-1)*perPage))
}

// Scopes collects filters built up from optional request parameters.
//
//	var s scope.Scopes
//	if season > 0 {
//	    s = s.Append(scope.Where("season = ?", season))
//	}
//	model.Tournaments(db).Scopes(s.Merge(scope.Paginate(page, 50))...).All(ctx)
type Scopes []Scope

// Append returns a copy of ss with scopes added.
func (ss Scopes) Append(scopes ...Scope) Scopes {
	return append(append(Scopes(nil), ss...), scopes...)
}

// Merge returns a copy of ss followed by other.
func (ss Scopes) Merge(other Scopes) Scopes {
	return ss.Append(other...)
}

// Combine groups scopes so they can be passed around as one value.
func Combine(scopes ...Scope) Scopes {
	return Scopes(scopes)
}
