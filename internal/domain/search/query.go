// Package search parses and rewrites GitHub search strings.
//
// Parsing is lenient: anything the grammar does not understand is kept as a
// keyword term and written back unchanged, so there is no invalid-query error.
package search

import (
	"strings"
	"unicode"
)

// Op is the comparison operator of a qualifier term.
type Op string

const (
	OpEqual Op = ""
	OpGT    Op = ">"
	OpGTE   Op = ">="
	OpLT    Op = "<"
	OpLTE   Op = "<="
)

// comparisonOps is ordered so that two-character operators match first.
var comparisonOps = []Op{OpGTE, OpGT, OpLTE, OpLT}

// Term is one clause of a search query. It is a value type; Not returns a
// modified copy.
type Term struct {
	qualifier string
	value     string
	op        Op
	lower     string
	upper     string
	isRange   bool
	exclude   bool
}

// Keyword returns a free-text term.
func Keyword(value string) Term {
	return Term{value: value}
}

// Qualified returns a qualifier:value equality term.
func Qualified(qualifier, value string) Term {
	return Term{qualifier: qualifier, value: value}
}

// Compare returns a qualifier term with a comparison operator.
func Compare(qualifier string, op Op, value string) Term {
	return Term{qualifier: qualifier, op: op, value: value}
}

// Range returns a qualifier:lower..upper term.
func Range(qualifier, lower, upper string) Term {
	return Term{qualifier: qualifier, lower: lower, upper: upper, isRange: true}
}

// Not returns an excluded copy of t.
func (t Term) Not() Term {
	t.exclude = true
	return t
}

func (t Term) Qualifier() string { return t.qualifier }
func (t Term) Value() string     { return t.value }
func (t Term) Op() Op            { return t.op }
func (t Term) Excluded() bool    { return t.exclude }
func (t Term) IsKeyword() bool   { return t.qualifier == "" }
func (t Term) IsRange() bool     { return t.isRange }

// Bounds returns the lower and upper bound of a range term.
func (t Term) Bounds() (string, string) { return t.lower, t.upper }

// String renders the term in search syntax.
func (t Term) String() string {
	if t.IsKeyword() {
		v := t.value
		if keywordNeedsQuotes(v) {
			v = quote(v)
		}
		if t.exclude {
			return "NOT " + v
		}
		return v
	}

	var b strings.Builder
	if t.exclude {
		b.WriteByte('-')
	}
	b.WriteString(t.qualifier)
	b.WriteByte(':')

	rhs := string(t.op) + t.value
	if t.isRange {
		rhs = t.lower + ".." + t.upper
	}
	if hasSpace(rhs) {
		rhs = quote(rhs)
	}
	b.WriteString(rhs)
	return b.String()
}

// Query is an ordered sequence of terms.
type Query struct {
	terms []Term
}

// NewQuery returns a query made of the given terms.
func NewQuery(terms ...Term) *Query {
	return &Query{terms: append([]Term(nil), terms...)}
}

// Parse reads a search string into a query. Double-quoted spans are kept
// together; a NOT token or a leading "-" excludes the following term.
func Parse(s string) *Query {
	q := &Query{}
	exclude := false

	tokens := tokenize(s)
	for i, tok := range tokens {
		if tok == "NOT" && i < len(tokens)-1 {
			exclude = true
			continue
		}

		if len(tok) > 1 && tok[0] == '-' {
			exclude = true
			tok = tok[1:]
		}

		t := parseTerm(tok)
		t.exclude = exclude
		exclude = false
		q.terms = append(q.terms, t)
	}

	return q
}

func parseTerm(tok string) Term {
	colon := strings.IndexByte(tok, ':')
	quoteAt := strings.IndexByte(tok, '"')
	if colon <= 0 || (quoteAt >= 0 && quoteAt < colon) {
		return Keyword(unquote(tok))
	}

	qualifier := tok[:colon]
	rhs := unquote(tok[colon+1:])

	if lower, upper, ok := strings.Cut(rhs, ".."); ok {
		return Range(qualifier, lower, upper)
	}
	for _, op := range comparisonOps {
		if v, ok := strings.CutPrefix(rhs, string(op)); ok {
			return Compare(qualifier, op, v)
		}
	}
	return Qualified(qualifier, rhs)
}

// Terms returns a copy of the query's terms in order.
func (q *Query) Terms() []Term {
	return append([]Term(nil), q.terms...)
}

// Has reports whether any term uses the qualifier, excluded or not.
func (q *Query) Has(qualifier string) bool {
	for _, t := range q.terms {
		if strings.EqualFold(t.qualifier, qualifier) {
			return true
		}
	}
	return false
}

// Values returns the values of every term for the qualifier.
func (q *Query) Values(qualifier string) []string {
	var values []string
	for _, t := range q.terms {
		if strings.EqualFold(t.qualifier, qualifier) {
			values = append(values, t.value)
		}
	}
	return values
}

// Delete removes terms for the qualifier. When value is given only terms
// with exactly that value are removed.
func (q *Query) Delete(qualifier string, value ...string) {
	kept := q.terms[:0]
	for _, t := range q.terms {
		match := strings.EqualFold(t.qualifier, qualifier)
		if match && len(value) > 0 {
			match = t.value == value[0]
		}
		if !match {
			kept = append(kept, t)
		}
	}
	q.terms = kept
}

// Set replaces every term for the qualifier with a single term appended at
// the end of the query.
func (q *Query) Set(qualifier, value string, op ...Op) {
	q.Delete(qualifier)
	t := Qualified(qualifier, value)
	if len(op) > 0 {
		t.op = op[0]
	}
	q.terms = append(q.terms, t)
}

// SetAll replaces every term for the qualifier with one term per value.
func (q *Query) SetAll(qualifier string, values []string) {
	q.Delete(qualifier)
	for _, v := range values {
		q.terms = append(q.terms, Qualified(qualifier, v))
	}
}

// String serializes the query. Parsing the result yields the same terms.
func (q *Query) String() string {
	parts := make([]string, 0, len(q.terms))
	for _, t := range q.terms {
		parts = append(parts, t.String())
	}
	return strings.Join(parts, " ")
}

// tokenize splits on whitespace outside double quotes. Quotes are kept in
// the tokens.
func tokenize(s string) []string {
	var tokens []string
	var cur strings.Builder
	inQuotes := false

	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}

	for _, r := range s {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			cur.WriteRune(r)
		case unicode.IsSpace(r) && !inQuotes:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()

	return tokens
}

func unquote(s string) string {
	return strings.ReplaceAll(s, `"`, "")
}

func quote(s string) string {
	return `"` + s + `"`
}

func hasSpace(s string) bool {
	return strings.IndexFunc(s, unicode.IsSpace) >= 0
}

// keywordNeedsQuotes reports whether a bare keyword would read back as
// something else: a qualifier, an exclusion, or nothing at all.
func keywordNeedsQuotes(v string) bool {
	return v == "" || v == "NOT" || hasSpace(v) ||
		strings.ContainsRune(v, ':') || strings.HasPrefix(v, "-")
}
