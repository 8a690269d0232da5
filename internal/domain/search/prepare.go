package search

import (
	"strings"

	"github.com/ericfisherdev/pulldash/internal/domain/model"
)

// SplitQueries splits a section search on ";" outside double quotes. Parts
// are trimmed and empty parts are dropped, so one section can expand into
// several independent provider queries.
func SplitQueries(search string) []string {
	var parts []string
	var cur strings.Builder
	inQuotes := false

	flush := func() {
		if p := strings.TrimSpace(cur.String()); p != "" {
			parts = append(parts, p)
		}
		cur.Reset()
	}

	for _, r := range search {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			cur.WriteRune(r)
		case r == ';' && !inQuotes:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()

	return parts
}

// PrepareQuery normalizes one sub-query for a connection:
//  1. type:pr is forced (a redundant is:pr makes GitHub return nothing).
//  2. archived:false is added unless the user set archived themselves.
//  3. Configured orgs replace any user-provided org terms.
//  4. When repo and org terms coexist, org terms are dropped because GitHub
//     ignores repo filters in that case. A repo outside the configured orgs is
//     therefore not excluded.
func PrepareQuery(search string, conn model.Connection) string {
	q := Parse(search)

	q.Delete("is", "pr")
	q.Set("type", "pr")

	if !q.Has("archived") {
		q.Set("archived", "false")
	}

	if len(conn.Orgs) > 0 {
		q.SetAll("org", conn.Orgs)
	}

	if q.Has("org") && q.Has("repo") {
		q.Delete("org")
	}

	return q.String()
}
