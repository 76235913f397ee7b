package core

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"ayurgenix/internal/dataset"
)

const (
	// MaxMatches bounds how many condition rows are passed to the model.
	MaxMatches = 5

	// minWordLen is the rune length a query word must exceed to match on its
	// own in the per-word pass.
	minWordLen = 3

	// NoMatchesContext is sent in place of the database block when no row
	// matched the query.
	NoMatchesContext = "No direct matches found in the Ayurvedic database."

	// notAvailable stands in for absent cells.
	notAvailable = "N/A"
)

// Match returns up to MaxMatches records whose condition name or symptoms
// mention the query, in dataset order.  A record matches strongly when the
// whole lower-cased query is a substring of either field; failing that it
// matches when any whitespace separated query word longer than three
// characters is.  A blank query matches nothing.
func Match(ds *dataset.Dataset, query string) []dataset.Record {
	if strings.TrimSpace(query) == "" || ds.Len() == 0 {
		return nil
	}
	lower := cases.Lower(language.Und)
	q := lower.String(query)
	words := strings.Fields(q)

	var matches []dataset.Record
	for _, r := range ds.Records() {
		condition := lower.String(r.Condition)
		symptoms := lower.String(r.Symptoms)
		if strings.Contains(condition, q) || strings.Contains(symptoms, q) {
			matches = append(matches, r)
			continue
		}
		for _, w := range words {
			if utf8.RuneCountInString(w) > minWordLen && (strings.Contains(condition, w) || strings.Contains(symptoms, w)) {
				matches = append(matches, r)
				break
			}
		}
	}
	if len(matches) > MaxMatches {
		matches = matches[:MaxMatches]
	}
	return matches
}

// FormatContext renders matched records as the markdown block embedded in
// the generation prompt.  Absent values are written as N/A.
func FormatContext(matches []dataset.Record) string {
	if len(matches) == 0 {
		return NoMatchesContext
	}
	cols := dataset.Columns()
	var b strings.Builder
	b.WriteString("**Relevant data from Ayurvedic database:**\n\n")
	for i, r := range matches {
		fmt.Fprintf(&b, "\n### %d. %s\n", i+1, orNotAvailable(cols[0].Value(r)))
		for _, c := range cols[1:] {
			fmt.Fprintf(&b, "- **%s:** %s\n", c.Header, orNotAvailable(c.Value(r)))
		}
		b.WriteString("---\n")
	}
	return b.String()
}

func orNotAvailable(v string) string {
	if v == "" {
		return notAvailable
	}
	return v
}
