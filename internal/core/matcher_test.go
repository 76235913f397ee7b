package core

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ayurgenix/internal/dataset"
)

func migraine() dataset.Record {
	return dataset.Record{Condition: "Migraine", Symptoms: "headache, nausea"}
}

func namesOf(records []dataset.Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Condition)
	}
	return out
}

func TestMatch(t *testing.T) {
	ds := dataset.New([]dataset.Record{
		migraine(),
		{Condition: "Insomnia", Symptoms: "Difficulty sleeping, fatigue"},
		{Condition: "Acid Reflux", Symptoms: "heartburn, sour taste"},
		{Condition: "Common Cold", Symptoms: "runny nose, sneezing"},
	})

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"strong match on symptoms", "headache", []string{"Migraine"}},
		{"strong match is case insensitive", "HEARTBURN", []string{"Acid Reflux"}},
		{"strong match on condition", "cold", []string{"Common Cold"}},
		{"strong match on phrase", "difficulty sleeping", []string{"Insomnia"}},
		{"weak match on later word", "terrible fatigue lately", []string{"Insomnia"}},
		{"weak match across records keeps order", "sneezing and heartburn", []string{"Acid Reflux", "Common Cold"}},
		{"short words never match alone", "run ear", nil},
		{"no match", "back pain", nil},
		{"empty query", "", nil},
		{"whitespace query", "  \t ", nil},
		{"word present inside a longer word", "head pain and light sensitivity", []string{"Migraine"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Match(ds, tt.query)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, namesOf(got))
		})
	}
}

func TestMatchSingleRecordScenarios(t *testing.T) {
	ds := dataset.New([]dataset.Record{migraine()})

	got := Match(ds, "headache")
	require.Len(t, got, 1)
	assert.Equal(t, migraine(), got[0])

	// "head" passes the length gate and is a substring of "headache".
	got = Match(ds, "head pain and light sensitivity")
	require.Len(t, got, 1)

	assert.Empty(t, Match(ds, "light sensitivity"))
	assert.Empty(t, Match(ds, "ach nau"), "words of three runes or fewer never qualify")
}

func TestMatchCapsAtFiveInDatasetOrder(t *testing.T) {
	var records []dataset.Record
	for i := 0; i < 7; i++ {
		records = append(records, dataset.Record{Condition: fmt.Sprintf("C%d", i), Symptoms: "stress related"})
	}
	records = append([]dataset.Record{{Condition: "Unrelated", Symptoms: "none"}}, records...)

	got := Match(dataset.New(records), "stress")
	require.Len(t, got, MaxMatches)
	assert.Equal(t, []string{"C0", "C1", "C2", "C3", "C4"}, namesOf(got))
}

func TestMatchEmptyDataset(t *testing.T) {
	for _, q := range []string{"", "stress", "headache nausea"} {
		assert.Empty(t, Match(dataset.New(nil), q))
		assert.Empty(t, Match(nil, q))
	}
}

func TestMatchUnicodeWordLength(t *testing.T) {
	// ज्वर is four runes; ज्व is three runes but nine bytes.
	ds := dataset.New([]dataset.Record{{Condition: "Jwara", Symptoms: "ज्वर"}})
	assert.Len(t, Match(ds, "ताप ज्वर"), 1)
	assert.Empty(t, Match(ds, "ज्व x"))
}

func TestFormatContextEmpty(t *testing.T) {
	assert.Equal(t, NoMatchesContext, FormatContext(nil))
	assert.Equal(t, FormatContext(nil), FormatContext([]dataset.Record{}))
}

func TestFormatContext(t *testing.T) {
	r := migraine()
	r.AyurvedicHerbs = "Brahmi, Shankhpushpi"
	out := FormatContext([]dataset.Record{r, {Symptoms: "fever"}})

	assert.True(t, strings.HasPrefix(out, "**Relevant data from Ayurvedic database:**\n\n"))
	assert.Contains(t, out, "\n### 1. Migraine\n- **Symptoms:** headache, nausea\n")
	assert.Contains(t, out, "- **Ayurvedic Herbs:** Brahmi, Shankhpushpi\n")
	assert.Contains(t, out, "- **Formulation:** N/A\n")
	assert.Contains(t, out, "\n### 2. N/A\n- **Symptoms:** fever\n")
	assert.Equal(t, 2, strings.Count(out, "---\n"))
	for _, c := range dataset.Columns()[1:] {
		assert.Equal(t, 2, strings.Count(out, "- **"+c.Header+":** "), c.Header)
	}
	assert.Equal(t, out, FormatContext([]dataset.Record{r, {Symptoms: "fever"}}))
}
