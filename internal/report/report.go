// Package report renders a consultation as a downloadable document.
package report

import (
	"fmt"
	"strings"
	"time"

	"ayurgenix/pkg"
)

// Format selects the document type.
type Format string

const (
	Markdown Format = "md"
	PDF      Format = "pdf"
)

// ParseFormat maps a query value to a Format.  Empty selects markdown.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "md", "markdown":
		return Markdown, nil
	case "pdf":
		return PDF, nil
	}
	return "", fmt.Errorf("unknown report format %q", s)
}

// ContentType returns the MIME type served for f.
func (f Format) ContentType() string {
	if f == PDF {
		return "application/pdf"
	}
	return "text/markdown; charset=utf-8"
}

// Filename names the download, stamped to the minute.
func Filename(f Format, now time.Time) string {
	return fmt.Sprintf("ayurgenix_report_%s.%s", now.Format("20060102_1504"), f)
}

const (
	title      = "AyurGenix AI - Consultation Report"
	disclaimer = "*Disclaimer: For informational purposes only. Consult a healthcare provider for medical concerns.*"
)

type profileLine struct {
	label, value string
}

// profileLines lists the profile in report order.  Values missing from an
// unsaved profile get the same defaults the profile form applies.
func profileLines(p pkg.Profile) []profileLine {
	age := "Not provided"
	if p.Age > 0 {
		age = fmt.Sprint(p.Age)
	}
	return []profileLine{
		{"Name", or(p.Name, "Not provided")},
		{"Age", age},
		{"Gender", or(p.Gender, "Not provided")},
		{"Dosha Type", or(p.Dosha, "Unknown")},
		{"Stress Level", or(p.Stress, "Not provided")},
		{"Existing Conditions", or(p.Conditions, "None mentioned")},
		{"Current Medications", or(p.Medications, "None mentioned")},
	}
}

func speaker(r pkg.MessageRole) string {
	if r == pkg.RoleUser {
		return "You"
	}
	return "AyurGenix AI"
}

// RenderMarkdown renders the profile and the conversation as markdown.
func RenderMarkdown(p pkg.Profile, conversation []pkg.Message, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\nGenerated: %s\n\n## User Profile\n", title, now.Format("2006-01-02 15:04"))
	for _, l := range profileLines(p) {
		fmt.Fprintf(&b, "- **%s:** %s\n", l.label, l.value)
	}
	b.WriteString("\n## Consultation Summary\n")
	for _, m := range conversation {
		fmt.Fprintf(&b, "\n**%s:** %s\n", speaker(m.Role), m.Content)
	}
	b.WriteString("\n---\n" + disclaimer)
	return b.String()
}

func or(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
