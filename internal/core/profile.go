package core

import (
	"fmt"
	"strings"

	"ayurgenix/pkg"
)

// Choices offered by the profile form.  Anything else submitted falls back
// to a default.
var (
	GenderOptions = []string{"Male", "Female", "Other"}
	DoshaOptions  = []string{"Unknown", "Vata", "Pitta", "Kapha", "Vata-Pitta", "Pitta-Kapha", "Vata-Kapha", "Tridosha"}
	StressOptions = []string{"Low", "Moderate", "High", "Very High"}
)

const (
	defaultAge    = 25
	minAge        = 1
	maxAge        = 120
	notProvided   = "Not provided"
	noneMentioned = "None mentioned"
)

// NormalizeProfile validates a submitted profile form and fills the
// defaults the prompts and the report rely on.  Only an out of range age is
// rejected; zero means the field was left empty.
func NormalizeProfile(req pkg.ProfileRequest) (pkg.Profile, error) {
	age := req.Age
	if age == 0 {
		age = defaultAge
	}
	if age < minAge || age > maxAge {
		return pkg.Profile{}, fmt.Errorf("age must be between %d and %d", minAge, maxAge)
	}
	return pkg.Profile{
		Name:        orDefault(req.Name, "Guest"),
		Age:         age,
		Gender:      choose(req.Gender, GenderOptions, notProvided),
		Dosha:       choose(req.Dosha, DoshaOptions, "Unknown"),
		Stress:      choose(req.Stress, StressOptions, "Moderate"),
		Conditions:  orDefault(req.Conditions, noneMentioned),
		Medications: orDefault(req.Medications, noneMentioned),
	}, nil
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}

// choose returns the option equal to v ignoring case, or def.
func choose(v string, options []string, def string) string {
	v = strings.TrimSpace(v)
	for _, o := range options {
		if strings.EqualFold(v, o) {
			return o
		}
	}
	return def
}
