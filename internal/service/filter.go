package service

import (
	"regexp"
	"strings"

	"github.com/iliyamo/fernid/internal/model"
)

// ScanFilter selects scans on the admin scan log page.
type ScanFilter string

const (
	FilterAll      ScanFilter = "all"
	FilterFerns    ScanFilter = "ferns"
	FilterNonFerns ScanFilter = "non-ferns"
	FilterPlants   ScanFilter = "plants"
)

// ParseScanFilter maps unknown values to FilterAll.
func ParseScanFilter(s string) ScanFilter {
	switch f := ScanFilter(strings.ToLower(strings.TrimSpace(s))); f {
	case FilterFerns, FilterNonFerns, FilterPlants:
		return f
	}
	return FilterAll
}

func (f ScanFilter) match(s model.ScanResult) bool {
	switch f {
	case FilterFerns:
		return s.IsFern
	case FilterNonFerns:
		return !s.IsFern
	case FilterPlants:
		return s.IsPlant
	}
	return true
}

func contains(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), needle)
}

// FilterHistory keeps scans whose species common or scientific name
// contains q, case-insensitively.  An empty q keeps everything.
func FilterHistory(scans []model.ScanResult, q string) []model.ScanResult {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return scans
	}
	out := make([]model.ScanResult, 0, len(scans))
	for _, s := range scans {
		if s.Details != nil && (contains(s.Details.CommonName, q) || contains(s.Details.ScientificName, q)) {
			out = append(out, s)
		}
	}
	return out
}

// FilterScanLog applies the admin type filter, then matches q against the
// owner's username and email, the species slug and its common name.
func FilterScanLog(scans []model.ScanResult, owners map[string]model.User, f ScanFilter, q string) []model.ScanResult {
	q = strings.ToLower(strings.TrimSpace(q))
	out := make([]model.ScanResult, 0, len(scans))
	for _, s := range scans {
		if !f.match(s) {
			continue
		}
		if q != "" {
			owner, ok := owners[s.UserID]
			hit := (ok && (contains(owner.Username, q) || contains(owner.Email, q))) ||
				contains(s.Species, q) ||
				(s.Details != nil && contains(s.Details.CommonName, q))
			if !hit {
				continue
			}
		}
		out = append(out, s)
	}
	return out
}

// FilterUsers matches q against username and email.
func FilterUsers(users []model.User, q string) []model.User {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return users
	}
	out := make([]model.User, 0, len(users))
	for _, u := range users {
		if contains(u.Username, q) || contains(u.Email, q) {
			out = append(out, u)
		}
	}
	return out
}

// Summary aggregates a list of scans.
type Summary struct {
	Total             int     `json:"total"`
	Ferns             int     `json:"ferns"`
	Plants            int     `json:"plants"`
	AverageConfidence float64 `json:"averageConfidence"`
}

func Summarize(scans []model.ScanResult) Summary {
	var s Summary
	var sum float64
	for _, sc := range scans {
		s.Total++
		if sc.IsFern {
			s.Ferns++
		}
		if sc.IsPlant {
			s.Plants++
		}
		sum += sc.Confidence
	}
	if s.Total > 0 {
		s.AverageConfidence = sum / float64(s.Total)
	}
	return s
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify turns a common name into a species slug: "Boston Fern" becomes
// "boston-fern".
func Slugify(name string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(name), "-"), "-")
}
