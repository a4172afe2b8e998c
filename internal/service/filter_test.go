package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/fernid/internal/model"
)

var (
	boston = &model.FernDetails{CommonName: "Boston Fern", ScientificName: "Nephrolepis exaltata"}
	logs   = []model.ScanResult{
		{ID: "1", UserID: "u1", IsPlant: true, IsFern: true, Species: "boston-fern", Details: boston, Confidence: 0.9},
		{ID: "2", UserID: "u2", IsPlant: true, Confidence: 0.8},
		{ID: "3", UserID: "u2", Confidence: 0.7},
	}
	owners = map[string]model.User{
		"u1": {ID: "u1", Username: "janedoe", Email: "jane@example.com"},
		"u2": {ID: "u2", Username: "bob", Email: "bob@fern.io"},
	}
)

func ids(scans []model.ScanResult) []string {
	out := []string{}
	for _, s := range scans {
		out = append(out, s.ID)
	}
	return out
}

func TestFilterScanLog(t *testing.T) {
	cases := []struct {
		filter string
		q      string
		want   []string
	}{
		{"all", "", []string{"1", "2", "3"}},
		{"ferns", "", []string{"1"}},
		{"non-ferns", "", []string{"2", "3"}},
		{"plants", "", []string{"1", "2"}},
		{"bogus", "", []string{"1", "2", "3"}},
		{"all", "BOB", []string{"2", "3"}},
		{"all", "example.com", []string{"1"}},
		{"all", "boston", []string{"1"}},
		{"plants", "fern.io", []string{"2"}},
	}
	for _, tc := range cases {
		got := FilterScanLog(logs, owners, ParseScanFilter(tc.filter), tc.q)
		assert.Equal(t, tc.want, ids(got), "%s/%s", tc.filter, tc.q)
	}
}

func TestFilterHistory(t *testing.T) {
	assert.Equal(t, []string{"1", "2", "3"}, ids(FilterHistory(logs, " ")))
	assert.Equal(t, []string{"1"}, ids(FilterHistory(logs, "nephro")))
	assert.Empty(t, FilterHistory(logs, "zzz"))
}

func TestFilterUsers(t *testing.T) {
	users := []model.User{owners["u1"], owners["u2"]}
	assert.Len(t, FilterUsers(users, ""), 2)
	assert.Equal(t, "bob", FilterUsers(users, "FERN.IO")[0].Username)
}

func TestSummarize(t *testing.T) {
	s := Summarize(logs)
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 1, s.Ferns)
	assert.Equal(t, 2, s.Plants)
	assert.InDelta(t, 0.8, s.AverageConfidence, 1e-9)
	assert.Equal(t, Summary{}, Summarize(nil))
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "boston-fern", Slugify("Boston Fern"))
	assert.Equal(t, "bird-s-nest-fern", Slugify("  Bird's Nest  Fern "))
}
