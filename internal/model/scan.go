package model

import "time"

// FernDetails describes one fern species.  Species are addressed by a
// human-readable slug (e.g. "boston-fern") kept outside this struct.
type FernDetails struct {
	CommonName       string   `json:"commonName"`
	ScientificName   string   `json:"scientificName"`
	Description      string   `json:"description"`
	Habitat          string   `json:"habitat"`
	CareRequirements string   `json:"careRequirements"`
	FunFacts         []string `json:"funFacts"`
}

// ScanResult is one classification event owned by a user.  Details is a
// read-time join of the species row and is nil unless IsFern is set and
// the species still exists.
type ScanResult struct {
	ID         string       `json:"id"`
	UserID     string       `json:"userId"`
	Image      string       `json:"image"`
	IsPlant    bool         `json:"isPlant"`
	IsFern     bool         `json:"isFern"`
	Species    string       `json:"species,omitempty"`
	Confidence float64      `json:"confidence"`
	Timestamp  time.Time    `json:"timestamp"`
	Details    *FernDetails `json:"details,omitempty"`
}

// Classification is the outcome of classifying one image.
type Classification struct {
	IsPlant    bool    `json:"isPlant"`
	IsFern     bool    `json:"isFern"`
	Species    string  `json:"species,omitempty"`
	Confidence float64 `json:"confidence"`
}

// Valid checks the scan invariants: a fern is always a plant, a species
// is named iff the image is a fern, and confidence lies in [0,1].
func (c Classification) Valid() bool {
	if c.IsFern && !c.IsPlant {
		return false
	}
	if c.IsFern != (c.Species != "") {
		return false
	}
	return c.Confidence >= 0 && c.Confidence <= 1
}
