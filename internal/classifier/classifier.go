// Package classifier decides whether an image shows a plant, a fern and
// which fern species.  Only a simulated implementation exists today.
package classifier

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/iliyamo/fernid/internal/model"
)

// Classifier labels one image.  image is a data URL or a remote URL.
type Classifier interface {
	Classify(ctx context.Context, image string) (model.Classification, error)
}

// SpeciesSlugs are the species the simulated model can report.
var SpeciesSlugs = []string{
	"boston-fern",
	"maidenhair-fern",
	"birds-nest-fern",
	"staghorn-fern",
	"asparagus-fern",
}

// ProgressSteps are the labels shown while a scan is processed.  They are
// cosmetic and carry no timing guarantees.
var ProgressSteps = []string{
	"Uploading image",
	"Preprocessing image",
	"Analyzing features",
	"Classifying species",
	"Preparing results",
}

const DefaultDelay = 2 * time.Second

// Simulated draws a random classification after a fixed delay.
type Simulated struct {
	Delay time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulated returns a Simulated seeded from src.  A nil src seeds from
// the clock.
func NewSimulated(src rand.Source, delay time.Duration) *Simulated {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &Simulated{Delay: delay, rng: rand.New(src)}
}

// Classify waits for the configured delay, then returns a random result.
// Cancelling ctx aborts the wait.
func (s *Simulated) Classify(ctx context.Context, _ string) (model.Classification, error) {
	if s.Delay > 0 {
		t := time.NewTimer(s.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return model.Classification{}, ctx.Err()
		case <-t.C:
		}
	}
	return s.draw(), nil
}

func (s *Simulated) draw() model.Classification {
	s.mu.Lock()
	defer s.mu.Unlock()

	var c model.Classification
	c.IsFern = s.rng.Float64() > 0.3
	c.IsPlant = c.IsFern || s.rng.Float64() > 0.5
	switch {
	case c.IsFern:
		c.Species = SpeciesSlugs[s.rng.Intn(len(SpeciesSlugs))]
		c.Confidence = 0.85 + s.rng.Float64()*0.14
	case c.IsPlant:
		c.Confidence = 0.80 + s.rng.Float64()*0.15
	default:
		c.Confidence = 0.70 + s.rng.Float64()*0.20
	}
	return c
}
