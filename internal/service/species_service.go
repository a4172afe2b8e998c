package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/fernid/internal/mapper"
	"github.com/iliyamo/fernid/internal/model"
	"github.com/iliyamo/fernid/internal/repository"
)

// Species pairs a slug with its details.
type Species struct {
	Slug string `json:"slug"`
	model.FernDetails
}

// Catalog is the species list in display order (common name ascending)
// with lookup by slug.
type Catalog struct {
	Order  []string                     `json:"order"`
	BySlug map[string]model.FernDetails `json:"species"`
}

// List returns the catalog entries in order.
func (c Catalog) List() []Species {
	out := make([]Species, 0, len(c.Order))
	for _, slug := range c.Order {
		out = append(out, Species{Slug: slug, FernDetails: c.BySlug[slug]})
	}
	return out
}

type SpeciesService struct {
	species speciesStore
	log     *zap.Logger
}

func NewSpeciesService(species speciesStore, log *zap.Logger) *SpeciesService {
	return &SpeciesService{species: species, log: log}
}

// GetAllFernSpecies returns the whole catalog, empty on failure.
func (s *SpeciesService) GetAllFernSpecies(ctx context.Context) Catalog {
	c := Catalog{Order: []string{}, BySlug: map[string]model.FernDetails{}}
	rows, err := s.species.List(ctx)
	if err != nil {
		s.log.Error("getAllFernSpecies", zap.Error(err))
		return c
	}
	for _, r := range rows {
		c.Order = append(c.Order, r.Slug)
		c.BySlug[r.Slug] = mapper.ToFernDetails(r)
	}
	return c
}

// GetFernSpecies returns one species or nil.
func (s *SpeciesService) GetFernSpecies(ctx context.Context, slug string) *model.FernDetails {
	r, err := s.species.Get(ctx, slug)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.log.Error("getFernSpecies", zap.String("slug", slug), zap.Error(err))
		}
		return nil
	}
	d := mapper.ToFernDetails(r)
	return &d
}

func (s *SpeciesService) AddFernSpecies(ctx context.Context, slug string, d model.FernDetails) bool {
	if err := s.species.Insert(ctx, mapper.FromFernDetails(slug, cleanDetails(d))); err != nil {
		s.log.Error("addFernSpecies", zap.String("slug", slug), zap.Error(err))
		return false
	}
	return true
}

func (s *SpeciesService) UpdateFernSpecies(ctx context.Context, slug string, d model.FernDetails) bool {
	if err := s.species.Update(ctx, mapper.FromFernDetails(slug, cleanDetails(d))); err != nil {
		s.log.Error("updateFernSpecies", zap.String("slug", slug), zap.Error(err))
		return false
	}
	return true
}

// DeleteFernSpecies removes the species.  Scans naming it keep the slug
// and lose their details.
func (s *SpeciesService) DeleteFernSpecies(ctx context.Context, slug string) bool {
	if err := s.species.Delete(ctx, slug); err != nil {
		s.log.Error("deleteFernSpecies", zap.String("slug", slug), zap.Error(err))
		return false
	}
	return true
}

// Search filters the catalog by common or scientific name.
func (s *SpeciesService) Search(ctx context.Context, q string) []Species {
	all := s.GetAllFernSpecies(ctx).List()
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return all
	}
	out := make([]Species, 0, len(all))
	for _, sp := range all {
		if contains(sp.CommonName, q) || contains(sp.ScientificName, q) {
			out = append(out, sp)
		}
	}
	return out
}

// cleanDetails trims fields and drops blank fun facts.
func cleanDetails(d model.FernDetails) model.FernDetails {
	d.CommonName = strings.TrimSpace(d.CommonName)
	d.ScientificName = strings.TrimSpace(d.ScientificName)
	facts := make([]string, 0, len(d.FunFacts))
	for _, f := range d.FunFacts {
		if f = strings.TrimSpace(f); f != "" {
			facts = append(facts, f)
		}
	}
	d.FunFacts = facts
	return d
}
