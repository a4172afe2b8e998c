package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/fernid/internal/config"
	"github.com/iliyamo/fernid/internal/service"
)

// SpeciesHandler serves the public fern catalog.
type SpeciesHandler struct {
	Cfg     config.Config
	Species *service.SpeciesService
}

// List returns the catalog, optionally filtered by ?q=.
func (h *SpeciesHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c, h.Cfg.RequestTimeout)
	defer cancel()
	return c.JSON(http.StatusOK, echo.Map{"species": h.Species.Search(ctx, c.QueryParam("q"))})
}

func (h *SpeciesHandler) Get(c echo.Context) error {
	ctx, cancel := reqCtx(c, h.Cfg.RequestTimeout)
	defer cancel()

	slug := c.Param("slug")
	d := h.Species.GetFernSpecies(ctx, slug)
	if d == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Species not found"})
	}
	return c.JSON(http.StatusOK, service.Species{Slug: slug, FernDetails: *d})
}
