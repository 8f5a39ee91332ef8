// Package genre holds the catalog of target cultural/genre profiles.
//
// Profiles are loaded once into a Registry and never mutated afterwards.
// Request-specific overrides (subgenre variant, regional flavor) are applied
// to a derived copy returned by Lookup.
package genre

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	apperrors "genre-swap/pkg/errors"
	"genre-swap/pkg/models"
)

// Registry is an in-memory, read-only catalog of genre profiles.
type Registry struct {
	profiles map[string]models.GenreProfile
	fallback models.GenreProfile
	logger   *slog.Logger
}

// NewRegistry loads the built-in catalog.
func NewRegistry(logger *slog.Logger) *Registry {
	r, err := NewRegistryFrom(catalog, logger)
	if err != nil {
		panic(fmt.Sprintf("built-in genre catalog is invalid: %v", err))
	}
	return r
}

// NewRegistryFrom builds a registry from profiles, rejecting malformed ones.
func NewRegistryFrom(profiles []models.GenreProfile, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		profiles: make(map[string]models.GenreProfile, len(profiles)),
		fallback: fallbackProfile.Derive(),
		logger:   logger.With("component", "genre_registry"),
	}
	for _, p := range profiles {
		if err := validate(p); err != nil {
			return nil, err
		}
		if _, dup := r.profiles[p.ID]; dup {
			return nil, fmt.Errorf("duplicate genre profile %q", p.ID)
		}
		r.profiles[p.ID] = p.Derive()
	}
	if _, ok := r.profiles[FallbackGenreID]; !ok {
		r.profiles[FallbackGenreID] = r.fallback
	}
	return r, nil
}

// Latest keeps the highest Version of each profile id, ordered by id.
func Latest(profiles []models.GenreProfile) []models.GenreProfile {
	newest := make(map[string]models.GenreProfile, len(profiles))
	for _, p := range profiles {
		if cur, ok := newest[p.ID]; !ok || p.Version > cur.Version {
			newest[p.ID] = p
		}
	}
	out := make([]models.GenreProfile, 0, len(newest))
	for _, p := range newest {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func validate(p models.GenreProfile) error {
	switch {
	case p.ID == "":
		return fmt.Errorf("genre profile without id")
	case p.TempoRange.Min <= 0 || p.TempoRange.Min > p.TempoRange.Max:
		return fmt.Errorf("genre profile %q: invalid tempo range %v", p.ID, p.TempoRange)
	case p.Nicheness < 0 || p.Nicheness > 10:
		return fmt.Errorf("genre profile %q: nicheness %v out of range", p.ID, p.Nicheness)
	case len(p.InstrumentsUsed) == 0:
		return fmt.Errorf("genre profile %q: no instruments", p.ID)
	}
	return nil
}

// Lookup resolves genreID and applies the request's overrides to a derived
// copy. It always returns a usable profile: for an unknown genreID the
// fallback profile is returned together with a *ProfileNotFoundError, which
// callers should treat as a warning.
func (r *Registry) Lookup(genreID string, opts models.SwapOptions) (models.GenreProfile, error) {
	var warn error
	id := strings.ToLower(strings.TrimSpace(genreID))

	canonical, ok := r.profiles[id]
	if !ok {
		canonical = r.fallback
		warn = &apperrors.ProfileNotFoundError{GenreID: genreID, Fallback: FallbackGenreID}
		r.logger.Warn("genre profile not found, using fallback", "genre_id", genreID, "fallback", FallbackGenreID)
	}

	derived := canonical.Derive()
	if opts.SubgenreVariant != "" {
		derived.SubgenreVariant = opts.SubgenreVariant
	}
	if opts.RegionalFlavor != "" {
		derived.RegionalFlavor = opts.RegionalFlavor
		derived.CulturalMarkers = append(derived.CulturalMarkers, "regional:"+opts.RegionalFlavor)
	}
	return derived, warn
}

// Get returns a copy of the canonical profile for id.
func (r *Registry) Get(id string) (models.GenreProfile, bool) {
	p, ok := r.profiles[id]
	if !ok {
		return models.GenreProfile{}, false
	}
	return p.Derive(), true
}

// List returns every profile sorted by id.
func (r *Registry) List() []models.GenreProfile {
	out := make([]models.GenreProfile, 0, len(r.profiles))
	for _, p := range r.profiles {
		out = append(out, p.Derive())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Discover lists profiles at or above minNicheness, most niche first.
func (r *Registry) Discover(minNicheness float64) []models.GenreProfile {
	var out []models.GenreProfile
	for _, p := range r.List() {
		if p.Nicheness >= minNicheness {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Nicheness > out[j].Nicheness })
	return out
}
