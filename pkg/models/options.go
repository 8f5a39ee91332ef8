package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// RhythmicComplexity controls how dense the substituted rhythm pattern is.
type RhythmicComplexity string

const (
	ComplexitySimple      RhythmicComplexity = "simple"
	ComplexityModerate    RhythmicComplexity = "moderate"
	ComplexityComplex     RhythmicComplexity = "complex"
	ComplexityTraditional RhythmicComplexity = "traditional"
)

func (c RhythmicComplexity) Valid() bool {
	switch c {
	case ComplexitySimple, ComplexityModerate, ComplexityComplex, ComplexityTraditional:
		return true
	}
	return false
}

const (
	DefaultAuthenticityTarget = 8
	DefaultNicheTarget        = 7
)

// SwapOptions are the per-request parameters of a swap.
type SwapOptions struct {
	TargetGenreID              string             `json:"target_genre_id"`
	PreserveVocals             bool               `json:"preserve_vocals"`
	CulturalAuthenticityTarget int                `json:"cultural_authenticity_target"`
	NicheAccuracyTarget        int                `json:"niche_accuracy_target"`
	InstrumentSwapping         bool               `json:"instrument_swapping"`
	RhythmicComplexity         RhythmicComplexity `json:"rhythmic_complexity"`
	SubgenreVariant            string             `json:"subgenre_variant,omitempty"`
	RegionalFlavor             string             `json:"regional_flavor,omitempty"`
}

// DefaultSwapOptions returns options with every default filled in. Decoding
// a request body into this value keeps defaults for omitted fields.
func DefaultSwapOptions(genreID string) SwapOptions {
	return SwapOptions{
		TargetGenreID:              genreID,
		PreserveVocals:             true,
		CulturalAuthenticityTarget: DefaultAuthenticityTarget,
		NicheAccuracyTarget:        DefaultNicheTarget,
		InstrumentSwapping:         true,
		RhythmicComplexity:         ComplexityModerate,
	}
}

// Canonical normalizes ids and clamps targets so that semantically equal
// requests compare equal.
func (o SwapOptions) Canonical() SwapOptions {
	c := o
	c.TargetGenreID = normalizeID(o.TargetGenreID)
	c.SubgenreVariant = normalizeID(o.SubgenreVariant)
	c.RegionalFlavor = normalizeID(o.RegionalFlavor)
	c.CulturalAuthenticityTarget = clampTarget(o.CulturalAuthenticityTarget, DefaultAuthenticityTarget)
	c.NicheAccuracyTarget = clampTarget(o.NicheAccuracyTarget, DefaultNicheTarget)
	c.RhythmicComplexity = RhythmicComplexity(strings.ToLower(strings.TrimSpace(string(o.RhythmicComplexity))))
	if !c.RhythmicComplexity.Valid() {
		c.RhythmicComplexity = ComplexityModerate
	}
	return c
}

// CacheKey derives the stable key for (trackID, opts). Options are
// canonicalized and serialized with sorted keys, so the key survives
// restarts and field reordering.
func CacheKey(trackID string, opts SwapOptions) string {
	c := opts.Canonical()
	fields := map[string]any{
		"target_genre_id":              c.TargetGenreID,
		"preserve_vocals":              c.PreserveVocals,
		"cultural_authenticity_target": c.CulturalAuthenticityTarget,
		"niche_accuracy_target":        c.NicheAccuracyTarget,
		"instrument_swapping":          c.InstrumentSwapping,
		"rhythmic_complexity":          string(c.RhythmicComplexity),
		"subgenre_variant":             c.SubgenreVariant,
		"regional_flavor":              c.RegionalFlavor,
	}
	// encoding/json writes map keys in sorted order
	canon, _ := json.Marshal(fields)

	h := sha256.New()
	h.Write([]byte(strings.TrimSpace(trackID)))
	h.Write([]byte{0})
	h.Write(canon)
	return hex.EncodeToString(h.Sum(nil))[:32]
}

func normalizeID(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), "_")
}

func clampTarget(v, fallback int) int {
	if v == 0 {
		return fallback
	}
	if v < 1 {
		return 1
	}
	if v > 10 {
		return 10
	}
	return v
}
