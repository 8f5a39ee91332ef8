package models

import "slices"

// TempoRange is an inclusive BPM window.
type TempoRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func (r TempoRange) Contains(bpm float64) bool {
	return bpm >= r.Min && bpm <= r.Max
}

func (r TempoRange) Midpoint() float64 {
	return (r.Min + r.Max) / 2
}

// GenreProfile describes a target style. Canonical profiles are shared
// read-only values; use Derive before attaching request-specific fields.
type GenreProfile struct {
	ID                   string     `json:"id"`
	Version              int        `json:"version"`
	Name                 string     `json:"name"`
	CulturalOrigin       string     `json:"cultural_origin"`
	InstrumentsUsed      []string   `json:"instruments_used"`
	RhythmPattern        string     `json:"rhythm_pattern"`
	MusicalScale         string     `json:"musical_scale"`
	VocalCharacteristics []string   `json:"vocal_characteristics"`
	TempoRange           TempoRange `json:"tempo_range"`
	ProcessingEffects    []string   `json:"processing_effects"`
	Nicheness            float64    `json:"nicheness"`
	SubgenreVariant      string     `json:"subgenre_variant,omitempty"`
	RegionalFlavor       string     `json:"regional_flavor,omitempty"`
	CulturalMarkers      []string   `json:"cultural_markers,omitempty"`
}

// Derive returns a deep copy that can be modified without touching p.
func (p GenreProfile) Derive() GenreProfile {
	d := p
	d.InstrumentsUsed = slices.Clone(p.InstrumentsUsed)
	d.VocalCharacteristics = slices.Clone(p.VocalCharacteristics)
	d.ProcessingEffects = slices.Clone(p.ProcessingEffects)
	d.CulturalMarkers = slices.Clone(p.CulturalMarkers)
	return d
}
