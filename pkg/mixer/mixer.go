package mixer

import (
	"context"
	"fmt"
	"log/slog"

	"genre-swap/pkg/audio"
	"genre-swap/pkg/models"
	"genre-swap/pkg/transform"
)

// Preset is the mixing character of one cultural origin.
type Preset struct {
	Name            string
	BassEmphasis    float64
	VocalProminence float64
	StereoWidth     float64
	ReverbSpace     float64
}

const GenericPreset = "generic"

var generic = Preset{Name: GenericPreset, BassEmphasis: 1, VocalProminence: 1, StereoWidth: 1, ReverbSpace: 0.2}

var presets = map[string]Preset{
	"scandinavia": {Name: "scandinavia", BassEmphasis: 0.9, VocalProminence: 1.0, StereoWidth: 1.2, ReverbSpace: 0.5},
	"south_korea": {Name: "south_korea", BassEmphasis: 1.2, VocalProminence: 1.3, StereoWidth: 1.1, ReverbSpace: 0.2},
	"west_africa": {Name: "west_africa", BassEmphasis: 1.3, VocalProminence: 1.0, StereoWidth: 1.0, ReverbSpace: 0.25},
	"brazil":      {Name: "brazil", BassEmphasis: 0.9, VocalProminence: 1.1, StereoWidth: 0.9, ReverbSpace: 0.2},
	"andalusia":   {Name: "andalusia", BassEmphasis: 0.9, VocalProminence: 1.2, StereoWidth: 0.9, ReverbSpace: 0.3},
	"jamaica":     {Name: "jamaica", BassEmphasis: 1.5, VocalProminence: 1.0, StereoWidth: 1.0, ReverbSpace: 0.35},
	"punjab":      {Name: "punjab", BassEmphasis: 1.3, VocalProminence: 1.1, StereoWidth: 1.1, ReverbSpace: 0.25},
	"indonesia":   {Name: "indonesia", BassEmphasis: 0.8, VocalProminence: 0.9, StereoWidth: 1.3, ReverbSpace: 0.6},
	"japan":       {Name: "japan", BassEmphasis: 1.1, VocalProminence: 1.1, StereoWidth: 1.2, ReverbSpace: 0.3},
	"ireland":     {Name: "ireland", BassEmphasis: 0.9, VocalProminence: 1.0, StereoWidth: 1.1, ReverbSpace: 0.4},
	"cuba":        {Name: "cuba", BassEmphasis: 1.2, VocalProminence: 1.1, StereoWidth: 1.0, ReverbSpace: 0.25},
}

// PresetFor returns the preset for origin and whether it is bespoke.
func PresetFor(origin string) (Preset, bool) {
	p, ok := presets[origin]
	if !ok {
		return generic, false
	}
	return p, true
}

// master gain applied to the stem sum before clipping
const headroom = 0.7

// reverb pre-delay of the single feedback tap
const reverbDelay = 0.05

// Result is a finished mix.
type Result struct {
	Asset    *models.AudioAsset
	Preset   string
	Warnings []string
}

// Mixer combines transformed stems into one asset. It is the only
// component that sums stems; it never changes instrument or pitch content.
type Mixer struct {
	logger *slog.Logger
}

func NewMixer(logger *slog.Logger) *Mixer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mixer{logger: logger.With("component", "mixer")}
}

func (m *Mixer) Mix(ctx context.Context, stems *transform.TransformedStemSet, profile models.GenreProfile) (*Result, error) {
	assets := stems.Assets()
	if len(assets) == 0 {
		return nil, fmt.Errorf("no stems to mix")
	}
	sampleRate, channels := assets[0].SampleRate, assets[0].Channels
	for _, a := range assets[1:] {
		if a.SampleRate != sampleRate || a.Channels != channels {
			return nil, fmt.Errorf("stem %s format %d Hz/%d ch does not match %d Hz/%d ch",
				a.ID, a.SampleRate, a.Channels, sampleRate, channels)
		}
	}

	res := &Result{}
	preset, bespoke := PresetFor(profile.CulturalOrigin)
	if !bespoke {
		res.Warnings = append(res.Warnings, fmt.Sprintf("no mixing preset for origin %q, used %s", profile.CulturalOrigin, GenericPreset))
		m.logger.Warn("Mixer: using generic preset", "origin", profile.CulturalOrigin, "profile", profile.ID)
	}
	res.Preset = preset.Name

	var bus []float64
	for _, name := range models.AllStems {
		a, ok := stems.Stems[name]
		if !ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		gain := headroom
		switch name {
		case models.StemBass:
			gain *= preset.BassEmphasis
		case models.StemVocals:
			gain *= preset.VocalProminence
		}
		samples := audio.BytesToSamples(a.Data)
		if len(samples) > len(bus) {
			bus = append(bus, make([]float64, len(samples)-len(bus))...)
		}
		for i, s := range samples {
			bus[i] += float64(s) * gain
		}
	}

	if channels == 2 {
		widen(bus, preset.StereoWidth)
	}
	addSpace(bus, channels, int(reverbDelay*float64(sampleRate)), preset.ReverbSpace)

	out := make([]int16, len(bus))
	for i, v := range bus {
		out[i] = audio.Clip(v)
	}
	res.Asset = models.NewAudioAsset(audio.SamplesToBytes(out), sampleRate, channels)

	m.logger.Info("Mixer: mix ready", "profile", profile.ID, "preset", preset.Name, "stems", len(assets), "duration", res.Asset.DurationSeconds)
	return res, nil
}

// widen scales the side signal of interleaved stereo samples.
func widen(bus []float64, width float64) {
	if width == 1 {
		return
	}
	for i := 0; i+1 < len(bus); i += 2 {
		mid := (bus[i] + bus[i+1]) / 2
		side := (bus[i] - bus[i+1]) / 2 * width
		bus[i], bus[i+1] = mid+side, mid-side
	}
}

// addSpace adds one feedback echo per channel at the given frame delay.
func addSpace(bus []float64, channels, delayFrames int, amount float64) {
	if amount <= 0 || delayFrames <= 0 || channels <= 0 {
		return
	}
	d := delayFrames * channels
	for i := d; i < len(bus); i++ {
		bus[i] += bus[i-d] * amount * 0.5
	}
}
