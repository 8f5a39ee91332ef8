package transform

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"

	"genre-swap/pkg/capability"
	apperrors "genre-swap/pkg/errors"
	"genre-swap/pkg/models"

	"golang.org/x/sync/errgroup"
)

// Stage names, in execution order.
const (
	StageRhythm      = "rhythm"
	StageInstruments = "instruments"
	StageScale       = "scale"
	StageVocals      = "vocals"
	StageEffects     = "effects"
	StageTempo       = "tempo"
)

// Substitution records one instrument replaced by the role table.
type Substitution struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// TransformedStemSet is the complete output of a transform. It is only
// ever returned after all stages succeeded.
type TransformedStemSet struct {
	SourceStemSetID  string
	Stems            map[models.StemName]*models.AudioAsset
	ProcessingLog    []string
	Instruments      []string
	InstrumentLog    []string
	InstrumentsAdded []string
	Substitutions    []Substitution
	RhythmPattern    string
	TimeSignature    string
	Scale            string
	KeyShift         int
	TargetKey        string
	VocalStyle       []string
	VocalsDropped    bool
	TempoTarget      float64
	StretchRatio     float64
}

// Assets returns the transformed stems in mixing order.
func (t *TransformedStemSet) Assets() []*models.AudioAsset {
	out := make([]*models.AudioAsset, 0, len(t.Stems))
	for _, name := range models.AllStems {
		if a, ok := t.Stems[name]; ok {
			out = append(out, a)
		}
	}
	return out
}

// StemSet wraps the transformed stems for storage.
func (t *TransformedStemSet) StemSet(trackID string) *models.StemSet {
	return models.NewStemSet(trackID, maps.Clone(t.Stems))
}

// Engine applies a genre profile to a stem set in six ordered stages.
type Engine struct {
	processor capability.StageProcessor
	logger    *slog.Logger
}

func NewEngine(processor capability.StageProcessor, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{processor: processor, logger: logger.With("component", "transform")}
}

// Transform runs rhythm, instrument, scale, vocal, effects and tempo stages
// in that order. seed fixes the key shift; the same seed always yields the
// same shift. Any capability failure aborts the transform with a
// TransformationError naming the stage.
func (e *Engine) Transform(ctx context.Context, stems *models.StemSet, features *models.CulturalFeatures, profile models.GenreProfile, opts models.SwapOptions, seed string) (*TransformedStemSet, error) {
	if stems == nil || features == nil {
		return nil, &apperrors.TransformationError{Stage: StageRhythm, Cause: fmt.Errorf("missing stems or features")}
	}

	p := &pass{
		engine:   e,
		ctx:      ctx,
		features: features,
		profile:  profile,
		opts:     opts.Canonical(),
		seed:     seed,
		stems:    maps.Clone(stems.Stems),
		out: &TransformedStemSet{
			SourceStemSetID: stems.ID,
			RhythmPattern:   features.RhythmicPattern,
			Scale:           features.MusicalScale,
			VocalStyle:      slices.Clone(features.VocalStyle),
			TempoTarget:     features.TempoBPM,
			StretchRatio:    1,
		},
	}

	stages := []struct {
		name string
		run  func() error
	}{
		{StageRhythm, p.rhythm},
		{StageInstruments, p.instruments},
		{StageScale, p.scale},
		{StageVocals, p.vocals},
		{StageEffects, p.effects},
		{StageTempo, p.tempo},
	}
	for _, st := range stages {
		if err := ctx.Err(); err != nil {
			return nil, &apperrors.TransformationError{Stage: st.name, Cause: err}
		}
		if err := st.run(); err != nil {
			e.logger.Error("Transform: stage failed", "stage", st.name, "error", err)
			return nil, &apperrors.TransformationError{Stage: st.name, Cause: err}
		}
	}

	p.out.Stems = p.stems
	e.logger.Debug("Transform: complete", "profile", profile.ID, "chain", strings.Join(p.out.ProcessingLog, "; "))
	return p.out, nil
}

// pass holds the working state of one Transform call.
type pass struct {
	engine   *Engine
	ctx      context.Context
	features *models.CulturalFeatures
	profile  models.GenreProfile
	opts     models.SwapOptions
	seed     string
	stems    map[models.StemName]*models.AudioAsset
	out      *TransformedStemSet
}

func (p *pass) logf(format string, args ...any) {
	p.out.ProcessingLog = append(p.out.ProcessingLog, fmt.Sprintf(format, args...))
}

// present filters names down to the stems in the working set.
func (p *pass) present(names ...models.StemName) []models.StemName {
	var out []models.StemName
	for _, n := range names {
		if _, ok := p.stems[n]; ok {
			out = append(out, n)
		}
	}
	return out
}

// apply processes the named stems concurrently. The working set is only
// updated once every stem succeeded.
func (p *pass) apply(names []models.StemName, opFor func(models.StemName) capability.Operation) error {
	results := make([]*models.AudioAsset, len(names))
	g, ctx := errgroup.WithContext(p.ctx)
	for i, name := range names {
		g.Go(func() error {
			a, err := p.engine.processor.Process(ctx, p.stems[name], opFor(name))
			if err != nil {
				return fmt.Errorf("%s stem: %w", name, err)
			}
			if a == nil {
				return fmt.Errorf("%s stem: processor returned no audio", name)
			}
			results[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for i, name := range names {
		p.stems[name] = results[i]
	}
	return nil
}

func same(op capability.Operation) func(models.StemName) capability.Operation {
	return func(models.StemName) capability.Operation { return op }
}

func (p *pass) rhythm() error {
	target := p.profile.RhythmPattern
	if target == "" || target == p.features.RhythmicPattern {
		return nil
	}
	grid, ok := rhythmGrids[target]
	if !ok {
		p.engine.logger.Warn("no grid for rhythm pattern, using 4/4", "pattern", target)
		grid = defaultGrid
	}
	density := complexityDensity[p.opts.RhythmicComplexity]

	op := capability.Operation{
		Stage: StageRhythm,
		Name:  target,
		Params: map[string]float64{
			"steps":   float64(grid.Steps),
			"kicks":   hits(grid.Kick, density),
			"snares":  hits(grid.Snare, density),
			"accents": hits(grid.Accent, density),
			"density": density,
		},
		Tags: []string{"time:" + grid.TimeSignature, "complexity:" + string(p.opts.RhythmicComplexity)},
	}
	if err := p.apply(p.present(models.StemDrums), same(op)); err != nil {
		return err
	}
	p.out.RhythmPattern = target
	p.out.TimeSignature = grid.TimeSignature
	p.logf("Rhythm transformed to %s", target)
	return nil
}

func hits(steps []int, density float64) float64 {
	return math.Ceil(float64(len(steps)) * density)
}

func (p *pass) instruments() error {
	if !p.opts.InstrumentSwapping {
		p.out.Instruments = slices.Clone(p.features.InstrumentProfile)
		return nil
	}

	byRole := make(map[role]string)
	for _, inst := range p.profile.InstrumentsUsed {
		if r, ok := instrumentRoles[inst]; ok {
			if _, taken := byRole[r]; !taken {
				byRole[r] = inst
			}
		}
	}

	touched := make(map[models.StemName][]string)
	var added []string
	for _, src := range p.features.InstrumentProfile {
		r, known := instrumentRoles[src]
		dst, mapped := byRole[r]
		if !known || !mapped || dst == src {
			p.out.Instruments = appendUnique(p.out.Instruments, src)
			p.out.InstrumentLog = append(p.out.InstrumentLog, src+" (retained)")
			continue
		}
		p.out.Substitutions = append(p.out.Substitutions, Substitution{From: src, To: dst})
		p.out.Instruments = appendUnique(p.out.Instruments, dst)
		p.out.InstrumentLog = append(p.out.InstrumentLog, src+" -> "+dst)
		added = appendUnique(added, dst)
		stem := roleStem[r]
		touched[stem] = append(touched[stem], src+">"+dst)
	}

	names := p.present(slices.Collect(maps.Keys(touched))...)
	slices.SortFunc(names, func(a, b models.StemName) int {
		return slices.Index(models.AllStems, a) - slices.Index(models.AllStems, b)
	})
	err := p.apply(names, func(name models.StemName) capability.Operation {
		return capability.Operation{Stage: StageInstruments, Name: "substitute", Tags: touched[name]}
	})
	if err != nil {
		return err
	}
	p.out.InstrumentsAdded = added
	p.logf("Instruments added: %s", joinOrNone(added))
	return nil
}

func (p *pass) scale() error {
	target := p.profile.MusicalScale
	if target == "" {
		target = p.features.MusicalScale
	}
	intervals, ok := scaleIntervals[target]
	if !ok {
		intervals = scaleIntervals["chromatic"]
	}

	shift := keyShift(p.seed)
	root := parseRoot(p.features.KeySignature)
	targetKey := noteNames[((root+shift)%12+12)%12] + " " + target

	op := capability.Operation{
		Stage:  StageScale,
		Name:   target,
		Params: map[string]float64{"semitones": float64(shift), "degrees": float64(len(intervals))},
		Tags:   []string{"scale:" + target, "key:" + targetKey},
	}
	if err := p.apply(p.present(models.StemBass, models.StemOther), same(op)); err != nil {
		return err
	}
	p.out.Scale = target
	p.out.KeyShift = shift
	p.out.TargetKey = targetKey
	p.logf("Scale transformed to %s", target)
	return nil
}

// keyShift derives a shift in [-5, 6] semitones from seed.
func keyShift(seed string) int {
	sum := sha256.Sum256([]byte(seed))
	rng := rand.New(rand.NewPCG(binary.BigEndian.Uint64(sum[:8]), binary.BigEndian.Uint64(sum[8:16])))
	return rng.IntN(12) - 5
}

// parseRoot returns the pitch class of a key like "F# minor", or 0 (C).
func parseRoot(key string) int {
	fields := strings.Fields(key)
	if len(fields) == 0 {
		return 0
	}
	note := fields[0]
	if alias, ok := flatAliases[note]; ok {
		note = alias
	}
	if i := slices.Index(noteNames, strings.ToUpper(note[:1])+note[1:]); i >= 0 {
		return i
	}
	return 0
}

// instrumental stems take scale and effects processing. A kept vocal
// performance is only changed by its style preset and tempo correction.
var instrumental = []models.StemName{models.StemDrums, models.StemBass, models.StemOther}

// booleanParams are on/off switches that are not scaled by intensity.
var booleanParams = map[string]bool{"harmonies": true}

func (p *pass) vocals() error {
	if !p.opts.PreserveVocals {
		delete(p.stems, models.StemVocals)
		p.out.VocalsDropped = true
		p.out.VocalStyle = nil
		p.logf("Vocals removed")
		return nil
	}
	styles := p.profile.VocalCharacteristics
	if len(styles) == 0 || len(p.present(models.StemVocals)) == 0 {
		return nil
	}

	intensity := float64(p.opts.CulturalAuthenticityTarget) / 10
	for _, tag := range styles {
		preset, ok := vocalPresets[tag]
		if !ok {
			preset = genericVocalPreset
		}
		params := make(map[string]float64, len(preset))
		for k, v := range preset {
			if booleanParams[k] {
				params[k] = v
			} else {
				params[k] = v * intensity
			}
		}
		op := capability.Operation{Stage: StageVocals, Name: tag, Params: params, Tags: []string{"style:" + tag}}
		if err := p.apply([]models.StemName{models.StemVocals}, same(op)); err != nil {
			return err
		}
	}
	p.out.VocalStyle = slices.Clone(styles)
	p.logf("Vocal style adapted: %s", strings.Join(styles, ", "))
	return nil
}

func (p *pass) effects() error {
	names := p.present(instrumental...)
	for _, tag := range p.profile.ProcessingEffects {
		bundle, ok := effectBundles[tag]
		if !ok {
			bundle = genericEffectBundle
		}
		op := capability.Operation{Stage: StageEffects, Name: tag, Params: maps.Clone(bundle)}
		if err := p.apply(names, same(op)); err != nil {
			return fmt.Errorf("effect %s: %w", tag, err)
		}
	}
	p.logf("Cultural effects applied: %s", joinOrNone(p.profile.ProcessingEffects))
	return nil
}

func (p *pass) tempo() error {
	bpm := p.features.TempoBPM
	if bpm <= 0 || p.profile.TempoRange.Contains(bpm) {
		return nil
	}
	target := p.profile.TempoRange.Midpoint()
	ratio := target / bpm

	op := capability.Operation{
		Stage:  StageTempo,
		Name:   "time_stretch",
		Params: map[string]float64{"ratio": ratio, "source_bpm": bpm, "target_bpm": target},
	}
	if err := p.apply(p.present(models.AllStems...), same(op)); err != nil {
		return err
	}
	p.out.TempoTarget = target
	p.out.StretchRatio = ratio
	p.logf("Tempo adjusted to %s BPM", strconv.FormatFloat(target, 'f', -1, 64))
	return nil
}

func appendUnique(list []string, s string) []string {
	if slices.Contains(list, s) {
		return list
	}
	return append(list, s)
}

func joinOrNone(list []string) string {
	if len(list) == 0 {
		return "none"
	}
	return strings.Join(list, ", ")
}
