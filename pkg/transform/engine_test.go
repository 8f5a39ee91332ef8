package transform

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"genre-swap/pkg/capability/fake"
	apperrors "genre-swap/pkg/errors"
	"genre-swap/pkg/genre"
	"genre-swap/pkg/models"
)

func testStems() *models.StemSet {
	stems := make(map[models.StemName]*models.AudioAsset)
	for i, name := range models.AllStems {
		stems[name] = models.NewAudioAsset([]byte{byte(i), 1, 2, 3}, 44100, 2)
	}
	return models.NewStemSet("trackA", stems)
}

func popFeatures() *models.CulturalFeatures {
	return &models.CulturalFeatures{
		DetectedGenreID:   "pop",
		RhythmicPattern:   "pop_4/4",
		MusicalScale:      "major",
		InstrumentProfile: []string{"drums", "bass", "guitar", "synth"},
		VocalStyle:        []string{"belting"},
		TempoBPM:          180,
		KeySignature:      "C major",
	}
}

func profile(t *testing.T, id string) models.GenreProfile {
	t.Helper()
	p, ok := genre.NewRegistry(nil).Get(id)
	if !ok {
		t.Fatalf("profile %s missing", id)
	}
	return p
}

func hasPrefix(log []string, prefix string) bool {
	return slices.ContainsFunc(log, func(s string) bool { return strings.HasPrefix(s, prefix) })
}

// --- Scenarios ---

func TestNordicFolkScenario(t *testing.T) {
	e := NewEngine(&fake.Processor{}, nil)
	out, err := e.Transform(context.Background(), testStems(), popFeatures(), profile(t, "nordic_folk"),
		models.DefaultSwapOptions("nordic_folk"), "seed")
	if err != nil {
		t.Fatal(err)
	}

	if !slices.Contains(out.ProcessingLog, "Tempo adjusted to 90 BPM") {
		t.Errorf("ProcessingLog = %v, want tempo adjusted to 90", out.ProcessingLog)
	}
	if out.TempoTarget != 90 || out.StretchRatio != 0.5 {
		t.Errorf("tempo = %v ratio = %v, want 90 and 0.5", out.TempoTarget, out.StretchRatio)
	}
	if !slices.Contains(out.ProcessingLog, "Rhythm transformed to traditional_nordic_meters") {
		t.Errorf("ProcessingLog = %v, want rhythm transform", out.ProcessingLog)
	}
}

func TestStageOrder(t *testing.T) {
	e := NewEngine(&fake.Processor{}, nil)
	out, err := e.Transform(context.Background(), testStems(), popFeatures(), profile(t, "k_pop"),
		models.DefaultSwapOptions("k_pop"), "seed")
	if err != nil {
		t.Fatal(err)
	}
	// pop_4/4 matches k_pop; rhythm stage is skipped
	prefixes := []string{"Instruments added", "Scale transformed", "Vocal style adapted", "Cultural effects applied", "Tempo adjusted"}
	if len(out.ProcessingLog) != len(prefixes) {
		t.Fatalf("ProcessingLog = %v", out.ProcessingLog)
	}
	for i, prefix := range prefixes {
		if !strings.HasPrefix(out.ProcessingLog[i], prefix) {
			t.Errorf("entry %d = %q, want prefix %q", i, out.ProcessingLog[i], prefix)
		}
	}
}

func TestTempoBound(t *testing.T) {
	tests := []struct {
		name    string
		bpm     float64
		want    bool
		wantLog string
	}{
		{"inside range", 90, false, ""},
		{"on lower edge", 60, false, ""},
		{"above range", 180, true, "Tempo adjusted to 90 BPM"},
		{"below range", 40, true, "Tempo adjusted to 90 BPM"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := popFeatures()
			f.TempoBPM = tt.bpm
			out, err := NewEngine(&fake.Processor{}, nil).Transform(context.Background(), testStems(), f,
				profile(t, "nordic_folk"), models.DefaultSwapOptions("nordic_folk"), "seed")
			if err != nil {
				t.Fatal(err)
			}
			if got := hasPrefix(out.ProcessingLog, "Tempo adjusted"); got != tt.want {
				t.Errorf("tempo entry present = %v, want %v (%v)", got, tt.want, out.ProcessingLog)
			}
			if tt.want && !slices.Contains(out.ProcessingLog, tt.wantLog) {
				t.Errorf("ProcessingLog = %v, want %q", out.ProcessingLog, tt.wantLog)
			}
			if !tt.want && out.StretchRatio != 1 {
				t.Errorf("StretchRatio = %v, want 1", out.StretchRatio)
			}
		})
	}
}

func TestEmptyVocalCharacteristicsSkipsVocalStage(t *testing.T) {
	stems := testStems()
	original := stems.Stems[models.StemVocals]

	f := popFeatures()
	f.TempoBPM = 90 // inside gamelan's range, so no stage touches vocals

	proc := &fake.Processor{}
	out, err := NewEngine(proc, nil).Transform(context.Background(), stems, f, profile(t, "gamelan"),
		models.DefaultSwapOptions("gamelan"), "seed")
	if err != nil {
		t.Fatal(err)
	}
	if hasPrefix(out.ProcessingLog, "Vocal") {
		t.Errorf("ProcessingLog = %v, want no vocal entry", out.ProcessingLog)
	}
	for _, op := range proc.Operations() {
		if op.Stage == StageVocals {
			t.Errorf("vocal operation %q ran", op.Name)
		}
	}
	if out.Stems[models.StemVocals] != original {
		t.Error("vocals stem was modified")
	}
}

func TestPreserveVocalsFalseDropsVocals(t *testing.T) {
	opts := models.DefaultSwapOptions("k_pop")
	opts.PreserveVocals = false

	proc := &fake.Processor{}
	out, err := NewEngine(proc, nil).Transform(context.Background(), testStems(), popFeatures(), profile(t, "k_pop"), opts, "seed")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := out.Stems[models.StemVocals]; ok {
		t.Error("vocals stem present with PreserveVocals=false")
	}
	if !out.VocalsDropped || !slices.Contains(out.ProcessingLog, "Vocals removed") {
		t.Errorf("ProcessingLog = %v, want Vocals removed", out.ProcessingLog)
	}
	for _, op := range proc.Operations() {
		if op.Stage == StageVocals {
			t.Errorf("vocal preset %q applied to dropped vocals", op.Name)
		}
	}
}

func TestVocalPresetScalesWithAuthenticity(t *testing.T) {
	opts := models.DefaultSwapOptions("k_pop")
	opts.CulturalAuthenticityTarget = 5

	proc := &fake.Processor{}
	if _, err := NewEngine(proc, nil).Transform(context.Background(), testStems(), popFeatures(), profile(t, "k_pop"), opts, "seed"); err != nil {
		t.Fatal(err)
	}
	var idol *struct{ autotune, harmonies float64 }
	for _, op := range proc.Operations() {
		if op.Stage == StageVocals && op.Name == "idol_style" {
			idol = &struct{ autotune, harmonies float64 }{op.Params["autotune"], op.Params["harmonies"]}
		}
	}
	if idol == nil {
		t.Fatal("idol_style preset not applied")
	}
	if idol.autotune != 0.4 {
		t.Errorf("autotune = %v, want 0.8 * 0.5", idol.autotune)
	}
	if idol.harmonies != 1 {
		t.Errorf("harmonies = %v, want 1 (switch)", idol.harmonies)
	}
}

// --- Instruments ---

func TestUnknownInstrumentRetained(t *testing.T) {
	f := popFeatures()
	f.InstrumentProfile = []string{"theremin", "drums", "guitar"}

	out, err := NewEngine(&fake.Processor{}, nil).Transform(context.Background(), testStems(), f, profile(t, "nordic_folk"),
		models.DefaultSwapOptions("nordic_folk"), "seed")
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Contains(out.Instruments, "theremin") {
		t.Errorf("Instruments = %v, want theremin retained", out.Instruments)
	}
	if !slices.Contains(out.InstrumentLog, "theremin (retained)") {
		t.Errorf("InstrumentLog = %v", out.InstrumentLog)
	}
	wantSubs := []Substitution{{"drums", "frame_drum"}, {"guitar", "kantele"}}
	if !slices.Equal(out.Substitutions, wantSubs) {
		t.Errorf("Substitutions = %v, want %v", out.Substitutions, wantSubs)
	}
	if !slices.Equal(out.InstrumentsAdded, []string{"frame_drum", "kantele"}) {
		t.Errorf("InstrumentsAdded = %v", out.InstrumentsAdded)
	}
}

func TestInstrumentSwappingDisabled(t *testing.T) {
	opts := models.DefaultSwapOptions("nordic_folk")
	opts.InstrumentSwapping = false

	out, err := NewEngine(&fake.Processor{}, nil).Transform(context.Background(), testStems(), popFeatures(), profile(t, "nordic_folk"), opts, "seed")
	if err != nil {
		t.Fatal(err)
	}
	if hasPrefix(out.ProcessingLog, "Instruments added") {
		t.Errorf("ProcessingLog = %v, want no instrument entry", out.ProcessingLog)
	}
	if !slices.Equal(out.Instruments, popFeatures().InstrumentProfile) {
		t.Errorf("Instruments = %v", out.Instruments)
	}
}

// --- Determinism ---

func TestKeyShiftDeterministic(t *testing.T) {
	run := func() *TransformedStemSet {
		out, err := NewEngine(&fake.Processor{}, nil).Transform(context.Background(), testStems(), popFeatures(),
			profile(t, "flamenco"), models.DefaultSwapOptions("flamenco"), "cache-key-1")
		if err != nil {
			t.Fatal(err)
		}
		return out
	}
	a, b := run(), run()
	if a.KeyShift != b.KeyShift || a.TargetKey != b.TargetKey {
		t.Errorf("key shift %d/%s vs %d/%s", a.KeyShift, a.TargetKey, b.KeyShift, b.TargetKey)
	}
	if !slices.Equal(a.ProcessingLog, b.ProcessingLog) {
		t.Errorf("logs differ: %v vs %v", a.ProcessingLog, b.ProcessingLog)
	}
	if a.KeyShift < -5 || a.KeyShift > 6 {
		t.Errorf("KeyShift = %d out of range", a.KeyShift)
	}
}

func TestKeyShiftVariesWithSeed(t *testing.T) {
	seen := make(map[int]bool)
	for _, seed := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		seen[keyShift(seed)] = true
	}
	if len(seen) < 2 {
		t.Error("key shift ignores seed")
	}
}

func TestParseRoot(t *testing.T) {
	tests := []struct {
		key  string
		want int
	}{
		{"C major", 0},
		{"F# minor", 6},
		{"Bb major", 10},
		{"a minor", 9},
		{"", 0},
		{"H dorian", 0},
	}
	for _, tt := range tests {
		if got := parseRoot(tt.key); got != tt.want {
			t.Errorf("parseRoot(%q) = %d, want %d", tt.key, got, tt.want)
		}
	}
}

// --- Failure ---

func TestStageFailureReturnsNoPartialOutput(t *testing.T) {
	for _, stage := range []string{StageRhythm, StageScale, StageEffects, StageTempo} {
		t.Run(stage, func(t *testing.T) {
			out, err := NewEngine(&fake.Processor{FailStage: stage}, nil).Transform(context.Background(), testStems(), popFeatures(),
				profile(t, "nordic_folk"), models.DefaultSwapOptions("nordic_folk"), "seed")
			if out != nil {
				t.Error("partial output returned")
			}
			var te *apperrors.TransformationError
			if !errors.As(err, &te) {
				t.Fatalf("err = %v, want TransformationError", err)
			}
			if te.Stage != stage {
				t.Errorf("Stage = %q, want %q", te.Stage, stage)
			}
			if !errors.Is(err, fake.ErrInjected) {
				t.Error("cause not preserved")
			}
		})
	}
}

func TestInputStemsNotMutated(t *testing.T) {
	stems := testStems()
	before := make(map[models.StemName]string)
	for n, a := range stems.Stems {
		before[n] = a.ID
	}
	if _, err := NewEngine(&fake.Processor{}, nil).Transform(context.Background(), stems, popFeatures(),
		profile(t, "reggae"), models.DefaultSwapOptions("reggae"), "seed"); err != nil {
		t.Fatal(err)
	}
	for n, a := range stems.Stems {
		if a.ID != before[n] {
			t.Errorf("input stem %s replaced", n)
		}
	}
}
