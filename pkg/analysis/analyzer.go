package analysis

import (
	"context"
	"log/slog"
	"math"
	"strings"

	"genre-swap/pkg/capability"
	apperrors "genre-swap/pkg/errors"
	"genre-swap/pkg/models"
)

const (
	// LowConfidence is the classifier confidence below which a detection is
	// reported as a best-effort guess.
	LowConfidence = 0.4

	// MaxGuessAuthenticity caps CulturalAuthenticity for best-effort guesses.
	MaxGuessAuthenticity = 3.0

	DefaultTempo  = 120.0
	DefaultRhythm = "4/4_straight"
	DefaultScale  = "major"
	DefaultKey    = "C major"
	UnknownGenre  = "unknown"
)

// defaultInstruments is the guess used when the classifier hears nothing identifiable.
var defaultInstruments = []string{"drums", "bass", "keys"}

// Analyzer extracts CulturalFeatures from audio through a classifier.
type Analyzer struct {
	classifier capability.Classifier
	logger     *slog.Logger
}

func NewAnalyzer(classifier capability.Classifier, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{classifier: classifier, logger: logger.With("component", "analyzer")}
}

// Analyze detects the cultural features of asset. It only fails when the
// classifier cannot read the asset; uncertain detections are returned with
// CulturalAuthenticity capped at MaxGuessAuthenticity.
func (a *Analyzer) Analyze(ctx context.Context, asset *models.AudioAsset) (*models.CulturalFeatures, error) {
	c, err := a.classifier.Classify(ctx, asset)
	if err != nil {
		return nil, &apperrors.AnalysisError{AssetID: asset.ID, Cause: err}
	}

	guessed := c.Confidence < LowConfidence
	f := &models.CulturalFeatures{
		DetectedGenreID: normalizeTag(c.GenreID),
		RhythmicPattern: c.Rhythm,
		MusicalScale:    c.Scale,
		VocalStyle:      normalizeTags(c.VocalTags),
		TempoBPM:        c.TempoBPM,
		KeySignature:    c.Key,
	}
	f.InstrumentProfile = normalizeTags(c.Instruments)

	if f.DetectedGenreID == "" {
		f.DetectedGenreID = UnknownGenre
		guessed = true
	}
	if f.TempoBPM <= 0 || math.IsNaN(f.TempoBPM) {
		f.TempoBPM = DefaultTempo
		guessed = true
	}
	if len(f.InstrumentProfile) == 0 {
		f.InstrumentProfile = append([]string(nil), defaultInstruments...)
		guessed = true
	}
	if f.RhythmicPattern == "" {
		f.RhythmicPattern = DefaultRhythm
	}
	if f.MusicalScale == "" {
		f.MusicalScale = DefaultScale
	}
	if f.KeySignature == "" {
		f.KeySignature = DefaultKey
	}

	f.CulturalAuthenticity = math.Round(clamp01(c.Confidence)*100) / 10
	if guessed && f.CulturalAuthenticity > MaxGuessAuthenticity {
		f.CulturalAuthenticity = MaxGuessAuthenticity
	}

	if guessed {
		a.logger.Warn("low-confidence detection", "asset_id", asset.ID, "genre", f.DetectedGenreID, "confidence", c.Confidence)
	}
	return f, nil
}

func normalizeTag(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), "_")
}

func normalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	var out []string
	for _, t := range tags {
		t = normalizeTag(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
