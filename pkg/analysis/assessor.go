package analysis

import (
	"context"
	"log/slog"

	"genre-swap/pkg/capability"
	apperrors "genre-swap/pkg/errors"
	"genre-swap/pkg/models"
)

// Agreement weights; they sum to 1.
const (
	weightGenre       = 0.35
	weightRhythm      = 0.20
	weightScale       = 0.15
	weightInstruments = 0.20
	weightTempo       = 0.10
)

// Assessment scores a finished mix. Both values are in [0, 1].
type Assessment struct {
	Confidence       float64 `json:"confidence"`
	CulturalAccuracy float64 `json:"cultural_accuracy"`
}

// Assessor re-classifies the output and compares it with the target profile.
// Its scores are advisory.
type Assessor struct {
	classifier capability.Classifier
	logger     *slog.Logger
}

func NewAssessor(classifier capability.Classifier, logger *slog.Logger) *Assessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assessor{classifier: classifier, logger: logger.With("component", "assessor")}
}

func (a *Assessor) Assess(ctx context.Context, mixed *models.AudioAsset, target models.GenreProfile) (Assessment, error) {
	c, err := a.classifier.Classify(ctx, mixed)
	if err != nil {
		return Assessment{}, &apperrors.AnalysisError{AssetID: mixed.ID, Cause: err}
	}
	return Assessment{
		Confidence:       clamp01(c.Confidence),
		CulturalAccuracy: Agreement(c, target),
	}, nil
}

// Agreement is monotone in how many target descriptors the classification
// matches.
func Agreement(c capability.Classification, target models.GenreProfile) float64 {
	var score float64
	if normalizeTag(c.GenreID) == target.ID {
		score += weightGenre
	}
	if c.Rhythm != "" && c.Rhythm == target.RhythmPattern {
		score += weightRhythm
	}
	if c.Scale != "" && c.Scale == target.MusicalScale {
		score += weightScale
	}
	score += weightInstruments * jaccard(normalizeTags(c.Instruments), target.InstrumentsUsed)
	if target.TempoRange.Contains(c.TempoBPM) {
		score += weightTempo
	}
	return clamp01(score)
}

func jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, x := range a {
		set[x] = true
	}
	inter := 0
	union := len(set)
	for _, y := range b {
		if set[y] {
			inter++
		} else {
			union++
		}
	}
	return float64(inter) / float64(union)
}
