// Package capability defines the black-box model contracts the swap pipeline
// depends on. Implementations may call a model server, an FFI binding, or the
// in-process heuristics in the heuristic subpackage; the pipeline only relies
// on the contracts documented here.
//
// Every implementation must be deterministic for a given input and must
// honour ctx cancellation so callers can impose timeouts.
package capability

import (
	"context"

	"genre-swap/pkg/models"
)

// StemSplitter performs source separation. It returns one asset per stem
// name in models.AllStems.
type StemSplitter interface {
	Split(ctx context.Context, asset *models.AudioAsset) (map[models.StemName]*models.AudioAsset, error)
}

// Classification is the raw output of a classifier. Confidence is in [0, 1];
// zero values mean the classifier could not tell.
type Classification struct {
	GenreID     string
	Confidence  float64
	Rhythm      string
	Scale       string
	Instruments []string
	VocalTags   []string
	TempoBPM    float64
	Key         string
}

// Classifier extracts genre and musical descriptors from audio.
type Classifier interface {
	Classify(ctx context.Context, asset *models.AudioAsset) (Classification, error)
}

// Operation names one transformation applied to a single stem.
type Operation struct {
	Stage  string
	Name   string
	Params map[string]float64
	Tags   []string
}

// StageProcessor renders one Operation on one stem, returning a new asset.
type StageProcessor interface {
	Process(ctx context.Context, stem *models.AudioAsset, op Operation) (*models.AudioAsset, error)
}
