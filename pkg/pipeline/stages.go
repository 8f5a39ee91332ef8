package pipeline

import (
	"context"
	"fmt"
	"time"

	"genre-swap/pkg/analysis"
	apperrors "genre-swap/pkg/errors"
	"genre-swap/pkg/models"
	"genre-swap/pkg/transform"

	"github.com/google/uuid"
)

// runJob drives one job through separation, analysis, transformation,
// mixing and assessment. The cancel flag is checked before each stage; a
// running stage always completes.
func (c *Coordinator) runJob(ctx context.Context, j *job) {
	sj := j.snapshot()
	log := c.logger.With("job_id", sj.ID, "cache_key", sj.CacheKey)
	j.startedAt = time.Now()

	unpin := c.deps.Store.PinJob(sj.SourceTrackID, sj.CacheKey)
	defer unpin()

	if j.cancelled.Load() {
		c.fail(j, string(models.StatusQueued), apperrors.ErrCancelled)
		return
	}
	// an identical job may have finished while this one was queued
	if res, ok := c.deps.Store.GetResult(sj.CacheKey); ok {
		c.complete(j, res, true)
		return
	}

	var warnings []string
	profile, err := c.deps.Registry.Lookup(sj.Options.TargetGenreID, sj.Options)
	if err != nil {
		warnings = append(warnings, err.Error())
	}

	track, err := c.deps.Store.GetTrack(sj.SourceTrackID)
	if err != nil {
		c.fail(j, string(models.StatusQueued), err)
		return
	}

	// enter runs the stage boundary check and the transition.
	enter := func(status models.JobStatus) bool {
		if j.cancelled.Load() {
			log.Info("Swap Coordinator: job cancelled at stage boundary", "next_stage", status)
			c.fail(j, string(status), apperrors.ErrCancelled)
			return false
		}
		if err := ctx.Err(); err != nil {
			c.fail(j, string(status), apperrors.ErrShuttingDown)
			return false
		}
		return c.advance(j, status)
	}
	failed := func(status models.JobStatus, err error) {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %w", apperrors.ErrShuttingDown, err)
		}
		log.Error("Swap Coordinator: stage failed", "stage", status, "error", err)
		c.fail(j, string(status), err)
	}

	// Separating
	if !enter(models.StatusSeparating) {
		return
	}
	stems, err := c.deps.Store.GetOrCreateStemSet(ctx, sj.SourceTrackID, func(ctx context.Context) (*models.StemSet, error) {
		return c.deps.Separator.Separate(ctx, sj.SourceTrackID, track)
	})
	if err != nil {
		failed(models.StatusSeparating, err)
		return
	}

	// Analyzing
	if !enter(models.StatusAnalyzing) {
		return
	}
	features, err := c.deps.Analyzer.Analyze(ctx, track)
	if err != nil {
		failed(models.StatusAnalyzing, err)
		return
	}
	if features.CulturalAuthenticity <= analysis.MaxGuessAuthenticity {
		warnings = append(warnings, fmt.Sprintf("low-confidence source analysis (authenticity %.1f)", features.CulturalAuthenticity))
	}

	// Transforming
	if !enter(models.StatusTransforming) {
		return
	}
	transformed, err := c.deps.Engine.Transform(ctx, stems, features, profile, sj.Options, sj.CacheKey)
	if err != nil {
		failed(models.StatusTransforming, err)
		return
	}

	// Mixing
	if !enter(models.StatusMixing) {
		return
	}
	mix, err := c.deps.Mixer.Mix(ctx, transformed, profile)
	if err != nil {
		failed(models.StatusMixing, err)
		return
	}
	warnings = append(warnings, mix.Warnings...)

	// Assessing
	if !enter(models.StatusAssessing) {
		return
	}
	assessment, err := c.deps.Assessor.Assess(ctx, mix.Asset, profile)
	if err != nil {
		// advisory only; the job still completes
		log.Warn("Swap Coordinator: assessment failed", "error", err)
		warnings = append(warnings, "assessment unavailable: "+err.Error())
		assessment = analysis.Assessment{}
	}

	transformedSet := transformed.StemSet(sj.SourceTrackID)
	result := &models.SwapResult{
		ID:                   uuid.New().String(),
		JobID:                sj.ID,
		CacheKey:             sj.CacheKey,
		SourceTrackID:        sj.SourceTrackID,
		ResultAssetID:        mix.Asset.ID,
		OriginalStemSetID:    stems.ID,
		TransformedStemSetID: transformedSet.ID,
		Confidence:           assessment.Confidence,
		CulturalAccuracy:     assessment.CulturalAccuracy,
		Metadata:             buildMetadata(features, profile, sj.Options, transformed, mix.Preset, warnings),
		CreatedAt:            time.Now(),
	}

	assets := append([]*models.AudioAsset{mix.Asset}, transformedSet.Assets()...)
	if err := c.deps.Store.PutResult(sj.CacheKey, result, assets...); err != nil {
		failed(models.StatusAssessing, err)
		return
	}
	log.Info("Swap Coordinator: result written",
		"result_id", result.ID, "confidence", result.Confidence, "accuracy", result.CulturalAccuracy,
		"elapsed", time.Since(j.startedAt))
	c.complete(j, result, false)
}

func buildMetadata(features *models.CulturalFeatures, profile models.GenreProfile, opts models.SwapOptions,
	t *transform.TransformedStemSet, preset string, warnings []string) models.SwapMetadata {
	return models.SwapMetadata{
		SourceGenre:      features.DetectedGenreID,
		TargetGenre:      profile.ID,
		InstrumentsAdded: t.InstrumentsAdded,
		InstrumentLog:    t.InstrumentLog,
		RhythmPattern:    t.RhythmPattern,
		ScaleUsed:        t.Scale,
		VocalStyle:       t.VocalStyle,
		ProcessingChain:  t.ProcessingLog,
		NicheComplexity:  profile.Nicheness * float64(opts.NicheAccuracyTarget) / 10,
		KeyShift:         t.KeyShift,
		TargetKey:        t.TargetKey,
		TempoTarget:      t.TempoTarget,
		StretchRatio:     t.StretchRatio,
		MixPreset:        preset,
		Warnings:         warnings,
	}
}
