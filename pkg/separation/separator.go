package separation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"genre-swap/pkg/audio"
	"genre-swap/pkg/capability"
	apperrors "genre-swap/pkg/errors"
	"genre-swap/pkg/models"
)

// MinDuration is the shortest input the separator accepts.
const MinDuration = 3 * time.Second

// Separator validates input audio and splits it into the fixed stem shape
// through a source-separation capability.
type Separator struct {
	splitter capability.StemSplitter
	timeout  time.Duration
	logger   *slog.Logger
}

// NewSeparator wraps splitter. A zero timeout disables the capability deadline.
func NewSeparator(splitter capability.StemSplitter, timeout time.Duration, logger *slog.Logger) *Separator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Separator{
		splitter: splitter,
		timeout:  timeout,
		logger:   logger.With("component", "separator"),
	}
}

type splitResult struct {
	stems map[models.StemName]*models.AudioAsset
	err   error
}

// Separate splits asset into vocals, drums, bass and other stems.
func (s *Separator) Separate(ctx context.Context, trackID string, asset *models.AudioAsset) (*models.StemSet, error) {
	if asset == nil || asset.DurationSeconds < MinDuration.Seconds() {
		id := ""
		if asset != nil {
			id = asset.ID
		}
		return nil, &apperrors.SeparationError{AssetID: id, Reason: apperrors.ReasonTooShort}
	}
	if audio.IsSilent(asset.Data, asset.Channels) {
		return nil, &apperrors.SeparationError{AssetID: asset.ID, Reason: apperrors.ReasonSilent}
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	s.logger.Info("Separator: splitting track", "track_id", trackID, "asset_id", asset.ID, "duration", asset.DurationSeconds)

	// the capability may not watch ctx; the deadline is enforced here as well
	ch := make(chan splitResult, 1)
	go func() {
		stems, err := s.splitter.Split(ctx, asset)
		ch <- splitResult{stems: stems, err: err}
	}()

	var res splitResult
	select {
	case res = <-ch:
	case <-ctx.Done():
		res.err = ctx.Err()
	}

	if res.err != nil {
		reason := apperrors.ReasonCapability
		if errors.Is(res.err, context.DeadlineExceeded) {
			reason = apperrors.ReasonTimeout
		}
		return nil, &apperrors.SeparationError{AssetID: asset.ID, Reason: reason, Cause: res.err}
	}

	stems := make(map[models.StemName]*models.AudioAsset, len(models.AllStems))
	for _, name := range models.AllStems {
		stem, ok := res.stems[name]
		if !ok || stem == nil {
			return nil, &apperrors.SeparationError{AssetID: asset.ID, Reason: apperrors.ReasonMissing + ": " + string(name)}
		}
		if stem.SourceAssetID == "" {
			stem.SourceAssetID = asset.ID
		}
		stems[name] = stem
	}

	s.logger.Info("Separator: stems ready", "track_id", trackID, "elapsed", time.Since(start))
	return models.NewStemSet(trackID, stems), nil
}
