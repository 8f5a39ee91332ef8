package models

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	StatusQueued       JobStatus = "queued"
	StatusSeparating   JobStatus = "separating"
	StatusAnalyzing    JobStatus = "analyzing"
	StatusTransforming JobStatus = "transforming"
	StatusMixing       JobStatus = "mixing"
	StatusAssessing    JobStatus = "assessing"
	StatusDone         JobStatus = "done"
	StatusFailed       JobStatus = "failed"
	StatusCancelled    JobStatus = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s JobStatus) Terminal() bool {
	return s == StatusDone || s == StatusFailed || s == StatusCancelled
}

// Percent is the progress reported when a job enters s.
func (s JobStatus) Percent() int {
	switch s {
	case StatusSeparating:
		return 10
	case StatusAnalyzing:
		return 30
	case StatusTransforming:
		return 60
	case StatusMixing:
		return 80
	case StatusAssessing:
		return 90
	case StatusDone:
		return 100
	}
	return 0
}

// next lists the only forward transition from each running state.
var next = map[JobStatus]JobStatus{
	StatusQueued:       StatusSeparating,
	StatusSeparating:   StatusAnalyzing,
	StatusAnalyzing:    StatusTransforming,
	StatusTransforming: StatusMixing,
	StatusMixing:       StatusAssessing,
	StatusAssessing:    StatusDone,
}

// CanTransition enforces the strictly sequential job state machine. A cache
// hit may go straight from queued to done; failure and cancellation are
// reachable from every non-terminal state.
func CanTransition(from, to JobStatus) bool {
	if from.Terminal() {
		return false
	}
	if to == StatusFailed || to == StatusCancelled {
		return true
	}
	if from == StatusQueued && to == StatusDone {
		return true
	}
	return next[from] == to
}

// SwapJob is one unit of swap work.
type SwapJob struct {
	ID            string      `json:"id"`
	SourceTrackID string      `json:"source_track_id"`
	Options       SwapOptions `json:"options"`
	Status        JobStatus   `json:"status"`
	CacheKey      string      `json:"cache_key"`
	CacheHit      bool        `json:"cache_hit"`
	Error         string      `json:"error,omitempty"`
	FailedStage   string      `json:"failed_stage,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

func NewSwapJob(trackID string, opts SwapOptions) *SwapJob {
	c := opts.Canonical()
	now := time.Now()
	return &SwapJob{
		ID:            uuid.New().String(),
		SourceTrackID: trackID,
		Options:       c,
		Status:        StatusQueued,
		CacheKey:      CacheKey(trackID, c),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// SwapMetadata describes what the pipeline did to produce a result.
type SwapMetadata struct {
	SourceGenre      string   `json:"source_genre"`
	TargetGenre      string   `json:"target_genre"`
	InstrumentsAdded []string `json:"instruments_added"`
	InstrumentLog    []string `json:"instrument_log"`
	RhythmPattern    string   `json:"rhythm_pattern"`
	ScaleUsed        string   `json:"scale_used"`
	VocalStyle       []string `json:"vocal_style"`
	ProcessingChain  []string `json:"processing_chain"`
	NicheComplexity  float64  `json:"niche_complexity"`
	KeyShift         int      `json:"key_shift"`
	TargetKey        string   `json:"target_key"`
	TempoTarget      float64  `json:"tempo_target"`
	StretchRatio     float64  `json:"stretch_ratio"`
	MixPreset        string   `json:"mix_preset"`
	Warnings         []string `json:"warnings,omitempty"`
}

// SwapResult is the immutable output of a completed job.
type SwapResult struct {
	ID                   string       `json:"id"`
	JobID                string       `json:"job_id"`
	CacheKey             string       `json:"cache_key"`
	SourceTrackID        string       `json:"source_track_id"`
	ResultAssetID        string       `json:"result_asset_id"`
	OriginalStemSetID    string       `json:"original_stem_set_id"`
	TransformedStemSetID string       `json:"transformed_stem_set_id"`
	Confidence           float64      `json:"confidence"`
	CulturalAccuracy     float64      `json:"cultural_accuracy"`
	Metadata             SwapMetadata `json:"metadata"`
	CreatedAt            time.Time    `json:"created_at"`
	LastAccess           time.Time    `json:"last_access"`
}

// ProgressEvent is emitted at each job state transition.
type ProgressEvent struct {
	JobID   string    `json:"job_id"`
	Stage   JobStatus `json:"stage"`
	Percent int       `json:"percent"`
	At      time.Time `json:"at"`
}
