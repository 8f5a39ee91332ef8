package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for expected failure modes
var (
	ErrTrackNotFound = errors.New("track not found")
	ErrTrackExists   = errors.New("track id already holds different audio")
	ErrJobNotFound   = errors.New("job not found")
	ErrQueueFull     = errors.New("swap queue is full")
	ErrShuttingDown  = errors.New("coordinator is shutting down")
	ErrCancelled     = errors.New("job cancelled")
	ErrNotFound      = errors.New("not found")
)

// Separation failure reasons
const (
	ReasonSilent     = "silent input"
	ReasonTooShort   = "input too short"
	ReasonTimeout    = "capability timed out"
	ReasonCapability = "capability failed"
	ReasonMissing    = "stem missing from capability output"
)

// SeparationError reports bad input or a failed source-separation call.
type SeparationError struct {
	AssetID string
	Reason  string
	Cause   error
}

func (e *SeparationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("separate %s: %s: %v", e.AssetID, e.Reason, e.Cause)
	}
	return fmt.Sprintf("separate %s: %s", e.AssetID, e.Reason)
}

func (e *SeparationError) Unwrap() error {
	return e.Cause
}

// AnalysisError is an I/O failure while reading or classifying an asset.
// Low-confidence detection is never an AnalysisError.
type AnalysisError struct {
	AssetID string
	Cause   error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analyze %s: %v", e.AssetID, e.Cause)
}

func (e *AnalysisError) Unwrap() error {
	return e.Cause
}

// ProfileNotFoundError records that a fallback profile was substituted.
type ProfileNotFoundError struct {
	GenreID  string
	Fallback string
}

func (e *ProfileNotFoundError) Error() string {
	return fmt.Sprintf("genre profile %q not found, using fallback %q", e.GenreID, e.Fallback)
}

// TransformationError fails a whole transform at the named stage.
type TransformationError struct {
	Stage string
	Cause error
}

func (e *TransformationError) Error() string {
	return fmt.Sprintf("transformation failed at %s: %v", e.Stage, e.Cause)
}

func (e *TransformationError) Unwrap() error {
	return e.Cause
}

// CacheCorruptionError is raised when a cached record fails its integrity
// check. Stores treat it as a miss.
type CacheCorruptionError struct {
	Key    string
	Detail string
}

func (e *CacheCorruptionError) Error() string {
	return fmt.Sprintf("cache entry %s corrupted: %s", e.Key, e.Detail)
}

// JobError is the single typed error a caller receives for a failed job.
type JobError struct {
	JobID string
	Stage string
	Cause error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("job %s failed at %s: %v", e.JobID, e.Stage, e.Cause)
}

func (e *JobError) Unwrap() error {
	return e.Cause
}

// Is reports whether err matches target, re-exported so callers importing
// this package as apperrors do not also need the standard errors package.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As mirrors errors.As.
func As(err error, target any) bool {
	return errors.As(err, target)
}
