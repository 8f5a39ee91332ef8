package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// BytesPerSample is the width of one PCM sample (signed 16-bit little-endian).
const BytesPerSample = 2

// AudioAsset is an immutable unit of PCM audio. Data holds interleaved
// signed 16-bit little-endian samples.
type AudioAsset struct {
	ID              string    `json:"id"`
	SourceAssetID   string    `json:"source_asset_id,omitempty"`
	SampleRate      int       `json:"sample_rate"`
	Channels        int       `json:"channels"`
	DurationSeconds float64   `json:"duration_seconds"`
	Data            []byte    `json:"data"`
	Checksum        string    `json:"checksum"`
	CreatedAt       time.Time `json:"created_at"`
}

// NewAudioAsset wraps raw PCM bytes in a new asset with a fresh ID.
func NewAudioAsset(data []byte, sampleRate, channels int) *AudioAsset {
	return &AudioAsset{
		ID:              uuid.New().String(),
		SampleRate:      sampleRate,
		Channels:        channels,
		DurationSeconds: durationOf(len(data), sampleRate, channels),
		Data:            data,
		Checksum:        Checksum(data),
		CreatedAt:       time.Now(),
	}
}

// Derive creates a new asset whose lineage points at a.
func (a *AudioAsset) Derive(data []byte, sampleRate, channels int) *AudioAsset {
	d := NewAudioAsset(data, sampleRate, channels)
	d.SourceAssetID = a.ID
	return d
}

// Size returns the payload size in bytes.
func (a *AudioAsset) Size() int64 {
	if a == nil {
		return 0
	}
	return int64(len(a.Data))
}

// Verify reports whether Data still matches the recorded checksum.
func (a *AudioAsset) Verify() bool {
	return a.Checksum == Checksum(a.Data)
}

// Checksum is the hex sha256 of data.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func durationOf(n, sampleRate, channels int) float64 {
	if sampleRate <= 0 || channels <= 0 {
		return 0
	}
	frames := n / (BytesPerSample * channels)
	return float64(frames) / float64(sampleRate)
}

// StemName identifies one isolated layer of a mix.
type StemName string

const (
	StemVocals StemName = "vocals"
	StemDrums  StemName = "drums"
	StemBass   StemName = "bass"
	StemOther  StemName = "other"
)

// AllStems lists the fixed stem shape in mixing order.
var AllStems = []StemName{StemVocals, StemDrums, StemBass, StemOther}

// StemSet maps each stem name to its asset.
type StemSet struct {
	ID            string                   `json:"id"`
	SourceTrackID string                   `json:"source_track_id"`
	Stems         map[StemName]*AudioAsset `json:"stems"`
	CreatedAt     time.Time                `json:"created_at"`
}

func NewStemSet(trackID string, stems map[StemName]*AudioAsset) *StemSet {
	return &StemSet{
		ID:            uuid.New().String(),
		SourceTrackID: trackID,
		Stems:         stems,
		CreatedAt:     time.Now(),
	}
}

// Size is the total payload of all stems.
func (s *StemSet) Size() int64 {
	var n int64
	for _, a := range s.Stems {
		n += a.Size()
	}
	return n
}

// Assets returns the stems in AllStems order, skipping absent ones.
func (s *StemSet) Assets() []*AudioAsset {
	out := make([]*AudioAsset, 0, len(s.Stems))
	for _, name := range AllStems {
		if a, ok := s.Stems[name]; ok {
			out = append(out, a)
		}
	}
	return out
}

// CulturalFeatures are the detected properties of a track.
type CulturalFeatures struct {
	DetectedGenreID      string   `json:"detected_genre_id"`
	RhythmicPattern      string   `json:"rhythmic_pattern"`
	MusicalScale         string   `json:"musical_scale"`
	InstrumentProfile    []string `json:"instrument_profile"`
	VocalStyle           []string `json:"vocal_style"`
	TempoBPM             float64  `json:"tempo_bpm"`
	KeySignature         string   `json:"key_signature"`
	CulturalAuthenticity float64  `json:"cultural_authenticity"`
}
