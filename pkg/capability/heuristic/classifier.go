package heuristic

import (
	"context"
	"math"
	"slices"

	"genre-swap/pkg/audio"
	"genre-swap/pkg/capability"
	"genre-swap/pkg/models"
)

const (
	onsetHop = 512
	minBPM   = 60.0
	maxBPM   = 200.0

	// a catalog match is never reported above this confidence
	maxConfidence = 0.6
)

// Krumhansl-Kessler key profiles, C rooted.
var (
	majorProfile = [12]float64{6.35, 2.23, 3.48, 2.33, 4.38, 4.09, 2.52, 5.19, 2.39, 3.66, 2.29, 2.88}
	minorProfile = [12]float64{6.33, 2.68, 3.52, 5.38, 2.60, 3.53, 2.54, 4.75, 3.98, 2.69, 3.34, 3.17}
	pitchNames   = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}
)

// minorScales are catalog scale names that imply a minor third.
var minorScales = []string{"minor", "dorian", "pentatonic_minor", "phrygian_dominant"}

// Classifier estimates tempo, key and brightness, then picks the catalog
// profile that agrees best with them.
type Classifier struct {
	Profiles  []models.GenreProfile
	FrameSize int
}

func NewClassifier(profiles []models.GenreProfile) *Classifier {
	return &Classifier{Profiles: profiles, FrameSize: 4096}
}

func (c *Classifier) Classify(ctx context.Context, asset *models.AudioAsset) (capability.Classification, error) {
	mono := audio.Mono(audio.BytesToSamples(asset.Data), asset.Channels)
	if audio.RMS(mono) < audio.SilenceRMS || len(mono) < c.FrameSize {
		return capability.Classification{}, nil
	}

	bpm := estimateTempo(mono, asset.SampleRate)
	if err := ctx.Err(); err != nil {
		return capability.Classification{}, err
	}
	root, minor := estimateKey(chroma(mono, asset.SampleRate, c.FrameSize))
	bright := centroid(mono, asset.SampleRate, c.FrameSize)
	if err := ctx.Err(); err != nil {
		return capability.Classification{}, err
	}

	mode := "major"
	if minor {
		mode = "minor"
	}
	out := capability.Classification{
		TempoBPM:    bpm,
		Key:         pitchNames[root] + " " + mode,
		Scale:       mode,
		Instruments: guessInstruments(bright),
	}

	best, score := c.match(bpm, minor, out.Instruments)
	if best != nil {
		out.GenreID = best.ID
		out.Rhythm = best.RhythmPattern
		out.Scale = best.MusicalScale
		out.Confidence = score * maxConfidence
	}
	return out, nil
}

// match scores every profile on tempo fit, mode and instrument overlap.
func (c *Classifier) match(bpm float64, minor bool, instruments []string) (*models.GenreProfile, float64) {
	var best *models.GenreProfile
	bestScore := 0.0
	for i := range c.Profiles {
		p := &c.Profiles[i]
		var s float64
		if p.TempoRange.Contains(bpm) {
			s += 0.5
		}
		if slices.Contains(minorScales, p.MusicalScale) == minor {
			s += 0.3
		}
		for _, inst := range instruments {
			if slices.Contains(p.InstrumentsUsed, inst) {
				s += 0.2 / float64(len(instruments))
			}
		}
		if s > bestScore {
			best, bestScore = p, s
		}
	}
	return best, bestScore
}

// estimateTempo autocorrelates the positive energy flux between hops.
func estimateTempo(x []float64, sampleRate int) float64 {
	n := len(x) / onsetHop
	if n < 4 {
		return 0
	}
	energy := make([]float64, n)
	for i := range energy {
		for _, v := range x[i*onsetHop : (i+1)*onsetHop] {
			energy[i] += v * v
		}
	}
	flux := make([]float64, n)
	for i := 1; i < n; i++ {
		if d := energy[i] - energy[i-1]; d > 0 {
			flux[i] = d
		}
	}

	hopsPerMinute := 60 * float64(sampleRate) / onsetHop
	minLag := int(hopsPerMinute / maxBPM)
	maxLag := int(hopsPerMinute / minBPM)
	bestLag, bestCorr := 0, 0.0
	for lag := max(minLag, 1); lag <= maxLag && lag < n; lag++ {
		var corr float64
		for i := lag; i < n; i++ {
			corr += flux[i] * flux[i-lag]
		}
		corr /= float64(n - lag)
		if corr > bestCorr {
			bestLag, bestCorr = lag, corr
		}
	}
	if bestLag == 0 {
		return 0
	}
	return math.Round(hopsPerMinute/float64(bestLag)*10) / 10
}

// estimateKey correlates the chroma vector with rotated key profiles.
func estimateKey(pcp [12]float64) (root int, minor bool) {
	best := math.Inf(-1)
	for r := 0; r < 12; r++ {
		for _, m := range []bool{false, true} {
			profile := majorProfile
			if m {
				profile = minorProfile
			}
			var rotated [12]float64
			for i := range rotated {
				rotated[i] = profile[(i-r+12)%12]
			}
			if corr := pearson(pcp[:], rotated[:]); corr > best {
				best, root, minor = corr, r, m
			}
		}
	}
	return root, minor
}

func pearson(a, b []float64) float64 {
	var ma, mb float64
	for i := range a {
		ma += a[i]
		mb += b[i]
	}
	ma /= float64(len(a))
	mb /= float64(len(b))
	var num, da, db float64
	for i := range a {
		num += (a[i] - ma) * (b[i] - mb)
		da += (a[i] - ma) * (a[i] - ma)
		db += (b[i] - mb) * (b[i] - mb)
	}
	if da == 0 || db == 0 {
		return 0
	}
	return num / math.Sqrt(da*db)
}

func guessInstruments(centroidHz float64) []string {
	switch {
	case centroidHz <= 0:
		return nil
	case centroidHz < 800:
		return []string{"bass", "drums", "synth_pad"}
	case centroidHz < 2000:
		return []string{"drums", "bass", "guitar", "piano"}
	default:
		return []string{"drums", "synth", "synth_lead"}
	}
}
