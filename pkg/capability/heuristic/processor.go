package heuristic

import (
	"context"
	"math"

	"genre-swap/pkg/audio"
	"genre-swap/pkg/capability"
	"genre-swap/pkg/models"
	"genre-swap/pkg/transform"
)

// Processor renders stage operations in the time domain. Tempo changes
// resample, scale changes repitch at constant length, effects saturate and
// add space, and vocal presets tilt brightness. Rhythm and instrument
// operations only reshape dynamics since timbre cannot be synthesized here.
type Processor struct{}

func NewProcessor() *Processor {
	return &Processor{}
}

func (p *Processor) Process(ctx context.Context, stem *models.AudioAsset, op capability.Operation) (*models.AudioAsset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	chans := deinterleave(audio.BytesToSamples(stem.Data), stem.Channels)
	for i, ch := range chans {
		chans[i] = render(ch, stem.SampleRate, op)
	}
	return stem.Derive(interleave(chans), stem.SampleRate, len(chans)), nil
}

func render(x []float64, sampleRate int, op capability.Operation) []float64 {
	switch op.Stage {
	case transform.StageTempo:
		return audio.Resample(x, op.Params["ratio"])
	case transform.StageScale:
		return repitch(x, op.Params["semitones"])
	case transform.StageEffects:
		x = saturate(x, op.Params["saturation"]+op.Params["warmth"]/2)
		return echo(x, sampleRate, op.Params["reverb_size"], op.Params["reverb_mix"]+op.Params["delay_mix"])
	case transform.StageVocals:
		return tilt(x, op.Params["brightness"])
	case transform.StageRhythm:
		return compress(x, op.Params["density"])
	default:
		out := make([]float64, len(x))
		copy(out, x)
		return out
	}
}

// repitch shifts by semitones and keeps the original length, padding with
// silence or truncating.
func repitch(x []float64, semitones float64) []float64 {
	out := make([]float64, len(x))
	if semitones == 0 {
		copy(out, x)
		return out
	}
	copy(out, audio.Resample(x, math.Pow(2, semitones/12)))
	return out
}

func saturate(x []float64, amount float64) []float64 {
	out := make([]float64, len(x))
	if amount <= 0 {
		copy(out, x)
		return out
	}
	drive := 1 + 3*amount
	norm := math.Tanh(drive)
	for i, v := range x {
		// normalizing by tanh(drive) lifts inputs past full scale above 1
		out[i] = math.Max(-1, math.Min(1, math.Tanh(v*drive)/norm))
	}
	return out
}

// echo adds one feedback tap; size maps to a delay of up to 120 ms.
func echo(x []float64, sampleRate int, size, mix float64) []float64 {
	out := make([]float64, len(x))
	copy(out, x)
	d := int(size * 0.12 * float64(sampleRate))
	if mix <= 0 || d <= 0 {
		return out
	}
	for i := d; i < len(out); i++ {
		out[i] += out[i-d] * mix * 0.5
	}
	return out
}

// tilt boosts high frequencies with a first-order difference.
func tilt(x []float64, amount float64) []float64 {
	out := make([]float64, len(x))
	prev := 0.0
	for i, v := range x {
		out[i] = v + amount*0.5*(v-prev)
		prev = v
	}
	return out
}

// compress evens out dynamics; denser grids get flatter envelopes.
func compress(x []float64, density float64) []float64 {
	out := make([]float64, len(x))
	ratio := 1 + density
	for i, v := range x {
		mag := math.Abs(v)
		if mag > 0.5 {
			mag = 0.5 + (mag-0.5)/ratio
		}
		out[i] = math.Copysign(mag, v)
	}
	return out
}
