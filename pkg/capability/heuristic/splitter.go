package heuristic

import (
	"context"
	"math"

	"genre-swap/pkg/audio"
	"genre-swap/pkg/models"
)

const (
	DefaultFrameSize = 2048

	bassCutoff  = 250.0
	vocalCutoff = 4000.0
)

// Splitter separates stems by frequency band and stereo position: bass
// below 250 Hz, centred midrange as vocals, side midrange as other, and
// everything above 4 kHz as drums. The stems sum back to the input.
type Splitter struct {
	FrameSize int
}

func NewSplitter() *Splitter {
	return &Splitter{FrameSize: DefaultFrameSize}
}

func (s *Splitter) Split(ctx context.Context, asset *models.AudioAsset) (map[models.StemName]*models.AudioAsset, error) {
	chans := deinterleave(audio.BytesToSamples(asset.Data), asset.Channels)

	var mid, side []float64
	if len(chans) >= 2 {
		mid = make([]float64, len(chans[0]))
		side = make([]float64, len(chans[0]))
		for i := range mid {
			mid[i] = (chans[0][i] + chans[1][i]) / 2
			side[i] = (chans[0][i] - chans[1][i]) / 2
		}
	} else {
		mid = chans[0]
	}

	bands := []band{{0, bassCutoff}, {bassCutoff, vocalCutoff}, {vocalCutoff, math.Inf(1)}}
	midBands := splitBands(mid, asset.SampleRate, s.FrameSize, bands)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var sideBands [][]float64
	if side != nil {
		sideBands = splitBands(side, asset.SampleRate, s.FrameSize, bands)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	const low, midrange, high = 0, 1, 2
	pick := func(b int, useMid, useSide bool) *models.AudioAsset {
		m := make([]float64, len(mid))
		sd := make([]float64, len(mid))
		if useMid {
			copy(m, midBands[b])
		}
		if useSide && sideBands != nil {
			copy(sd, sideBands[b])
		}
		if len(chans) < 2 {
			return asset.Derive(interleave([][]float64{m}), asset.SampleRate, 1)
		}
		l := make([]float64, len(m))
		r := make([]float64, len(m))
		for i := range m {
			l[i] = m[i] + sd[i]
			r[i] = m[i] - sd[i]
		}
		return asset.Derive(interleave([][]float64{l, r}), asset.SampleRate, 2)
	}

	return map[models.StemName]*models.AudioAsset{
		models.StemBass:   pick(low, true, true),
		models.StemVocals: pick(midrange, true, false),
		models.StemOther:  pick(midrange, false, true),
		models.StemDrums:  pick(high, true, true),
	}, nil
}
