// Package heuristic implements the capability contracts with plain DSP so
// the service runs without a model server. Separation is a mid/side band
// split, classification matches tempo, key and spectral shape against the
// genre catalog, and stage processing renders simple time-domain effects.
// Results are deterministic but far from model quality.
package heuristic

import (
	"math"

	"genre-swap/pkg/audio"

	"gonum.org/v1/gonum/dsp/fourier"
)

// periodic Hann; at 50% overlap the windows sum to one
func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n)))
	}
	return w
}

func deinterleave(samples []int16, channels int) [][]float64 {
	if channels < 1 {
		channels = 1
	}
	frames := len(samples) / channels
	out := make([][]float64, channels)
	for c := range out {
		out[c] = make([]float64, frames)
		for f := 0; f < frames; f++ {
			out[c][f] = float64(samples[f*channels+c]) / 32768
		}
	}
	return out
}

func interleave(chans [][]float64) []byte {
	if len(chans) == 0 {
		return nil
	}
	frames := len(chans[0])
	for _, ch := range chans[1:] {
		frames = min(frames, len(ch))
	}
	out := make([]int16, frames*len(chans))
	for f := 0; f < frames; f++ {
		for c, ch := range chans {
			out[f*len(chans)+c] = audio.Clip(ch[f] * 32768)
		}
	}
	return audio.SamplesToBytes(out)
}

// band is a half-open frequency range in Hz.
type band struct{ lo, hi float64 }

// splitBands filters x into one signal per band using windowed
// overlap-add. The bands must tile the spectrum for the outputs to sum
// back to x.
func splitBands(x []float64, sampleRate, frameSize int, bands []band) [][]float64 {
	hop := frameSize / 2
	fft := fourier.NewFFT(frameSize)
	win := hann(frameSize)

	out := make([][]float64, len(bands))
	for i := range out {
		out[i] = make([]float64, len(x))
	}

	buf := make([]float64, frameSize)
	coeff := make([]complex128, frameSize/2+1)
	masked := make([]complex128, frameSize/2+1)
	seq := make([]float64, frameSize)

	for start := -hop; start < len(x); start += hop {
		for k := range buf {
			j := start + k
			if j >= 0 && j < len(x) {
				buf[k] = x[j] * win[k]
			} else {
				buf[k] = 0
			}
		}
		coeff = fft.Coefficients(coeff, buf)

		for b, bd := range bands {
			for k := range coeff {
				hz := fft.Freq(k) * float64(sampleRate)
				if hz >= bd.lo && hz < bd.hi {
					masked[k] = coeff[k]
				} else {
					masked[k] = 0
				}
			}
			seq = fft.Sequence(seq, masked)
			for k, v := range seq {
				j := start + k
				if j >= 0 && j < len(x) {
					out[b][j] += v / float64(frameSize)
				}
			}
		}
	}
	return out
}

// chroma accumulates spectral magnitude into 12 pitch classes (C = 0).
func chroma(x []float64, sampleRate, frameSize int) [12]float64 {
	var pcp [12]float64
	fft := fourier.NewFFT(frameSize)
	win := hann(frameSize)
	buf := make([]float64, frameSize)
	coeff := make([]complex128, frameSize/2+1)

	for start := 0; start+frameSize <= len(x); start += frameSize {
		for k := range buf {
			buf[k] = x[start+k] * win[k]
		}
		coeff = fft.Coefficients(coeff, buf)
		for k := 1; k < len(coeff); k++ {
			hz := fft.Freq(k) * float64(sampleRate)
			if hz < 55 || hz > 2000 {
				continue
			}
			midi := 69 + 12*math.Log2(hz/440)
			pc := (int(math.Round(midi))%12 + 12) % 12
			re, im := real(coeff[k]), imag(coeff[k])
			pcp[pc] += math.Sqrt(re*re + im*im)
		}
	}
	return pcp
}

// centroid is the magnitude-weighted mean frequency in Hz.
func centroid(x []float64, sampleRate, frameSize int) float64 {
	fft := fourier.NewFFT(frameSize)
	win := hann(frameSize)
	buf := make([]float64, frameSize)
	coeff := make([]complex128, frameSize/2+1)

	var num, den float64
	for start := 0; start+frameSize <= len(x); start += frameSize {
		for k := range buf {
			buf[k] = x[start+k] * win[k]
		}
		coeff = fft.Coefficients(coeff, buf)
		for k := range coeff {
			re, im := real(coeff[k]), imag(coeff[k])
			mag := math.Sqrt(re*re + im*im)
			num += fft.Freq(k) * float64(sampleRate) * mag
			den += mag
		}
	}
	if den == 0 {
		return 0
	}
	return num / den
}
