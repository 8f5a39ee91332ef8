package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os/exec"
)

const (
	SampleRate = 44100
	Channels   = 2
	BitDepth   = 16

	// SilenceRMS is the normalized RMS below which audio counts as silent.
	SilenceRMS = 1e-3
)

// DecodeFile runs FFmpeg to decode an audio file to raw PCM int16 samples.
// Returns little-endian interleaved stereo bytes at 44.1kHz.
func DecodeFile(ctx context.Context, path string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", path,
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", fmt.Sprint(SampleRate),
		"-ac", fmt.Sprint(Channels),
		"-loglevel", "error",
		"pipe:1",
	)

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg decode %s: %w", path, err)
	}

	// Ensure even byte count for int16 alignment
	if len(out)%2 != 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

// BytesToSamples converts little-endian bytes to int16 samples.
func BytesToSamples(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2 : i*2+2]))
	}
	return samples
}

// SamplesToBytes converts int16 samples to little-endian bytes.
func SamplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// ToFloat converts samples to the [-1, 1] range.
func ToFloat(samples []int16) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = float64(s) / 32768
	}
	return out
}

// FromFloat converts [-1, 1] samples back to int16, clipping out-of-range values.
func FromFloat(samples []float64) []int16 {
	out := make([]int16, len(samples))
	for i, v := range samples {
		out[i] = Clip(v * 32768)
	}
	return out
}

// Clip saturates v to the int16 range.
func Clip(v float64) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

// Mono averages interleaved channels into one.
func Mono(samples []int16, channels int) []float64 {
	if channels <= 1 {
		return ToFloat(samples)
	}
	frames := len(samples) / channels
	out := make([]float64, frames)
	for f := 0; f < frames; f++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(samples[f*channels+c])
		}
		out[f] = sum / float64(channels) / 32768
	}
	return out
}

// RMS of normalized samples.
func RMS(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// IsSilent reports whether PCM bytes carry no audible signal.
func IsSilent(data []byte, channels int) bool {
	return RMS(Mono(BytesToSamples(data), channels)) < SilenceRMS
}

// Resample stretches mono float samples by ratio using linear interpolation.
// A ratio above 1 shortens the signal (speeds it up).
func Resample(samples []float64, ratio float64) []float64 {
	if ratio <= 0 || len(samples) == 0 {
		return samples
	}
	n := int(float64(len(samples)) / ratio)
	out := make([]float64, n)
	for i := range out {
		pos := float64(i) * ratio
		j := int(pos)
		if j >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := pos - float64(j)
		out[i] = samples[j]*(1-frac) + samples[j+1]*frac
	}
	return out
}

// EncodeWAV wraps PCM bytes in a canonical 44-byte RIFF header.
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	var buf bytes.Buffer
	byteRate := sampleRate * channels * BitDepth / 8
	blockAlign := channels * BitDepth / 8

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(BitDepth))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}
