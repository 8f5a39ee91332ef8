package audio

import (
	"encoding/binary"
	"math"
	"testing"
)

// --- Sample conversion ---

func TestSamplesRoundTrip(t *testing.T) {
	in := []int16{0, 1, -1, 32767, -32768, 1234}
	out := BytesToSamples(SamplesToBytes(in))
	if len(out) != len(in) {
		t.Fatalf("len = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("sample[%d] = %d, want %d", i, out[i], in[i])
		}
	}
}

func TestClip(t *testing.T) {
	tests := []struct {
		input float64
		want  int16
	}{
		{0, 0},
		{40000, 32767},
		{-40000, -32768},
		{100.7, 100},
	}
	for _, tt := range tests {
		if got := Clip(tt.input); got != tt.want {
			t.Errorf("Clip(%v) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestMonoAveragesChannels(t *testing.T) {
	stereo := []int16{16384, 0, -16384, -16384}
	mono := Mono(stereo, 2)
	if len(mono) != 2 {
		t.Fatalf("len = %d, want 2", len(mono))
	}
	if mono[0] != 0.25 {
		t.Errorf("mono[0] = %v, want 0.25", mono[0])
	}
	if mono[1] != -0.5 {
		t.Errorf("mono[1] = %v, want -0.5", mono[1])
	}
}

// --- Silence ---

func TestIsSilent(t *testing.T) {
	silent := make([]byte, 4000)
	if !IsSilent(silent, 2) {
		t.Error("all-zero PCM should be silent")
	}

	loud := make([]int16, 2000)
	for i := range loud {
		loud[i] = int16(10000 * math.Sin(float64(i)/5))
	}
	if IsSilent(SamplesToBytes(loud), 2) {
		t.Error("sine PCM should not be silent")
	}
}

// --- Resample ---

func TestResampleRatio(t *testing.T) {
	in := make([]float64, 1000)
	for i := range in {
		in[i] = float64(i)
	}
	if got := len(Resample(in, 2)); got != 500 {
		t.Errorf("ratio 2: len = %d, want 500", got)
	}
	if got := len(Resample(in, 0.5)); got != 2000 {
		t.Errorf("ratio 0.5: len = %d, want 2000", got)
	}
	if got := Resample(in, 0); len(got) != len(in) {
		t.Error("non-positive ratio should return input unchanged")
	}
}

// --- WAV ---

func TestEncodeWAVHeader(t *testing.T) {
	pcm := make([]byte, 400)
	wav := EncodeWAV(pcm, 44100, 2)

	if len(wav) != 44+len(pcm) {
		t.Fatalf("len = %d, want %d", len(wav), 44+len(pcm))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Error("missing RIFF/WAVE markers")
	}
	if got := binary.LittleEndian.Uint32(wav[24:28]); got != 44100 {
		t.Errorf("sample rate = %d, want 44100", got)
	}
	if got := binary.LittleEndian.Uint32(wav[40:44]); got != 400 {
		t.Errorf("data size = %d, want 400", got)
	}
}
