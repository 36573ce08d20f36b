package audio_test

import (
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/tiktalk/pkg/audio"
)

// samplesToBytes converts a slice of int16 samples to little-endian bytes.
func samplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

func bytesToSamples(b []byte) []int16 {
	samples := make([]int16, len(b)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return samples
}

func constant(n int, v int16) []int16 {
	s := make([]int16, n)
	for i := range s {
		s[i] = v
	}
	return s
}

func TestWAVRoundTrip(t *testing.T) {
	t.Parallel()

	in := audio.Clip{
		PCM:    samplesToBytes([]int16{1, -2, 300, -32768, 32767}),
		Format: audio.Format{SampleRate: 22050, Channels: 1},
	}
	wav := audio.EncodeWAV(in)
	if len(wav) != 44+len(in.PCM) {
		t.Fatalf("EncodeWAV length = %d, want %d", len(wav), 44+len(in.PCM))
	}
	out, err := audio.DecodeWAV(wav)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if out.Format != in.Format {
		t.Errorf("format = %v, want %v", out.Format, in.Format)
	}
	if string(out.PCM) != string(in.PCM) {
		t.Errorf("pcm mismatch: got %v, want %v", bytesToSamples(out.PCM), bytesToSamples(in.PCM))
	}
}

func TestDecodeWAV_SkipsExtraChunks(t *testing.T) {
	t.Parallel()

	base := audio.EncodeWAV(audio.Clip{PCM: samplesToBytes([]int16{7, 8}), Format: audio.SpeechFormat})
	// Insert a LIST chunk with an odd payload between fmt and data.
	list := []byte("LIST\x03\x00\x00\x00abc\x00")
	wav := append([]byte{}, base[:36]...)
	wav = append(wav, list...)
	wav = append(wav, base[36:]...)

	clip, err := audio.DecodeWAV(wav)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if got := bytesToSamples(clip.PCM); len(got) != 2 || got[0] != 7 || got[1] != 8 {
		t.Errorf("samples = %v, want [7 8]", got)
	}
}

func TestDecodeWAV_Invalid(t *testing.T) {
	t.Parallel()

	eightBit := audio.EncodeWAV(audio.Clip{PCM: []byte{1, 2}, Format: audio.SpeechFormat})
	binary.LittleEndian.PutUint16(eightBit[34:36], 8)

	tests := map[string][]byte{
		"empty":    nil,
		"not riff": []byte("this is not a wav file at all"),
		"8-bit":    eightBit,
		"no data":  audio.EncodeWAV(audio.Clip{Format: audio.SpeechFormat})[:36],
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if _, err := audio.DecodeWAV(in); !errors.Is(err, audio.ErrInvalidWAV) {
				t.Errorf("DecodeWAV: want ErrInvalidWAV, got %v", err)
			}
		})
	}
}

func TestClipDuration(t *testing.T) {
	t.Parallel()

	c := audio.Clip{PCM: make([]byte, 32000), Format: audio.SpeechFormat}
	if got := c.Duration(); got != time.Second {
		t.Errorf("Duration = %v, want 1s", got)
	}
}

func TestDownmixToMono(t *testing.T) {
	t.Parallel()

	stereo := samplesToBytes([]int16{100, 200, -100, -200, 32767, 32767})
	got := bytesToSamples(audio.DownmixToMono(stereo, 2))
	want := []int16{150, -150, 32767}
	if len(got) != len(want) {
		t.Fatalf("length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestResampleMono16(t *testing.T) {
	t.Parallel()

	in := samplesToBytes([]int16{0, 100, 200, 300})
	if got := audio.ResampleMono16(in, 16000, 16000); &got[0] != &in[0] {
		t.Error("same-rate resample should return the input unchanged")
	}
	up := bytesToSamples(audio.ResampleMono16(in, 8000, 16000))
	if len(up) != 8 {
		t.Fatalf("upsampled length = %d, want 8", len(up))
	}
	if up[1] != 50 {
		t.Errorf("interpolated sample = %d, want 50", up[1])
	}
	down := audio.ResampleMono16(in, 16000, 8000)
	if len(down) != 4 {
		t.Errorf("downsampled byte length = %d, want 4", len(down))
	}
	if got := audio.ResampleMono16(in, 0, 16000); len(got) != len(in) {
		t.Error("zero source rate should return input unchanged")
	}
}

func TestConvert_StereoToSpeechFormat(t *testing.T) {
	t.Parallel()

	c := audio.Clip{
		PCM:    samplesToBytes(constant(3200*2, 1000)),
		Format: audio.Format{SampleRate: 32000, Channels: 2},
	}
	got := audio.Convert(c, audio.SpeechFormat)
	if got.Format != audio.SpeechFormat {
		t.Errorf("format = %v, want %v", got.Format, audio.SpeechFormat)
	}
	if n := len(got.PCM) / 2; n != 1600 {
		t.Errorf("samples = %d, want 1600", n)
	}
}

func TestFloat32(t *testing.T) {
	t.Parallel()

	got := audio.Float32(samplesToBytes([]int16{-32768, 0, 16384}))
	want := []float32{-1, 0, 0.5}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestRMS(t *testing.T) {
	t.Parallel()

	if got := audio.RMS(nil); got != 0 {
		t.Errorf("RMS(nil) = %v, want 0", got)
	}
	if got := audio.RMS(samplesToBytes([]int16{1000, -1000})); got != 1000 {
		t.Errorf("RMS = %v, want 1000", got)
	}
}

func TestTrimSilence(t *testing.T) {
	t.Parallel()

	// 16 kHz mono: 480 samples per 30ms frame.
	var samples []int16
	samples = append(samples, constant(4800, 0)...)    // 300ms silence
	samples = append(samples, constant(4800, 4000)...) // 300ms speech
	samples = append(samples, constant(4800, 0)...)    // 300ms silence
	c := audio.Clip{PCM: samplesToBytes(samples), Format: audio.SpeechFormat}

	trimmed, voiced := audio.TrimSilence(c, audio.VADConfig{Padding: 100 * time.Millisecond})
	if !voiced {
		t.Fatal("expected speech to be detected")
	}
	// 300ms speech + 2 × 100ms padding.
	if got := trimmed.Duration(); got != 500*time.Millisecond {
		t.Errorf("trimmed duration = %v, want 500ms", got)
	}
}

func TestTrimSilence_AllSilence(t *testing.T) {
	t.Parallel()

	c := audio.Clip{PCM: samplesToBytes(constant(16000, 10)), Format: audio.SpeechFormat}
	trimmed, voiced := audio.TrimSilence(c, audio.VADConfig{})
	if voiced {
		t.Error("silence reported as speech")
	}
	if !trimmed.Empty() {
		t.Errorf("trimmed clip has %d bytes, want 0", len(trimmed.PCM))
	}
}
