package audio

import (
	"encoding/binary"
	"math"
	"time"
)

// VADConfig tunes the energy-based voice activity filter.
type VADConfig struct {
	// FrameDuration is the analysis window. Defaults to 30ms.
	FrameDuration time.Duration

	// Threshold is the RMS energy (0–32767) above which a frame counts as
	// speech. Defaults to 500.
	Threshold float64

	// Padding is kept on each side of the detected speech so word onsets
	// and trailing consonants survive. Defaults to 200ms.
	Padding time.Duration
}

func (c VADConfig) withDefaults() VADConfig {
	if c.FrameDuration <= 0 {
		c.FrameDuration = 30 * time.Millisecond
	}
	if c.Threshold <= 0 {
		c.Threshold = 500
	}
	if c.Padding < 0 {
		c.Padding = 0
	} else if c.Padding == 0 {
		c.Padding = 200 * time.Millisecond
	}
	return c
}

// TrimSilence drops leading and trailing non-speech from c. The returned
// clip shares memory with c. When no frame crosses the threshold the result
// is empty and voiced is false.
func TrimSilence(c Clip, cfg VADConfig) (trimmed Clip, voiced bool) {
	cfg = cfg.withDefaults()
	if c.SampleRate <= 0 || c.Channels <= 0 || c.Empty() {
		return Clip{Format: c.Format}, false
	}

	frameBytes := 2 * c.Channels
	frameLen := int(int64(c.SampleRate)*int64(cfg.FrameDuration)/int64(time.Second)) * frameBytes
	if frameLen <= 0 {
		frameLen = frameBytes
	}

	first, last := -1, -1
	for off := 0; off < len(c.PCM); off += frameLen {
		end := min(off+frameLen, len(c.PCM))
		if RMS(c.PCM[off:end]) >= cfg.Threshold {
			if first < 0 {
				first = off
			}
			last = end
		}
	}
	if first < 0 {
		return Clip{Format: c.Format}, false
	}

	pad := int(int64(c.SampleRate)*int64(cfg.Padding)/int64(time.Second)) * frameBytes
	start := max(first-pad, 0)
	stop := min(last+pad, len(c.PCM))
	start -= start % frameBytes
	stop -= (stop - start) % frameBytes
	return Clip{PCM: c.PCM[start:stop], Format: c.Format}, true
}

// RMS returns the root-mean-square energy of 16-bit PCM in sample units
// (0–32767). Buffers shorter than one sample yield 0.
func RMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := range n {
		v := float64(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}
