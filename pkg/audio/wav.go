package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidWAV is returned by [DecodeWAV] when the input is not a 16-bit PCM
// RIFF/WAVE container.
var ErrInvalidWAV = errors.New("audio: invalid WAV data")

const bitsPerSample = 16

// Clip is a complete, in-memory recording of 16-bit signed little-endian PCM.
type Clip struct {
	PCM []byte
	Format
}

// Duration returns the playback length of the clip.
func (c Clip) Duration() time.Duration {
	if c.SampleRate <= 0 || c.Channels <= 0 {
		return 0
	}
	bytesPerSec := c.SampleRate * c.Channels * bitsPerSample / 8
	return time.Duration(len(c.PCM)) * time.Second / time.Duration(bytesPerSec)
}

// Empty reports whether the clip holds no samples.
func (c Clip) Empty() bool { return len(c.PCM) < 2 }

// EncodeWAV wraps the clip's PCM in a canonical 44-byte-header RIFF/WAVE
// container.
func EncodeWAV(c Clip) []byte {
	byteRate := c.SampleRate * c.Channels * bitsPerSample / 8
	blockAlign := c.Channels * bitsPerSample / 8
	dataSize := len(c.PCM)

	buf := make([]byte, 44+dataSize)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(c.Channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(c.SampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], bitsPerSample)

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], c.PCM)

	return buf
}

// DecodeWAV parses a RIFF/WAVE container holding 16-bit integer PCM. Chunks
// are walked rather than assuming a fixed header size, since browsers and
// TTS servers routinely emit LIST or fact chunks before the data.
func DecodeWAV(wav []byte) (Clip, error) {
	if len(wav) < 12 || string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return Clip{}, fmt.Errorf("%w: missing RIFF/WAVE header", ErrInvalidWAV)
	}

	var (
		clip     Clip
		foundFmt bool
	)
	offset := 12
	for offset+8 <= len(wav) {
		id := string(wav[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(wav[offset+4 : offset+8]))
		body := offset + 8

		switch id {
		case "fmt ":
			if size < 16 || body+16 > len(wav) {
				return Clip{}, fmt.Errorf("%w: truncated fmt chunk", ErrInvalidWAV)
			}
			f := wav[body:]
			if tag := binary.LittleEndian.Uint16(f[0:2]); tag != 1 && tag != 0xFFFE {
				return Clip{}, fmt.Errorf("%w: unsupported format tag %d", ErrInvalidWAV, tag)
			}
			if bps := binary.LittleEndian.Uint16(f[14:16]); bps != bitsPerSample {
				return Clip{}, fmt.Errorf("%w: %d bits per sample, want 16", ErrInvalidWAV, bps)
			}
			clip.Channels = int(binary.LittleEndian.Uint16(f[2:4]))
			clip.SampleRate = int(binary.LittleEndian.Uint32(f[4:8]))
			foundFmt = true
		case "data":
			if !foundFmt {
				return Clip{}, fmt.Errorf("%w: data chunk before fmt chunk", ErrInvalidWAV)
			}
			end := body + size
			// Streaming encoders write a placeholder size; take what is there.
			if end > len(wav) || size == 0 {
				end = len(wav)
			}
			end -= (end - body) % 2
			clip.PCM = wav[body:end]
			if clip.Channels <= 0 || clip.SampleRate <= 0 {
				return Clip{}, fmt.Errorf("%w: %d channels at %d Hz", ErrInvalidWAV, clip.Channels, clip.SampleRate)
			}
			return clip, nil
		}

		offset = body + size
		if size%2 != 0 {
			offset++
		}
	}
	return Clip{}, fmt.Errorf("%w: missing data chunk", ErrInvalidWAV)
}
