// ABOUTME: Binary and base64 wire codecs for audio blocks
// ABOUTME: Bit-exact framing for audio crossing the websocket boundary
package protocol

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
)

// Sanity bounds on decoded frames. Anything beyond these is malformed
// input, not audio.
const (
	MaxFrameSamples  = 1 << 20
	MaxFrameChannels = 64
)

const frameHeaderSize = 8

// EncodeFrame packs channel data as a binary audio frame: a 4-byte
// little-endian sample count, a 4-byte little-endian channel count, then
// sample-interleaved little-endian float32 data (for each frame, one sample
// per channel). Matches the layout the web DAW produces.
func EncodeFrame(chs [][]float32) []byte {
	channels := len(chs)
	samples := 0
	if channels > 0 {
		samples = len(chs[0])
	}

	buf := make([]byte, frameHeaderSize+samples*channels*4)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(samples))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(channels))

	off := frameHeaderSize
	for i := 0; i < samples; i++ {
		for ch := 0; ch < channels; ch++ {
			var v float32
			if i < len(chs[ch]) {
				v = chs[ch][i]
			}
			binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(v))
			off += 4
		}
	}
	return buf
}

// DecodeFrame parses a binary audio frame back into channel slices.
// Malformed frames (short header, counts out of range, truncated payload)
// return an error; the caller logs and drops them without tearing the
// connection down.
func DecodeFrame(data []byte) ([][]float32, error) {
	if len(data) < frameHeaderSize {
		return nil, fmt.Errorf("frame too short: %d bytes", len(data))
	}

	samples := binary.LittleEndian.Uint32(data[0:4])
	channels := binary.LittleEndian.Uint32(data[4:8])

	if samples == 0 || samples > MaxFrameSamples {
		return nil, fmt.Errorf("sample count out of range: %d", samples)
	}
	if channels == 0 || channels > MaxFrameChannels {
		return nil, fmt.Errorf("channel count out of range: %d", channels)
	}

	want := frameHeaderSize + int(samples)*int(channels)*4
	if len(data) != want {
		return nil, fmt.Errorf("frame size mismatch: got %d bytes, want %d", len(data), want)
	}

	return decodeInterleaved(data[frameHeaderSize:], int(samples), int(channels)), nil
}

// EncodeBase64 encodes channel data as base64 raw interleaved float32
// samples, without the binary header, for transports that cannot carry
// binary frames. The caller sends channel and sample counts alongside.
func EncodeBase64(chs [][]float32) string {
	channels := len(chs)
	samples := 0
	if channels > 0 {
		samples = len(chs[0])
	}

	raw := make([]byte, samples*channels*4)
	off := 0
	for i := 0; i < samples; i++ {
		for ch := 0; ch < channels; ch++ {
			var v float32
			if i < len(chs[ch]) {
				v = chs[ch][i]
			}
			binary.LittleEndian.PutUint32(raw[off:], math.Float32bits(v))
			off += 4
		}
	}
	return base64.StdEncoding.EncodeToString(raw)
}

// DecodeBase64 decodes a base64 audio payload with explicit shape fields.
func DecodeBase64(encoded string, samples, channels int) ([][]float32, error) {
	if samples <= 0 || samples > MaxFrameSamples {
		return nil, fmt.Errorf("sample count out of range: %d", samples)
	}
	if channels <= 0 || channels > MaxFrameChannels {
		return nil, fmt.Errorf("channel count out of range: %d", channels)
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 audio: %w", err)
	}
	if len(raw) != samples*channels*4 {
		return nil, fmt.Errorf("audio payload size mismatch: got %d bytes, want %d",
			len(raw), samples*channels*4)
	}

	return decodeInterleaved(raw, samples, channels), nil
}

func decodeInterleaved(raw []byte, samples, channels int) [][]float32 {
	chs := make([][]float32, channels)
	for ch := range chs {
		chs[ch] = make([]float32, samples)
	}

	off := 0
	for i := 0; i < samples; i++ {
		for ch := 0; ch < channels; ch++ {
			chs[ch][i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[off:]))
			off += 4
		}
	}
	return chs
}
