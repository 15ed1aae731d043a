// ABOUTME: Tests for binary and base64 audio frame codecs
// ABOUTME: Round-trip exactness and malformed frame rejection
package protocol

import (
	"encoding/binary"
	"math"
	"testing"
)

func makeTestBlock(channels, samples int) [][]float32 {
	chs := make([][]float32, channels)
	for ch := range chs {
		chs[ch] = make([]float32, samples)
		for i := range chs[ch] {
			chs[ch][i] = float32(math.Sin(float64(ch*samples+i) * 0.1))
		}
	}
	return chs
}

func TestFrameRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		channels int
		samples  int
	}{
		{"stereo 128", 2, 128},
		{"mono 256", 1, 256},
		{"quad 64", 4, 64},
		{"single sample", 2, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := makeTestBlock(tt.channels, tt.samples)
			frame := EncodeFrame(src)

			wantLen := frameHeaderSize + tt.channels*tt.samples*4
			if len(frame) != wantLen {
				t.Fatalf("frame length = %d, want %d", len(frame), wantLen)
			}

			got, err := DecodeFrame(frame)
			if err != nil {
				t.Fatalf("DecodeFrame() error = %v", err)
			}
			if len(got) != tt.channels {
				t.Fatalf("decoded %d channels, want %d", len(got), tt.channels)
			}
			for ch := range got {
				if len(got[ch]) != tt.samples {
					t.Fatalf("channel %d has %d samples, want %d", ch, len(got[ch]), tt.samples)
				}
				for i := range got[ch] {
					if math.Float32bits(got[ch][i]) != math.Float32bits(src[ch][i]) {
						t.Errorf("sample [%d][%d] = %v, want %v (bit-exact)",
							ch, i, got[ch][i], src[ch][i])
					}
				}
			}
		})
	}
}

func TestFrameHeaderLayout(t *testing.T) {
	frame := EncodeFrame(makeTestBlock(2, 128))

	if got := binary.LittleEndian.Uint32(frame[0:4]); got != 128 {
		t.Errorf("sample count field = %d, want 128", got)
	}
	if got := binary.LittleEndian.Uint32(frame[4:8]); got != 2 {
		t.Errorf("channel count field = %d, want 2", got)
	}
}

func TestFrameInterleaving(t *testing.T) {
	// Two channels, two samples: L0 R0 L1 R1 after the header.
	src := [][]float32{{1, 2}, {3, 4}}
	frame := EncodeFrame(src)

	want := []float32{1, 3, 2, 4}
	for i, w := range want {
		off := frameHeaderSize + i*4
		got := math.Float32frombits(binary.LittleEndian.Uint32(frame[off:]))
		if got != w {
			t.Errorf("payload word %d = %v, want %v", i, got, w)
		}
	}
}

func TestDecodeFrameMalformed(t *testing.T) {
	valid := EncodeFrame(makeTestBlock(2, 16))

	tooManyChannels := make([]byte, frameHeaderSize+4)
	binary.LittleEndian.PutUint32(tooManyChannels[0:4], 1)
	binary.LittleEndian.PutUint32(tooManyChannels[4:8], MaxFrameChannels+1)

	tooManySamples := make([]byte, frameHeaderSize)
	binary.LittleEndian.PutUint32(tooManySamples[0:4], MaxFrameSamples+1)
	binary.LittleEndian.PutUint32(tooManySamples[4:8], 2)

	zeroShape := make([]byte, frameHeaderSize)

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short header", valid[:6]},
		{"truncated payload", valid[:len(valid)-4]},
		{"trailing bytes", append(append([]byte{}, valid...), 0, 0, 0, 0)},
		{"zero shape", zeroShape},
		{"channel count out of range", tooManyChannels},
		{"sample count out of range", tooManySamples},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeFrame(tt.data); err == nil {
				t.Error("DecodeFrame() accepted malformed frame")
			}
		})
	}
}

func TestBase64RoundTrip(t *testing.T) {
	src := makeTestBlock(2, 128)
	encoded := EncodeBase64(src)

	got, err := DecodeBase64(encoded, 128, 2)
	if err != nil {
		t.Fatalf("DecodeBase64() error = %v", err)
	}
	for ch := range got {
		for i := range got[ch] {
			if math.Float32bits(got[ch][i]) != math.Float32bits(src[ch][i]) {
				t.Fatalf("sample [%d][%d] = %v, want %v", ch, i, got[ch][i], src[ch][i])
			}
		}
	}
}

func TestDecodeBase64Invalid(t *testing.T) {
	encoded := EncodeBase64(makeTestBlock(2, 64))

	tests := []struct {
		name     string
		encoded  string
		samples  int
		channels int
	}{
		{"bad base64", "not base64!!!", 64, 2},
		{"shape mismatch", encoded, 128, 2},
		{"zero samples", encoded, 0, 2},
		{"zero channels", encoded, 64, 0},
		{"samples out of range", encoded, MaxFrameSamples + 1, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeBase64(tt.encoded, tt.samples, tt.channels); err == nil {
				t.Error("DecodeBase64() accepted invalid input")
			}
		})
	}
}
