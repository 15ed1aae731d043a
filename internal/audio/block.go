// ABOUTME: Audio block type definitions
// ABOUTME: Fixed-shape multichannel float32 blocks moved between execution contexts
package audio

import "time"

// Block is one fixed-size chunk of multichannel audio. Every channel slice
// holds exactly the same number of samples. Blocks moving through a ring all
// share the ring's shape.
type Block struct {
	Channels  [][]float32
	Seq       uint64
	Timestamp time.Time
}

// NewBlock allocates a zeroed block of the given shape.
func NewBlock(channels, frames int) Block {
	chs := make([][]float32, channels)
	for i := range chs {
		chs[i] = make([]float32, frames)
	}
	return Block{Channels: chs}
}

// NewChannels allocates a zeroed channel matrix without block metadata.
func NewChannels(channels, frames int) [][]float32 {
	return NewBlock(channels, frames).Channels
}

// Clone returns a deep copy of the channel data.
func Clone(chs [][]float32) [][]float32 {
	out := make([][]float32, len(chs))
	for i, ch := range chs {
		out[i] = make([]float32, len(ch))
		copy(out[i], ch)
	}
	return out
}

// Peak returns the instantaneous peak absolute sample value across all
// channels. Used for level metering; safe to call from the device callback.
func Peak(chs [][]float32) float32 {
	var peak float32
	for _, ch := range chs {
		for _, v := range ch {
			if v < 0 {
				v = -v
			}
			if v > peak {
				peak = v
			}
		}
	}
	return peak
}

// Silence zeroes every sample in place.
func Silence(chs [][]float32) {
	for _, ch := range chs {
		for i := range ch {
			ch[i] = 0
		}
	}
}

// copyReconciled copies src into dst, reconciling shape differences: the
// overlapping region is copied sample for sample and the rest of dst is
// zeroed. dst keeps its own shape. A malformed block degrades to partial
// audio instead of aborting the session.
func copyReconciled(dst, src [][]float32) {
	for i, d := range dst {
		if i < len(src) {
			n := copy(d, src[i])
			for j := n; j < len(d); j++ {
				d[j] = 0
			}
		} else {
			for j := range d {
				d[j] = 0
			}
		}
	}
}
