// ABOUTME: Stateless mixing helpers
// ABOUTME: Pure functions over channel matrices: mix, gain, pan, limit
package audio

import "math"

// Mix sums gain-weighted sources into a single channel matrix sized to the
// largest channel and sample count across sources. Sources shorter than the
// result are zero-extended, not repeated. Missing gains default to unity.
func Mix(sources [][][]float32, gains []float64) [][]float32 {
	if len(sources) == 0 {
		return nil
	}

	channels := 0
	frames := 0
	for _, src := range sources {
		if len(src) > channels {
			channels = len(src)
		}
		for _, ch := range src {
			if len(ch) > frames {
				frames = len(ch)
			}
		}
	}

	mixed := NewChannels(channels, frames)
	for i, src := range sources {
		gain := 1.0
		if i < len(gains) {
			gain = gains[i]
		}
		for j, ch := range src {
			dst := mixed[j]
			for k, v := range ch {
				dst[k] += v * float32(gain)
			}
		}
	}
	return mixed
}

// ApplyGain scales every sample by gain, returning new channel slices.
func ApplyGain(chs [][]float32, gain float64) [][]float32 {
	out := make([][]float32, len(chs))
	for i, ch := range chs {
		out[i] = make([]float32, len(ch))
		for j, v := range ch {
			out[i][j] = v * float32(gain)
		}
	}
	return out
}

// ApplyPan applies equal-power stereo panning, pan in [-1, 1] with -1 full
// left and +1 full right. Defined for exactly two channels; anything else
// is returned unchanged.
func ApplyPan(chs [][]float32, pan float64) [][]float32 {
	if len(chs) != 2 {
		return chs
	}

	norm := (pan + 1.0) / 2.0
	gainL := math.Sqrt(1.0 - norm)
	gainR := math.Sqrt(norm)

	out := make([][]float32, 2)
	out[0] = make([]float32, len(chs[0]))
	for i, v := range chs[0] {
		out[0][i] = v * float32(gainL)
	}
	out[1] = make([]float32, len(chs[1]))
	for i, v := range chs[1] {
		out[1][i] = v * float32(gainR)
	}
	return out
}

// Limit hard-clips every sample to [-threshold, threshold].
func Limit(chs [][]float32, threshold float64) [][]float32 {
	t := float32(threshold)
	out := make([][]float32, len(chs))
	for i, ch := range chs {
		out[i] = make([]float32, len(ch))
		for j, v := range ch {
			switch {
			case v > t:
				out[i][j] = t
			case v < -t:
				out[i][j] = -t
			default:
				out[i][j] = v
			}
		}
	}
	return out
}
