// ABOUTME: Audio stream and engine configuration
// ABOUTME: Fixed for the lifetime of a running stream; change requires stop/restart
package audio

import "fmt"

// Default values match the web DAW's expectations for a low-latency session.
const (
	DefaultSampleRate   = 44100
	DefaultBlockSize    = 256
	DefaultChannels     = 2
	DefaultBufferDepth  = 8
	DefaultMaxLatencyMs = 50.0
)

// Config describes the shape and timing of an audio stream.
// Immutable once a stream or engine has started.
type Config struct {
	SampleRate   int     // Hz
	BlockSize    int     // samples per block
	Channels     int     // channel count
	BufferDepth  int     // ring capacity in blocks
	MaxLatencyMs float64 // latency budget hint
}

// DefaultConfig returns a config with all defaults filled in.
func DefaultConfig() Config {
	return Config{
		SampleRate:   DefaultSampleRate,
		BlockSize:    DefaultBlockSize,
		Channels:     DefaultChannels,
		BufferDepth:  DefaultBufferDepth,
		MaxLatencyMs: DefaultMaxLatencyMs,
	}
}

// Validate checks that every field is positive.
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate: %d", c.SampleRate)
	}
	if c.BlockSize <= 0 {
		return fmt.Errorf("invalid block size: %d", c.BlockSize)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("invalid channel count: %d", c.Channels)
	}
	if c.BufferDepth <= 0 {
		return fmt.Errorf("invalid buffer depth: %d", c.BufferDepth)
	}
	if c.MaxLatencyMs <= 0 {
		return fmt.Errorf("invalid max latency: %f", c.MaxLatencyMs)
	}
	return nil
}

// BlockPeriodMs returns the duration of one block in milliseconds.
// The device callback must finish within this budget.
func (c Config) BlockPeriodMs() float64 {
	return float64(c.BlockSize) / float64(c.SampleRate) * 1000.0
}
