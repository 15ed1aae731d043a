// ABOUTME: Duplex audio device stream using malgo/miniaudio
// ABOUTME: Owns the hardware callback feeding and draining the block rings
package device

import (
	"fmt"
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/novastudio/novabridge-go/internal/audio"
)

// State is the stream lifecycle state.
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateError
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// DuplexStream owns a full-duplex audio device. The hardware callback copies
// captured input into the input ring and drains the output ring into the
// hardware buffer. Everything the callback touches is pre-allocated at Start;
// the callback itself never allocates and never takes a lock other than the
// per-operation ring mutex.
type DuplexStream struct {
	mu       sync.Mutex
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device

	cfg     audio.Config
	inRing  *audio.Ring
	outRing *audio.Ring

	// Scratch blocks reused by every callback tick.
	scratchIn  [][]float32
	scratchOut [][]float32

	state     atomic.Int32
	startedAt time.Time
	latencyMs float64

	// Diagnostic counters, mutated only by the callback. Readers get
	// eventually-consistent snapshots.
	underruns atomic.Uint64
	overruns  atomic.Uint64
	blocksIn  atomic.Uint64
	blocksOut atomic.Uint64
	inLevel   atomic.Uint32 // float32 bits
	outLevel  atomic.Uint32 // float32 bits
}

// Stats is a snapshot of stream state and counters.
type Stats struct {
	Running     bool
	State       string
	SampleRate  int
	BlockSize   int
	Channels    int
	InputLevel  float32
	OutputLevel float32
	LatencyMs   float64
	Underruns   uint64
	Overruns    uint64
	BlocksIn    uint64
	BlocksOut   uint64
	Elapsed     time.Duration
}

// New creates an idle duplex stream.
func New() *DuplexStream {
	return &DuplexStream{}
}

// State returns the current lifecycle state.
func (d *DuplexStream) State() State {
	return State(d.state.Load())
}

// Start opens the device in duplex mode at the configured rate and block
// size, requesting the lowest latency the backend offers, and installs the
// hardware callback. Fails if the stream is not stopped.
func (d *DuplexStream) Start(cfg audio.Config, inRing, outRing *audio.Ring) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid stream config: %w", err)
	}
	if inRing == nil || outRing == nil {
		return fmt.Errorf("both rings are required")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.state.CompareAndSwap(int32(StateStopped), int32(StateStarting)) {
		return fmt.Errorf("stream is %s, not stopped", d.State())
	}

	d.prepare(cfg, inRing, outRing)

	if err := d.openDevice(); err != nil {
		d.state.Store(int32(StateStopped))
		return err
	}

	d.startedAt = time.Now()
	d.state.Store(int32(StateRunning))

	log.Printf("Audio stream started: %dHz, block %d, %d channels, latency %.1fms",
		cfg.SampleRate, cfg.BlockSize, cfg.Channels, d.latencyMs)

	return nil
}

// prepare resets counters and allocates the callback scratch blocks.
// Split from Start so the callback path can be exercised without hardware.
func (d *DuplexStream) prepare(cfg audio.Config, inRing, outRing *audio.Ring) {
	d.cfg = cfg
	d.inRing = inRing
	d.outRing = outRing
	d.scratchIn = audio.NewChannels(cfg.Channels, cfg.BlockSize)
	d.scratchOut = audio.NewChannels(cfg.Channels, cfg.BlockSize)

	d.underruns.Store(0)
	d.overruns.Store(0)
	d.blocksIn.Store(0)
	d.blocksOut.Store(0)
	d.inLevel.Store(0)
	d.outLevel.Store(0)

	// The device does not report its own latency until running; one block
	// period each way is the floor the configuration allows.
	d.latencyMs = cfg.BlockPeriodMs() * 2
}

func (d *DuplexStream) openDevice() error {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize audio context: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Duplex)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = uint32(d.cfg.Channels)
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = uint32(d.cfg.Channels)
	deviceConfig.SampleRate = uint32(d.cfg.SampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(d.cfg.BlockSize)
	deviceConfig.Alsa.NoMMap = 1

	callbacks := malgo.DeviceCallbacks{
		Data: d.onDeviceData,
		Stop: d.onDeviceStop,
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("failed to initialize duplex device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		_ = ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("failed to start duplex device: %w", err)
	}

	d.malgoCtx = ctx
	d.device = device
	return nil
}

// onDeviceData runs on the real-time device thread once per hardware tick.
// Budget is one block period; no allocation, no unbounded lock.
func (d *DuplexStream) onDeviceData(pOutput, pInput []byte, frameCount uint32) {
	frames := int(frameCount)
	channels := d.cfg.Channels

	if pInput != nil {
		peak := deinterleave(d.scratchIn, pInput, frames, channels)
		d.inLevel.Store(math.Float32bits(peak))

		if d.inRing.Write(d.scratchIn) {
			d.blocksIn.Add(1)
		} else {
			// Ring full: the freshest input wins once the consumer
			// catches up; count and move on.
			d.overruns.Add(1)
		}
	}

	if pOutput != nil {
		if d.outRing.ReadInto(d.scratchOut) {
			peak := interleave(pOutput, d.scratchOut, frames, channels)
			d.outLevel.Store(math.Float32bits(peak))
			d.blocksOut.Add(1)
		} else {
			for i := range pOutput {
				pOutput[i] = 0
			}
			d.outLevel.Store(0)
			d.underruns.Add(1)
		}
	}
}

// onDeviceStop fires when the backend stops the device, both for requested
// stops and device loss. Stop leaves Running before touching the device, so
// the state is only Running here when the stop was not requested; that is a
// fatal device failure.
func (d *DuplexStream) onDeviceStop() {
	if d.state.CompareAndSwap(int32(StateRunning), int32(StateError)) {
		log.Printf("Audio device stopped unexpectedly, stream in error state")
	}
}

// Stop closes the device and returns the stream to Stopped. Idempotent.
func (d *DuplexStream) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	// Leave Running first: the backend delivers its stop notification
	// during device.Stop, and onDeviceStop must not read a requested
	// stop as a failure.
	wasRunning := d.state.CompareAndSwap(int32(StateRunning), int32(StateStopped))

	if d.device != nil {
		if err := d.device.Stop(); err != nil {
			log.Printf("Warning: device stop error: %v", err)
		}
		d.device.Uninit()
		d.device = nil
	}
	if d.malgoCtx != nil {
		if err := d.malgoCtx.Uninit(); err != nil {
			log.Printf("Warning: audio context uninit error: %v", err)
		}
		d.malgoCtx.Free()
		d.malgoCtx = nil
	}

	d.state.Store(int32(StateStopped))
	if wasRunning {
		log.Printf("Audio stream stopped")
	}
}

// Stats returns an eventually-consistent snapshot of the stream state.
func (d *DuplexStream) Stats() Stats {
	state := d.State()

	var elapsed time.Duration
	if state == StateRunning {
		elapsed = time.Since(d.startedAt)
	}

	return Stats{
		Running:     state == StateRunning,
		State:       state.String(),
		SampleRate:  d.cfg.SampleRate,
		BlockSize:   d.cfg.BlockSize,
		Channels:    d.cfg.Channels,
		InputLevel:  math.Float32frombits(d.inLevel.Load()),
		OutputLevel: math.Float32frombits(d.outLevel.Load()),
		LatencyMs:   d.latencyMs,
		Underruns:   d.underruns.Load(),
		Overruns:    d.overruns.Load(),
		BlocksIn:    d.blocksIn.Load(),
		BlocksOut:   d.blocksOut.Load(),
		Elapsed:     elapsed,
	}
}

// deinterleave unpacks little-endian float32 interleaved frames into dst
// channel slices, returning the peak absolute sample seen. Frames beyond
// dst's length are ignored; missing frames leave dst zeroed.
func deinterleave(dst [][]float32, src []byte, frames, channels int) float32 {
	var peak float32
	for ch := 0; ch < channels && ch < len(dst); ch++ {
		d := dst[ch]
		for i := 0; i < len(d); i++ {
			if i >= frames {
				d[i] = 0
				continue
			}
			off := (i*channels + ch) * 4
			if off+4 > len(src) {
				d[i] = 0
				continue
			}
			bits := uint32(src[off]) | uint32(src[off+1])<<8 |
				uint32(src[off+2])<<16 | uint32(src[off+3])<<24
			v := math.Float32frombits(bits)
			d[i] = v
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

// interleave packs channel slices into little-endian float32 interleaved
// frames, reconciling shape the same way the ring does: the overlap is
// copied, the rest of the hardware buffer is silence. Returns the peak
// absolute sample written.
func interleave(dst []byte, src [][]float32, frames, channels int) float32 {
	var peak float32
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			var v float32
			if ch < len(src) && i < len(src[ch]) {
				v = src[ch][i]
			}
			off := (i*channels + ch) * 4
			if off+4 > len(dst) {
				return peak
			}
			bits := math.Float32bits(v)
			dst[off] = byte(bits)
			dst[off+1] = byte(bits >> 8)
			dst[off+2] = byte(bits >> 16)
			dst[off+3] = byte(bits >> 24)
			a := v
			if a < 0 {
				a = -a
			}
			if a > peak {
				peak = a
			}
		}
	}
	return peak
}
