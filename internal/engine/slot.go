// ABOUTME: Per-plugin processing slot
// ABOUTME: Owns one host instance, its rings, counters, and the panic boundary
package engine

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/novastudio/novabridge-go/internal/audio"
)

// SlotStats is a snapshot of one slot's processing counters.
type SlotStats struct {
	SlotID          string  `json:"slot_id"`
	BlocksProcessed uint64  `json:"blocks_processed"`
	AvgLatencyMs    float64 `json:"avg_latency_ms"`
	LastLatencyMs   float64 `json:"last_latency_ms"`
	InputAvailable  int     `json:"input_buffer_available"`
	OutputAvailable int     `json:"output_buffer_available"`
}

// slot is one addressable plugin instance. A slot is logically
// single-threaded: its mutex serializes concurrent process calls arriving
// from pool workers. The lock is per-slot, so independent slots never
// contend.
type slot struct {
	id   string
	host Host
	cfg  audio.Config

	inRing  *audio.Ring
	outRing *audio.Ring

	mu              sync.Mutex
	active          bool
	blocksProcessed uint64
	totalLatencyMs  float64
	lastLatencyMs   float64
}

func newSlot(id string, host Host, cfg audio.Config) *slot {
	return &slot{
		id:      id,
		host:    host,
		cfg:     cfg,
		active:  true,
		inRing:  audio.NewRing(cfg.BufferDepth, cfg.Channels, cfg.BlockSize),
		outRing: audio.NewRing(cfg.BufferDepth, cfg.Channels, cfg.BlockSize),
	}
}

// process runs one block through the host, measuring wall-clock duration
// with the monotonic clock. Any error or panic from the host is contained
// here: it is logged and the input comes back unchanged. Counters advance
// only on success.
func (s *slot) process(chs [][]float32) [][]float32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active || s.host == nil {
		return chs
	}

	start := time.Now()
	out, err := safeProcess(s.host, chs, s.cfg.SampleRate)
	if err != nil {
		log.Printf("Plugin %s process error: %v", s.id, err)
		return chs
	}

	elapsedMs := float64(time.Since(start)) / float64(time.Millisecond)
	s.blocksProcessed++
	s.totalLatencyMs += elapsedMs
	s.lastLatencyMs = elapsedMs

	return out
}

// safeProcess converts a host panic into an error so a misbehaving plugin
// cannot take down the engine.
func safeProcess(h Host, chs [][]float32, sampleRate int) (out [][]float32, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("plugin panic: %v", r)
		}
	}()
	return h.Process(chs, sampleRate)
}

// deactivate marks the slot dead and clears its rings. In-flight process
// calls finish against the old state and their results are discarded by
// the caller.
func (s *slot) deactivate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
	s.inRing.Clear()
	s.outRing.Clear()
}

func (s *slot) stats() SlotStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	avg := 0.0
	if s.blocksProcessed > 0 {
		avg = s.totalLatencyMs / float64(s.blocksProcessed)
	}
	return SlotStats{
		SlotID:          s.id,
		BlocksProcessed: s.blocksProcessed,
		AvgLatencyMs:    avg,
		LastLatencyMs:   s.lastLatencyMs,
		InputAvailable:  s.inRing.Available(),
		OutputAvailable: s.outRing.Available(),
	}
}
