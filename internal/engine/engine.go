// ABOUTME: Multi-instance plugin processing engine
// ABOUTME: Dispatches blocks to a bounded worker pool with per-slot timing stats
package engine

import (
	"log"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/novastudio/novabridge-go/internal/audio"
)

// DefaultMaxInstances bounds how many slots one engine will host.
const DefaultMaxInstances = 128

// Task pairs a slot with the block it should process.
type Task struct {
	SlotID   string
	Channels [][]float32
}

// Stats aggregates engine-wide counters and every slot's snapshot.
type Stats struct {
	TotalBlocks   uint64               `json:"total_blocks"`
	Instances     int                  `json:"total_instances"`
	AvgLatencyMs  float64              `json:"avg_latency_ms"`
	PeakLatencyMs float64              `json:"peak_latency_ms"`
	Slots         map[string]SlotStats `json:"instances"`
}

// Engine owns one slot per active plugin. The slot map is guarded by a
// single coarse lock held only across insert/remove/lookup, never across a
// plugin call; each slot serializes its own processing.
type Engine struct {
	maxInstances int
	workers      chan struct{}

	mu    sync.RWMutex
	slots map[string]*slot

	running     atomic.Bool
	totalBlocks atomic.Uint64
}

// New creates an engine with the given instance limit (0 means the
// default). The worker pool is sized min(32, 2 x CPU count).
func New(maxInstances int) *Engine {
	if maxInstances <= 0 {
		maxInstances = DefaultMaxInstances
	}

	poolSize := 2 * runtime.NumCPU()
	if poolSize > 32 {
		poolSize = 32
	}
	if poolSize < 1 {
		poolSize = 1
	}

	e := &Engine{
		maxInstances: maxInstances,
		workers:      make(chan struct{}, poolSize),
		slots:        make(map[string]*slot),
	}
	e.running.Store(true)

	log.Printf("Processing engine ready (max instances: %d, workers: %d)", maxInstances, poolSize)
	return e
}

// PoolSize returns the worker pool bound.
func (e *Engine) PoolSize() int { return cap(e.workers) }

// AddSlot registers a host under slotID. Returns false when the engine is
// at capacity. An existing slot with the same id is replaced with a
// warning.
func (e *Engine) AddSlot(slotID string, host Host, cfg audio.Config) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if existing, ok := e.slots[slotID]; ok {
		log.Printf("Warning: slot %s already exists, replacing", slotID)
		existing.deactivate()
	} else if len(e.slots) >= e.maxInstances {
		log.Printf("Warning: max instances reached (%d), cannot add %s", e.maxInstances, slotID)
		return false
	}

	e.slots[slotID] = newSlot(slotID, host, cfg)
	return true
}

// RemoveSlot deactivates and evicts a slot. Unknown ids are a no-op.
func (e *Engine) RemoveSlot(slotID string) {
	e.mu.Lock()
	s, ok := e.slots[slotID]
	if ok {
		delete(e.slots, slotID)
	}
	e.mu.Unlock()

	if ok {
		s.deactivate()
	}
}

// HasSlot reports whether slotID is registered.
func (e *Engine) HasSlot(slotID string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.slots[slotID]
	return ok
}

// Process runs one block through a slot's host. An unknown slot id, a host
// error, or a host panic all degrade to returning the input unchanged;
// Process never fails.
func (e *Engine) Process(slotID string, chs [][]float32) [][]float32 {
	e.mu.RLock()
	s := e.slots[slotID]
	e.mu.RUnlock()

	if s == nil {
		return chs
	}

	out := s.process(chs)
	e.totalBlocks.Add(1)
	return out
}

// ProcessBatch fans independent tasks out across the worker pool and
// collects results keyed by slot id. Ordering between tasks is
// unspecified. A failing task degrades to its own input without affecting
// the rest of the batch. Chained plugins must use ProcessChain instead;
// batch parallelism is only valid across independent instances.
func (e *Engine) ProcessBatch(tasks []Task) map[string][][]float32 {
	results := make(map[string][][]float32, len(tasks))

	if !e.running.Load() {
		for _, task := range tasks {
			results[task.SlotID] = task.Channels
		}
		return results
	}

	type result struct {
		slotID string
		out    [][]float32
	}

	resCh := make(chan result, len(tasks))
	var wg sync.WaitGroup

	for _, task := range tasks {
		wg.Add(1)
		go func(tk Task) {
			defer wg.Done()
			e.workers <- struct{}{}
			defer func() { <-e.workers }()
			resCh <- result{tk.SlotID, e.Process(tk.SlotID, tk.Channels)}
		}(task)
	}

	wg.Wait()
	close(resCh)

	for r := range resCh {
		results[r.slotID] = r.out
	}
	return results
}

// ProcessChain folds the block through slots in order, each plugin
// receiving the previous plugin's output. Strictly serial: the ordering
// dependency of a signal chain must not be parallelized.
func (e *Engine) ProcessChain(slotIDs []string, chs [][]float32) [][]float32 {
	current := chs
	for _, id := range slotIDs {
		current = e.Process(id, current)
	}
	return current
}

// SlotStats returns a snapshot for one slot, or false for unknown ids.
func (e *Engine) SlotStats(slotID string) (SlotStats, bool) {
	e.mu.RLock()
	s := e.slots[slotID]
	e.mu.RUnlock()

	if s == nil {
		return SlotStats{}, false
	}
	return s.stats(), true
}

// Stats returns engine aggregates plus every slot's snapshot.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	snapshots := make([]*slot, 0, len(e.slots))
	for _, s := range e.slots {
		snapshots = append(snapshots, s)
	}
	e.mu.RUnlock()

	stats := Stats{
		TotalBlocks: e.totalBlocks.Load(),
		Instances:   len(snapshots),
		Slots:       make(map[string]SlotStats, len(snapshots)),
	}

	totalAvg := 0.0
	for _, s := range snapshots {
		ss := s.stats()
		stats.Slots[ss.SlotID] = ss
		totalAvg += ss.AvgLatencyMs
		if ss.LastLatencyMs > stats.PeakLatencyMs {
			stats.PeakLatencyMs = ss.LastLatencyMs
		}
	}
	if len(snapshots) > 0 {
		stats.AvgLatencyMs = totalAvg / float64(len(snapshots))
	}
	return stats
}

// Stop deactivates every slot and clears their rings. In-flight plugin
// calls are not waited for; their results are discarded by callers. The
// engine keeps accepting Process calls, which degrade to pass-through once
// the slots are gone.
func (e *Engine) Stop() {
	e.running.Store(false)

	e.mu.Lock()
	slots := e.slots
	e.slots = make(map[string]*slot)
	e.mu.Unlock()

	for _, s := range slots {
		s.deactivate()
	}

	log.Printf("Processing engine stopped (%d slots released)", len(slots))
}
