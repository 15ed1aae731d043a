// ABOUTME: Latency compensation across parallel plugin slots
// ABOUTME: Pads faster plugins so all outputs align with the slowest one
package engine

import "sync"

// Compensator tracks each slot's reported processing latency in samples and
// computes the delay padding that re-aligns outputs processed in parallel.
type Compensator struct {
	mu        sync.RWMutex
	latencies map[string]int
}

// NewCompensator creates an empty compensator.
func NewCompensator() *Compensator {
	return &Compensator{latencies: make(map[string]int)}
}

// SetLatency records or overwrites a slot's latency in samples.
func (c *Compensator) SetLatency(slotID string, samples int) {
	c.mu.Lock()
	c.latencies[slotID] = samples
	c.mu.Unlock()
}

// Remove forgets a slot. Called on slot teardown.
func (c *Compensator) Remove(slotID string) {
	c.mu.Lock()
	delete(c.latencies, slotID)
	c.mu.Unlock()
}

// MaxLatency returns the largest recorded latency, or 0 when empty.
func (c *Compensator) MaxLatency() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.maxLocked()
}

func (c *Compensator) maxLocked() int {
	max := 0
	for _, v := range c.latencies {
		if v > max {
			max = v
		}
	}
	return max
}

// Compensation returns how many samples of padding slotID needs to align
// with the slowest recorded slot.
func (c *Compensator) Compensation(slotID string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.maxLocked() - c.latencies[slotID]
}

// Compensate prepends the compensation padding as silence to every channel.
// The slot holding the current maximum gets its input back unchanged. Pure:
// never mutates the input or the latency table.
func (c *Compensator) Compensate(slotID string, chs [][]float32) [][]float32 {
	pad := c.Compensation(slotID)
	if pad <= 0 {
		return chs
	}

	out := make([][]float32, len(chs))
	for i, ch := range chs {
		padded := make([]float32, pad+len(ch))
		copy(padded[pad:], ch)
		out[i] = padded
	}
	return out
}
