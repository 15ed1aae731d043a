// ABOUTME: Tests for latency compensation
// ABOUTME: Padding aligns fast slots with the slowest recorded slot
package engine

import "testing"

func TestCompensatorEmpty(t *testing.T) {
	c := NewCompensator()

	if got := c.MaxLatency(); got != 0 {
		t.Errorf("max latency = %d, want 0 for empty table", got)
	}

	chs := [][]float32{{1, 2, 3}}
	out := c.Compensate("unknown", chs)
	if len(out[0]) != 3 {
		t.Error("compensation on empty table should be identity")
	}
}

func TestCompensatorAlignment(t *testing.T) {
	// Scenario: two slots with latencies 10 and 30; the fast one gets 20
	// zero samples of padding, the slow one comes back unchanged.
	c := NewCompensator()
	c.SetLatency("slot_10", 10)
	c.SetLatency("slot_30", 30)

	if got := c.MaxLatency(); got != 30 {
		t.Fatalf("max latency = %d, want 30", got)
	}

	block := [][]float32{{1, 1}, {1, 1}}

	fast := c.Compensate("slot_10", block)
	for ch := range fast {
		if len(fast[ch]) != 22 {
			t.Fatalf("channel %d length = %d, want 22", ch, len(fast[ch]))
		}
		for i := 0; i < 20; i++ {
			if fast[ch][i] != 0 {
				t.Fatalf("padding sample (%d,%d) = %f, want 0", ch, i, fast[ch][i])
			}
		}
		for i := 20; i < 22; i++ {
			if fast[ch][i] != 1 {
				t.Fatalf("payload sample (%d,%d) = %f, want 1", ch, i, fast[ch][i])
			}
		}
	}

	slow := c.Compensate("slot_30", block)
	for ch := range slow {
		if len(slow[ch]) != 2 {
			t.Fatalf("slowest slot channel %d length = %d, want 2", ch, len(slow[ch]))
		}
	}

	// Input must not have been mutated.
	if len(block[0]) != 2 || block[0][0] != 1 {
		t.Error("Compensate mutated its input")
	}
}

func TestCompensatorOverwriteAndRemove(t *testing.T) {
	c := NewCompensator()
	c.SetLatency("a", 100)
	c.SetLatency("a", 5)
	c.SetLatency("b", 10)

	if got := c.MaxLatency(); got != 10 {
		t.Errorf("max latency = %d, want 10 after overwrite", got)
	}
	if got := c.Compensation("a"); got != 5 {
		t.Errorf("compensation for a = %d, want 5", got)
	}

	c.Remove("b")
	if got := c.MaxLatency(); got != 5 {
		t.Errorf("max latency = %d, want 5 after remove", got)
	}
}
