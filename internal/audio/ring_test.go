// ABOUTME: Tests for the bounded block ring
// ABOUTME: Covers capacity bounds, empty reads, and shape reconciliation
package audio

import (
	"sync"
	"testing"
)

func fillChannels(channels, frames int, value float32) [][]float32 {
	chs := NewChannels(channels, frames)
	for _, ch := range chs {
		for i := range ch {
			ch[i] = value
		}
	}
	return chs
}

func TestRingWriteReadRoundTrip(t *testing.T) {
	r := NewRing(4, 2, 8)

	in := fillChannels(2, 8, 0.5)
	if !r.Write(in) {
		t.Fatal("write to empty ring failed")
	}

	block, ok := r.Read()
	if !ok {
		t.Fatal("read after write returned nothing")
	}
	if block.Seq != 1 {
		t.Errorf("expected seq 1, got %d", block.Seq)
	}
	for c, ch := range block.Channels {
		for i, v := range ch {
			if v != 0.5 {
				t.Fatalf("channel %d sample %d: expected 0.5, got %f", c, i, v)
			}
		}
	}
}

func TestRingFullRefusesWrite(t *testing.T) {
	r := NewRing(2, 1, 4)
	in := fillChannels(1, 4, 1.0)

	if !r.Write(in) || !r.Write(in) {
		t.Fatal("writes within capacity failed")
	}
	if r.Write(in) {
		t.Error("write to full ring should return false")
	}
	if got := r.Available(); got != 2 {
		t.Errorf("expected 2 available, got %d", got)
	}
}

func TestRingEmptyRead(t *testing.T) {
	r := NewRing(3, 2, 4)

	if _, ok := r.Read(); ok {
		t.Error("read from empty ring should return nothing")
	}
	dst := NewChannels(2, 4)
	if r.ReadInto(dst) {
		t.Error("ReadInto from empty ring should return false")
	}
}

func TestRingAvailableNeverExceedsCapacity(t *testing.T) {
	const capacity = 4
	r := NewRing(capacity, 1, 2)
	in := fillChannels(1, 2, 1.0)

	// Arbitrary interleaving of writes and reads.
	ops := []byte("wwwwwrwwrrwwwwwwrrrrrw")
	for _, op := range ops {
		if op == 'w' {
			r.Write(in)
		} else {
			r.Read()
		}
		if got := r.Available(); got < 0 || got > capacity {
			t.Fatalf("available %d outside [0, %d]", got, capacity)
		}
	}
}

func TestRingShapeReconciliation(t *testing.T) {
	tests := []struct {
		name        string
		srcChannels int
		srcFrames   int
	}{
		{"narrower and shorter", 1, 4},
		{"wider and longer", 4, 16},
		{"same channels fewer frames", 2, 3},
		{"more channels same frames", 3, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRing(2, 2, 8)
			src := fillChannels(tt.srcChannels, tt.srcFrames, 0.25)

			if !r.Write(src) {
				t.Fatal("write failed")
			}

			block, ok := r.Read()
			if !ok {
				t.Fatal("read failed")
			}

			// Stored shape is always the ring's shape.
			if len(block.Channels) != 2 {
				t.Fatalf("expected 2 channels, got %d", len(block.Channels))
			}
			for c, ch := range block.Channels {
				if len(ch) != 8 {
					t.Fatalf("channel %d: expected 8 frames, got %d", c, len(ch))
				}
				for i, v := range ch {
					inOverlap := c < tt.srcChannels && i < tt.srcFrames
					if inOverlap && v != 0.25 {
						t.Errorf("overlap sample (%d,%d) = %f, want 0.25", c, i, v)
					}
					if !inOverlap && v != 0 {
						t.Errorf("non-overlap sample (%d,%d) = %f, want 0", c, i, v)
					}
				}
			}
		})
	}
}

func TestRingOrdering(t *testing.T) {
	r := NewRing(4, 1, 1)

	for i := 1; i <= 3; i++ {
		if !r.Write([][]float32{{float32(i)}}) {
			t.Fatalf("write %d failed", i)
		}
	}

	for i := 1; i <= 3; i++ {
		block, ok := r.Read()
		if !ok {
			t.Fatalf("read %d failed", i)
		}
		if got := block.Channels[0][0]; got != float32(i) {
			t.Errorf("read %d: expected %d, got %f", i, i, got)
		}
	}
}

func TestRingClear(t *testing.T) {
	r := NewRing(4, 1, 2)
	in := fillChannels(1, 2, 1.0)

	r.Write(in)
	r.Write(in)
	r.Clear()

	if got := r.Available(); got != 0 {
		t.Errorf("expected 0 available after clear, got %d", got)
	}
	if _, ok := r.Read(); ok {
		t.Error("read after clear should return nothing")
	}
}

func TestRingConcurrentAccess(t *testing.T) {
	r := NewRing(8, 2, 16)
	in := fillChannels(2, 16, 0.1)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			r.Write(in)
		}
	}()
	go func() {
		defer wg.Done()
		dst := NewChannels(2, 16)
		for i := 0; i < 1000; i++ {
			r.ReadInto(dst)
		}
	}()

	wg.Wait()

	if got := r.Available(); got < 0 || got > r.Capacity() {
		t.Errorf("available %d outside ring bounds after concurrent use", got)
	}
}

func TestRingEmptyReadDoesNotAllocate(t *testing.T) {
	r := NewRing(4, 2, 64)

	allocs := testing.AllocsPerRun(100, func() {
		if _, ok := r.Read(); ok {
			t.Fatal("read succeeded on empty ring")
		}
	})
	if allocs != 0 {
		t.Errorf("empty Read allocated %.1f times per call, want 0", allocs)
	}
}
