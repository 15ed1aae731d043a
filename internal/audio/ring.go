// ABOUTME: Bounded ring buffer of pre-allocated audio blocks
// ABOUTME: The only structure shared with the real-time device callback
package audio

import (
	"sync"
	"time"
)

// Ring is a fixed-capacity circular buffer of audio blocks. All slots are
// allocated at construction; no operation allocates afterwards. Write and
// Read never block: a full ring refuses the write, an empty ring returns
// nothing. The mutex is held only for the duration of a single copy and is
// never held while calling out of the ring, so the device callback cannot
// be blocked by a non-real-time thread for longer than one slot copy.
type Ring struct {
	mu       sync.Mutex
	slots    []Block
	channels int
	frames   int
	readPos  int
	writePos int
	count    int
	seq      uint64
}

// NewRing creates a ring of capacity blocks shaped channels x frames.
func NewRing(capacity, channels, frames int) *Ring {
	slots := make([]Block, capacity)
	for i := range slots {
		slots[i] = NewBlock(channels, frames)
	}
	return &Ring{
		slots:    slots,
		channels: channels,
		frames:   frames,
	}
}

// Capacity returns the fixed slot count.
func (r *Ring) Capacity() int { return len(r.slots) }

// Channels returns the fixed channel count of every slot.
func (r *Ring) Channels() int { return r.channels }

// Frames returns the fixed frame count of every slot.
func (r *Ring) Frames() int { return r.frames }

// Write copies chs into the next free slot. Returns false without mutating
// anything when the ring is full. Shape mismatches are reconciled: the
// overlap is copied, the remainder of the slot is zeroed, and the stored
// shape is always the ring's shape.
func (r *Ring) Write(chs [][]float32) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count == len(r.slots) {
		return false
	}

	slot := &r.slots[r.writePos]
	copyReconciled(slot.Channels, chs)
	r.seq++
	slot.Seq = r.seq
	slot.Timestamp = time.Now()

	r.writePos = (r.writePos + 1) % len(r.slots)
	r.count++
	return true
}

// Read copies the oldest block out of the ring. Returns false when empty.
// The returned block owns freshly allocated channel slices; use ReadInto
// from allocation-sensitive paths.
func (r *Ring) Read() (Block, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count == 0 {
		return Block{}, false
	}

	out := NewBlock(r.channels, r.frames)
	slot := &r.slots[r.readPos]
	copyReconciled(out.Channels, slot.Channels)
	out.Seq = slot.Seq
	out.Timestamp = slot.Timestamp

	r.readPos = (r.readPos + 1) % len(r.slots)
	r.count--
	return out, true
}

// ReadInto copies the oldest block into dst with shape reconciliation and
// advances the read position. Returns false and leaves dst untouched when
// the ring is empty. Performs no allocation.
func (r *Ring) ReadInto(dst [][]float32) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count == 0 {
		return false
	}

	copyReconciled(dst, r.slots[r.readPos].Channels)
	r.readPos = (r.readPos + 1) % len(r.slots)
	r.count--
	return true
}

// Available returns how many blocks are ready to read. Advisory only under
// concurrent access.
func (r *Ring) Available() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Clear drops all pending blocks without touching slot storage.
func (r *Ring) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.readPos = 0
	r.writePos = 0
	r.count = 0
}
