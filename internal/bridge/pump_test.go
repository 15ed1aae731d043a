// ABOUTME: Tests for the broadcast pump
// ABOUTME: Ring draining, frame encoding, and cancellation
package bridge

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/novastudio/novabridge-go/internal/audio"
	"github.com/novastudio/novabridge-go/internal/protocol"
)

// frameCollector is a broadcast sink that records every frame.
type frameCollector struct {
	mu     sync.Mutex
	frames [][]byte
}

func (c *frameCollector) collect(frame []byte) {
	c.mu.Lock()
	c.frames = append(c.frames, frame)
	c.mu.Unlock()
}

func (c *frameCollector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func TestPumpDrainsRing(t *testing.T) {
	ring := audio.NewRing(8, 2, 64)
	for i := 0; i < 5; i++ {
		chs := audio.NewChannels(2, 64)
		chs[0][0] = float32(i + 1)
		if !ring.Write(chs) {
			t.Fatalf("write %d failed", i)
		}
	}

	sink := &frameCollector{}
	pump := NewPump(ring, sink.collect)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		pump.Run(ctx)
	}()

	deadline := time.After(2 * time.Second)
	for sink.count() < 5 {
		select {
		case <-deadline:
			t.Fatalf("pump delivered %d frames, want 5", sink.count())
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	<-done

	if ring.Available() != 0 {
		t.Errorf("ring still has %d blocks", ring.Available())
	}
	if pump.Sent() != 5 {
		t.Errorf("Sent() = %d, want 5", pump.Sent())
	}

	// Frames come out decodable and in write order
	chs, err := protocol.DecodeFrame(sink.frames[0])
	if err != nil {
		t.Fatalf("first frame invalid: %v", err)
	}
	if chs[0][0] != 1 {
		t.Errorf("first frame sample = %v, want 1", chs[0][0])
	}
	chs, _ = protocol.DecodeFrame(sink.frames[4])
	if chs[0][0] != 5 {
		t.Errorf("last frame sample = %v, want 5", chs[0][0])
	}
}

func TestPumpStopsOnCancel(t *testing.T) {
	ring := audio.NewRing(4, 1, 16)
	pump := NewPump(ring, func(frame []byte) {})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		pump.Run(ctx)
	}()

	// Let it reach the idle sleep on an empty ring, then cancel
	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pump did not stop after cancel")
	}
}

func TestPumpPicksUpLateWrites(t *testing.T) {
	ring := audio.NewRing(4, 1, 16)
	sink := &frameCollector{}
	pump := NewPump(ring, sink.collect)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		pump.Run(ctx)
	}()

	// Write after the pump has already gone idle
	time.Sleep(2 * time.Millisecond)
	ring.Write(audio.NewChannels(1, 16))

	deadline := time.After(2 * time.Second)
	for sink.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("pump never saw the late write")
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	<-done
}
