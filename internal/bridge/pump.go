// ABOUTME: Broadcast pump draining captured audio to connected sessions
// ABOUTME: Bridges the real-time input ring to the websocket side
package bridge

import (
	"context"
	"time"

	"github.com/novastudio/novabridge-go/internal/audio"
	"github.com/novastudio/novabridge-go/internal/protocol"
)

// pumpIdleSleep is how long the pump rests when the input ring is empty.
// Short enough that a 256-frame block at 44.1kHz (5.8ms) never queues up.
const pumpIdleSleep = 500 * time.Microsecond

// Pump moves blocks from the capture ring to a broadcast sink. It runs on
// its own goroutine, outside the device callback, so encoding and fan-out
// cost never lands on the audio thread.
type Pump struct {
	ring      *audio.Ring
	broadcast func(frame []byte)
	sent      uint64
}

// NewPump creates a pump draining ring into broadcast. The broadcast
// function must not block; slow receivers are the sink's problem.
func NewPump(ring *audio.Ring, broadcast func(frame []byte)) *Pump {
	return &Pump{ring: ring, broadcast: broadcast}
}

// Run drains the ring until ctx is cancelled. Each available block is
// encoded once and handed to the sink; when the ring is empty the pump
// sleeps briefly instead of spinning.
func (p *Pump) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		block, ok := p.ring.Read()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-time.After(pumpIdleSleep):
			}
			continue
		}

		p.broadcast(protocol.EncodeFrame(block.Channels))
		p.sent++
	}
}

// Sent reports how many blocks the pump has broadcast. Only meaningful
// after Run returns; the counter is not synchronized.
func (p *Pump) Sent() uint64 {
	return p.sent
}
