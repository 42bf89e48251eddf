// Package dispatch batches function updates and flushes them to the
// transport on its own cadence, decoupled from input polling. The queue
// keeps only the latest value per function id, so a burst of changes
// between send ticks collapses into one packet.
package dispatch

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/soar/conductor/internal/transport"
)

// DefaultSendInterval matches the original sender cadence.
const DefaultSendInterval = 20 * time.Millisecond

type heartbeat struct {
	every time.Duration
	value uint8
	last  time.Time
}

// Dispatcher owns the pending-command queue and the send ticker.
type Dispatcher struct {
	sender   transport.Sender
	interval time.Duration

	mu         sync.Mutex
	pending    map[uint16]uint8
	heartbeats map[uint16]*heartbeat
}

func New(sender transport.Sender, interval time.Duration) *Dispatcher {
	if interval <= 0 {
		interval = DefaultSendInterval
	}
	return &Dispatcher{
		sender:     sender,
		interval:   interval,
		pending:    make(map[uint16]uint8),
		heartbeats: make(map[uint16]*heartbeat),
	}
}

// Queue records the latest value for a function id. Last value wins.
func (d *Dispatcher) Queue(functionID uint16, value uint8) {
	d.mu.Lock()
	d.pending[functionID] = value
	d.mu.Unlock()
}

// SetHeartbeat re-queues the function's last sent value whenever `every`
// has elapsed without a send. Used for loss-sensitive controls like the
// reverser, where edge-triggered-only delivery is not good enough. Queue
// traffic for the function refreshes the value the heartbeat carries, so
// the dispatcher never has to read state owned by another goroutine.
func (d *Dispatcher) SetHeartbeat(functionID uint16, every time.Duration, value uint8) {
	d.mu.Lock()
	d.heartbeats[functionID] = &heartbeat{every: every, value: value, last: time.Now()}
	d.mu.Unlock()
}

func (d *Dispatcher) ClearHeartbeat(functionID uint16) {
	d.mu.Lock()
	delete(d.heartbeats, functionID)
	d.mu.Unlock()
}

// Pending returns the number of queued updates.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Flush drains the queue and hands every update to the transport. Entries
// are consumed regardless of send outcome; a failed send is logged, not
// retried. Returns the updates that were drained.
func (d *Dispatcher) Flush() map[uint16]uint8 {
	now := time.Now()

	d.mu.Lock()
	for id, hb := range d.heartbeats {
		if v, queued := d.pending[id]; queued {
			hb.value = v
			hb.last = now
			continue
		}
		if now.Sub(hb.last) >= hb.every {
			d.pending[id] = hb.value
			hb.last = now
		}
	}
	batch := d.pending
	d.pending = make(map[uint16]uint8)
	d.mu.Unlock()

	for id, value := range batch {
		if err := d.sender.Send(id, value, true); err != nil {
			log.Printf("dispatch: %v", err)
		}
	}
	return batch
}

// Run flushes on the send cadence until ctx is done, then performs a final
// flush so values queued during shutdown are not lost.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.Flush()
			return
		case <-ticker.C:
			d.Flush()
		}
	}
}
