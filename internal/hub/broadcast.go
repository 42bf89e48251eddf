package hub

import (
	"encoding/json"
	"log"
	"time"

	"github.com/soar/conductor/internal/controller"
)

const fullSyncInterval = 5 * time.Second

// SnapshotFunc produces the full application state for snapshot messages.
type SnapshotFunc func() interface{}

// Broadcaster listens for controller events and broadcasts them to the hub.
type Broadcaster struct {
	hub      *Hub
	events   <-chan controller.Event
	snapshot SnapshotFunc
	seq      int64
}

func NewBroadcaster(h *Hub, events <-chan controller.Event, snapshot SnapshotFunc) *Broadcaster {
	return &Broadcaster{
		hub:      h,
		events:   events,
		snapshot: snapshot,
	}
}

// Run starts the broadcaster loop. Should be run in a goroutine.
func (b *Broadcaster) Run() {
	ticker := time.NewTicker(fullSyncInterval)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-b.events:
			if !ok {
				return
			}
			b.seq++
			b.send(NewEventMessage(b.seq, ev))

			// Mapping changes also refresh the full snapshot so every
			// client's table view stays consistent.
			if ev.Type == "mapping" || ev.Type == "capture" {
				b.seq++
				b.send(NewSnapshotMessage(b.seq, b.snapshot()))
			}

		case <-ticker.C:
			b.seq++
			b.send(NewSnapshotMessage(b.seq, b.snapshot()))
		}
	}
}

// SendInitialState sends the current full state to a newly connected client.
func (b *Broadcaster) SendInitialState(c *Client) {
	b.seq++
	msg := NewSnapshotMessage(b.seq, b.snapshot())
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Error marshaling initial state: %v", err)
		return
	}
	c.Send(data)
}

func (b *Broadcaster) send(msg *WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Error marshaling message: %v", err)
		return
	}
	b.hub.Broadcast(data)
}
