package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"
)

type sent struct {
	id       uint16
	value    uint8
	priority bool
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sent
}

func (f *fakeSender) Send(functionID uint16, value uint8, highPriority bool) error {
	f.mu.Lock()
	f.sent = append(f.sent, sent{functionID, value, highPriority})
	f.mu.Unlock()
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func TestQueueLastValueWins(t *testing.T) {
	s := &fakeSender{}
	d := New(s, time.Second)

	d.Queue(16, 3)
	d.Queue(16, 5)
	d.Queue(16, 8)
	d.Queue(8, 1)

	if d.Pending() != 2 {
		t.Fatalf("pending = %d, want 2", d.Pending())
	}

	batch := d.Flush()
	if len(batch) != 2 || batch[16] != 8 || batch[8] != 1 {
		t.Fatalf("flushed %v", batch)
	}
	if s.count() != 2 {
		t.Fatalf("sent %d packets, want 2", s.count())
	}
	for _, p := range s.sent {
		if !p.priority {
			t.Errorf("packet %v sent without priority", p)
		}
	}
}

func TestFlushEmptiesQueue(t *testing.T) {
	s := &fakeSender{}
	d := New(s, time.Second)

	d.Queue(1, 1)
	d.Flush()
	if batch := d.Flush(); len(batch) != 0 {
		t.Fatalf("second flush drained %v", batch)
	}
	if s.count() != 1 {
		t.Fatalf("sent %d packets, want 1", s.count())
	}
}

func TestHeartbeatReQueues(t *testing.T) {
	s := &fakeSender{}
	d := New(s, time.Second)

	d.SetHeartbeat(14, 20*time.Millisecond, 127)

	// The heartbeat has not elapsed yet.
	if batch := d.Flush(); len(batch) != 0 {
		t.Fatalf("early flush drained %v", batch)
	}

	time.Sleep(30 * time.Millisecond)
	batch := d.Flush()
	if batch[14] != 127 {
		t.Fatalf("heartbeat did not fire: %v", batch)
	}

	// A queued value suppresses the heartbeat and resets its clock.
	d.Queue(14, 255)
	time.Sleep(30 * time.Millisecond)
	batch = d.Flush()
	if batch[14] != 255 {
		t.Fatalf("queued value lost: %v", batch)
	}

	d.ClearHeartbeat(14)
	time.Sleep(30 * time.Millisecond)
	if batch := d.Flush(); len(batch) != 0 {
		t.Fatalf("cleared heartbeat still fired: %v", batch)
	}
}

func TestHeartbeatTracksQueuedValue(t *testing.T) {
	s := &fakeSender{}
	d := New(s, time.Second)

	d.SetHeartbeat(14, 20*time.Millisecond, 127)

	// The drained value replaces the seed, so later heartbeats re-send
	// what was actually delivered last.
	d.Queue(14, 255)
	if batch := d.Flush(); batch[14] != 255 {
		t.Fatalf("queued value lost: %v", batch)
	}

	time.Sleep(30 * time.Millisecond)
	if batch := d.Flush(); batch[14] != 255 {
		t.Fatalf("heartbeat re-sent %v, want the last delivered 255", batch)
	}
}

func TestRunFinalFlush(t *testing.T) {
	s := &fakeSender{}
	d := New(s, time.Hour) // ticker never fires during the test

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	d.Queue(2, 1)
	cancel()
	<-done

	if s.count() != 1 {
		t.Fatalf("final flush sent %d packets, want 1", s.count())
	}
}
