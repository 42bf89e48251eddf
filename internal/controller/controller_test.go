package controller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/soar/conductor/internal/capture"
	"github.com/soar/conductor/internal/dispatch"
	"github.com/soar/conductor/internal/engine"
	"github.com/soar/conductor/internal/input"
	"github.com/soar/conductor/internal/mapping"
	"github.com/soar/conductor/internal/transport"
)

// scriptedSource feeds pre-arranged poll batches to the controller.
type scriptedSource struct {
	mu      sync.Mutex
	batches [][]input.Sample
}

func (s *scriptedSource) push(batch ...input.Sample) {
	s.mu.Lock()
	s.batches = append(s.batches, batch)
	s.mu.Unlock()
}

func (s *scriptedSource) Poll() []input.Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.batches) == 0 {
		return nil
	}
	b := s.batches[0]
	s.batches = s.batches[1:]
	return b
}

func (s *scriptedSource) Devices() []input.DeviceInfo {
	return []input.DeviceInfo{{ID: 0, Name: "scripted", Buttons: 8, Axes: 4, Hats: 1, Enabled: true}}
}
func (s *scriptedSource) Enable(int) bool                 { return true }
func (s *scriptedSource) Disable(int)                     {}
func (s *scriptedSource) ButtonCount(int) int             { return 8 }
func (s *scriptedSource) AxisCount(int) int               { return 4 }
func (s *scriptedSource) HatCount(int) int                { return 1 }
func (s *scriptedSource) ReadButton(_, _ int) bool        { return false }
func (s *scriptedSource) ReadAxis(_, _ int) float64       { return 0 }
func (s *scriptedSource) ReadHat(_, _ int) input.HatState { return input.HatState{} }

type nullSender struct{}

func (nullSender) Send(uint16, uint8, bool) error { return nil }

var _ transport.Sender = nullSender{}

func newTestController(src *scriptedSource) (*Controller, *dispatch.Dispatcher, *mapping.Table) {
	tbl := mapping.NewTable()
	eng := engine.New(tbl)
	d := dispatch.New(nullSender{}, time.Hour)
	store := mapping.NewStore("/nonexistent/mappings.csv")
	c := New(src, tbl, store, eng, d, time.Millisecond)
	return c, d, tbl
}

func buttonSample(index int, pressed bool) input.Sample {
	return input.Sample{Kind: input.KindButton, Index: index, Button: pressed}
}

func axisSample(index int, v float64) input.Sample {
	return input.Sample{Kind: input.KindAxis, Index: index, Axis: v}
}

func TestStartStop(t *testing.T) {
	src := &scriptedSource{}
	c, _, _ := newTestController(src)

	if c.State() != StateIdle {
		t.Fatalf("initial state = %v", c.State())
	}
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	if c.State() != StateRunning {
		t.Fatalf("state after Start = %v", c.State())
	}
	if err := c.Start(); !errors.Is(err, ErrRunning) {
		t.Fatalf("second Start: %v", err)
	}
	c.Stop()
	if c.State() != StateIdle {
		t.Fatalf("state after Stop = %v", c.State())
	}
	// Stop is idempotent.
	c.Stop()
}

func TestPollQueuesMappedFunctions(t *testing.T) {
	src := &scriptedSource{}
	c, d, tbl := newTestController(src)
	tbl.Set("Horn", mapping.Locator{Kind: input.KindButton, Index: 3}, false)
	tbl.Set("Throttle Lever", mapping.Locator{Kind: input.KindAxis, Index: 1}, false)

	src.push(buttonSample(3, true), axisSample(1, 1), buttonSample(7, true))
	c.pollOnce()

	batch := d.Flush()
	if batch[8] != 1 {
		t.Errorf("horn value = %d, want 1", batch[8])
	}
	if batch[16] != 8 {
		t.Errorf("throttle value = %d, want 8", batch[16])
	}
	if len(batch) != 2 {
		t.Errorf("unmapped input leaked into the queue: %v", batch)
	}
}

func TestPollSharedLocatorDrivesBoth(t *testing.T) {
	src := &scriptedSource{}
	c, d, tbl := newTestController(src)
	loc := mapping.Locator{Kind: input.KindButton, Index: 2}
	tbl.Set("Horn", loc, false)
	tbl.Set("Bell", loc, false)

	src.push(buttonSample(2, true))
	c.pollOnce()

	batch := d.Flush()
	if batch[8] != 1 || batch[2] != 1 {
		t.Fatalf("shared locator drove %v, want both horn and bell", batch)
	}
}

func TestPollReverserSwitch(t *testing.T) {
	src := &scriptedSource{}
	c, d, tbl := newTestController(src)
	tbl.SetReverserMode(mapping.ReverserTwoWay)
	tbl.SetReverserPosition(mapping.PositionForward, mapping.Locator{Kind: input.KindButton, Index: 5})

	src.push(buttonSample(5, true))
	c.pollOnce()
	batch := d.Flush()
	if batch[14] != 255 {
		t.Fatalf("reverser = %v, want 255", batch)
	}

	src.push(buttonSample(5, false))
	c.pollOnce()
	batch = d.Flush()
	if batch[14] != 127 {
		t.Fatalf("reverser after release = %v, want neutral", batch)
	}
}

func TestRemapInvalidatesEdgeState(t *testing.T) {
	src := &scriptedSource{}
	c, d, tbl := newTestController(src)
	loc := mapping.Locator{Kind: input.KindButton, Index: 3}
	tbl.Set("Horn", loc, false)

	src.push(buttonSample(3, true))
	c.pollOnce()
	d.Flush()

	// Rebinding the same locator drops edge state; the held button counts
	// as a fresh press on the next poll.
	tbl.Set("Horn", loc, false)
	src.push(buttonSample(3, true))
	c.pollOnce()

	if batch := d.Flush(); batch[8] != 1 {
		t.Fatalf("after remap batch = %v, want fresh press", batch)
	}
}

func TestCaptureBlockedWhileRunning(t *testing.T) {
	src := &scriptedSource{}
	c, _, _ := newTestController(src)

	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	defer c.Stop()

	_, err := c.MapInput(context.Background(), "Horn",
		func(string, string, mapping.Locator) capture.Resolution { return capture.ResolveCancel })
	if !errors.Is(err, ErrNotIdle) {
		t.Fatalf("capture while running: %v", err)
	}
}

func TestStartBlockedWhileCapturing(t *testing.T) {
	src := &scriptedSource{}
	c, _, _ := newTestController(src)

	started := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		close(started)
		ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
		defer cancel()
		c.MapInput(ctx, "Horn",
			func(string, string, mapping.Locator) capture.Resolution { return capture.ResolveCancel })
		close(finished)
	}()
	<-started
	time.Sleep(30 * time.Millisecond)

	if err := c.Start(); !errors.Is(err, ErrNotIdle) {
		t.Fatalf("Start during capture: %v", err)
	}
	<-finished
}

func TestEventsEmitted(t *testing.T) {
	src := &scriptedSource{}
	c, _, tbl := newTestController(src)
	tbl.Set("Horn", mapping.Locator{Kind: input.KindButton, Index: 3}, false)

	src.push(buttonSample(3, true))
	c.pollOnce()

	select {
	case ev := <-c.Events():
		if ev.Type != "command" || ev.Function != "Horn" || ev.Value != 1 {
			t.Fatalf("event = %+v", ev)
		}
	default:
		t.Fatal("no event emitted for the queued command")
	}
}

func TestReverserHeartbeat(t *testing.T) {
	src := &scriptedSource{}
	c, d, _ := newTestController(src)

	if err := c.SetReverserMode(mapping.ReverserTwoWay); err != nil {
		t.Fatal(err)
	}

	time.Sleep(heartbeatTwoWay + 50*time.Millisecond)
	batch := d.Flush()
	if batch[14] != 127 {
		t.Fatalf("heartbeat batch = %v, want neutral reverser", batch)
	}

	// Back to axis mode the heartbeat goes away.
	if err := c.SetReverserMode(mapping.ReverserAxis); err != nil {
		t.Fatal(err)
	}
	time.Sleep(heartbeatTwoWay + 50*time.Millisecond)
	if batch := d.Flush(); len(batch) != 0 {
		t.Fatalf("axis mode still heartbeats: %v", batch)
	}
}

func TestSetReverserModeRequiresIdle(t *testing.T) {
	src := &scriptedSource{}
	c, _, _ := newTestController(src)

	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	defer c.Stop()

	if err := c.SetReverserMode(mapping.ReverserThreeWay); !errors.Is(err, ErrNotIdle) {
		t.Fatalf("mode change while running: %v", err)
	}
}

func TestReverserSwitchWhileDispatching(t *testing.T) {
	src := &scriptedSource{}
	tbl := mapping.NewTable()
	eng := engine.New(tbl)
	d := dispatch.New(nullSender{}, time.Millisecond)
	store := mapping.NewStore("/nonexistent/mappings.csv")
	c := New(src, tbl, store, eng, d, time.Millisecond)

	tbl.SetReverserMode(mapping.ReverserThreeWay)
	tbl.SetReverserPosition(mapping.PositionForward, mapping.Locator{Kind: input.KindButton, Index: 5})

	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	// Re-pressing the latched position changes nothing and queues nothing;
	// the send goroutine keeps flushing throughout.
	for i := 0; i < 50; i++ {
		src.push(buttonSample(5, true))
		src.push(buttonSample(5, false))
		src.push(buttonSample(5, true))
		time.Sleep(time.Millisecond)
	}
	c.Stop()

	if eng.ReverserValue() != 255 {
		t.Fatalf("latched value = %d, want forward", eng.ReverserValue())
	}
}
