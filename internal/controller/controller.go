// Package controller wires the input source, mapping table, engine,
// dispatcher and capture workflow together and enforces their mutual
// exclusion: the poll/send loop and interactive capture never run at the
// same time.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/soar/conductor/internal/capture"
	"github.com/soar/conductor/internal/catalog"
	"github.com/soar/conductor/internal/dispatch"
	"github.com/soar/conductor/internal/engine"
	"github.com/soar/conductor/internal/input"
	"github.com/soar/conductor/internal/mapping"
)

// State is the controller's run state. Transitions are Start/Stop and the
// capture workflow; capture is only reachable from idle.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCapturing
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateCapturing:
		return "capturing"
	}
	return "idle"
}

var (
	ErrNotIdle = errors.New("controller: stop the main loop first")
	ErrRunning = errors.New("controller: already running")
)

// Event is pushed to observers (the websocket hub) on anything worth
// showing: state changes, queued commands, capture outcomes.
type Event struct {
	Type     string `json:"type"` // "state", "command", "capture", "mapping"
	State    string `json:"state,omitempty"`
	Function string `json:"function,omitempty"`
	ID       uint16 `json:"id,omitempty"`
	Value    int    `json:"value,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

// Heartbeat cadence for the emulated reverser switch; faster in 2-way mode
// where a lost release packet would stick the locomotive in gear.
const (
	heartbeatTwoWay   = 250 * time.Millisecond
	heartbeatThreeWay = 500 * time.Millisecond
)

type Controller struct {
	source     input.Source
	table      *mapping.Table
	store      *mapping.Store
	engine     *engine.Engine
	dispatcher *dispatch.Dispatcher
	capturer   *capture.Capturer

	pollInterval time.Duration

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}

	events chan Event
}

func New(source input.Source, table *mapping.Table, store *mapping.Store,
	eng *engine.Engine, d *dispatch.Dispatcher, pollInterval time.Duration) *Controller {

	if pollInterval <= 0 {
		pollInterval = 20 * time.Millisecond
	}
	c := &Controller{
		source:       source,
		table:        table,
		store:        store,
		engine:       eng,
		dispatcher:   d,
		capturer:     capture.New(source, table),
		pollInterval: pollInterval,
		events:       make(chan Event, 64),
	}

	// Every table mutation drops the engine's edge-detection state for the
	// touched locators, so a remap never inherits stale transitions.
	table.OnChange(func(function string, old, cur *mapping.Mapping) {
		if old != nil {
			eng.Invalidate(function, old.Locator)
		}
		if cur != nil {
			eng.Invalidate(function, cur.Locator)
		}
	})
	return c
}

// Events is the observer feed. Messages are dropped when no one drains it.
func (c *Controller) Events() <-chan Event {
	return c.events
}

func (c *Controller) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start launches the poll and send loops. Fails unless idle.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateRunning:
		return ErrRunning
	case StateCapturing:
		return ErrNotIdle
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{}, 2)
	c.state = StateRunning

	c.registerHeartbeat()

	go func() {
		c.pollLoop(ctx)
		c.done <- struct{}{}
	}()
	go func() {
		c.dispatcher.Run(ctx)
		c.done <- struct{}{}
	}()

	log.Printf("controller: started (poll %v)", c.pollInterval)
	c.emit(Event{Type: "state", State: StateRunning.String()})
	return nil
}

// Stop halts both loops and waits for them to finish.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return
	}
	cancel, done := c.cancel, c.done
	c.state = StateIdle
	c.cancel = nil
	c.mu.Unlock()

	cancel()
	<-done
	<-done

	log.Println("controller: stopped")
	c.emit(Event{Type: "state", State: StateIdle.String()})
}

func (c *Controller) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.pollOnce()
		}
	}
}

// pollOnce runs one poll tick: read the changed samples, feed the reverser
// switch state machine, then classify every sample against every function
// mapped to its input.
func (c *Controller) pollOnce() {
	batch := c.source.Poll()
	if len(batch) == 0 {
		return
	}

	if c.table.ReverserMode() != mapping.ReverserAxis {
		if changed, upd := c.engine.UpdateReverserSwitch(batch); changed {
			c.queue(upd)
		}
	}

	mappings := c.table.All()
	for _, s := range batch {
		for _, m := range mappings {
			if !m.Locator.Matches(s) {
				continue
			}
			fn := catalog.ByName(m.Function)
			for _, upd := range c.engine.Process(fn, m, s) {
				c.queue(upd)
			}
		}
	}
}

func (c *Controller) queue(upd engine.Update) {
	v := upd.Value
	if v < 0 {
		v = 0
	} else if v > 255 {
		v = 255
	}
	c.dispatcher.Queue(upd.ID, uint8(v))
	c.emit(Event{Type: "command", Function: upd.Function, ID: upd.ID, Value: v})
}

// registerHeartbeat keeps the reverser value re-sent while switch
// emulation is active; packet loss on that control must heal itself.
// The heartbeat is seeded with the latched value and tracks subsequent
// queued updates inside the dispatcher, so the send goroutine never
// reads the engine. Callers hold c.mu while the loops are stopped.
func (c *Controller) registerHeartbeat() {
	fn := catalog.ByName(catalog.ReverserLever)
	switch c.table.ReverserMode() {
	case mapping.ReverserTwoWay:
		c.dispatcher.SetHeartbeat(fn.ID, heartbeatTwoWay, uint8(c.engine.ReverserValue()))
	case mapping.ReverserThreeWay:
		c.dispatcher.SetHeartbeat(fn.ID, heartbeatThreeWay, uint8(c.engine.ReverserValue()))
	default:
		c.dispatcher.ClearHeartbeat(fn.ID)
	}
}

// MapInput runs the interactive capture workflow for one function.
// Only allowed while idle; the capture state blocks a concurrent Start.
func (c *Controller) MapInput(ctx context.Context, function string, resolve capture.ResolveFunc) (capture.Result, error) {
	if err := c.enterCapture(); err != nil {
		return capture.Result{}, err
	}
	defer c.leaveCapture()

	res, err := c.capturer.Capture(ctx, function, resolve)
	c.emitCaptureResult(function, res, err)
	return res, err
}

// MapReverserPosition captures a button/hat for one emulated switch position.
func (c *Controller) MapReverserPosition(ctx context.Context, pos mapping.ReverserPosition) (capture.Result, error) {
	if err := c.enterCapture(); err != nil {
		return capture.Result{}, err
	}
	defer c.leaveCapture()

	res, err := c.capturer.CapturePosition(ctx, pos)
	if err == nil && res.Installed {
		c.engine.ResetReverserSwitch()
	}
	c.emitCaptureResult("reverser "+pos.String(), res, err)
	return res, err
}

func (c *Controller) enterCapture() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle {
		return ErrNotIdle
	}
	c.state = StateCapturing
	c.emit(Event{Type: "state", State: StateCapturing.String()})
	return nil
}

func (c *Controller) leaveCapture() {
	c.mu.Lock()
	c.state = StateIdle
	c.mu.Unlock()
	c.emit(Event{Type: "state", State: StateIdle.String()})
}

func (c *Controller) emitCaptureResult(function string, res capture.Result, err error) {
	ev := Event{Type: "capture", Function: function}
	switch {
	case err != nil:
		ev.Detail = err.Error()
	case !res.Detected:
		ev.Detail = "no input detected"
	case !res.Installed:
		ev.Detail = "cancelled"
	default:
		ev.Detail = res.Locator.String()
	}
	c.emit(ev)
}

// ClearMapping removes one function binding.
func (c *Controller) ClearMapping(function string) bool {
	if _, ok := catalog.Lookup(function); !ok {
		return false
	}
	cleared := c.table.Clear(function)
	if cleared {
		c.emit(Event{Type: "mapping", Function: function, Detail: "cleared"})
	}
	return cleared
}

// SetReverserMode switches the reverser between axis and switch emulation.
// Idle only: the reset touches engine state the poll goroutine owns while
// the loops run.
func (c *Controller) SetReverserMode(m mapping.ReverserMode) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrNotIdle
	}
	c.table.SetReverserMode(m)
	c.engine.ResetReverserSwitch()
	c.registerHeartbeat()
	c.mu.Unlock()
	c.emit(Event{Type: "mapping", Detail: fmt.Sprintf("reverser mode %s", m)})
	return nil
}

// SetThrottleMode switches the combined throttle/dynamic-brake handling.
func (c *Controller) SetThrottleMode(m mapping.ThrottleMode) {
	c.table.SetThrottleMode(m)
	c.emit(Event{Type: "mapping", Detail: fmt.Sprintf("throttle mode %s", m)})
}

// Load replaces the table contents from the store. Idle only.
func (c *Controller) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle {
		return ErrNotIdle
	}
	c.table.ClearAll()
	if err := c.store.Load(c.table); err != nil {
		return err
	}
	c.engine.ResetReverserSwitch()
	c.emit(Event{Type: "mapping", Detail: "loaded " + c.store.Path()})
	return nil
}

// Save writes the table through the store.
func (c *Controller) Save() error {
	if err := c.store.Save(c.table); err != nil {
		return err
	}
	c.emit(Event{Type: "mapping", Detail: "saved " + c.store.Path()})
	return nil
}

// Table exposes the mapping table for read-mostly consumers (status page).
func (c *Controller) Table() *mapping.Table {
	return c.table
}

// Devices lists the source's devices.
func (c *Controller) Devices() []input.DeviceInfo {
	return c.source.Devices()
}

// EnableDevice and DisableDevice toggle polling of one device.
func (c *Controller) EnableDevice(id int) bool { return c.source.Enable(id) }
func (c *Controller) DisableDevice(id int)     { c.source.Disable(id) }
