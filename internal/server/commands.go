package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/soar/conductor/internal/capture"
	"github.com/soar/conductor/internal/catalog"
	"github.com/soar/conductor/internal/controller"
	"github.com/soar/conductor/internal/mapping"
)

// Commands adapts the controller to the hub's command interface. Capture
// commands return immediately; the outcome arrives as a broadcast event.
type Commands struct {
	ctrl *controller.Controller

	mu     sync.Mutex
	cancel context.CancelFunc // in-flight capture, nil otherwise
}

func NewCommands(ctrl *controller.Controller) *Commands {
	return &Commands{ctrl: ctrl}
}

func (c *Commands) Start() error { return c.ctrl.Start() }
func (c *Commands) Stop()        { c.ctrl.Stop() }

func (c *Commands) Capture(function, resolve string) error {
	if _, ok := catalog.Lookup(function); !ok {
		return fmt.Errorf("unknown function %q", function)
	}
	if c.ctrl.State() != controller.StateIdle {
		return controller.ErrNotIdle
	}
	ctx := c.armCancel()
	go func() {
		defer c.disarmCancel()
		if _, err := c.ctrl.MapInput(ctx, function, resolvePolicy(resolve)); err != nil {
			log.Printf("Capture %q: %v", function, err)
		}
	}()
	return nil
}

func (c *Commands) CapturePosition(position string) error {
	pos, ok := mapping.ParseReverserPosition(position)
	if !ok {
		return fmt.Errorf("unknown reverser position %q", position)
	}
	if c.ctrl.State() != controller.StateIdle {
		return controller.ErrNotIdle
	}
	ctx := c.armCancel()
	go func() {
		defer c.disarmCancel()
		if _, err := c.ctrl.MapReverserPosition(ctx, pos); err != nil {
			log.Printf("Capture reverser %s: %v", pos, err)
		}
	}()
	return nil
}

// CancelCapture aborts the in-flight capture before its detection window
// expires. The capture finishes through its normal path, broadcasting the
// outcome and returning the controller to idle.
func (c *Commands) CancelCapture() error {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel == nil {
		return errors.New("no capture in progress")
	}
	cancel()
	return nil
}

func (c *Commands) armCancel() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()
	return ctx
}

func (c *Commands) disarmCancel() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.mu.Unlock()
}

func (c *Commands) ClearMapping(function string) error {
	if !c.ctrl.ClearMapping(function) {
		return fmt.Errorf("no mapping for %q", function)
	}
	return nil
}

func (c *Commands) SetReverserMode(mode string) error {
	m, ok := mapping.ParseReverserMode(mode)
	if !ok {
		return fmt.Errorf("unknown reverser mode %q", mode)
	}
	return c.ctrl.SetReverserMode(m)
}

func (c *Commands) SetThrottleMode(mode string) error {
	m, ok := mapping.ParseThrottleMode(mode)
	if !ok {
		return fmt.Errorf("unknown throttle mode %q", mode)
	}
	c.ctrl.SetThrottleMode(m)
	return nil
}

func (c *Commands) Save() error { return c.ctrl.Save() }
func (c *Commands) Load() error { return c.ctrl.Load() }

func (c *Commands) EnableDevice(device int) error {
	if !c.ctrl.EnableDevice(device) {
		return fmt.Errorf("no device %d", device)
	}
	return nil
}

func (c *Commands) DisableDevice(device int) error {
	c.ctrl.DisableDevice(device)
	return nil
}

// resolvePolicy maps the wire policy name onto a capture resolution. The
// page defaults to clearing the other binding, matching what a user
// remapping an input almost always wants.
func resolvePolicy(name string) capture.ResolveFunc {
	var r capture.Resolution
	switch name {
	case "cancel":
		r = capture.ResolveCancel
	case "keep":
		r = capture.ResolveKeepBoth
	default:
		r = capture.ResolveClearOther
	}
	return func(function, other string, loc mapping.Locator) capture.Resolution {
		return r
	}
}

// functionView is one row of the snapshot's mapping table.
type functionView struct {
	Name     string `json:"name"`
	ID       uint16 `json:"id"`
	Behavior string `json:"behavior"`
	Input    string `json:"input,omitempty"`
	Reverse  bool   `json:"reverse,omitempty"`
}

type deviceView struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

type snapshotView struct {
	State        string         `json:"state"`
	ReverserMode string         `json:"reverserMode"`
	ThrottleMode string         `json:"throttleMode"`
	Functions    []functionView `json:"functions"`
	Devices      []deviceView   `json:"devices"`
}

// Snapshot builds the full application state for the status page.
func (c *Commands) Snapshot() interface{} {
	table := c.ctrl.Table()
	mapped := make(map[string]mapping.Mapping)
	for _, m := range table.All() {
		mapped[m.Function] = m
	}

	snap := snapshotView{
		State:        c.ctrl.State().String(),
		ReverserMode: table.ReverserMode().String(),
		ThrottleMode: table.ThrottleMode().String(),
	}
	for _, fn := range catalog.All() {
		view := functionView{Name: fn.Name, ID: fn.ID, Behavior: fn.Behavior.String()}
		if m, ok := mapped[fn.Name]; ok {
			view.Input = m.Locator.String()
			view.Reverse = m.ReverseAxis
		}
		snap.Functions = append(snap.Functions, view)
	}
	for _, d := range c.ctrl.Devices() {
		snap.Devices = append(snap.Devices, deviceView{ID: d.ID, Name: d.Name, Enabled: d.Enabled})
	}
	return snap
}
