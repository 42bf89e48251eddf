// Package capture implements the interactive "map input" workflow: watch
// the raw devices for whatever the user presses or moves next, validate it
// against the target function's required input kind, arbitrate collisions,
// and install the binding.
//
// Capture runs only while the main poll/send loop is stopped, and only one
// capture may be in flight at a time.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/soar/conductor/internal/catalog"
	"github.com/soar/conductor/internal/engine"
	"github.com/soar/conductor/internal/input"
	"github.com/soar/conductor/internal/mapping"
)

var (
	ErrNoDevices = errors.New("capture: no input devices enabled")
	ErrBusy      = errors.New("capture: detection already in progress")
)

// KindMismatchError reports a detected input whose kind cannot drive the
// target function's behavior.
type KindMismatchError struct {
	Function string
	Behavior catalog.Behavior
	Kind     input.Kind
}

func (e *KindMismatchError) Error() string {
	return fmt.Sprintf("capture: %s needs a %s input, got %s",
		e.Function, requiredKind(e.Behavior), e.Kind)
}

func requiredKind(b catalog.Behavior) string {
	if b == catalog.Lever {
		return "Axis"
	}
	return "Button"
}

// Resolution is the user's decision for a locator collision.
type Resolution int

const (
	ResolveCancel Resolution = iota
	ResolveClearOther
	ResolveKeepBoth
)

// ResolveFunc is asked when the detected input is already bound to another
// function. Collisions are never resolved silently.
type ResolveFunc func(function, other string, loc mapping.Locator) Resolution

// Result reports what a capture run did.
type Result struct {
	Detected  bool
	Installed bool
	Locator   mapping.Locator
	Conflict  string // other function bound to the same locator, if any
}

// Capturer runs detection against a Source and installs results into the
// mapping table.
type Capturer struct {
	source input.Source
	table  *mapping.Table

	// Timing knobs, defaulted by New; tests shrink them.
	SettleTimeout time.Duration // wait for inputs to come to rest
	SettleEvery   time.Duration
	Timeout       time.Duration // overall detection window
	PollEvery     time.Duration
	ConfirmDelay  time.Duration // axis re-confirmation settle

	inFlight atomic.Bool
}

func New(source input.Source, table *mapping.Table) *Capturer {
	return &Capturer{
		source:        source,
		table:         table,
		SettleTimeout: 150 * time.Millisecond,
		SettleEvery:   2 * time.Millisecond,
		Timeout:       5 * time.Second,
		PollEvery:     20 * time.Millisecond,
		ConfirmDelay:  150 * time.Millisecond,
	}
}

type snapshot struct {
	buttons map[int][]bool
	axes    map[int][]float64
	hats    map[int][]input.HatState
}

// Capture detects the next actuated input and binds it to function.
// A timeout is not an error: it returns a Result with Detected false.
func (c *Capturer) Capture(ctx context.Context, function string, resolve ResolveFunc) (Result, error) {
	fn := catalog.ByName(function)

	if !c.inFlight.CompareAndSwap(false, true) {
		return Result{}, ErrBusy
	}
	defer c.inFlight.Store(false)

	devices := c.enabledDevices()
	if len(devices) == 0 {
		return Result{}, ErrNoDevices
	}

	// Let go of whatever started the capture before taking the baseline,
	// so residual motion is not detected as the new binding.
	if err := c.settle(ctx, devices); err != nil {
		return Result{}, err
	}
	base := c.snapshot(devices)

	loc, found, err := c.detect(ctx, devices, base)
	if err != nil || !found {
		return Result{}, err
	}

	if err := validateKind(fn, loc.Kind); err != nil {
		return Result{Detected: true, Locator: loc}, err
	}

	res := Result{Detected: true, Locator: loc}
	if other, ok := c.table.FindByLocator(loc); ok && other != function {
		res.Conflict = other
		switch resolve(function, other, loc) {
		case ResolveCancel:
			return res, nil
		case ResolveClearOther:
			c.table.Clear(other)
		case ResolveKeepBoth:
			// Duplicate bindings are allowed when asked for.
		}
	}

	reverse := false
	if prev, ok := c.table.Get(function); ok {
		reverse = prev.ReverseAxis
	}
	c.table.Set(function, loc, reverse)
	res.Installed = true
	return res, nil
}

// CapturePosition binds a reverser switch position. Only buttons and hat
// directions can latch a position.
func (c *Capturer) CapturePosition(ctx context.Context, pos mapping.ReverserPosition) (Result, error) {
	if !c.inFlight.CompareAndSwap(false, true) {
		return Result{}, ErrBusy
	}
	defer c.inFlight.Store(false)

	devices := c.enabledDevices()
	if len(devices) == 0 {
		return Result{}, ErrNoDevices
	}
	if err := c.settle(ctx, devices); err != nil {
		return Result{}, err
	}
	base := c.snapshot(devices)

	loc, found, err := c.detect(ctx, devices, base)
	if err != nil || !found {
		return Result{}, err
	}
	if loc.Kind == input.KindAxis {
		return Result{Detected: true, Locator: loc}, &KindMismatchError{
			Function: "Reverser " + pos.String(),
			Behavior: catalog.Momentary,
			Kind:     loc.Kind,
		}
	}

	c.table.SetReverserPosition(pos, loc)
	return Result{Detected: true, Installed: true, Locator: loc}, nil
}

func validateKind(fn *catalog.FunctionSpec, kind input.Kind) error {
	ok := false
	switch fn.Behavior {
	case catalog.Lever:
		ok = kind == input.KindAxis
	default:
		ok = kind == input.KindButton || kind == input.KindHat
	}
	if !ok {
		return &KindMismatchError{Function: fn.Name, Behavior: fn.Behavior, Kind: kind}
	}
	return nil
}

func (c *Capturer) enabledDevices() []input.DeviceInfo {
	var out []input.DeviceInfo
	for _, d := range c.source.Devices() {
		if d.Enabled {
			out = append(out, d)
		}
	}
	return out
}

// settle waits until every button is released and every axis is inside the
// deadzone, giving up after SettleTimeout.
func (c *Capturer) settle(ctx context.Context, devices []input.DeviceInfo) error {
	deadline := time.Now().Add(c.SettleTimeout)
	for time.Now().Before(deadline) {
		if atRest(c.source, devices) {
			return nil
		}
		if err := sleepCtx(ctx, c.SettleEvery); err != nil {
			return err
		}
	}
	return nil
}

func atRest(src input.Source, devices []input.DeviceInfo) bool {
	for _, d := range devices {
		for i := 0; i < d.Buttons; i++ {
			if src.ReadButton(d.ID, i) {
				return false
			}
		}
		for i := 0; i < d.Axes; i++ {
			if abs(src.ReadAxis(d.ID, i)) > engine.Deadzone {
				return false
			}
		}
	}
	return true
}

func (c *Capturer) snapshot(devices []input.DeviceInfo) snapshot {
	s := snapshot{
		buttons: make(map[int][]bool),
		axes:    make(map[int][]float64),
		hats:    make(map[int][]input.HatState),
	}
	for _, d := range devices {
		buttons := make([]bool, d.Buttons)
		for i := range buttons {
			buttons[i] = c.source.ReadButton(d.ID, i)
		}
		axes := make([]float64, d.Axes)
		for i := range axes {
			axes[i] = c.source.ReadAxis(d.ID, i)
		}
		hats := make([]input.HatState, d.Hats)
		for i := range hats {
			hats[i] = c.source.ReadHat(d.ID, i)
		}
		s.buttons[d.ID] = buttons
		s.axes[d.ID] = axes
		s.hats[d.ID] = hats
	}
	return s
}

func (c *Capturer) detect(ctx context.Context, devices []input.DeviceInfo, base snapshot) (mapping.Locator, bool, error) {
	deadline := time.Now().Add(c.Timeout)
	for time.Now().Before(deadline) {
		for _, d := range devices {
			for i := 0; i < d.Buttons; i++ {
				if c.source.ReadButton(d.ID, i) && !base.buttons[d.ID][i] {
					return mapping.Locator{Device: d.ID, Kind: input.KindButton, Index: i}, true, nil
				}
			}
			for i := 0; i < d.Axes; i++ {
				delta := abs(c.source.ReadAxis(d.ID, i) - base.axes[d.ID][i])
				if delta <= engine.Deadzone {
					continue
				}
				// Sustained movement only: re-check after a short settle at
				// a slightly lower threshold, so a bumped stick does not
				// bind an axis.
				if err := sleepCtx(ctx, c.ConfirmDelay); err != nil {
					return mapping.Locator{}, false, err
				}
				confirmed := abs(c.source.ReadAxis(d.ID, i) - base.axes[d.ID][i])
				if confirmed > engine.Deadzone*0.7 {
					return mapping.Locator{Device: d.ID, Kind: input.KindAxis, Index: i}, true, nil
				}
			}
			for i := 0; i < d.Hats; i++ {
				cur := c.source.ReadHat(d.ID, i)
				if cur == base.hats[d.ID][i] {
					continue
				}
				if dir, ok := cardinal(cur); ok {
					return mapping.Locator{Device: d.ID, Kind: input.KindHat, Index: i, HatDir: dir}, true, nil
				}
			}
		}
		if err := sleepCtx(ctx, c.PollEvery); err != nil {
			return mapping.Locator{}, false, err
		}
	}
	return mapping.Locator{}, false, nil
}

// cardinal accepts only the four pure directions, not diagonals.
func cardinal(h input.HatState) (mapping.HatDirection, bool) {
	switch h {
	case input.HatState{Y: 1}:
		return mapping.HatUp, true
	case input.HatState{Y: -1}:
		return mapping.HatDown, true
	case input.HatState{X: -1}:
		return mapping.HatLeft, true
	case input.HatState{X: 1}:
		return mapping.HatRight, true
	}
	return mapping.HatNone, false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
