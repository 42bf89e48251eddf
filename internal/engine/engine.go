// Package engine turns raw input samples into simulator-bound values.
//
// Each poll cycle the engine is invoked once per (function, sample) pair for
// every mapped function whose input changed. It tracks previous values per
// function+locator to detect edges, runs the per-behavior translation, and
// returns the values that must be queued this cycle. The reverser switch
// emulation and the combined throttle/dynamic-brake lever are alternate-mode
// state machines layered on top of the generic dispatch.
package engine

import (
	"math"

	"github.com/soar/conductor/internal/catalog"
	"github.com/soar/conductor/internal/input"
	"github.com/soar/conductor/internal/mapping"
)

// Deadzone binarizes an axis used as a momentary/toggle trigger.
// Lever translation uses the full axis range instead.
const Deadzone = 0.7

// Update is one simulator-bound value produced by a poll cycle.
type Update struct {
	Function string
	ID       uint16
	Value    int
}

type stateKey struct {
	function string
	loc      mapping.Locator
}

// Engine holds all transient per-input state. Not safe for concurrent use;
// the poll loop owns it.
type Engine struct {
	table *mapping.Table

	prevActive map[stateKey]bool
	prevEmit   map[stateKey]int
	multiway   map[string]int

	reverser reverserSwitch
	combined combinedLever
}

func New(table *mapping.Table) *Engine {
	return &Engine{
		table:      table,
		prevActive: make(map[stateKey]bool),
		prevEmit:   make(map[stateKey]int),
		multiway:   make(map[string]int),
		reverser:   newReverserSwitch(),
	}
}

// Invalidate drops the edge-detection state for one function+locator pair.
// Called on every mapping mutation so stale state never leaks across a remap.
func (e *Engine) Invalidate(function string, loc mapping.Locator) {
	key := stateKey{function, loc}
	delete(e.prevActive, key)
	delete(e.prevEmit, key)
	if function == catalog.ThrottleLever {
		e.combined.reset()
	}
}

// Process classifies one raw sample against the function it is mapped to
// and returns the values to queue this cycle (none, one, or - for the
// combined lever - two).
func (e *Engine) Process(fn *catalog.FunctionSpec, m mapping.Mapping, s input.Sample) []Update {
	switch {
	case fn.Name == catalog.ReverserLever && e.table.ReverserMode() != mapping.ReverserAxis:
		// Switch emulation owns the reverser; any invocation re-emits the
		// latched position. The position itself moves in UpdateReverserSwitch.
		return []Update{{fn.Name, fn.ID, e.reverser.position.Value()}}
	case fn.Name == catalog.ThrottleLever && e.table.ThrottleMode() != mapping.ThrottleSeparate:
		return e.processCombined(m, s)
	case fn.Name == catalog.ThrottleDynToggle:
		return e.processSelectToggle(m, s)
	}

	changed, v := e.processValue(fn, m, s)
	if !changed {
		return nil
	}
	return []Update{{fn.Name, fn.ID, v}}
}

// processValue is the generic per-behavior dispatch.
func (e *Engine) processValue(fn *catalog.FunctionSpec, m mapping.Mapping, s input.Sample) (bool, int) {
	key := stateKey{fn.Name, m.Locator}

	switch fn.Behavior {
	case catalog.Momentary:
		cur := activity(m.Locator, s)
		prev := e.prevActive[key]
		e.prevActive[key] = cur
		if cur != prev {
			return true, boolToValue(cur)
		}

	case catalog.Toggle, catalog.Button:
		// The simulator flips its own state on receipt of 1; only the
		// rising edge is sent, release stays silent.
		cur := activity(m.Locator, s)
		prev := e.prevActive[key]
		e.prevActive[key] = cur
		if cur && !prev && fn.Behavior == catalog.Toggle {
			return true, 1
		}

	case catalog.ThreeWay, catalog.FourWay, catalog.FiveWay:
		return e.processMultiway(fn, m, s, key)

	case catalog.Lever:
		return e.processLever(fn, m, s, key)
	}
	return false, 0
}

func (e *Engine) processMultiway(fn *catalog.FunctionSpec, m mapping.Mapping, s input.Sample, key stateKey) (bool, int) {
	// A whole hat bound to a 3-way/4-way reads the direction as the
	// position directly; everything else cycles a counter on rising edges.
	if s.Kind == input.KindHat && m.Locator.HatDir == mapping.HatNone && fn.Behavior != catalog.FiveWay {
		pos := decodeHatPosition(fn.Behavior, s.Hat)
		prev, seen := e.prevEmit[key]
		e.prevEmit[key] = pos
		if !seen || pos != prev {
			return true, pos
		}
		return false, 0
	}

	if s.Kind == input.KindAxis {
		// Multi-way on an axis has no defined decoding; capture rejects it.
		return false, 0
	}

	cur := activity(m.Locator, s)
	prev := e.prevActive[key]
	e.prevActive[key] = cur
	if cur && !prev {
		n := fn.Behavior.Positions()
		e.multiway[fn.Name] = (e.multiway[fn.Name] + 1) % n
		return true, e.multiway[fn.Name]
	}
	return false, 0
}

func (e *Engine) processLever(fn *catalog.FunctionSpec, m mapping.Mapping, s input.Sample, key stateKey) (bool, int) {
	if s.Kind != input.KindAxis {
		return false, 0
	}

	v := leverAxis(s.Axis, m.ReverseAxis)
	val := applyLaw(fn.Law, v)

	prev, seen := e.prevEmit[key]
	e.prevEmit[key] = val
	if !seen || val != prev {
		return true, val
	}
	return false, 0
}

func leverAxis(v float64, reverse bool) float64 {
	if reverse {
		v = -v
	}
	return clamp(v, -1, 1)
}

// applyLaw converts a clamped axis position to the wire value for a lever.
func applyLaw(law catalog.Law, v float64) int {
	switch law {
	case catalog.LawNotch:
		return clampInt(int(math.Round((v+1)/2*8)), 0, 8)
	case catalog.LawReverser:
		switch {
		case v < -0.8:
			return 0
		case v > 0.8:
			return 255
		}
		return 127
	case catalog.LawDynBrake:
		if v <= -0.95 {
			return 0
		}
		// Rescale (-0.95, 1] onto [1, 255] so an engaged brake is never
		// reported as 0.
		norm := clamp((v+0.95)/1.95, 0, 1)
		return int(math.Round(norm*254)) + 1
	case catalog.LawBrake:
		return clampInt(int(math.Round((v+1)/2*255)), 0, 255)
	}
	return 0
}

// decodeHatPosition maps a hat direction straight onto a switch position.
// Diagonals resolve by the vertical component for the 3-way.
func decodeHatPosition(b catalog.Behavior, h input.HatState) int {
	if b == catalog.ThreeWay {
		switch h.Y {
		case -1:
			return 0
		case 1:
			return 2
		}
		return 1
	}
	// 4-way: Down=0, Left=1, Up=2, Right=3, center defaults to 0.
	switch {
	case h.Y == -1:
		return 0
	case h.Y == 1:
		return 2
	case h.X == -1:
		return 1
	case h.X == 1:
		return 3
	}
	return 0
}

// activity binarizes a sample: pressed button, axis beyond the deadzone,
// or hat in (or anywhere off-center, for whole-hat bindings) the mapped
// direction.
func activity(loc mapping.Locator, s input.Sample) bool {
	switch s.Kind {
	case input.KindButton:
		return s.Button
	case input.KindAxis:
		return math.Abs(s.Axis) > Deadzone
	case input.KindHat:
		if loc.HatDir != mapping.HatNone {
			return s.Hat == loc.HatDir.Vector()
		}
		return !s.Hat.Centered()
	}
	return false
}

func boolToValue(b bool) int {
	if b {
		return 1
	}
	return 0
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
