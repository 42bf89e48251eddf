package engine

import (
	"math"

	"github.com/soar/conductor/internal/catalog"
	"github.com/soar/conductor/internal/input"
	"github.com/soar/conductor/internal/mapping"
)

// splitDeadzone is the center band of the split-mode lever where both the
// throttle and the dynamic brake read zero.
const splitDeadzone = 0.05

// combinedLever drives the throttle and dynamic-brake wire functions from a
// single axis. The two values are always emitted as a pair so the simulator
// never sees a partial update.
type combinedLever struct {
	selectDyn  bool // toggle mode: false drives throttle, true the brake
	axis       float64
	haveAxis   bool
	lastTh     int
	lastDyn    int
	havePrev   bool
	prevToggle bool
}

func (c *combinedLever) reset() {
	*c = combinedLever{}
}

// processCombined handles an axis sample for the throttle mapping while a
// combined mode is active.
func (e *Engine) processCombined(m mapping.Mapping, s input.Sample) []Update {
	if s.Kind != input.KindAxis {
		return nil
	}
	e.combined.axis = leverAxis(s.Axis, m.ReverseAxis)
	e.combined.haveAxis = true
	return e.emitCombined()
}

// processSelectToggle flips the throttle/brake selection on the auxiliary
// button's rising edge and re-emits the pair from the last lever position.
// The toggle function itself never reaches the wire.
func (e *Engine) processSelectToggle(m mapping.Mapping, s input.Sample) []Update {
	cur := activity(m.Locator, s)
	prev := e.combined.prevToggle
	e.combined.prevToggle = cur
	if !cur || prev || e.table.ThrottleMode() != mapping.ThrottleToggle {
		return nil
	}

	e.combined.selectDyn = !e.combined.selectDyn
	if !e.combined.haveAxis {
		return nil
	}
	return e.emitCombined()
}

func (e *Engine) emitCombined() []Update {
	v := e.combined.axis
	var th, dyn int

	switch e.table.ThrottleMode() {
	case mapping.ThrottleSplit:
		switch {
		case v > splitDeadzone:
			th = clampInt(int(math.Round(v*8)), 0, 8)
		case v < -splitDeadzone:
			dyn = clampInt(int(math.Round(-v*255)), 0, 255)
		}
	case mapping.ThrottleToggle:
		if e.combined.selectDyn {
			dyn = clampInt(int(math.Round((v+1)/2*255)), 0, 255)
		} else {
			th = clampInt(int(math.Round((v+1)/2*8)), 0, 8)
		}
	default:
		return nil
	}

	if e.combined.havePrev && th == e.combined.lastTh && dyn == e.combined.lastDyn {
		return nil
	}
	e.combined.lastTh = th
	e.combined.lastDyn = dyn
	e.combined.havePrev = true

	throttle := catalog.ByName(catalog.ThrottleLever)
	brake := catalog.ByName(catalog.DynBrakeLever)
	return []Update{
		{Function: throttle.Name, ID: throttle.ID, Value: th},
		{Function: brake.Name, ID: brake.ID, Value: dyn},
	}
}
