package engine

import (
	"github.com/soar/conductor/internal/catalog"
	"github.com/soar/conductor/internal/input"
	"github.com/soar/conductor/internal/mapping"
)

// reverserSwitch latches the emulated reverser position. The position only
// moves when a mapped position input shows up in a poll batch; absence of
// signal never resets it.
type reverserSwitch struct {
	position mapping.ReverserPosition
	active   map[mapping.ReverserPosition]bool
}

func newReverserSwitch() reverserSwitch {
	return reverserSwitch{
		position: mapping.PositionNeutral,
		active:   make(map[mapping.ReverserPosition]bool),
	}
}

// ReverserValue returns the wire value of the latched position.
func (e *Engine) ReverserValue() int {
	return e.reverser.position.Value()
}

// ResetReverserSwitch re-latches neutral and forgets position activity.
// Called when the switch mode or its position mappings change.
func (e *Engine) ResetReverserSwitch() {
	e.reverser = newReverserSwitch()
}

// UpdateReverserSwitch feeds one poll batch into the switch state machine
// and reports whether the latched position moved, along with the value to
// emit. Only meaningful when the reverser mode is 2-way or 3-way.
func (e *Engine) UpdateReverserSwitch(batch []input.Sample) (bool, Update) {
	mode := e.table.ReverserMode()
	if mode == mapping.ReverserAxis {
		return false, Update{}
	}

	positions := e.table.ReverserPositions()
	sawMapped := false
	for p, loc := range positions {
		for _, s := range batch {
			if !loc.Matches(s) {
				continue
			}
			sawMapped = true
			e.reverser.active[p] = activity(loc, s)
		}
	}

	prev := e.reverser.position
	switch mode {
	case mapping.ReverserTwoWay:
		fwd := e.reverser.active[mapping.PositionForward]
		rev := e.reverser.active[mapping.PositionReverse]
		switch {
		case fwd && rev:
			// Contradictory input, hold the previous position.
		case fwd:
			e.reverser.position = mapping.PositionForward
		case rev:
			e.reverser.position = mapping.PositionReverse
		default:
			e.reverser.position = mapping.PositionNeutral
		}
	case mapping.ReverserThreeWay:
		if sawMapped {
			switch {
			case e.reverser.active[mapping.PositionForward]:
				e.reverser.position = mapping.PositionForward
			case e.reverser.active[mapping.PositionNeutral]:
				e.reverser.position = mapping.PositionNeutral
			case e.reverser.active[mapping.PositionReverse]:
				e.reverser.position = mapping.PositionReverse
			}
		}
	}

	if e.reverser.position == prev {
		return false, Update{}
	}
	fn := catalog.ByName(catalog.ReverserLever)
	return true, Update{Function: fn.Name, ID: fn.ID, Value: e.reverser.position.Value()}
}
