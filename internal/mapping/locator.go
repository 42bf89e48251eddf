// Package mapping associates simulator functions with physical inputs and
// persists that association as a flat CSV table.
package mapping

import (
	"fmt"

	"github.com/soar/conductor/internal/input"
)

// HatDirection narrows a hat binding to a single cardinal direction.
// HatNone means the whole hat is bound (multi-way decoding).
type HatDirection int

const (
	HatNone HatDirection = iota
	HatUp
	HatDown
	HatLeft
	HatRight
)

func (d HatDirection) String() string {
	switch d {
	case HatUp:
		return "Up"
	case HatDown:
		return "Down"
	case HatLeft:
		return "Left"
	case HatRight:
		return "Right"
	}
	return ""
}

// ParseHatDirection accepts the persisted Direction column. The empty
// string is HatNone.
func ParseHatDirection(s string) (HatDirection, bool) {
	switch s {
	case "":
		return HatNone, true
	case "Up":
		return HatUp, true
	case "Down":
		return HatDown, true
	case "Left":
		return HatLeft, true
	case "Right":
		return HatRight, true
	}
	return HatNone, false
}

// Vector returns the hat state that counts as "active" for this direction.
func (d HatDirection) Vector() input.HatState {
	switch d {
	case HatUp:
		return input.HatState{Y: 1}
	case HatDown:
		return input.HatState{Y: -1}
	case HatLeft:
		return input.HatState{X: -1}
	case HatRight:
		return input.HatState{X: 1}
	}
	return input.HatState{}
}

// Locator names one physical input: device, kind, index, and for hats
// optionally a single direction.
type Locator struct {
	Device int
	Kind   input.Kind
	Index  int
	HatDir HatDirection
}

func (l Locator) String() string {
	if l.Kind == input.KindHat && l.HatDir != HatNone {
		return fmt.Sprintf("Hat %d %s (device %d)", l.Index, l.HatDir, l.Device)
	}
	return fmt.Sprintf("%s %d (device %d)", l.Kind, l.Index, l.Device)
}

// Matches reports whether a raw sample comes from this locator's input.
// Direction is not considered; a hat locator matches any sample of its hat.
func (l Locator) Matches(s input.Sample) bool {
	return l.Device == s.Device && l.Kind == s.Kind && l.Index == s.Index
}
