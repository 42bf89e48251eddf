package mapping

import (
	"sync"

	"github.com/soar/conductor/internal/catalog"
)

// ReverserMode selects how the reverser function is driven.
type ReverserMode int

const (
	ReverserAxis ReverserMode = iota
	ReverserTwoWay
	ReverserThreeWay
)

func (m ReverserMode) String() string {
	switch m {
	case ReverserTwoWay:
		return "2way"
	case ReverserThreeWay:
		return "3way"
	}
	return "axis"
}

func ParseReverserMode(s string) (ReverserMode, bool) {
	switch s {
	case "axis":
		return ReverserAxis, true
	case "2way":
		return ReverserTwoWay, true
	case "3way":
		return ReverserThreeWay, true
	}
	return ReverserAxis, false
}

// ReverserPosition is one latched position of the emulated reverser switch.
type ReverserPosition int

const (
	PositionReverse ReverserPosition = iota
	PositionNeutral
	PositionForward
)

func (p ReverserPosition) String() string {
	switch p {
	case PositionForward:
		return "forward"
	case PositionNeutral:
		return "neutral"
	}
	return "reverse"
}

func ParseReverserPosition(s string) (ReverserPosition, bool) {
	switch s {
	case "reverse":
		return PositionReverse, true
	case "neutral":
		return PositionNeutral, true
	case "forward":
		return PositionForward, true
	}
	return PositionNeutral, false
}

// Value is the wire value for this reverser position.
func (p ReverserPosition) Value() int {
	switch p {
	case PositionForward:
		return 255
	case PositionNeutral:
		return 127
	}
	return 0
}

// ThrottleMode selects how the throttle axis is interpreted.
type ThrottleMode int

const (
	ThrottleSeparate ThrottleMode = iota
	ThrottleToggle
	ThrottleSplit
)

func (m ThrottleMode) String() string {
	switch m {
	case ThrottleToggle:
		return "toggle"
	case ThrottleSplit:
		return "split"
	}
	return "separate"
}

func ParseThrottleMode(s string) (ThrottleMode, bool) {
	switch s {
	case "separate":
		return ThrottleSeparate, true
	case "toggle":
		return ThrottleToggle, true
	case "split":
		return ThrottleSplit, true
	}
	return ThrottleSeparate, false
}

// Mapping binds one function to one locator.
type Mapping struct {
	Function    string
	Locator     Locator
	ReverseAxis bool
}

// ChangeFunc observes table mutations. old and new are nil for absent sides.
// Used to drop stale edge-detection state when a function is remapped.
type ChangeFunc func(function string, old, cur *Mapping)

// Table is the mutable function→input association plus the operating modes
// that persist alongside it. Safe for concurrent use; the main loop and the
// capture workflow are mutually exclusive by construction, the lock is
// defense against re-entrant control requests.
type Table struct {
	mu         sync.RWMutex
	byFunction map[string]Mapping
	reverser   ReverserMode
	positions  map[ReverserPosition]Locator
	throttle   ThrottleMode
	onChange   ChangeFunc
}

func NewTable() *Table {
	return &Table{
		byFunction: make(map[string]Mapping),
		positions:  make(map[ReverserPosition]Locator),
	}
}

// OnChange installs the mutation observer. Not concurrency-safe with other
// table use; wire it once at startup.
func (t *Table) OnChange(fn ChangeFunc) { t.onChange = fn }

func (t *Table) notify(function string, old, cur *Mapping) {
	if t.onChange != nil {
		t.onChange(function, old, cur)
	}
}

// Set binds function to locator, replacing any previous binding for that
// function. Other functions bound to the same locator are left alone; the
// capture workflow owns that arbitration. Panics on unknown function names.
func (t *Table) Set(function string, loc Locator, reverseAxis bool) {
	catalog.ByName(function)

	t.mu.Lock()
	var old *Mapping
	if prev, ok := t.byFunction[function]; ok {
		old = &prev
	}
	m := Mapping{Function: function, Locator: loc, ReverseAxis: reverseAxis}
	t.byFunction[function] = m
	t.mu.Unlock()

	t.notify(function, old, &m)
}

// SetReverseAxis updates only the axis-reverse flag of an existing mapping.
func (t *Table) SetReverseAxis(function string, reverse bool) bool {
	catalog.ByName(function)

	t.mu.Lock()
	m, ok := t.byFunction[function]
	if !ok || m.ReverseAxis == reverse {
		t.mu.Unlock()
		return ok
	}
	old := m
	m.ReverseAxis = reverse
	t.byFunction[function] = m
	t.mu.Unlock()

	t.notify(function, &old, &m)
	return true
}

// Clear removes the binding for function, reporting whether one existed.
func (t *Table) Clear(function string) bool {
	catalog.ByName(function)

	t.mu.Lock()
	prev, ok := t.byFunction[function]
	if ok {
		delete(t.byFunction, function)
	}
	t.mu.Unlock()

	if ok {
		t.notify(function, &prev, nil)
	}
	return ok
}

// Get returns the mapping for function, if any.
func (t *Table) Get(function string) (Mapping, bool) {
	catalog.ByName(function)

	t.mu.RLock()
	defer t.mu.RUnlock()
	m, ok := t.byFunction[function]
	return m, ok
}

// FindByLocator returns a function currently bound to loc, if any. With
// duplicate bindings ("keep both") an arbitrary one is returned.
func (t *Table) FindByLocator(loc Locator) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for name, m := range t.byFunction {
		if m.Locator == loc {
			return name, true
		}
	}
	return "", false
}

// All returns a snapshot of every binding, in catalog order.
func (t *Table) All() []Mapping {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Mapping, 0, len(t.byFunction))
	for _, fn := range catalog.All() {
		if m, ok := t.byFunction[fn.Name]; ok {
			out = append(out, m)
		}
	}
	return out
}

// ClearAll drops every binding. Modes and position mappings are kept.
func (t *Table) ClearAll() {
	t.mu.Lock()
	old := t.byFunction
	t.byFunction = make(map[string]Mapping)
	t.mu.Unlock()

	for name, m := range old {
		prev := m
		t.notify(name, &prev, nil)
	}
}

func (t *Table) ReverserMode() ReverserMode {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.reverser
}

func (t *Table) SetReverserMode(m ReverserMode) {
	t.mu.Lock()
	t.reverser = m
	t.mu.Unlock()
}

// SetReverserPosition binds a switch position to a locator. TwoWay mode
// populates only Forward and Reverse.
func (t *Table) SetReverserPosition(p ReverserPosition, loc Locator) {
	t.mu.Lock()
	t.positions[p] = loc
	t.mu.Unlock()
}

func (t *Table) ClearReverserPosition(p ReverserPosition) {
	t.mu.Lock()
	delete(t.positions, p)
	t.mu.Unlock()
}

func (t *Table) ReverserPosition(p ReverserPosition) (Locator, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	loc, ok := t.positions[p]
	return loc, ok
}

// ReverserPositions returns a copy of the position bindings.
func (t *Table) ReverserPositions() map[ReverserPosition]Locator {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[ReverserPosition]Locator, len(t.positions))
	for p, loc := range t.positions {
		out[p] = loc
	}
	return out
}

func (t *Table) ThrottleMode() ThrottleMode {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.throttle
}

func (t *Table) SetThrottleMode(m ThrottleMode) {
	t.mu.Lock()
	t.throttle = m
	t.mu.Unlock()
}

// Equal reports whether two tables hold the same bindings, modes and
// position mappings.
func (t *Table) Equal(o *Table) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	o.mu.RLock()
	defer o.mu.RUnlock()

	if t.reverser != o.reverser || t.throttle != o.throttle {
		return false
	}
	if len(t.byFunction) != len(o.byFunction) || len(t.positions) != len(o.positions) {
		return false
	}
	for name, m := range t.byFunction {
		if om, ok := o.byFunction[name]; !ok || om != m {
			return false
		}
	}
	for p, loc := range t.positions {
		if oloc, ok := o.positions[p]; !ok || oloc != loc {
			return false
		}
	}
	return true
}
