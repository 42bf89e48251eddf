// Package catalog holds the static table of simulator control functions.
// The set is fixed at startup; looking up a name that is not in the table
// is a programming error and panics.
package catalog

import "fmt"

// Behavior is the activation contract a function expects from its input.
type Behavior int

const (
	Momentary Behavior = iota
	Toggle
	Lever
	ThreeWay
	FourWay
	FiveWay
	Button
)

func (b Behavior) String() string {
	switch b {
	case Momentary:
		return "momentary"
	case Toggle:
		return "toggle"
	case Lever:
		return "lever"
	case ThreeWay:
		return "3way"
	case FourWay:
		return "4way"
	case FiveWay:
		return "5way"
	case Button:
		return "button"
	}
	return "unknown"
}

// Positions returns the cycle length for multi-way behaviors, 0 otherwise.
func (b Behavior) Positions() int {
	switch b {
	case ThreeWay:
		return 3
	case FourWay:
		return 4
	case FiveWay:
		return 5
	}
	return 0
}

// Law selects the axis-to-value translation for lever functions.
type Law int

const (
	LawNone     Law = iota
	LawNotch        // throttle: 9 notches, 0..8
	LawReverser     // three-zone: 0 / 127 / 255
	LawDynBrake     // off below -0.95, then 1..255
	LawBrake        // linear 0..255
)

// FunctionSpec describes one simulator control point.
type FunctionSpec struct {
	Name     string
	ID       uint16
	Behavior Behavior
	Law      Law
	Category string
}

// Well-known function names referenced by the engine's alternate modes.
const (
	ThrottleLever     = "Throttle Lever"
	DynBrakeLever     = "Dyn Brake Lever"
	ReverserLever     = "Reverser Lever"
	ThrottleDynToggle = "Throttle/Dyn Toggle"
)

var functions = []FunctionSpec{
	{"Alerter", 1, Momentary, LawNone, "Cab Controls"},
	{"Bell", 2, Momentary, LawNone, "Cab Controls"},
	{"Distance Counter", 3, ThreeWay, LawNone, "Cab Controls"},
	{DynBrakeLever, 4, Lever, LawDynBrake, "Main Controls"},
	{"Headlight Front", 5, ThreeWay, LawNone, "Lights and Wipers"},
	{"Headlight Rear", 6, ThreeWay, LawNone, "Lights and Wipers"},
	{"Horn", 8, Momentary, LawNone, "Cab Controls"},
	{"Independent Brake Lever", 9, Lever, LawBrake, "Main Controls"},
	{"Independent Bailoff", 10, Momentary, LawNone, "Cab Controls"},
	{"Park-Brake Set", 12, Momentary, LawNone, "Misc"},
	{"Park-Brake Release", 13, Momentary, LawNone, "Misc"},
	{ReverserLever, 14, Lever, LawReverser, "Main Controls"},
	{"Sander", 15, Momentary, LawNone, "Cab Controls"},
	{ThrottleLever, 16, Lever, LawNotch, "Main Controls"},
	{"Train Brake Lever", 18, Lever, LawBrake, "Main Controls"},
	{"Wiper Switch", 19, FourWay, LawNone, "Lights and Wipers"},
	{"Circuit Breaker Control", 37, Toggle, LawNone, "Electrical"},
	{"Circuit Breaker DynBrake", 38, Toggle, LawNone, "Electrical"},
	{"Circuit Breaker EngRun", 39, Toggle, LawNone, "Electrical"},
	{"Circuit Breaker GenField", 40, Toggle, LawNone, "Electrical"},
	{"Cab Light Switch", 41, Toggle, LawNone, "Lights and Wipers"},
	{"Step Light Switch", 42, Toggle, LawNone, "Lights and Wipers"},
	{"Gauge Light Switch", 43, Toggle, LawNone, "Lights and Wipers"},
	{"EOT Emg Stop", 44, Momentary, LawNone, "Misc"},
	{"HEP Switch", 52, Toggle, LawNone, "Electrical"},
	{"Slow Speed Toggle", 55, Toggle, LawNone, "Misc"},
	{"Slow Speed Increment", 56, Momentary, LawNone, "Misc"},
	{"Slow Speed Decrement", 57, Momentary, LawNone, "Misc"},
	{"DPU Throttle Increase", 58, Momentary, LawNone, "DPU"},
	{"DPU Throttle Decrease", 59, Momentary, LawNone, "DPU"},
	{"DPU Dyn-Brake Setup", 60, Momentary, LawNone, "DPU"},
	{"DPU Fence Increase", 61, Momentary, LawNone, "DPU"},
	{"DPU Fence Decrease", 62, Momentary, LawNone, "DPU"},
	{"Combined Throttle/Dyn", 100, Lever, LawNotch, "Main Controls"},
	{ThrottleDynToggle, 101, Button, LawNone, "Main Controls"},
}

var byName = func() map[string]*FunctionSpec {
	m := make(map[string]*FunctionSpec, len(functions))
	for i := range functions {
		m[functions[i].Name] = &functions[i]
	}
	return m
}()

// ByName returns the spec for a known function name. Panics on unknown
// names: the catalog is closed, callers must only reference entries of All.
func ByName(name string) *FunctionSpec {
	fn, ok := byName[name]
	if !ok {
		panic(fmt.Sprintf("catalog: unknown function %q", name))
	}
	return fn
}

// Lookup is the non-panicking variant, for validating external input
// such as persisted mapping files.
func Lookup(name string) (*FunctionSpec, bool) {
	fn, ok := byName[name]
	return fn, ok
}

// All returns every function in catalog order.
func All() []FunctionSpec {
	out := make([]FunctionSpec, len(functions))
	copy(out, functions)
	return out
}
