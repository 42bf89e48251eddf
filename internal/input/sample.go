// Package input reads raw joystick state (buttons, axes, hats) and reports
// per-input changes between polls.
package input

// Kind identifies the physical input class of a sample or locator.
type Kind int

const (
	KindButton Kind = iota
	KindAxis
	KindHat
)

func (k Kind) String() string {
	switch k {
	case KindButton:
		return "Button"
	case KindAxis:
		return "Axis"
	case KindHat:
		return "Hat"
	}
	return "unknown"
}

// ParseKind maps the persisted Type column back to a Kind.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "Button":
		return KindButton, true
	case "Axis":
		return KindAxis, true
	case "Hat":
		return KindHat, true
	}
	return 0, false
}

// HatState is a discrete hat position, up = +Y, right = +X.
type HatState struct {
	X int
	Y int
}

// Centered reports whether the hat is at rest.
func (h HatState) Centered() bool { return h.X == 0 && h.Y == 0 }

// Sample is one raw reading from a device input. Exactly one of the value
// fields is meaningful, selected by Kind.
type Sample struct {
	Device int
	Kind   Kind
	Index  int
	Button bool
	Axis   float64
	Hat    HatState
}

// DeviceInfo describes a connected device.
type DeviceInfo struct {
	ID      int
	Name    string
	Buttons int
	Axes    int
	Hats    int
	Enabled bool
}

// Source is what the mapper core consumes: current raw values on demand
// plus a changed-since-last-poll batch for the main loop.
type Source interface {
	Devices() []DeviceInfo
	Enable(device int) bool
	Disable(device int)
	ButtonCount(device int) int
	AxisCount(device int) int
	HatCount(device int) int
	ReadButton(device, index int) bool
	ReadAxis(device, index int) float64
	ReadHat(device, index int) HatState
	// Poll returns every enabled-device input whose value changed since the
	// previous Poll. Axis changes below axisEpsilon are not reported.
	Poll() []Sample
}

// Axis changes smaller than this are noise, not input.
const axisEpsilon = 0.01
