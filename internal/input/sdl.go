package input

import (
	"context"
	"log"
	"math"
	"runtime"
	"sync"

	"github.com/jupiterrider/purego-sdl3/sdl"
)

const (
	// The SDL thread refreshes cached device state at this cadence. The
	// capture settle loop reads at ~2ms, so the cache must keep up.
	refreshDelayNS = 2_000_000

	hatUp    uint8 = 0x01
	hatRight uint8 = 0x02
	hatDown  uint8 = 0x04
	hatLeft  uint8 = 0x08
)

type deviceState struct {
	joystick  *sdl.Joystick
	instance  sdl.JoystickID
	name      string
	connected bool
	enabled   bool
	buttons   []bool
	axes      []float64
	hats      []HatState
}

// Manager owns the SDL joystick subsystem. Run must execute on a locked OS
// thread; all other methods read a mutex-guarded snapshot refreshed by Run,
// so they are safe from any goroutine.
type Manager struct {
	mu      sync.RWMutex
	devices map[int]*deviceState // stable small ids, assigned in connect order
	nextID  int
	last    map[inputKey]Sample
}

type inputKey struct {
	device int
	kind   Kind
	index  int
}

func NewManager() *Manager {
	return &Manager{
		devices: make(map[int]*deviceState),
		last:    make(map[inputKey]Sample),
	}
}

// Run initializes SDL and refreshes device state until ctx is done.
// Must be called from a goroutine that holds the OS thread.
func (m *Manager) Run(ctx context.Context) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if !sdl.Init(sdl.InitJoystick) {
		log.Fatalf("SDL init failed: %s", sdl.GetError())
	}
	defer sdl.Quit()

	log.Println("SDL3 joystick subsystem initialized")

	for _, id := range sdl.GetJoysticks() {
		m.attach(id)
	}

	for {
		select {
		case <-ctx.Done():
			m.closeAll()
			return
		default:
		}

		m.processEvents()
		m.refresh()
		sdl.DelayNS(refreshDelayNS)
	}
}

func (m *Manager) processEvents() {
	var event sdl.Event
	for sdl.PollEvent(&event) {
		switch event.Type() {
		case sdl.EventJoystickAdded:
			m.attach(event.JDevice().Which)
		case sdl.EventJoystickRemoved:
			m.detach(event.JDevice().Which)
		}
	}
}

func (m *Manager) attach(instance sdl.JoystickID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, d := range m.devices {
		if d.connected && d.instance == instance {
			return
		}
	}

	js := sdl.OpenJoystick(instance)
	if js == nil {
		log.Printf("failed to open joystick %d: %s", instance, sdl.GetError())
		return
	}

	name := sdl.GetJoystickName(js)
	numButtons := int(sdl.GetNumJoystickButtons(js))
	numAxes := int(sdl.GetNumJoystickAxes(js))
	numHats := int(sdl.GetNumJoystickHats(js))

	// A device that was unplugged keeps its id so existing mappings pick it
	// back up when it returns.
	for id, d := range m.devices {
		if !d.connected && d.name == name {
			d.joystick = js
			d.instance = sdl.GetJoystickID(js)
			d.connected = true
			d.buttons = make([]bool, numButtons)
			d.axes = make([]float64, numAxes)
			d.hats = make([]HatState, numHats)
			log.Printf("joystick reconnected: %s (device %d)", name, id)
			return
		}
	}

	id := m.nextID
	m.nextID++
	m.devices[id] = &deviceState{
		joystick:  js,
		instance:  sdl.GetJoystickID(js),
		name:      name,
		connected: true,
		enabled:   true,
		buttons:   make([]bool, numButtons),
		axes:      make([]float64, numAxes),
		hats:      make([]HatState, numHats),
	}
	log.Printf("joystick connected: %s (device %d) buttons=%d axes=%d hats=%d",
		name, id, numButtons, numAxes, numHats)
}

func (m *Manager) detach(instance sdl.JoystickID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, d := range m.devices {
		if d.connected && d.instance == instance {
			sdl.CloseJoystick(d.joystick)
			d.joystick = nil
			d.connected = false
			log.Printf("joystick disconnected: %s (device %d)", d.name, id)
			return
		}
	}
}

func (m *Manager) closeAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.devices {
		if d.connected {
			sdl.CloseJoystick(d.joystick)
			d.joystick = nil
			d.connected = false
		}
	}
}

// refresh re-reads every connected device into the cached snapshot.
// A device that disappeared keeps its last values, so Poll reports no
// changes for it rather than a burst of releases.
func (m *Manager) refresh() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, d := range m.devices {
		if !d.connected || !sdl.JoystickConnected(d.joystick) {
			continue
		}
		for i := range d.buttons {
			d.buttons[i] = sdl.GetJoystickButton(d.joystick, int32(i))
		}
		for i := range d.axes {
			d.axes[i] = normalizeAxis(sdl.GetJoystickAxis(d.joystick, int32(i)))
		}
		for i := range d.hats {
			d.hats[i] = decodeHat(sdl.GetJoystickHat(d.joystick, int32(i)))
		}
	}
}

// normalizeAxis converts a raw SDL axis value (-32768..32767) to -1.0..1.0.
func normalizeAxis(raw int16) float64 {
	v := float64(raw) / math.MaxInt16
	if v < -1.0 {
		v = -1.0
	}
	return v
}

func decodeHat(mask uint8) HatState {
	var h HatState
	if mask&hatUp != 0 {
		h.Y = 1
	}
	if mask&hatDown != 0 {
		h.Y = -1
	}
	if mask&hatRight != 0 {
		h.X = 1
	}
	if mask&hatLeft != 0 {
		h.X = -1
	}
	return h
}

func (m *Manager) Devices() []DeviceInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]DeviceInfo, 0, len(m.devices))
	for id, d := range m.devices {
		if !d.connected {
			continue
		}
		out = append(out, DeviceInfo{
			ID:      id,
			Name:    d.name,
			Buttons: len(d.buttons),
			Axes:    len(d.axes),
			Hats:    len(d.hats),
			Enabled: d.enabled,
		})
	}
	return out
}

func (m *Manager) Enable(device int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[device]
	if !ok {
		return false
	}
	d.enabled = true
	return true
}

func (m *Manager) Disable(device int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.devices[device]; ok {
		d.enabled = false
	}
}

func (m *Manager) ButtonCount(device int) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if d, ok := m.devices[device]; ok {
		return len(d.buttons)
	}
	return 0
}

func (m *Manager) AxisCount(device int) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if d, ok := m.devices[device]; ok {
		return len(d.axes)
	}
	return 0
}

func (m *Manager) HatCount(device int) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if d, ok := m.devices[device]; ok {
		return len(d.hats)
	}
	return 0
}

func (m *Manager) ReadButton(device, index int) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if d, ok := m.devices[device]; ok && index < len(d.buttons) {
		return d.buttons[index]
	}
	return false
}

func (m *Manager) ReadAxis(device, index int) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if d, ok := m.devices[device]; ok && index < len(d.axes) {
		return d.axes[index]
	}
	return 0
}

func (m *Manager) ReadHat(device, index int) HatState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if d, ok := m.devices[device]; ok && index < len(d.hats) {
		return d.hats[index]
	}
	return HatState{}
}

// Poll returns the inputs that changed since the previous Poll, across all
// enabled, connected devices.
func (m *Manager) Poll() []Sample {
	m.mu.Lock()
	defer m.mu.Unlock()

	var changed []Sample
	for id, d := range m.devices {
		if !d.connected || !d.enabled {
			continue
		}
		for i, v := range d.buttons {
			key := inputKey{id, KindButton, i}
			s := Sample{Device: id, Kind: KindButton, Index: i, Button: v}
			if prev, ok := m.last[key]; !ok || prev.Button != v {
				m.last[key] = s
				changed = append(changed, s)
			}
		}
		for i, v := range d.axes {
			key := inputKey{id, KindAxis, i}
			s := Sample{Device: id, Kind: KindAxis, Index: i, Axis: v}
			if prev, ok := m.last[key]; !ok || math.Abs(prev.Axis-v) > axisEpsilon {
				m.last[key] = s
				changed = append(changed, s)
			}
		}
		for i, v := range d.hats {
			key := inputKey{id, KindHat, i}
			s := Sample{Device: id, Kind: KindHat, Index: i, Hat: v}
			if prev, ok := m.last[key]; !ok || prev.Hat != v {
				m.last[key] = s
				changed = append(changed, s)
			}
		}
	}
	return changed
}
