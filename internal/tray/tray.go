package tray

import (
	"log"
	"os/exec"
	"runtime"
	"sync"
	"sync/atomic"

	"fyne.io/systray"
)

// ShutdownFunc is called when "Exit" is clicked
type ShutdownFunc func()

// ToggleFunc starts or stops the poll loop and reports whether it is now
// running.
type ToggleFunc func() bool

// Tray manages the system tray icon and menu
type Tray struct {
	url          string
	toggleFunc   ToggleFunc
	shutdownFunc ShutdownFunc
	once         sync.Once
	shuttingDown atomic.Bool
	menuToggle   *systray.MenuItem
	menuOpen     *systray.MenuItem
	menuExit     *systray.MenuItem
}

// New creates a new Tray instance
func New(url string, toggleFn ToggleFunc, shutdownFn ShutdownFunc) *Tray {
	return &Tray{
		url:          url,
		toggleFunc:   toggleFn,
		shutdownFunc: shutdownFn,
	}
}

// Run initializes and runs the system tray (blocks until Quit())
func (t *Tray) Run(iconData []byte) {
	systray.Run(func() {
		t.onReady(iconData)
	}, func() {
		t.onExit()
	})
}

// onReady is called when the tray is ready
func (t *Tray) onReady(iconData []byte) {
	if iconData != nil {
		systray.SetIcon(iconData)
	}
	systray.SetTitle("Conductor")
	systray.SetTooltip("Conductor - " + t.url)

	t.menuToggle = systray.AddMenuItem("Start", "Start sending to the simulator")
	t.menuOpen = systray.AddMenuItem("Open Browser", "Open web interface")
	t.menuExit = systray.AddMenuItem("Exit", "Quit application")

	// Handle menu clicks in separate goroutines to prevent blocking
	go t.handleMenuClicks()

	log.Println("System tray initialized")
}

// SetRunning updates the toggle label when the run state changes elsewhere.
func (t *Tray) SetRunning(running bool) {
	if t.menuToggle == nil {
		return
	}
	if running {
		t.menuToggle.SetTitle("Stop")
	} else {
		t.menuToggle.SetTitle("Start")
	}
}

// handleMenuClicks processes menu item clicks without blocking
func (t *Tray) handleMenuClicks() {
	for {
		select {
		case <-t.menuToggle.ClickedCh:
			if !t.shuttingDown.Load() {
				t.SetRunning(t.toggleFunc())
			}
		case <-t.menuOpen.ClickedCh:
			if !t.shuttingDown.Load() {
				t.openBrowser()
			}
		case <-t.menuExit.ClickedCh:
			if t.shuttingDown.CompareAndSwap(false, true) {
				t.once.Do(t.shutdownFunc)
				// Small delay to ensure shutdown function completes
				systray.Quit()
				return
			}
		}
	}
}

// onExit is called when the tray is exiting
func (t *Tray) onExit() {
	t.shuttingDown.Store(true)
	log.Println("System tray exiting")
}

// openBrowser opens the default web browser
func (t *Tray) openBrowser() {
	// Prevent multiple browser launches during shutdown
	if t.shuttingDown.Load() {
		return
	}

	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", t.url)
	case "darwin":
		cmd = exec.Command("open", t.url)
	default:
		cmd = exec.Command("xdg-open", t.url)
	}

	if err := cmd.Start(); err != nil {
		log.Printf("Failed to open browser: %v", err)
	}
}
