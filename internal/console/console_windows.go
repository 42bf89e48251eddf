// Package console installs a reliable Ctrl+C handler. On Windows, Go's
// os.Interrupt delivery can be swallowed once SDL3 runs with
// runtime.LockOSThread, so the handler is registered natively and can be
// re-registered after SDL initialization overrides it.
package console

import (
	"log"
	"sync/atomic"
	"syscall"
)

var (
	kernel32                  = syscall.NewLazyDLL("kernel32.dll")
	procSetConsoleCtrlHandler = kernel32.NewProc("SetConsoleCtrlHandler")
)

const (
	ctrlCEvent     = 0
	ctrlBreakEvent = 1
)

type ctrlHandler struct {
	closed   int32 // atomic, the channel closes once
	shutdown chan struct{}
	callback uintptr
}

var handler *ctrlHandler

// SetupConsoleHandler registers a native console control handler that
// closes shutdownChan on Ctrl+C or Ctrl+Break. The returned function
// re-registers the handler; call it after initializing libraries that
// install their own (SDL3 does during init).
func SetupConsoleHandler(shutdownChan chan struct{}) func() {
	handler = &ctrlHandler{shutdown: shutdownChan}
	handler.callback = syscall.NewCallback(func(ctrlType uint32) uintptr {
		if ctrlType == ctrlCEvent || ctrlType == ctrlBreakEvent {
			if atomic.CompareAndSwapInt32(&handler.closed, 0, 1) {
				close(handler.shutdown)
			}
			return 1
		}
		return 0
	})

	register := func() {
		if handler == nil {
			return
		}
		ret, _, _ := procSetConsoleCtrlHandler.Call(handler.callback, 1)
		if ret == 0 {
			log.Printf("console: failed to set control handler")
		}
	}
	register()
	return register
}
