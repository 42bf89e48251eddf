//go:build !windows

// Package console installs a reliable Ctrl+C handler. Outside Windows the
// standard os.Interrupt signal handling is enough, so this is a no-op.
package console

// SetupConsoleHandler is a no-op on non-Windows platforms.
func SetupConsoleHandler(shutdownChan chan struct{}) func() {
	return func() {}
}
