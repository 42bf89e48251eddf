package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/soar/conductor/internal/config"
	"github.com/soar/conductor/internal/console"
	"github.com/soar/conductor/internal/controller"
	"github.com/soar/conductor/internal/dispatch"
	"github.com/soar/conductor/internal/engine"
	"github.com/soar/conductor/internal/hub"
	"github.com/soar/conductor/internal/input"
	"github.com/soar/conductor/internal/mapping"
	"github.com/soar/conductor/internal/server"
	"github.com/soar/conductor/internal/transport"
	"github.com/soar/conductor/internal/tray"
)

// Cross-platform signal handling: use os.Interrupt on all platforms
// On Windows: os.Interrupt is sent when Ctrl+C is pressed
// On Unix: os.Interrupt is equivalent to syscall.SIGINT
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("Config: %v", err)
	}

	// Create cancellable context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, shutdownSignals...)

	// Ctrl+C on Windows needs a console handler because SDL locks the main
	// thread; re-register after SDL init overrides it.
	consoleInterrupt := make(chan struct{})
	reRegister := console.SetupConsoleHandler(consoleInterrupt)

	// UDP link to the simulator
	sender, err := transport.NewUDPSender(cfg.Target)
	if err != nil {
		log.Fatalf("UDP target %s: %v", cfg.Target, err)
	}
	defer sender.Close()

	// Joystick source; Run owns the SDL thread
	source := input.NewManager()
	sourceDone := make(chan struct{})
	go func() {
		source.Run(ctx)
		close(sourceDone)
	}()
	reRegister()

	// Mapping table and persisted state
	table := mapping.NewTable()
	store := mapping.NewStore(cfg.Mappings)
	if err := store.Load(table); err != nil {
		log.Printf("Load mappings: %v", err)
	}

	eng := engine.New(table)
	dispatcher := dispatch.New(sender, cfg.SendInterval)
	ctrl := controller.New(source, table, store, eng, dispatcher, cfg.PollInterval)

	// Create and start hub
	h := hub.NewHub()
	go h.Run()

	// Command adapter and broadcaster
	commands := server.NewCommands(ctrl)
	broadcaster := hub.NewBroadcaster(h, ctrl.Events(), commands.Snapshot)
	go broadcaster.Run()

	// Create and start HTTP server
	srv := server.New(h, broadcaster, commands, cfg.Listen)
	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	url := "http://" + cfg.Listen
	log.Printf("Conductor started: %s -> %s", url, sender.Target())

	if cfg.Autostart {
		if err := ctrl.Start(); err != nil {
			log.Printf("Autostart: %v", err)
		}
	}

	// Channel for tray-triggered shutdown
	shutdownRequested := make(chan struct{})

	// Initialize system tray on Windows only
	if runtime.GOOS == "windows" {
		go func() {
			t := tray.New(url, func() bool {
				if ctrl.State() == controller.StateRunning {
					ctrl.Stop()
					return false
				}
				if err := ctrl.Start(); err != nil {
					log.Printf("Start: %v", err)
					return false
				}
				return true
			}, func() {
				close(shutdownRequested)
			})
			t.Run(tray.GetIcon())
		}()
	} else {
		log.Println("Press Ctrl+C to exit")
	}

	// Wait for shutdown signal, tray request, or server error
	select {
	case <-sigCh:
		log.Println("Shutting down...")
	case <-consoleInterrupt:
		log.Println("Shutting down...")
	case <-shutdownRequested:
		log.Println("Shutdown requested from tray")
	case err := <-serverErrCh:
		log.Printf("HTTP server error: %v", err)
	}

	ctrl.Stop()
	cancel()

	// Wait for the SDL loop to finish
	<-sourceDone

	// Shutdown the HTTP server gracefully
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Println("Conductor stopped")
}
