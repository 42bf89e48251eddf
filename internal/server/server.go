// Package server exposes the local status page and the WebSocket control
// endpoint.
package server

import (
	"context"
	"log"
	"net/http"

	"github.com/soar/conductor/internal/hub"
)

type Server struct {
	hub         *hub.Hub
	broadcaster *hub.Broadcaster
	commander   hub.Commander
	addr        string
	httpServer  *http.Server
}

func New(h *hub.Hub, b *hub.Broadcaster, c hub.Commander, addr string) *Server {
	return &Server{
		hub:         h,
		broadcaster: b,
		commander:   c,
		addr:        addr,
	}
}

func (s *Server) ListenAndServe() error {
	mux := http.NewServeMux()

	// WebSocket endpoint
	mux.HandleFunc("/ws", handleWebSocket(s.hub, s.broadcaster, s.commander))

	// Status page
	mux.HandleFunc("/", handleIndex)

	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: mux,
	}

	log.Printf("HTTP server listening on %s", s.addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		log.Println("Shutting down HTTP server...")
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
