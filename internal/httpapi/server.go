// Package httpapi exposes the signal execution pipeline over HTTP: a
// webhook intake endpoint, an order-status lookup endpoint, admin
// emergency-stop toggles, and a websocket stream of execution events for
// connected operators.
//
// Modeled on the teacher's internal/webhook.Server (ServeMux + Start/
// Shutdown pair, handlers as Server methods) generalized from a single
// postback receiver to the full signal-intake/status/admin surface.
package httpapi

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/signalrouter/kisrouter/internal/broker"
	"github.com/signalrouter/kisrouter/internal/credstore"
	"github.com/signalrouter/kisrouter/internal/executor"
)

// Config holds the HTTP surface's listen settings.
type Config struct {
	Port int // e.g. 8080
}

// Server wires the executor pipeline to HTTP handlers.
type Server struct {
	cfg      Config
	exec     *executor.Executor
	store    *credstore.Store
	brokerAd *broker.Adapter
	logger   *log.Logger
	srv      *http.Server
	events   *statusBroadcaster
}

// New creates a Server. It does not start listening until Start is called.
func New(cfg Config, exec *executor.Executor, store *credstore.Store, brokerAd *broker.Adapter, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.Writer(), "[httpapi] ", log.LstdFlags)
	}
	return &Server{
		cfg:      cfg,
		exec:     exec,
		store:    store,
		brokerAd: brokerAd,
		logger:   logger,
		events:   newStatusBroadcaster(logger),
	}
}

// Start begins listening for HTTP requests. It returns immediately; the
// server runs in a background goroutine.
func (s *Server) Start() error {
	go s.events.run()

	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", s.handleWebhook)
	mux.HandleFunc("/order/", s.handleOrderStatus)
	mux.HandleFunc("/admin/emergency-stop", s.handleEmergencyStop)
	mux.HandleFunc("/admin/resume", s.handleResume)
	mux.HandleFunc("/ws/status", s.handleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, `{"status":"ok"}`)
	})

	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.srv = &http.Server{
		Addr: addr,
		// WriteTimeout is intentionally unset: it pins from the moment
		// headers are read and does not reset per handler stage, so it
		// would cut off a legitimately slow REVERSE signal (up to
		// executor.MaxExecutionTime) before handleWebhook ever gets to
		// write its response. handleWebhook bounds its own work with a
		// request-scoped context deadline instead (see webhook.go).
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	s.logger.Printf("[httpapi] starting server on %s", addr)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("[httpapi] server error: %v", err)
		}
	}()
	return nil
}

// Shutdown gracefully stops the HTTP server and the status broadcaster.
func (s *Server) Shutdown(ctx context.Context) error {
	s.events.shutdown()
	if s.srv == nil {
		return nil
	}
	s.logger.Println("[httpapi] shutting down server")
	return s.srv.Shutdown(ctx)
}
