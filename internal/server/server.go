// ABOUTME: HTTP server wiring for the agent backend API
// ABOUTME: Registers v1 and v2 routes, error envelopes, and lifecycle handling

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/UTXO-Global/utxo-global-tgbot/internal/auth"
	"github.com/UTXO-Global/utxo-global-tgbot/internal/chat"
	"github.com/UTXO-Global/utxo-global-tgbot/internal/notify"
	"github.com/UTXO-Global/utxo-global-tgbot/internal/store"
)

// Server serves the agent backend HTTP API.
type Server struct {
	store      store.Store
	chat       *chat.Service
	notifier   notify.Notifier
	appKey     string
	logger     *slog.Logger
	httpServer *http.Server
}

// New creates a Server with its routes registered.
// Every /v2 route goes through the app-key middleware; the v1 surface
// (new-agent, chat, verify) stays ungated for backward compatibility.
func New(addr string, st store.Store, chatSvc *chat.Service, notifier notify.Notifier, appKey string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}

	s := &Server{
		store:    st,
		chat:     chatSvc,
		notifier: notifier,
		appKey:   appKey,
		logger:   logger.With("component", "server"),
	}

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute, // model invocations can be slow
	}

	return s
}

// Handler returns the fully routed HTTP handler. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	gate := auth.AppKeyMiddleware(s.appKey)
	mux.Handle("/v2/instructions", gate(http.HandlerFunc(s.handleInstructions)))
	mux.Handle("/v2/chat", gate(http.HandlerFunc(s.handleChat)))

	// Reserved: agent management beyond instructions is not built yet.
	mux.Handle("/v2/agents", gate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.sendNotImplemented(w)
	})))

	mux.HandleFunc("/new-agent", s.handleNewAgent)
	mux.HandleFunc("/chat", s.handleLegacyChat)
	mux.HandleFunc("/v1/verify", s.handleVerify)

	mux.HandleFunc("/health", s.handleHealth)

	return s.recoverMiddleware(mux)
}

// Run starts the HTTP server and blocks until ctx is cancelled or the
// listener fails.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// recoverMiddleware converts panics into the fixed 500 envelope so no
// internal detail leaks to a caller.
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic in handler", "path", r.URL.Path, "panic", rec)
				s.sendInternalError(w)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// errorResponse is the generic error envelope.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// successResponse acknowledges writes that return no data.
type successResponse struct {
	Success bool `json:"success"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// sendValidationError reports a missing or malformed request field.
func (s *Server) sendValidationError(w http.ResponseWriter, message string) {
	s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Validation error", Message: message})
}

// sendNotFound reports a missing entity.
func (s *Server) sendNotFound(w http.ResponseWriter, message string) {
	s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "Not found", Message: message})
}

// sendInternalError writes the fixed 500 envelope. Persistence and
// invocation failures all land here; details stay in the log.
func (s *Server) sendInternalError(w http.ResponseWriter) {
	s.writeJSON(w, http.StatusInternalServerError, errorResponse{
		Error:   "Internal server error",
		Message: "Something wrong!",
	})
}

// sendNotImplemented writes the fixed 501 envelope for reserved routes.
func (s *Server) sendNotImplemented(w http.ResponseWriter) {
	s.writeJSON(w, http.StatusNotImplemented, errorResponse{
		Error:   "Not Implemented",
		Message: "This feature is not implemented yet.",
	})
}
