package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/robertof/go-miband-heartrate/live"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 5 * time.Second

// Source is the read side of the live store.
type Source interface {
	Snapshot() live.Snapshot
	WaitForChange(ctx context.Context, lastSeen uint64) (live.Snapshot, error)
	Generation() uint64
}

type Server struct {
	source   Source
	metrics  http.Handler
	upgrader websocket.Upgrader
}

// New builds the serving layer. metricsHandler may be nil to disable /metrics.
func New(source Source, metricsHandler http.Handler) *Server {
	return &Server{
		source:  source,
		metrics: metricsHandler,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// the dashboard may be served from anywhere on the local network.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/data", s.handleData).Methods(http.MethodGet)
	r.HandleFunc("/data/wait", s.handleWait).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleWebSocket).Methods(http.MethodGet)

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}

	return r
}

// Handler is the router wrapped with request logging and panic recovery.
func (s *Server) Handler() http.Handler {
	recovered := handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{}),
		handlers.PrintRecoveryStack(true),
	)(s.Router())

	return handlers.CustomLoggingHandler(io.Discard, recovered, logRequest)
}

// ListenAndServe serves until ctx is done, then shuts down gracefully. Pending long-polls
// are released because their request contexts are cancelled on shutdown.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)

	go func() {
		log.Info().Str("ListenAddress", addr).Msg("Starting HTTP server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	log.Info().Msg("HTTP server stopped")

	return nil
}

func logRequest(_ io.Writer, p handlers.LogFormatterParams) {
	log.Debug().
		Str("Method", p.Request.Method).
		Str("URI", p.URL.RequestURI()).
		Str("Remote", p.Request.RemoteAddr).
		Int("Status", p.StatusCode).
		Int("Size", p.Size).
		Dur("Duration", time.Since(p.TimeStamp)).
		Msg("Handled HTTP request")
}

type recoveryLogger struct{}

func (recoveryLogger) Println(v ...interface{}) {
	log.Error().Msg(fmt.Sprint(v...))
}
