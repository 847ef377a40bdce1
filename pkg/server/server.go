package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/levenlabs/go-lflag"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/invbridge/invbridge/pkg/inverter"
	"github.com/invbridge/invbridge/pkg/log"
	"github.com/invbridge/invbridge/pkg/metrics"
	"github.com/invbridge/invbridge/pkg/types"
)

// Server exposes one inverter backend over HTTP: battery status, extended
// telemetry, mode control, and a Prometheus scrape endpoint.
type Server struct {
	inv        inverter.Inverter
	listenAddr string
	httpServer *http.Server
}

// Configured initializes the Server. It uses lflag to register command-line
// flags for configuration.
func Configured() *Server {
	srv := &Server{}

	listenAddr := lflag.String("http-listen", ":8080", "HTTP server listen address")

	lflag.Do(func() {
		srv.listenAddr = *listenAddr
	})

	return srv
}

func (s *Server) setupHandler() http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(metrics.NewCollector(s.inv))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/data", s.handleData)
	mux.HandleFunc("POST /api/mode", s.handleMode)
	mux.HandleFunc("POST /api/gridcharge", s.handleGridCharge)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", s.handleHealthz)
	return gziphandler.GzipHandler(mux)
}

// Run starts the HTTP server over inv and blocks until the context is
// canceled or an error occurs. It also handles graceful shutdown when the
// context is done.
func (s *Server) Run(ctx context.Context, inv inverter.Inverter) error {
	s.inv = inv
	s.httpServer = &http.Server{
		Addr:         s.listenAddr,
		Handler:      s.setupHandler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		log.Ctx(ctx).InfoContext(ctx, "starting server", slog.String("addr", s.listenAddr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Ctx(ctx).InfoContext(ctx, "shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	info, err := s.inv.BatteryInfo(r.Context())
	if err != nil {
		writeInverterError(w, err)
		return
	}
	writeJSON(w, info)
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	if !s.inv.SupportsExtendedMonitoring() {
		writeJSONError(w, "extended monitoring not supported by this inverter", http.StatusNotImplemented)
		return
	}
	snap, err := s.inv.FetchData(r.Context())
	if err != nil {
		writeInverterError(w, err)
		return
	}
	writeJSON(w, snap)
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode   string `json:"mode"`
		PowerW int    `json:"power_w"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	mode := types.ParseBatteryMode(req.Mode)
	if mode == 0 {
		writeJSONError(w, fmt.Sprintf("unknown mode %q", req.Mode), http.StatusBadRequest)
		return
	}

	var (
		applied bool
		err     error
	)
	if mode == types.BatteryModeForceCharge {
		applied, err = s.inv.SetModeForceCharge(r.Context(), req.PowerW)
	} else {
		applied, err = s.inv.SetBatteryMode(r.Context(), mode)
	}
	if err != nil {
		writeInverterError(w, err)
		return
	}
	writeJSON(w, struct {
		Applied bool `json:"applied"`
	}{Applied: applied})
}

func (s *Server) handleGridCharge(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Allow bool `json:"allow"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := s.inv.SetAllowGridCharging(r.Context(), req.Allow); err != nil {
		writeInverterError(w, err)
		return
	}
	writeJSON(w, struct {
		Applied bool `json:"applied"`
	}{Applied: true})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		panic(http.ErrAbortHandler)
	}
}

// writeInverterError maps backend errors onto HTTP status codes.
func writeInverterError(w http.ResponseWriter, err error) {
	code := http.StatusBadGateway
	switch {
	case errors.Is(err, inverter.ErrUnsupported):
		code = http.StatusNotImplemented
	case errors.Is(err, inverter.ErrUnauthenticated):
		code = http.StatusServiceUnavailable
	}
	writeJSONError(w, err.Error(), code)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", slog.Any("error", err))
		panic(http.ErrAbortHandler)
	}
}

func writeJSONError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: msg}); err != nil {
		slog.Warn("failed to write error response", slog.Any("error", err))
		panic(http.ErrAbortHandler)
	}
}
