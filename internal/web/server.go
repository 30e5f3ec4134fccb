// Package web is the HTTP control surface. The legacy root endpoints
// (/start, /stop, /status) keep the shapes the original shore-station UI
// expects; everything else lives under /api.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"auv-ng/internal/control"
	"auv-ng/internal/divelog"
)

// DiveController is the external control gate of the loop service.
type DiveController interface {
	StartDive() bool
	StopDive(reason string) bool
	Running() bool
	Snapshot() control.Snapshot
}

// MotorReporter exposes the last values actually written to the driver.
type MotorReporter interface {
	Current() control.MotorCommand
}

type Options struct {
	Gate DiveController

	// HardwareOK false puts the gate in degraded mode: /start returns 503
	// and DegradedReason says why. Status and logs stay reachable.
	HardwareOK     bool
	DegradedReason string

	Logs   *LogBuffer
	Dives  *divelog.Store // nil when the dive log is disabled
	Motors MotorReporter  // nil when no actuator is attached

	// SimState reports the plant position when running simulated.
	SimState func() (xCm, depthCm float64)
}

type handlers struct {
	opts Options
}

func NewRouter(opts Options) http.Handler {
	h := &handlers{opts: opts}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(allowAllOrigins)

	r.Post("/start", h.handleStart)
	r.Post("/stop", h.handleStop)
	r.Get("/status", h.handleGateStatus)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", h.handleStatus)
		if opts.Logs != nil {
			r.Get("/logs", h.handleLogs)
		}
		r.Get("/dives", h.handleDives)
		r.Get("/dives/{id}/events", h.handleDiveEvents)
		r.Get("/about", handleAbout)
	})

	r.Get("/", h.handleIndex)
	return r
}

// allowAllOrigins mirrors the permissive CORS posture of the original
// shore API: the UI is served from a different origin on the same boat.
func allowAllOrigins(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type gateResponse struct {
	Status  string `json:"status"`
	Reason  string `json:"reason,omitempty"`
	Success bool   `json:"success"`
}

func (h *handlers) handleStart(w http.ResponseWriter, r *http.Request) {
	if !h.opts.HardwareOK {
		writeJSON(w, http.StatusServiceUnavailable, gateResponse{
			Status:  "hardware_unavailable",
			Reason:  h.opts.DegradedReason,
			Success: false,
		})
		return
	}
	status := "already_running"
	if h.opts.Gate.StartDive() {
		status = "started"
	}
	writeJSON(w, http.StatusOK, gateResponse{Status: status, Success: true})
}

func (h *handlers) handleStop(w http.ResponseWriter, r *http.Request) {
	// Stop always works, degraded or not.
	status := "already_stopped"
	if h.opts.Gate.StopDive("stop_requested") {
		status = "stopped"
	}
	writeJSON(w, http.StatusOK, gateResponse{Status: status, Success: true})
}

func (h *handlers) handleGateStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Running    bool `json:"running"`
		HardwareOK bool `json:"hardware_ok"`
		Success    bool `json:"success"`
	}{
		Running:    h.opts.Gate.Running(),
		HardwareOK: h.opts.HardwareOK,
		Success:    true,
	})
}

func (h *handlers) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	snap := h.opts.Gate.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = fmt.Fprintf(w, "<!doctype html><html><head><meta charset=\"utf-8\"><title>auv-ng</title></head><body>")
	_, _ = fmt.Fprintf(w, "<h1>auv-ng</h1>")
	_, _ = fmt.Fprintf(w, "<p>Use <a href=\"/api/status\">/api/status</a>, <a href=\"/api/logs\">/api/logs</a>, <a href=\"/api/dives\">/api/dives</a>.</p>")
	_, _ = fmt.Fprintf(w, "<pre>running=%v\nstate=%s\nticks=%d</pre>", snap.Running, snap.State, snap.Ticks)
	_, _ = fmt.Fprintf(w, "</body></html>")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_, _ = w.Write(b)
	_, _ = w.Write([]byte("\n"))
}

func Serve(ctx context.Context, listenAddr string, opts Options) error {
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           NewRouter(opts),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       30 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MiB
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
