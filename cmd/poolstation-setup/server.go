package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andreweacott/poolstation-setup/pkg/config"
	"github.com/andreweacott/poolstation-setup/pkg/entry"
	"github.com/andreweacott/poolstation-setup/pkg/flow"
	"github.com/andreweacott/poolstation-setup/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// redacted replaces secrets in entry data returned by the API
const redacted = "**REDACTED**"

// secretKeys are entry data keys never returned by the API
var secretKeys = map[string]bool{"token": true, "password": true}

// maxBodyBytes limits request bodies
const maxBodyBytes = 64 << 10

// API serves the flow and entry endpoints
type API struct {
	manager *flow.Manager
	store   entry.Store
	log     *logger.Logger
}

// NewAPI creates the HTTP API for manager and store
func NewAPI(manager *flow.Manager, store entry.Store, log *logger.Logger) *API {
	return &API{manager: manager, store: store, log: log}
}

// NewRouter builds the HTTP handler with API, /metrics and /health endpoints
func NewRouter(api *API, registry *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/flows", api.handleListFlows)
	mux.HandleFunc("POST /api/flows", api.handleStartFlow)
	mux.HandleFunc("POST /api/flows/{id}", api.handleConfigureFlow)
	mux.HandleFunc("DELETE /api/flows/{id}", api.handleAbortFlow)
	mux.HandleFunc("GET /api/entries", api.handleListEntries)
	mux.HandleFunc("DELETE /api/entries/{id}", api.handleDeleteEntry)
	mux.HandleFunc("POST /api/entries/{id}/reauth", api.handleReauth)

	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		Timeout:           10 * time.Second,
	}))
	mux.HandleFunc("/health", handleHealth)

	return mux
}

type startFlowRequest struct {
	Domain string `json:"domain"`
}

func (a *API) handleStartFlow(w http.ResponseWriter, r *http.Request) {
	var req startFlowRequest
	if err := decodeBody(r, &req); err != nil || req.Domain == "" {
		a.writeError(w, fmt.Errorf("%w: body must be {\"domain\": \"...\"}", flow.ErrInvalidInput))
		return
	}

	res, err := a.manager.Init(r.Context(), req.Domain, flow.SourceUser, nil)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleConfigureFlow(w http.ResponseWriter, r *http.Request) {
	var input flow.Input
	if err := decodeBody(r, &input); err != nil {
		a.writeError(w, fmt.Errorf("%w: %v", flow.ErrInvalidInput, err))
		return
	}

	res, err := a.manager.Configure(r.Context(), r.PathValue("id"), input)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleAbortFlow(w http.ResponseWriter, r *http.Request) {
	if err := a.manager.Abort(r.PathValue("id")); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleListFlows(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.manager.InProgress())
}

func (a *API) handleListEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := a.store.List(r.Context(), r.URL.Query().Get("domain"))
	if err != nil {
		a.writeError(w, err)
		return
	}

	out := make([]*entry.Entry, 0, len(entries))
	for _, e := range entries {
		out = append(out, redact(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	if err := a.store.Delete(r.Context(), r.PathValue("id")); err != nil {
		a.writeError(w, err)
		return
	}
	a.log.WithEntryID(r.PathValue("id")).Info("Config entry removed")
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleReauth(w http.ResponseWriter, r *http.Request) {
	res, err := a.manager.StartReauth(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, flow.ErrUnknownFlow), errors.Is(err, flow.ErrUnknownHandler), errors.Is(err, entry.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, flow.ErrInvalidInput), errors.Is(err, flow.ErrUnknownStep):
		status = http.StatusBadRequest
	case errors.Is(err, flow.ErrAlreadyInProgress):
		status = http.StatusConflict
	default:
		a.log.WithError(err).Error("Request failed")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// decodeBody decodes a JSON body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func redact(e *entry.Entry) *entry.Entry {
	out := e.Clone()
	for k := range out.Data {
		if secretKeys[k] {
			out.Data[k] = redacted
		}
	}
	return out
}

// StartServer runs the HTTP server until ctx is cancelled
func StartServer(ctx context.Context, cfg *config.Config, handler http.Handler, log *logger.Logger) error {
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: time.Duration(cfg.LoginTimeout)*time.Second + 10*time.Second,
		IdleTimeout:  65 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", server.Addr, "port", cfg.Port)
		log.Info("Flow API available", "url", fmt.Sprintf("http://localhost:%d/api/flows", cfg.Port))
		log.Info("Metrics endpoint available", "url", fmt.Sprintf("http://localhost:%d/metrics", cfg.Port))
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil

	case <-ctx.Done():
		log.Info("Shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown error: %w", err)
		}

		log.Info("HTTP server stopped")
		return nil
	}
}

// handleHealth handles the /health endpoint
func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// SetupGracefulShutdown returns a context cancelled on SIGINT or SIGTERM
func SetupGracefulShutdown(log *logger.Logger) context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Info("Received signal", "signal", sig.String())
		cancel()
	}()

	return ctx
}
