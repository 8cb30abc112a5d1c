// HTTP status and command API
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package api serves printer status, idle protection settings, G-code
// execution, the event journal and metrics over HTTP, and streams
// protection events over a websocket.
package api

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"idleguard/pkg/errors"
	"idleguard/pkg/history"
	"idleguard/pkg/idle"
	"idleguard/pkg/log"
	"idleguard/pkg/metrics"
	"idleguard/pkg/printer"
	"idleguard/pkg/safety"
)

// Machine is the printer surface the API drives.
type Machine interface {
	Status() printer.Status
	IdleSettings() idle.Settings
	ApplyIdleSettings(s idle.Settings) error
	Execute(ctx context.Context, script string) ([]string, error)
}

// EventLister reads the event journal.
type EventLister interface {
	List(ctx context.Context, q history.Query) ([]idle.Event, error)
}

// Config holds server settings.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// ExecTimeout bounds one G-code request.
	ExecTimeout time.Duration
}

// Dependencies are the collaborators behind the routes. History, Metrics
// and Hub are optional.
type Dependencies struct {
	Machine Machine
	History EventLister
	Metrics *metrics.GuardMetrics
	Hub     *Hub
	Logger  *log.Logger
}

// Server wraps http.Server.
type Server struct {
	*http.Server
	cfg      Config
	deps     Dependencies
	upgrader websocket.Upgrader
}

const maxHistoryLimit = 1000

func New(cfg Config, deps Dependencies) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":7125"
	}
	if cfg.ExecTimeout <= 0 {
		cfg.ExecTimeout = 30 * time.Second
	}
	if deps.Logger == nil {
		deps.Logger = log.GetLogger("api")
	}
	s := &Server{
		cfg:  cfg,
		deps: deps,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/idle/settings", s.handleGetSettings).Methods(http.MethodGet)
	r.HandleFunc("/api/idle/settings", s.handlePutSettings).Methods(http.MethodPut)
	r.HandleFunc("/api/gcode", s.handleGCode).Methods(http.MethodPost)
	r.HandleFunc("/api/history", s.handleHistory).Methods(http.MethodGet)
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler())
	}
	if deps.Hub != nil {
		r.HandleFunc("/websocket", s.handleWebSocket)
	}

	s.Server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      corsMiddleware(r),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.deps.Logger.Info("API listening on %s", s.Addr)
		errCh <- s.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	if s.deps.Hub != nil {
		s.deps.Hub.Close()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"result": s.deps.Machine.Status()})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"result": s.deps.Machine.IdleSettings()})
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	// Absent fields keep their current values.
	settings := s.deps.Machine.IdleSettings()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&settings); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.deps.Machine.ApplyIdleSettings(settings); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": s.deps.Machine.IdleSettings()})
}

type gcodeRequest struct {
	Script string `json:"script"`
}

func (s *Server) handleGCode(w http.ResponseWriter, r *http.Request) {
	var req gcodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Script == "" {
		writeError(w, http.StatusBadRequest, stderrors.New("script is required"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.ExecTimeout)
	defer cancel()
	lines, err := s.deps.Machine.Execute(ctx, req.Script)
	if lines == nil {
		lines = []string{}
	}
	if err != nil {
		s.deps.Logger.WithError(err).Debug("gcode request failed")
		writeJSON(w, statusFor(err), map[string]any{
			"result": lines,
			"error":  map[string]any{"message": err.Error()},
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": lines})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		writeError(w, http.StatusNotFound, stderrors.New("history is disabled"))
		return
	}
	q := history.Query{Limit: 50}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxHistoryLimit {
			writeError(w, http.StatusBadRequest, stderrors.New("limit must be between 1 and 1000"))
			return
		}
		q.Limit = n
	}
	if v := r.URL.Query().Get("kind"); v != "" {
		q.Kind = idle.Kind(v)
	}
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		q.Since = t
	}

	events, err := s.deps.History.List(r.Context(), q)
	if err != nil {
		s.deps.Logger.WithError(err).Error("history query failed")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": events})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.deps.Logger.WithError(err).Warn("websocket upgrade failed")
		return
	}
	c := s.deps.Hub.add(conn)
	c.send(Message{Type: "status", Status: s.deps.Machine.Status()})
	s.deps.Hub.serve(c)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusFor maps command and validation failures to 400, a halted printer
// to 503, timeouts to 504 and everything else to 500.
func statusFor(err error) int {
	switch {
	case stderrors.Is(err, safety.ErrShutdown):
		return http.StatusServiceUnavailable
	case errors.IsGCode(err), errors.IsConfig(err), errors.Is(err, errors.ErrSettings), errors.Is(err, errors.ErrHeater):
		return http.StatusBadRequest
	case stderrors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON encodes before writing the header so an unencodable value
// becomes a 500 instead of an empty 200.
func writeJSON(w http.ResponseWriter, code int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		code = http.StatusInternalServerError
		body, _ = json.Marshal(map[string]any{
			"error": map[string]any{"message": "encoding response: " + err.Error()},
		})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(append(body, '\n'))
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{"message": err.Error()},
	})
}
