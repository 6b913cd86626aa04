package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/samijaber1/aegis-compliance/internal/alert"
	"github.com/samijaber1/aegis-compliance/internal/compliance"
	"github.com/samijaber1/aegis-compliance/internal/logger"
	"github.com/samijaber1/aegis-compliance/internal/scheduler"
	"github.com/samijaber1/aegis-compliance/internal/storage"
	"github.com/samijaber1/aegis-compliance/internal/threshold"
)

const (
	defaultHistoryHours = 24
	maxHistoryHours     = 168
	maxBodyBytes        = 1 << 20
)

// Server is the HTTP API server
type Server struct {
	evaluator *compliance.Evaluator
	store     storage.RecordStore
	scheduler *scheduler.Scheduler
	now       func() time.Time
	log       zerolog.Logger

	router *mux.Router
	server *http.Server
}

// NewServer creates a new API server. store and sched may be nil, in which
// case the endpoints depending on them answer 503.
func NewServer(evaluator *compliance.Evaluator, store storage.RecordStore, sched *scheduler.Scheduler, addr string) *Server {
	s := &Server{
		evaluator: evaluator,
		store:     store,
		scheduler: sched,
		now:       time.Now,
		log:       logger.WithComponent("api"),
	}

	r := mux.NewRouter()
	r.Use(loggingMiddleware)

	// Health endpoints
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()

	// Compliance endpoints
	v1.HandleFunc("/metrics", s.handleRecordMetric).Methods(http.MethodPost)
	v1.HandleFunc("/metrics/{domain}/{metric}/history", s.handleMetricHistory).Methods(http.MethodGet)
	v1.HandleFunc("/compliance", s.handleCompliance).Methods(http.MethodGet)
	v1.HandleFunc("/compliance/summary", s.handleSummary).Methods(http.MethodGet)
	v1.HandleFunc("/compliance/validate", s.handleValidate).Methods(http.MethodPost)
	v1.HandleFunc("/alerts", s.handleAlerts).Methods(http.MethodGet)
	v1.HandleFunc("/catalog", s.handleCatalog).Methods(http.MethodGet)

	// Record store endpoints
	v1.HandleFunc("/devices", s.handleDevice).Methods(http.MethodPost)
	v1.HandleFunc("/telemetry", s.handleTelemetry).Methods(http.MethodPost)
	v1.HandleFunc("/stored-alerts", s.handleStoredAlerts).Methods(http.MethodGet)
	v1.HandleFunc("/stored-alerts/{id}/acknowledge", s.handleAcknowledgeAlert).Methods(http.MethodPost)
	v1.HandleFunc("/stored-alerts/{id}/resolve", s.handleResolveAlert).Methods(http.MethodPost)

	// Scheduler endpoints
	v1.HandleFunc("/scheduler/tick", s.handleTick).Methods(http.MethodPost)

	s.router = r
	s.server = &http.Server{
		Addr: addr,
		Handler: handlers.RecoveryHandler(
			handlers.RecoveryLogger(recoveryLogger{log: s.log}),
			handlers.PrintRecoveryStack(false),
		)(r),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("starting API server")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down API server")
	return s.server.Shutdown(ctx)
}

// handleHealth handles GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// handleReady handles GET /readyz
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	resp := ReadyResponse{Reasons: []string{}}

	if s.scheduler == nil {
		resp.Reasons = append(resp.Reasons, "scheduler not configured")
	} else {
		stats := s.scheduler.Stats()
		resp.SchedulerRunning = stats.Running
		resp.Ticks = stats.Ticks
		if stats.LastTick != nil {
			t := stats.LastTick.StartedAt
			resp.LastTick = &t
		}
		if !stats.Running {
			resp.Reasons = append(resp.Reasons, "scheduler not running")
		}
	}

	resp.Ready = len(resp.Reasons) == 0

	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, resp)
}

// handleRecordMetric handles POST /v1/metrics
func (s *Server) handleRecordMetric(w http.ResponseWriter, r *http.Request) {
	var req MetricRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Value == nil {
		respondError(w, http.StatusBadRequest, "value required")
		return
	}

	rec, monitored, err := s.evaluator.RecordMetricResult(req.DomainID, req.MetricName, *req.Value, req.Unit)
	if errors.Is(err, compliance.ErrInvalidMetricValue) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := MetricResponse{Monitored: monitored}
	if monitored {
		resp.Record = &rec
	}
	respondJSON(w, http.StatusAccepted, resp)
}

// handleCompliance handles GET /v1/compliance[?domain=]
func (s *Server) handleCompliance(w http.ResponseWriter, r *http.Request) {
	domain := r.URL.Query().Get("domain")
	respondJSON(w, http.StatusOK, ComplianceResponse{Domains: s.evaluator.ComplianceStatus(domain)})
}

// handleSummary handles GET /v1/compliance/summary
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.evaluator.Summary())
}

// handleValidate handles POST /v1/compliance/validate
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.evaluator.ValidateAll())
}

// handleAlerts handles GET /v1/alerts?limit=&status=
func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	limit := alert.DefaultLimit
	if v := query.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit: %q", v))
			return
		}
		limit = n
	}

	var status *threshold.Status
	if v := query.Get("status"); v != "" {
		st, err := threshold.ParseStatus(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		status = &st
	}

	events := s.evaluator.Alerts(limit, status)
	respondJSON(w, http.StatusOK, AlertsResponse{Alerts: events, Total: len(events)})
}

// handleMetricHistory handles GET /v1/metrics/{domain}/{metric}/history?hours=
func (s *Server) handleMetricHistory(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	hours := defaultHistoryHours
	if v := r.URL.Query().Get("hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxHistoryHours {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("hours must be between 1 and %d", maxHistoryHours))
			return
		}
		hours = n
	}

	samples := s.evaluator.MetricHistory(vars["domain"], vars["metric"], hours)
	respondJSON(w, http.StatusOK, HistoryResponse{
		DomainID:   vars["domain"],
		MetricName: vars["metric"],
		Hours:      hours,
		Samples:    samples,
	})
}

// handleCatalog handles GET /v1/catalog
func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, CatalogResponse{Thresholds: s.evaluator.Catalog().Specs()})
}

// handleDevice handles POST /v1/devices. An unknown device is registered;
// a known one records a heartbeat.
func (s *Server) handleDevice(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}

	var req DeviceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.DeviceID == "" {
		respondError(w, http.StatusBadRequest, "deviceId required")
		return
	}

	ctx := r.Context()
	now := s.now()

	existing, err := s.store.GetDevice(ctx, req.DeviceID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if existing == nil {
		d := storage.Device{
			ID:         req.DeviceID,
			Name:       req.Name,
			Type:       req.Type,
			Status:     storage.DeviceOnline,
			LastSeenAt: &now,
			CreatedAt:  now,
		}
		if err := s.store.UpsertDevice(ctx, d); err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusCreated, d)
		return
	}

	if err := s.store.Heartbeat(ctx, req.DeviceID, now); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	existing.Status = storage.DeviceOnline
	existing.LastSeenAt = &now
	respondJSON(w, http.StatusOK, existing)
}

// handleTelemetry handles POST /v1/telemetry
func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}

	var req TelemetryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.DeviceID == "" || req.DataType == "" {
		respondError(w, http.StatusBadRequest, "deviceId and dataType required")
		return
	}

	item := storage.WorkItem{
		ID:        uuid.NewString(),
		DeviceID:  req.DeviceID,
		DataType:  req.DataType,
		Payload:   req.Payload,
		SignalRef: req.SignalRef,
		CreatedAt: s.now(),
	}
	if err := s.store.InsertTelemetry(r.Context(), item); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusAccepted, TelemetryResponse{ID: item.ID})
}

// handleStoredAlerts handles GET /v1/stored-alerts
func (s *Server) handleStoredAlerts(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}

	query := r.URL.Query()
	filter := storage.AlertFilter{
		DeviceID: query.Get("deviceId"),
		Kind:     query.Get("kind"),
		State:    storage.AlertState(query.Get("state")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	alerts, err := s.store.ListAlerts(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to query alerts: %v", err))
		return
	}

	respondJSON(w, http.StatusOK, StoredAlertsResponse{Alerts: alerts, Total: len(alerts)})
}

// handleAcknowledgeAlert handles POST /v1/stored-alerts/{id}/acknowledge
func (s *Server) handleAcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}

	id := mux.Vars(r)["id"]
	err := s.store.AcknowledgeAlert(r.Context(), id, s.now())
	switch {
	case errors.Is(err, storage.ErrNotFound):
		respondError(w, http.StatusNotFound, fmt.Sprintf("alert not found: %s", id))
		return
	case errors.Is(err, storage.ErrInvalidTransition):
		respondError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleResolveAlert handles POST /v1/stored-alerts/{id}/resolve
func (s *Server) handleResolveAlert(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}

	id := mux.Vars(r)["id"]
	err := s.store.ResolveAlert(r.Context(), id, s.now())
	if errors.Is(err, storage.ErrNotFound) {
		respondError(w, http.StatusNotFound, fmt.Sprintf("alert not found: %s", id))
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleTick handles POST /v1/scheduler/tick
func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	if s.scheduler == nil {
		respondError(w, http.StatusServiceUnavailable, "scheduler not configured")
		return
	}

	respondJSON(w, http.StatusOK, s.scheduler.RunOnce(r.Context()))
}

func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.store == nil {
		respondError(w, http.StatusServiceUnavailable, "record store not configured")
		return false
	}
	return true
}

// Helper functions

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}
