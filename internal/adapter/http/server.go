package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Arham-Git047/Project-Sentinel/internal/domain"
	"github.com/Arham-Git047/Project-Sentinel/internal/pipeline"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Querier is the read side of the engine exposed over HTTP.
type Querier interface {
	ReadinessChecker
	ActiveAlerts() []*domain.Alert
	Alert(ctx context.Context, id string) (*domain.Alert, bool)
	Dismiss(ctx context.Context, id string) bool
	Stats() pipeline.Stats
	Models() pipeline.ModelsReport
	Ingest(ctx context.Context, raw domain.RawEvent) (domain.Reading, error)
	RecentReadings(limit int) ([]domain.Reading, int)
	LastDetection() (pipeline.Detection, bool)
}

const (
	defaultReadingsLimit = 50
	maxReadingsLimit     = 1000
	maxReadingBody       = 64 << 10
)

// Server exposes the alert query API alongside health, readiness and
// metrics endpoints.
type Server struct {
	httpServer *http.Server
	engine     Querier
	logger     *slog.Logger
}

// NewServer creates an HTTP server. stream, when non-nil, is mounted at /ws.
func NewServer(addr string, engine Querier, stream http.HandlerFunc, logger *slog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		engine: engine,
		logger: logger,
	}

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", handleReady(engine))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/alerts", s.handleListAlerts)
		r.Get("/alerts/{id}", s.handleGetAlert)
		r.Delete("/alerts/{id}", s.handleDismissAlert)
		r.Get("/stats", s.handleStats)
		r.Get("/models", s.handleModels)
		r.Post("/readings", s.handleIngestReading)
		r.Get("/readings", s.handleRecentReadings)
		r.Get("/detections/last", s.handleLastDetection)
	})
	if stream != nil {
		r.Get("/ws", stream)
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// alertList is the body of GET /api/v1/alerts.
type alertList struct {
	Alerts []*domain.Alert `json:"alerts"`
	Count  int             `json:"count"`
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	alerts := s.engine.ActiveAlerts()

	if zone := r.URL.Query().Get("zone"); zone != "" {
		canonical, ok := domain.CanonicalZone(zone)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown zone "+zone)
			return
		}
		alerts = filter(alerts, func(a *domain.Alert) bool { return a.Zone == canonical })
	}
	if sev := r.URL.Query().Get("min_severity"); sev != "" {
		floor := domain.Severity(sev)
		if floor.Rank() == 0 {
			writeError(w, http.StatusBadRequest, "unknown severity "+sev)
			return
		}
		alerts = filter(alerts, func(a *domain.Alert) bool { return a.Severity.Rank() >= floor.Rank() })
	}

	if alerts == nil {
		alerts = []*domain.Alert{}
	}
	writeJSON(w, http.StatusOK, alertList{Alerts: alerts, Count: len(alerts)})
}

func (s *Server) handleGetAlert(w http.ResponseWriter, r *http.Request) {
	a, ok := s.engine.Alert(r.Context(), chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "alert not found")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleDismissAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.engine.Dismiss(r.Context(), id) {
		writeError(w, http.StatusNotFound, "alert not found")
		return
	}
	s.logger.Info("alert dismissed via api", "alert_id", id, "request_id", middleware.GetReqID(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Stats())
}

func (s *Server) handleModels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Models())
}

// ingestResponse is the body of POST /api/v1/readings.
type ingestResponse struct {
	Received bool           `json:"received"`
	Reading  domain.Reading `json:"reading"`
}

func (s *Server) handleIngestReading(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxReadingBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "reading body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}

	reading, err := s.engine.Ingest(r.Context(), domain.RawEvent{Topic: "http", Value: body})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidReading) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("ingest reading failed", "error", err, "request_id", middleware.GetReqID(r.Context()))
		writeError(w, http.StatusInternalServerError, "ingest failed")
		return
	}
	writeJSON(w, http.StatusAccepted, ingestResponse{Received: true, Reading: reading})
}

// readingList is the body of GET /api/v1/readings.
type readingList struct {
	TotalPoints int              `json:"total_points"`
	Readings    []domain.Reading `json:"readings"`
}

func (s *Server) handleRecentReadings(w http.ResponseWriter, r *http.Request) {
	limit := defaultReadingsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxReadingsLimit {
			writeError(w, http.StatusBadRequest, "limit must be an integer in [1, "+strconv.Itoa(maxReadingsLimit)+"]")
			return
		}
		limit = n
	}

	readings, total := s.engine.RecentReadings(limit)
	if readings == nil {
		readings = []domain.Reading{}
	}
	writeJSON(w, http.StatusOK, readingList{TotalPoints: total, Readings: readings})
}

func (s *Server) handleLastDetection(w http.ResponseWriter, _ *http.Request) {
	d, ok := s.engine.LastDetection()
	if !ok {
		writeError(w, http.StatusNotFound, "no evaluation cycle completed yet")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func filter(alerts []*domain.Alert, keep func(*domain.Alert) bool) []*domain.Alert {
	var out []*domain.Alert
	for _, a := range alerts {
		if keep(a) {
			out = append(out, a)
		}
	}
	return out
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
