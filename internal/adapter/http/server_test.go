package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	httpadapter "github.com/Arham-Git047/Project-Sentinel/internal/adapter/http"
	"github.com/Arham-Git047/Project-Sentinel/internal/domain"
	"github.com/Arham-Git047/Project-Sentinel/internal/model"
	"github.com/Arham-Git047/Project-Sentinel/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockEngine struct {
	readyErr  error
	alerts    []*domain.Alert
	dismissed []string
	readings  []domain.Reading
	ingested  []string
	ingestErr error
	detection *pipeline.Detection
}

func (m *mockEngine) CheckReadiness(_ context.Context) error { return m.readyErr }

func (m *mockEngine) ActiveAlerts() []*domain.Alert { return m.alerts }

func (m *mockEngine) Alert(_ context.Context, id string) (*domain.Alert, bool) {
	for _, a := range m.alerts {
		if a.ID == id {
			return a, true
		}
	}
	return nil, false
}

func (m *mockEngine) Dismiss(ctx context.Context, id string) bool {
	if _, ok := m.Alert(ctx, id); !ok {
		return false
	}
	m.dismissed = append(m.dismissed, id)
	return true
}

func (m *mockEngine) Stats() pipeline.Stats {
	return pipeline.Stats{TotalPointsSeen: 120, AnomaliesDetected: 3, ActiveAlertCount: len(m.alerts), AlertsGenerated: 4}
}

func (m *mockEngine) Models() pipeline.ModelsReport {
	return pipeline.ModelsReport{
		Models:        []model.Info{{Name: model.IsolationForestName, Weight: 0.25}, {Name: model.LOFName, Weight: 0.2}},
		Quorum:        0.6,
		RequiredVotes: 3,
	}
}

func (m *mockEngine) Ingest(_ context.Context, raw domain.RawEvent) (domain.Reading, error) {
	if m.ingestErr != nil {
		return domain.Reading{}, m.ingestErr
	}
	m.ingested = append(m.ingested, string(raw.Value))
	return domain.Reading{SourceType: domain.SourceWater, Zone: "Bandra", Values: []float64{7.2}}, nil
}

func (m *mockEngine) RecentReadings(limit int) ([]domain.Reading, int) {
	n := min(limit, len(m.readings))
	return m.readings[len(m.readings)-n:], len(m.readings)
}

func (m *mockEngine) LastDetection() (pipeline.Detection, bool) {
	if m.detection == nil {
		return pipeline.Detection{}, false
	}
	return *m.detection, true
}

func testAlerts() []*domain.Alert {
	at := time.Date(2025, 3, 14, 6, 16, 0, 0, time.UTC)
	return []*domain.Alert{
		{ID: "a-1", Zone: "Bandra", ThreatType: domain.ThreatWaterborne, Severity: domain.SeverityHigh, Confidence: 75, State: domain.StateOpen, OpenedAt: at, LastUpdatedAt: at},
		{ID: "a-2", Zone: "Colaba", ThreatType: domain.ThreatAirborne, Severity: domain.SeverityMedium, Confidence: 55, State: domain.StateOpen, OpenedAt: at, LastUpdatedAt: at},
	}
}

func newTestServer(engine *mockEngine) *httpadapter.Server {
	return httpadapter.NewServer(":0", engine, nil, slog.Default())
}

func do(t *testing.T, srv *httpadapter.Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	rec := do(t, newTestServer(&mockEngine{}), http.MethodGet, "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := do(t, newTestServer(&mockEngine{}), http.MethodGet, "/readyz")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := do(t, newTestServer(&mockEngine{readyErr: fmt.Errorf("not ready yet")}), http.MethodGet, "/readyz")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "not ready yet", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	rec := do(t, newTestServer(&mockEngine{}), http.MethodGet, "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestListAlerts(t *testing.T) {
	srv := newTestServer(&mockEngine{alerts: testAlerts()})

	tests := []struct {
		name    string
		path    string
		status  int
		wantIDs []string
	}{
		{"all", "/api/v1/alerts", http.StatusOK, []string{"a-1", "a-2"}},
		{"by zone", "/api/v1/alerts?zone=bandra", http.StatusOK, []string{"a-1"}},
		{"by severity", "/api/v1/alerts?min_severity=high", http.StatusOK, []string{"a-1"}},
		{"no match", "/api/v1/alerts?zone=Dadar", http.StatusOK, []string{}},
		{"unknown zone", "/api/v1/alerts?zone=Atlantis", http.StatusBadRequest, nil},
		{"unknown severity", "/api/v1/alerts?min_severity=extreme", http.StatusBadRequest, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodGet, tt.path)
			require.Equal(t, tt.status, rec.Code)
			if tt.wantIDs == nil {
				return
			}

			var body struct {
				Alerts []domain.Alert `json:"alerts"`
				Count  int            `json:"count"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			ids := []string{}
			for _, a := range body.Alerts {
				ids = append(ids, a.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, len(tt.wantIDs), body.Count)
		})
	}
}

func TestGetAlert(t *testing.T) {
	srv := newTestServer(&mockEngine{alerts: testAlerts()})

	rec := do(t, srv, http.MethodGet, "/api/v1/alerts/a-2")
	require.Equal(t, http.StatusOK, rec.Code)

	var a domain.Alert
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &a))
	assert.Equal(t, "Colaba", a.Zone)
	assert.Equal(t, domain.ThreatAirborne, a.ThreatType)

	rec = do(t, srv, http.MethodGet, "/api/v1/alerts/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDismissAlert(t *testing.T) {
	engine := &mockEngine{alerts: testAlerts()}
	srv := newTestServer(engine)

	rec := do(t, srv, http.MethodDelete, "/api/v1/alerts/a-1")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"a-1"}, engine.dismissed)

	rec = do(t, srv, http.MethodDelete, "/api/v1/alerts/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatsAndModels(t *testing.T) {
	srv := newTestServer(&mockEngine{alerts: testAlerts()})

	rec := do(t, srv, http.MethodGet, "/api/v1/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.InDelta(t, 120, stats["total_points_seen"], 0)
	assert.InDelta(t, 2, stats["active_alert_count"], 0)

	rec = do(t, srv, http.MethodGet, "/api/v1/models")
	require.Equal(t, http.StatusOK, rec.Code)
	var models pipeline.ModelsReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &models))
	assert.Len(t, models.Models, 2)
	assert.Equal(t, 3, models.RequiredVotes)
}

func TestStreamRouteMountedWhenProvided(t *testing.T) {
	called := false
	srv := httpadapter.NewServer(":0", &mockEngine{}, func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusSwitchingProtocols)
	}, slog.Default())

	do(t, srv, http.MethodGet, "/ws")
	assert.True(t, called)

	rec := do(t, newTestServer(&mockEngine{}), http.MethodGet, "/ws")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIngestReading(t *testing.T) {
	engine := &mockEngine{}
	srv := newTestServer(engine)
	payload := `{"source_type":"water","zone":"Bandra","value":7.2}`

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/readings", strings.NewReader(payload)))
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{payload}, engine.ingested)

	var body struct {
		Received bool           `json:"received"`
		Reading  domain.Reading `json:"reading"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Received)
	assert.Equal(t, "Bandra", body.Reading.Zone)
}

func TestIngestReadingErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		body   string
		status int
	}{
		{"invalid reading", &domain.InputError{Field: "zone", Reason: "unknown zone"}, `{}`, http.StatusBadRequest},
		{"engine failure", errors.New("boom"), `{}`, http.StatusInternalServerError},
		{"oversized body", nil, strings.Repeat("x", 65<<10), http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(&mockEngine{ingestErr: tt.err})
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/readings", strings.NewReader(tt.body)))
			assert.Equal(t, tt.status, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestRecentReadings(t *testing.T) {
	at := time.Date(2025, 3, 14, 6, 0, 0, 0, time.UTC)
	var readings []domain.Reading
	for i := 0; i < 60; i++ {
		readings = append(readings, domain.Reading{
			SourceType: domain.SourceAir, Zone: "Dadar",
			Timestamp: at.Add(time.Duration(i) * time.Minute), Values: []float64{float64(40 + i)},
		})
	}
	srv := newTestServer(&mockEngine{readings: readings})

	tests := []struct {
		name      string
		path      string
		status    int
		wantCount int
		wantFirst float64
	}{
		{"default limit", "/api/v1/readings", http.StatusOK, 50, 50},
		{"explicit limit", "/api/v1/readings?limit=3", http.StatusOK, 3, 97},
		{"limit above total", "/api/v1/readings?limit=1000", http.StatusOK, 60, 40},
		{"zero limit", "/api/v1/readings?limit=0", http.StatusBadRequest, 0, 0},
		{"non-numeric limit", "/api/v1/readings?limit=all", http.StatusBadRequest, 0, 0},
		{"limit too large", "/api/v1/readings?limit=1001", http.StatusBadRequest, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodGet, tt.path)
			require.Equal(t, tt.status, rec.Code)
			if tt.status != http.StatusOK {
				return
			}

			var body struct {
				TotalPoints int              `json:"total_points"`
				Readings    []domain.Reading `json:"readings"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, 60, body.TotalPoints)
			require.Len(t, body.Readings, tt.wantCount)
			assert.InDelta(t, tt.wantFirst, body.Readings[0].Primary(), 0)
		})
	}
}

func TestRecentReadingsEmpty(t *testing.T) {
	rec := do(t, newTestServer(&mockEngine{}), http.MethodGet, "/api/v1/readings")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"total_points":0,"readings":[]}`, rec.Body.String())
}

func TestLastDetection(t *testing.T) {
	rec := do(t, newTestServer(&mockEngine{}), http.MethodGet, "/api/v1/detections/last")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	at := time.Date(2025, 3, 14, 6, 16, 0, 0, time.UTC)
	det := &pipeline.Detection{
		At:     at,
		Window: domain.WindowEnding(at, time.Minute),
		Results: []domain.ConsensusResult{
			{Zone: "Bandra", Source: domain.SourceWater, Timestamp: at, VotesFor: 4, IsConfirmed: true, Confidence: 75, RequiredVotes: 3, TotalModels: 5},
		},
		Summaries: []domain.ZoneThreatSummary{},
		Events:    1,
	}
	rec = do(t, newTestServer(&mockEngine{detection: det}), http.MethodGet, "/api/v1/detections/last")
	require.Equal(t, http.StatusOK, rec.Code)

	var got pipeline.Detection
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Results, 1)
	assert.True(t, got.Results[0].IsConfirmed)
	assert.Equal(t, 4, got.Results[0].VotesFor)
	assert.Equal(t, 1, got.Events)
	assert.True(t, at.Equal(got.At))
}
