package game

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowSystem имитирует тяжелую систему
type slowSystem struct {
	delay time.Duration
}

func (s *slowSystem) Update(time.Duration) error {
	time.Sleep(s.delay)
	return nil
}

func (s *slowSystem) GetName() string  { return "SlowSystem" }
func (s *slowSystem) GetPriority() int { return 50 }

func TestMonitoring_HealthyWhenIdle(t *testing.T) {
	ticker := NewGameTicker(20, testLogger())
	bs := NewBuildSystem(newTestWorld(t, nil), 5, 1, testLogger())
	mm := NewMonitoringManager(ticker, bs, testLogger())

	health := mm.CheckServerHealth()
	assert.Equal(t, HealthHealthy, health.Status)
	assert.Empty(t, health.Issues)
	assert.Equal(t, 5, health.QueueCap)
	assert.Empty(t, mm.FindBottlenecks())
}

func TestMonitoring_QueueSaturation(t *testing.T) {
	ticker := NewGameTicker(20, testLogger())
	bs := NewBuildSystem(newTestWorld(t, nil), 5, 1, testLogger())
	mm := NewMonitoringManager(ticker, bs, testLogger())

	for i := 0; i < 4; i++ {
		bs.queue <- &BuildRequest{Op: opBuild}
	}

	health := mm.CheckServerHealth()
	assert.Equal(t, HealthCritical, health.Status)
	assert.Equal(t, 4, health.QueueLength)
	require.Len(t, health.Issues, 1)
}

func TestMonitoring_BottleneckAlert(t *testing.T) {
	ticker := NewGameTicker(20, testLogger()) // тик 50мс, порог 12.5мс
	slow := &slowSystem{delay: 30 * time.Millisecond}
	ticker.RegisterSystem(slow)
	ticker.runSystem(slow, time.Millisecond)

	mm := NewMonitoringManager(ticker, nil, testLogger())

	bottlenecks := mm.FindBottlenecks()
	require.Len(t, bottlenecks, 1)
	assert.Equal(t, "SlowSystem", bottlenecks[0].System)
	assert.Equal(t, HealthCritical, bottlenecks[0].Severity)
	assert.Greater(t, bottlenecks[0].PercentOfTick, 50.0)

	mm.checkAndAlert()
	alerts := mm.Alerts()
	require.NotEmpty(t, alerts)
	assert.Equal(t, "SlowSystem", alerts[len(alerts)-1].System)
}

func TestMonitoring_AlertsAreBounded(t *testing.T) {
	mm := NewMonitoringManager(NewGameTicker(20, testLogger()), nil, testLogger())
	for i := 0; i < maxAlerts+20; i++ {
		mm.addAlert(PerformanceAlert{Level: HealthWarning, Value: time.Duration(i).String()})
	}

	alerts := mm.Alerts()
	require.Len(t, alerts, maxAlerts)
	assert.Equal(t, time.Duration(20).String(), alerts[0].Value)
}

func TestMonitoring_HTTP(t *testing.T) {
	ticker := NewGameTicker(20, testLogger())
	bs := NewBuildSystem(newTestWorld(t, nil), 5, 1, testLogger())
	mux := http.NewServeMux()
	NewMonitoringManager(ticker, bs, testLogger()).RegisterHTTP(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var health HealthReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, HealthHealthy, health.Status)

	for i := 0; i < 5; i++ {
		bs.queue <- &BuildRequest{Op: opBuild}
	}
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var stats map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Contains(t, stats, "systems")
	assert.Contains(t, stats, "builds")
}
