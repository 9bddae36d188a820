package game

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Уровни состояния сервера
const (
	HealthHealthy  = "healthy"
	HealthWarning  = "warning"
	HealthDegraded = "degraded"
	HealthCritical = "critical"
)

const maxAlerts = 100

var healthRank = map[string]int{
	HealthHealthy:  0,
	HealthWarning:  1,
	HealthDegraded: 2,
	HealthCritical: 3,
}

// HealthReport состояние игрового цикла и очереди построек
type HealthReport struct {
	Status      string   `json:"status"`
	Issues      []string `json:"issues"`
	ActualTPS   float64  `json:"actual_tps"`
	TargetTPS   int      `json:"target_tps"`
	AvgTickMs   float64  `json:"avg_tick_ms"`
	QueueLength int      `json:"queue_length"`
	QueueCap    int      `json:"queue_capacity"`
}

func (h *HealthReport) raise(status, issue string) {
	if healthRank[status] > healthRank[h.Status] {
		h.Status = status
	}
	h.Issues = append(h.Issues, issue)
}

// PerformanceAlert представляет предупреждение о производительности
type PerformanceAlert struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`  // "warning", "critical"
	System    string    `json:"system"` // название системы
	Message   string    `json:"message"`
	Value     string    `json:"value,omitempty"`
	Threshold string    `json:"threshold,omitempty"`
}

// BottleneckReport система, занимающая заметную долю тика
type BottleneckReport struct {
	System        string        `json:"system"`
	Severity      string        `json:"severity"`
	AverageTime   time.Duration `json:"average_time"`
	MaxTime       time.Duration `json:"max_time"`
	PercentOfTick float64       `json:"percent_of_tick"`
}

// MonitoringManager следит за игровым циклом и очередью построек
type MonitoringManager struct {
	gameTicker *GameTicker
	builds     *BuildSystem
	logger     *log.Logger

	mu     sync.Mutex
	alerts []PerformanceAlert
}

// NewMonitoringManager создает новый менеджер мониторинга
func NewMonitoringManager(gameTicker *GameTicker, builds *BuildSystem, logger *log.Logger) *MonitoringManager {
	if logger == nil {
		logger = log.Default()
	}
	return &MonitoringManager{
		gameTicker: gameTicker,
		builds:     builds,
		logger:     logger,
	}
}

// CheckServerHealth проверяет TPS, время тика и заполненность очереди
func (mm *MonitoringManager) CheckServerHealth() HealthReport {
	stats := mm.gameTicker.GetStats()

	report := HealthReport{
		Status:    HealthHealthy,
		Issues:    []string{},
		ActualTPS: stats["actual_tps"].(float64),
		TargetTPS: stats["target_tps"].(int),
	}
	avgTickTime := stats["average_tick_time"].(time.Duration)
	report.AvgTickMs = float64(avgTickTime) / float64(time.Millisecond)

	targetTPS := float64(report.TargetTPS)
	// TPS считаем только у запущенного цикла после первой секунды работы
	running := stats["is_running"].(bool)
	if running && stats["uptime_seconds"].(float64) > 1 && report.ActualTPS < targetTPS*0.9 {
		report.raise(HealthDegraded, fmt.Sprintf("TPS снижен: %.1f/%.0f", report.ActualTPS, targetTPS))
	}

	targetTickTime := time.Second / time.Duration(report.TargetTPS)
	if avgTickTime > targetTickTime/2 {
		report.raise(HealthWarning, fmt.Sprintf("Медленные тики: %v (норма: <%v)", avgTickTime, targetTickTime/2))
	}

	if skipped := stats["skipped_ticks"].(uint64); skipped > 0 {
		report.raise(HealthCritical, fmt.Sprintf("Пропущено тиков: %d", skipped))
	}

	if mm.builds != nil {
		report.QueueLength = mm.builds.QueueLength()
		report.QueueCap = mm.builds.QueueCapacity()
		if report.QueueCap > 0 && report.QueueLength*5 >= report.QueueCap*4 {
			report.raise(HealthCritical, fmt.Sprintf("Очередь построек почти заполнена: %d/%d", report.QueueLength, report.QueueCap))
		}
	}

	return report
}

// FindBottlenecks находит системы, занимающие больше четверти тика
func (mm *MonitoringManager) FindBottlenecks() []BottleneckReport {
	stats := mm.gameTicker.GetStats()
	systemsStats := mm.gameTicker.GetSystemsStats()

	targetTickTime := time.Second / time.Duration(stats["target_tps"].(int))
	warningThreshold := targetTickTime / 4

	bottlenecks := []BottleneckReport{}
	for systemName, systemStats := range systemsStats {
		avgTime := systemStats.AverageTime

		severity := ""
		switch {
		case avgTime > warningThreshold*2:
			severity = HealthCritical
		case avgTime > warningThreshold:
			severity = HealthWarning
		default:
			continue
		}

		bottlenecks = append(bottlenecks, BottleneckReport{
			System:        systemName,
			Severity:      severity,
			AverageTime:   avgTime,
			MaxTime:       systemStats.MaxTime,
			PercentOfTick: float64(avgTime) / float64(targetTickTime) * 100,
		})
	}

	sort.Slice(bottlenecks, func(i, j int) bool {
		return bottlenecks[i].AverageTime > bottlenecks[j].AverageTime
	})
	return bottlenecks
}

// StartContinuousMonitoring периодически проверяет состояние до отмены контекста
func (mm *MonitoringManager) StartContinuousMonitoring(ctx context.Context, interval time.Duration) {
	mm.logger.Printf("[Monitor] Запуск непрерывного мониторинга с интервалом %v", interval)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				mm.checkAndAlert()
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (mm *MonitoringManager) checkAndAlert() {
	health := mm.CheckServerHealth()
	if health.Status != HealthHealthy {
		alert := PerformanceAlert{
			Timestamp: time.Now(),
			Level:     health.Status,
			System:    "GameServer",
			Message:   fmt.Sprintf("Проблемы сервера: %v", health.Issues),
		}
		mm.addAlert(alert)
		mm.logger.Printf("[Monitor] АЛЕРТ [%s]: %s", alert.Level, alert.Message)
	}

	for _, bottleneck := range mm.FindBottlenecks() {
		if bottleneck.Severity != HealthCritical {
			continue
		}
		alert := PerformanceAlert{
			Timestamp: time.Now(),
			Level:     HealthCritical,
			System:    bottleneck.System,
			Message:   "Критическая медлительность системы",
			Value:     bottleneck.AverageTime.String(),
			Threshold: fmt.Sprintf("%.1f%% от тика", bottleneck.PercentOfTick),
		}
		mm.addAlert(alert)
		mm.logger.Printf("[Monitor] КРИТИЧЕСКИЙ АЛЕРТ: Система %s занимает %.1f%% времени тика (%v)",
			bottleneck.System, bottleneck.PercentOfTick, bottleneck.AverageTime)
	}
}

// Alerts возвращает копию последних предупреждений
func (mm *MonitoringManager) Alerts() []PerformanceAlert {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	return append([]PerformanceAlert{}, mm.alerts...)
}

func (mm *MonitoringManager) addAlert(alert PerformanceAlert) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	mm.alerts = append(mm.alerts, alert)
	if len(mm.alerts) > maxAlerts {
		mm.alerts = mm.alerts[len(mm.alerts)-maxAlerts:]
	}
}

// RegisterHTTP добавляет эндпоинты мониторинга в mux
func (mm *MonitoringManager) RegisterHTTP(mux *http.ServeMux) {
	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		stats := mm.gameTicker.GetStats()
		stats["systems"] = mm.gameTicker.GetSystemsStats()
		if mm.builds != nil {
			stats["builds"] = mm.builds.GetStats()
		}
		writeJSON(w, http.StatusOK, stats)
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		health := mm.CheckServerHealth()
		code := http.StatusOK
		if health.Status != HealthHealthy {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, health)
	})

	mux.HandleFunc("/bottlenecks", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, mm.FindBottlenecks())
	})

	mux.HandleFunc("/alerts", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, mm.Alerts())
	})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
