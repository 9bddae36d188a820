package telemetry

import (
	"encoding/json"
	"log"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"x-garden/backend/internal/core/domain/grid"
	"x-garden/backend/internal/core/domain/service"
)

// TelemetryData запись об одной операции строительства или удаления
type TelemetryData struct {
	Timestamp int64        `json:"timestamp"`        // Время в миллисекундах
	Op        string       `json:"op"`               // build / remove
	Action    string       `json:"action"`           // Вид действия
	Cell      grid.CellRef `json:"cell"`             // Клетка
	Accepted  bool         `json:"accepted"`         // Принята ли операция
	Reason    string       `json:"reason,omitempty"` // Причина отказа
	Duration  float64      `json:"duration_us"`      // Время выполнения, мкс
	Marked    int          `json:"marked"`           // Сколько клеток затронули проверки
}

// Summary сводка по записям в буфере
type Summary struct {
	Entries      int
	Accepted     int
	Rejected     int
	MeanDuration time.Duration
	P95Duration  time.Duration
	MaxDuration  time.Duration
	MeanMarked   float64
	Counters     map[string]int
}

// TelemetryManager управляет сбором и выводом телеметрии построек
type TelemetryManager struct {
	enabled    bool
	data       []TelemetryData
	mutex      sync.RWMutex
	maxEntries int

	// Счетчики для статистики
	counters      map[string]int
	lastPrint     time.Time
	printInterval time.Duration
	logger        *log.Logger
}

// NewTelemetryManager создает новый менеджер телеметрии
func NewTelemetryManager() *TelemetryManager {
	return &TelemetryManager{
		enabled:       true,
		data:          make([]TelemetryData, 0),
		maxEntries:    500, // Храним последние 500 операций
		counters:      make(map[string]int),
		lastPrint:     time.Now(),
		printInterval: 30 * time.Second,
		logger:        log.Default(),
	}
}

// Configure задает интервал вывода сводки и логгер
func (tm *TelemetryManager) Configure(enabled bool, printInterval time.Duration, logger *log.Logger) {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()

	tm.enabled = enabled
	if printInterval > 0 {
		tm.printInterval = printInterval
	}
	if logger != nil {
		tm.logger = logger
	}
}

// RecordBuild записывает отчет об операции
func (tm *TelemetryManager) RecordBuild(report service.BuildReport) {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()

	if !tm.enabled {
		return
	}

	entry := TelemetryData{
		Timestamp: time.Now().UnixMilli(),
		Op:        report.Op,
		Action:    report.Action.String(),
		Cell:      report.Cell,
		Accepted:  report.Accepted,
		Duration:  float64(report.Duration.Microseconds()),
		Marked:    report.Marked,
	}
	if report.Reason != nil {
		entry.Reason = report.Reason.Error()
	}

	tm.data = append(tm.data, entry)

	// Ограничиваем размер буфера
	if len(tm.data) > tm.maxEntries {
		tm.data = tm.data[1:]
	}

	key := report.Op + "_" + entry.Action
	if !report.Accepted {
		key += "_rejected"
	}
	tm.counters[key]++
}

// Summary вычисляет сводку по буферу записей
func (tm *TelemetryManager) Summary() Summary {
	tm.mutex.RLock()
	defer tm.mutex.RUnlock()

	return tm.summaryLocked()
}

func (tm *TelemetryManager) summaryLocked() Summary {
	s := Summary{
		Entries:  len(tm.data),
		Counters: make(map[string]int, len(tm.counters)),
	}
	for k, v := range tm.counters {
		s.Counters[k] = v
	}
	if len(tm.data) == 0 {
		return s
	}

	durations := make([]float64, 0, len(tm.data))
	marked := make([]float64, 0, len(tm.data))
	for _, entry := range tm.data {
		if entry.Accepted {
			s.Accepted++
		} else {
			s.Rejected++
		}
		durations = append(durations, entry.Duration)
		marked = append(marked, float64(entry.Marked))
	}

	sort.Float64s(durations)
	s.MeanDuration = time.Duration(stat.Mean(durations, nil)) * time.Microsecond
	s.P95Duration = time.Duration(stat.Quantile(0.95, stat.Empirical, durations, nil)) * time.Microsecond
	s.MaxDuration = time.Duration(durations[len(durations)-1]) * time.Microsecond
	s.MeanMarked = stat.Mean(marked, nil)
	return s
}

// PrintSummary выводит сводку телеметрии не чаще printInterval
func (tm *TelemetryManager) PrintSummary() {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()

	if !tm.enabled {
		return
	}

	now := time.Now()
	if now.Sub(tm.lastPrint) < tm.printInterval {
		return
	}

	s := tm.summaryLocked()

	tm.logger.Println("🔬 [Telemetry] ===== ТЕЛЕМЕТРИЯ ПОСТРОЕК =====")
	tm.logger.Printf("📊 [Telemetry] Операций в буфере: %d (принято %d, отклонено %d)",
		s.Entries, s.Accepted, s.Rejected)
	tm.logger.Printf("⏱️  [Telemetry] Время операции: среднее %v, p95 %v, макс %v",
		s.MeanDuration, s.P95Duration, s.MaxDuration)
	tm.logger.Printf("🧮 [Telemetry] Клеток на операцию: %.1f", s.MeanMarked)

	keys := make([]string, 0, len(s.Counters))
	for key := range s.Counters {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		tm.logger.Printf("📈 [Telemetry] %s: %d", key, s.Counters[key])
	}

	// Сброс счетчиков
	tm.counters = make(map[string]int)
	tm.lastPrint = now

	tm.logger.Println("🔬 [Telemetry] ===================================")
}

// GetTelemetryJSON возвращает телеметрию в JSON формате
func (tm *TelemetryManager) GetTelemetryJSON() (string, error) {
	tm.mutex.RLock()
	defer tm.mutex.RUnlock()

	jsonData, err := json.MarshalIndent(tm.data, "", "  ")
	if err != nil {
		return "", err
	}

	return string(jsonData), nil
}

// SetEnabled включает/выключает телеметрию
func (tm *TelemetryManager) SetEnabled(enabled bool) {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()

	tm.enabled = enabled
	tm.logger.Printf("🔬 [Telemetry] Телеметрия %s", map[bool]string{true: "включена", false: "выключена"}[enabled])
}

// Clear очищает все данные телеметрии
func (tm *TelemetryManager) Clear() {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()

	tm.data = make([]TelemetryData, 0)
	tm.counters = make(map[string]int)
}

// Глобальный экземпляр телеметрии
var GlobalTelemetry = NewTelemetryManager()
