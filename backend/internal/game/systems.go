package game

import (
	"log"
	"sync"
	"time"

	"x-garden/backend/internal/core/port/out/render"
)

// HintBuffer копит подсказки клеток между тиками. Реализует render.HintSink.
type HintBuffer struct {
	mu      sync.Mutex
	pending []render.CellHint
	limit   int
	dropped uint64
}

// NewHintBuffer создает буфер подсказок
func NewHintBuffer(limit int) *HintBuffer {
	if limit <= 0 {
		limit = 4096
	}
	return &HintBuffer{limit: limit}
}

// PublishHints добавляет подсказки в буфер. Сверх лимита подсказки отбрасываются.
func (hb *HintBuffer) PublishHints(hints []render.CellHint) {
	hb.mu.Lock()
	defer hb.mu.Unlock()

	room := hb.limit - len(hb.pending)
	if room < len(hints) {
		if room < 0 {
			room = 0
		}
		hb.dropped += uint64(len(hints) - room)
		hints = hints[:room]
	}
	hb.pending = append(hb.pending, hints...)
}

// Drain забирает накопленные подсказки
func (hb *HintBuffer) Drain() []render.CellHint {
	hb.mu.Lock()
	defer hb.mu.Unlock()

	hints := hb.pending
	hb.pending = nil
	return hints
}

// Dropped возвращает количество отброшенных подсказок
func (hb *HintBuffer) Dropped() uint64 {
	hb.mu.Lock()
	defer hb.mu.Unlock()
	return hb.dropped
}

// HintBroadcaster интерфейс для отправки подсказок клиентам
type HintBroadcaster interface {
	BroadcastHints(hints []render.CellHint) error
}

// NetworkSyncSystem система синхронизации подсказок с клиентами
type NetworkSyncSystem struct {
	name          string
	priority      int
	buffer        *HintBuffer
	logger        *log.Logger
	lastBroadcast time.Time

	// Буфер для оптимизации отправки
	broadcastInterval time.Duration

	// WebSocket сервер для отправки обновлений
	broadcaster HintBroadcaster
}

// NewNetworkSyncSystem создает новую систему сетевой синхронизации
func NewNetworkSyncSystem(buffer *HintBuffer, logger *log.Logger) *NetworkSyncSystem {
	if logger == nil {
		logger = log.Default()
	}
	return &NetworkSyncSystem{
		name:              "NetworkSyncSystem",
		priority:          100, // Самый низкий приоритет - отправляем в конце тика
		buffer:            buffer,
		logger:            logger,
		broadcastInterval: 50 * time.Millisecond, // 20 FPS для клиентов
	}
}

// SetBroadcaster устанавливает ссылку на WebSocket сервер
func (nss *NetworkSyncSystem) SetBroadcaster(broadcaster HintBroadcaster) {
	nss.broadcaster = broadcaster
}

// Update отправляет накопленные подсказки клиентам
func (nss *NetworkSyncSystem) Update(deltaTime time.Duration) error {
	// Ограничиваем частоту отправки
	now := time.Now()
	if now.Sub(nss.lastBroadcast) < nss.broadcastInterval {
		return nil
	}
	nss.lastBroadcast = now

	hints := nss.buffer.Drain()
	if len(hints) == 0 || nss.broadcaster == nil {
		return nil
	}

	if err := nss.broadcaster.BroadcastHints(hints); err != nil {
		nss.logger.Printf("[NetworkSyncSystem] Ошибка отправки подсказок: %v", err)
	}
	return nil
}

// GetName возвращает имя системы
func (nss *NetworkSyncSystem) GetName() string {
	return nss.name
}

// GetPriority возвращает приоритет системы
func (nss *NetworkSyncSystem) GetPriority() int {
	return nss.priority
}

// StatsSource источник статистики для логирования метрик
type StatsSource interface {
	Stats() map[string]interface{}
}

// SummaryPrinter печатает сводку телеметрии
type SummaryPrinter interface {
	PrintSummary()
}

// GameMetricsSystem система сбора игровых метрик
type GameMetricsSystem struct {
	name       string
	priority   int
	gameTicker *GameTicker
	world      StatsSource
	builds     *BuildSystem
	telemetry  SummaryPrinter
	logger     *log.Logger

	// Счетчики для метрик
	lastMetricsLog  time.Time
	metricsInterval time.Duration
}

// NewGameMetricsSystem создает новую систему сбора метрик
func NewGameMetricsSystem(gameTicker *GameTicker, world StatsSource, builds *BuildSystem, telemetry SummaryPrinter, logger *log.Logger) *GameMetricsSystem {
	if logger == nil {
		logger = log.Default()
	}
	return &GameMetricsSystem{
		name:            "GameMetricsSystem",
		priority:        200, // Очень низкий приоритет - метрики в самом конце
		gameTicker:      gameTicker,
		world:           world,
		builds:          builds,
		telemetry:       telemetry,
		logger:          logger,
		metricsInterval: 30 * time.Second, // Логируем метрики каждые 30 секунд
	}
}

// Update собирает и логирует игровые метрики
func (gms *GameMetricsSystem) Update(deltaTime time.Duration) error {
	if gms.telemetry != nil {
		gms.telemetry.PrintSummary()
	}

	now := time.Now()
	if now.Sub(gms.lastMetricsLog) < gms.metricsInterval {
		return nil
	}
	gms.lastMetricsLog = now

	stats := gms.gameTicker.GetStats()
	world := gms.world.Stats()

	gms.logger.Printf("[GameMetrics] TPS: %.1f/%d, Тиков: %d, Время тика: %v",
		stats["actual_tps"], stats["target_tps"], stats["tick_count"], stats["average_tick_time"])
	gms.logger.Printf("[GameMetrics] Постройки: прудов %v, деревьев %v, цветов %v, кустов %v",
		world["pits"], world["trees"], world["flowers"], world["bushes"])

	if gms.builds != nil {
		b := gms.builds.GetStats()
		gms.logger.Printf("[GameMetrics] Очередь построек: %v, выполнено %v, отклонено %v",
			b["queue_length"], b["processed"], b["rejected"])
	}

	// Проверяем производительность
	if actualTPS := stats["actual_tps"].(float64); actualTPS < float64(stats["target_tps"].(int))*0.9 {
		gms.logger.Printf("[GameMetrics] ПРЕДУПРЕЖДЕНИЕ: TPS снижен до %.1f", actualTPS)
	}

	return nil
}

// GetName возвращает имя системы
func (gms *GameMetricsSystem) GetName() string {
	return gms.name
}

// GetPriority возвращает приоритет системы
func (gms *GameMetricsSystem) GetPriority() int {
	return gms.priority
}
