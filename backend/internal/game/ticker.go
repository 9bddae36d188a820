package game

import (
	"context"
	"log"
	"sync"
	"time"
)

// TickSystem интерфейс для всех игровых систем
type TickSystem interface {
	Update(deltaTime time.Duration) error
	GetName() string
	GetPriority() int // меньше = раньше
}

// SystemStats время выполнения одной системы
type SystemStats struct {
	LastTime    time.Duration `json:"last_time"`
	AverageTime time.Duration `json:"average_time"`
	MaxTime     time.Duration `json:"max_time"`
	Runs        uint64        `json:"runs"`
	Errors      uint64        `json:"errors"`
}

// observe добавляет замер в экспоненциальное среднее
func (s *SystemStats) observe(d time.Duration) {
	s.LastTime = d
	s.Runs++
	if d > s.MaxTime {
		s.MaxTime = d
	}
	if s.Runs == 1 {
		s.AverageTime = d
		return
	}
	s.AverageTime = (s.AverageTime*4 + d) / 5
}

// GameTicker основной менеджер игрового цикла. Все изменения мира
// выполняются системами на горутине цикла, по одной за раз.
type GameTicker struct {
	targetTPS    int
	tickDuration time.Duration
	slowTick     time.Duration
	logger       *log.Logger

	mu        sync.RWMutex
	running   bool
	cancel    context.CancelFunc
	done      chan struct{}
	tickCount uint64
	startTime time.Time
	lastTick  time.Time
	avgTick   time.Duration
	maxTick   time.Duration
	skipped   uint64

	systemsMu sync.RWMutex
	systems   []TickSystem
	timings   map[string]*SystemStats
}

// NewGameTicker создает новый игровой тикер
func NewGameTicker(targetTPS int, logger *log.Logger) *GameTicker {
	if targetTPS <= 0 {
		targetTPS = 20
	}
	if logger == nil {
		logger = log.Default()
	}

	tickDuration := time.Second / time.Duration(targetTPS)
	return &GameTicker{
		targetTPS:    targetTPS,
		tickDuration: tickDuration,
		slowTick:     tickDuration / 2,
		logger:       logger,
		timings:      make(map[string]*SystemStats),
	}
}

// Start запускает игровой цикл. После Stop цикл можно запустить заново.
func (gt *GameTicker) Start() error {
	gt.mu.Lock()
	defer gt.mu.Unlock()
	if gt.running {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	gt.running = true
	gt.cancel = cancel
	gt.done = done
	gt.startTime = time.Now()
	gt.lastTick = gt.startTime

	gt.logger.Printf("[GameTicker] Запуск игрового цикла: %d TPS (тик каждые %v)",
		gt.targetTPS, gt.tickDuration)

	go gt.loop(ctx, done)
	return nil
}

// Stop останавливает игровой цикл и ждет завершения текущего тика
func (gt *GameTicker) Stop() {
	gt.mu.Lock()
	if !gt.running {
		gt.mu.Unlock()
		return
	}
	gt.running = false
	cancel, done, ticks := gt.cancel, gt.done, gt.tickCount
	gt.cancel, gt.done = nil, nil
	gt.mu.Unlock()

	gt.logger.Printf("[GameTicker] Остановка игрового цикла (выполнено тиков: %d)", ticks)
	cancel()
	<-done
}

// RegisterSystem добавляет систему, сохраняя порядок по приоритету
func (gt *GameTicker) RegisterSystem(system TickSystem) {
	gt.systemsMu.Lock()
	defer gt.systemsMu.Unlock()

	gt.systems = append(gt.systems, system)
	for i := len(gt.systems) - 1; i > 0 && gt.systems[i].GetPriority() < gt.systems[i-1].GetPriority(); i-- {
		gt.systems[i], gt.systems[i-1] = gt.systems[i-1], gt.systems[i]
	}
	gt.timings[system.GetName()] = &SystemStats{}

	gt.logger.Printf("[GameTicker] Зарегистрирована система: %s (приоритет: %d)",
		system.GetName(), system.GetPriority())
}

func (gt *GameTicker) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(gt.tickDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			gt.tick(now)
		}
	}
}

func (gt *GameTicker) tick(now time.Time) {
	started := time.Now()

	gt.mu.Lock()
	delta := now.Sub(gt.lastTick)
	if delta > gt.tickDuration*2 {
		gt.skipped++
		gt.logger.Printf("[GameTicker] ПРЕДУПРЕЖДЕНИЕ: Большая задержка между тиками: %v (ожидалось: %v)",
			delta, gt.tickDuration)
	}
	gt.tickCount++
	gt.lastTick = now
	gt.mu.Unlock()

	gt.systemsMu.RLock()
	systems := append([]TickSystem(nil), gt.systems...)
	gt.systemsMu.RUnlock()

	for _, system := range systems {
		gt.runSystem(system, delta)
	}

	elapsed := time.Since(started)

	gt.mu.Lock()
	if elapsed > gt.maxTick {
		gt.maxTick = elapsed
	}
	if gt.avgTick == 0 {
		gt.avgTick = elapsed
	} else {
		gt.avgTick = (gt.avgTick*9 + elapsed) / 10
	}
	gt.mu.Unlock()

	if elapsed > gt.tickDuration {
		gt.logger.Printf("[GameTicker] Тик длиннее периода: %v (цель: %v)", elapsed, gt.tickDuration)
	} else if elapsed > gt.slowTick {
		gt.logger.Printf("[GameTicker] Медленный тик: %v (цель: %v)", elapsed, gt.tickDuration)
	}
}

// runSystem выполняет систему и записывает время. Паника системы не останавливает цикл.
func (gt *GameTicker) runSystem(system TickSystem, delta time.Duration) {
	name := system.GetName()
	started := time.Now()
	failed := false

	defer func() {
		if r := recover(); r != nil {
			gt.logger.Printf("[GameTicker] КРИТИЧЕСКАЯ ОШИБКА в системе %s: %v", name, r)
			failed = true
		}
		gt.systemsMu.Lock()
		if s, ok := gt.timings[name]; ok {
			s.observe(time.Since(started))
			if failed {
				s.Errors++
			}
		}
		gt.systemsMu.Unlock()
	}()

	if err := system.Update(delta); err != nil {
		gt.logger.Printf("[GameTicker] Ошибка в системе %s: %v", name, err)
		failed = true
	}
}

// GetStats возвращает статистику игрового цикла
func (gt *GameTicker) GetStats() map[string]interface{} {
	gt.mu.RLock()
	defer gt.mu.RUnlock()

	uptime := time.Duration(0)
	actualTPS := 0.0
	if !gt.startTime.IsZero() {
		uptime = time.Since(gt.startTime)
		if uptime > 0 {
			actualTPS = float64(gt.tickCount) / uptime.Seconds()
		}
	}

	gt.systemsMu.RLock()
	systemsCount := len(gt.systems)
	gt.systemsMu.RUnlock()

	return map[string]interface{}{
		"target_tps":        gt.targetTPS,
		"actual_tps":        actualTPS,
		"tick_count":        gt.tickCount,
		"uptime_seconds":    uptime.Seconds(),
		"average_tick_time": gt.avgTick,
		"max_observed_tick": gt.maxTick,
		"skipped_ticks":     gt.skipped,
		"is_running":        gt.running,
		"systems_count":     systemsCount,
	}
}

// GetTickCount возвращает текущее количество тиков
func (gt *GameTicker) GetTickCount() uint64 {
	gt.mu.RLock()
	defer gt.mu.RUnlock()
	return gt.tickCount
}

// GetSystemsStats возвращает копию метрик всех систем
func (gt *GameTicker) GetSystemsStats() map[string]SystemStats {
	gt.systemsMu.RLock()
	defer gt.systemsMu.RUnlock()

	out := make(map[string]SystemStats, len(gt.timings))
	for name, s := range gt.timings {
		out[name] = *s
	}
	return out
}
