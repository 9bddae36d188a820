package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"x-garden/backend/internal/adapter/in/grpcapi"
	"x-garden/backend/internal/adapter/in/ws"
	"x-garden/backend/internal/adapter/out/journal"
	"x-garden/backend/internal/adapter/out/sqlitestore"
	"x-garden/backend/internal/config"
	"x-garden/backend/internal/core/domain/grid"
	"x-garden/backend/internal/core/domain/service"
	"x-garden/backend/internal/core/port/out/storage"
	"x-garden/backend/internal/game"
	"x-garden/backend/internal/telemetry"
)

// hintBufferLimit - сколько подсказок копится между тиками
const hintBufferLimit = 1 << 14

// openJournal открывает хранилище построек согласно конфигурации
func openJournal(cfg config.StorageConfig, logger *log.Logger) (storage.BuildJournal, error) {
	switch cfg.Driver {
	case config.StorageJournal:
		return journal.Open(cfg.Path, logger)
	case config.StorageSQLite:
		return sqlitestore.Open(cfg.Path, logger)
	case config.StorageNone:
		return nil, nil
	}
	return nil, fmt.Errorf("неизвестный драйвер хранилища %q", cfg.Driver)
}

func main() {
	configPath := flag.String("config", "configs/server.yaml", "путь к файлу конфигурации")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*configPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Fatalf("Ошибка загрузки конфигурации: %v", err)
		}
		logger.Printf("Файл конфигурации %s не найден, используются значения по умолчанию", *configPath)
		cfg = config.Default()
	}
	config.Set(cfg)

	g, err := grid.New(cfg.Sphere.Radius, cfg.Sphere.Resolution)
	if err != nil {
		logger.Fatalf("Ошибка создания сетки: %v", err)
	}
	logger.Printf("Сетка создана: радиус=%.1f, разрешение=%d, клеток=%d", g.Radius(), g.Resolution(), g.Len())

	buildJournal, err := openJournal(cfg.Storage, logger)
	if err != nil {
		logger.Fatalf("Ошибка открытия хранилища: %v", err)
	}
	if buildJournal != nil {
		defer buildJournal.Close()
	}

	telemetry.GlobalTelemetry.Configure(cfg.Telemetry.Enabled, cfg.Telemetry.PrintInterval, logger)

	hints := game.NewHintBuffer(hintBufferLimit)
	worldService := service.NewWorldService(g, service.Options{
		Rules:    cfg.ServiceRules(),
		Journal:  buildJournal,
		Sink:     hints,
		Recorder: telemetry.GlobalTelemetry,
		Logger:   logger,
	})

	restoreCtx, cancelRestore := context.WithTimeout(ctx, 30*time.Second)
	restored, err := worldService.Restore(restoreCtx)
	cancelRestore()
	if err != nil {
		logger.Fatalf("Ошибка восстановления мира: %v", err)
	}
	logger.Printf("Восстановлено событий: %d", restored)
	// Подсказки восстановления клиентам не нужны: они получат мир в приветствии
	hints.Drain()

	// Игровой цикл: постройки выполняются только в нем
	gameTicker := game.NewGameTicker(cfg.Server.TickRate, logger)
	buildSystem := game.NewBuildSystem(worldService, cfg.Server.QueueSize, cfg.Server.MaxPerTick, logger)
	networkSync := game.NewNetworkSyncSystem(hints, logger)
	metrics := game.NewGameMetricsSystem(gameTicker, worldService, buildSystem, telemetry.GlobalTelemetry, logger)

	gameTicker.RegisterSystem(buildSystem)
	gameTicker.RegisterSystem(networkSync)
	gameTicker.RegisterSystem(metrics)

	wsAdapter, err := ws.NewWSAdapter(buildSystem, ws.Options{
		Radius:       cfg.Sphere.Radius,
		Resolution:   cfg.Sphere.Resolution,
		PingInterval: cfg.Server.PingInterval,
		Logger:       logger,
	})
	if err != nil {
		logger.Fatalf("Ошибка создания WebSocket адаптера: %v", err)
	}
	networkSync.SetBroadcaster(wsAdapter)

	if err := gameTicker.Start(); err != nil {
		logger.Fatalf("Ошибка запуска игрового цикла: %v", err)
	}

	monitor := game.NewMonitoringManager(gameTicker, buildSystem, logger)
	monitor.StartContinuousMonitoring(ctx, 10*time.Second)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsAdapter.HandleWS)
	monitor.RegisterHTTP(mux)
	mux.HandleFunc("/telemetry", func(w http.ResponseWriter, r *http.Request) {
		data, err := telemetry.GlobalTelemetry.GetTelemetryJSON()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(data))
	})
	httpServer := &http.Server{Addr: cfg.Server.HTTPAddr, Handler: mux}

	grpcServer := grpcapi.NewGRPCServer(grpcapi.NewServer(buildSystem, logger), logger)
	grpcListener, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Fatalf("Ошибка открытия gRPC порта: %v", err)
	}

	go func() {
		logger.Printf("gRPC сервер слушает %s", cfg.Server.GRPCAddr)
		if err := grpcServer.Serve(grpcListener); err != nil {
			logger.Printf("gRPC сервер остановлен: %v", err)
		}
	}()

	go func() {
		logger.Printf("HTTP сервер слушает %s", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Ошибка HTTP сервера: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Printf("Получен сигнал завершения, останавливаем сервер")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("Ошибка остановки HTTP сервера: %v", err)
	}
	grpcServer.GracefulStop()
	gameTicker.Stop()
	telemetry.GlobalTelemetry.PrintSummary()
}
