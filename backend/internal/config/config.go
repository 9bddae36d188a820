package config

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"x-garden/backend/internal/core/domain/service"
)

// ServerConfig содержит сетевые настройки
type ServerConfig struct {
	HTTPAddr     string        `yaml:"http_addr"`
	GRPCAddr     string        `yaml:"grpc_addr"`
	TickRate     int           `yaml:"tick_rate"`     // Тиков в секунду
	QueueSize    int           `yaml:"queue_size"`    // Размер очереди построек
	MaxPerTick   int           `yaml:"max_per_tick"`  // Построек за один тик
	PingInterval time.Duration `yaml:"ping_interval"` // Пинг websocket клиентов
}

// SphereConfig содержит параметры сферы и сетки
type SphereConfig struct {
	Radius     float64 `yaml:"radius"`
	Resolution int     `yaml:"resolution"`
}

// RulesConfig содержит радиусы игровых правил
type RulesConfig struct {
	FlowerRadius     float64 `yaml:"flower_radius"`
	BushRadius       float64 `yaml:"bush_radius"`
	WaterRadius      float64 `yaml:"water_radius"`
	TreeSampleRadius float64 `yaml:"tree_sample_radius"`
	MaxPitAngle      float64 `yaml:"max_pit_angle"`
}

// Драйверы хранилища построек
const (
	StorageJournal = "journal"
	StorageSQLite  = "sqlite"
	StorageNone    = "none"
)

// StorageConfig содержит настройки сохранения мира
type StorageConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

// TelemetryConfig содержит настройки телеметрии
type TelemetryConfig struct {
	Enabled       bool          `yaml:"enabled"`
	PrintInterval time.Duration `yaml:"print_interval"`
}

// Config объединяет все конфигурации
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Sphere    SphereConfig    `yaml:"sphere"`
	Rules     RulesConfig     `yaml:"rules"`
	Storage   StorageConfig   `yaml:"storage"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

var (
	current     Config
	configMutex sync.RWMutex
)

// Инициализация конфигурации по умолчанию
func init() {
	current = Default()
}

// Default возвращает конфигурацию по умолчанию (параметры оригинальной игры)
func Default() Config {
	rules := service.DefaultRules()
	return Config{
		Server: ServerConfig{
			HTTPAddr:     ":8080",
			GRPCAddr:     ":9090",
			TickRate:     20,
			QueueSize:    256,
			MaxPerTick:   32,
			PingInterval: 30 * time.Second,
		},
		Sphere: SphereConfig{
			Radius:     30,
			Resolution: 12,
		},
		Rules: RulesConfig{
			FlowerRadius:     rules.FlowerRadius,
			BushRadius:       rules.BushRadius,
			WaterRadius:      rules.WaterRadius,
			TreeSampleRadius: rules.TreeSampleRadius,
			MaxPitAngle:      rules.MaxPitAngle,
		},
		Storage: StorageConfig{
			Driver: StorageJournal,
			Path:   "data/world.jsonl.zst",
		},
		Telemetry: TelemetryConfig{
			Enabled:       true,
			PrintInterval: 30 * time.Second,
		},
	}
}

// Load читает YAML поверх значений по умолчанию и проверяет результат
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate проверяет согласованность значений
func (c Config) Validate() error {
	var errs []error
	if c.Sphere.Radius <= 0 {
		errs = append(errs, fmt.Errorf("sphere.radius должен быть > 0, получено %v", c.Sphere.Radius))
	}
	if c.Sphere.Resolution <= 0 {
		errs = append(errs, fmt.Errorf("sphere.resolution должен быть > 0, получено %d", c.Sphere.Resolution))
	}
	if c.Server.TickRate <= 0 {
		errs = append(errs, fmt.Errorf("server.tick_rate должен быть > 0, получено %d", c.Server.TickRate))
	}
	if c.Rules.MaxPitAngle <= 0 || c.Rules.MaxPitAngle > 180 {
		errs = append(errs, fmt.Errorf("rules.max_pit_angle вне диапазона (0, 180]: %v", c.Rules.MaxPitAngle))
	}
	for name, r := range map[string]float64{
		"flower_radius":      c.Rules.FlowerRadius,
		"bush_radius":        c.Rules.BushRadius,
		"water_radius":       c.Rules.WaterRadius,
		"tree_sample_radius": c.Rules.TreeSampleRadius,
	} {
		if r < 0 {
			errs = append(errs, fmt.Errorf("rules.%s не может быть отрицательным: %v", name, r))
		}
	}
	switch c.Storage.Driver {
	case StorageJournal, StorageSQLite:
		if c.Storage.Path == "" {
			errs = append(errs, fmt.Errorf("storage.path обязателен для драйвера %s", c.Storage.Driver))
		}
	case StorageNone:
	default:
		errs = append(errs, fmt.Errorf("неизвестный storage.driver %q", c.Storage.Driver))
	}
	return errors.Join(errs...)
}

// ServiceRules преобразует правила в формат сервиса мира
func (c Config) ServiceRules() service.Rules {
	return service.Rules{
		FlowerRadius:     c.Rules.FlowerRadius,
		BushRadius:       c.Rules.BushRadius,
		WaterRadius:      c.Rules.WaterRadius,
		TreeSampleRadius: c.Rules.TreeSampleRadius,
		MaxPitAngle:      c.Rules.MaxPitAngle,
	}
}

// Get возвращает текущую конфигурацию процесса
func Get() Config {
	configMutex.RLock()
	defer configMutex.RUnlock()
	return current
}

// Set устанавливает новую конфигурацию процесса
func Set(cfg Config) {
	configMutex.Lock()
	defer configMutex.Unlock()
	current = cfg
}

// GetSphere возвращает только параметры сферы
func GetSphere() SphereConfig {
	configMutex.RLock()
	defer configMutex.RUnlock()
	return current.Sphere
}

// GetRules возвращает только игровые правила
func GetRules() RulesConfig {
	configMutex.RLock()
	defer configMutex.RUnlock()
	return current.Rules
}
