package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config - настройки сервера. Значения по умолчанию зашиты в Default();
// YAML-файл, если указан, накладывается поверх них.
type Config struct {
	Server    Server    `yaml:"server"`
	Storage   Storage   `yaml:"storage"`
	Oracle    Oracle    `yaml:"oracle"`
	Scheduler Scheduler `yaml:"scheduler"`
	Memory    Memory    `yaml:"memory"`
	Archive   Archive   `yaml:"archive"`
}

type Server struct {
	Port int `yaml:"port"`

	// Сколько исходящих сообщений буферизуется на соединение,
	// прежде чем медленный клиент начнет терять сообщения
	SendBuffer int `yaml:"send_buffer"`
}

type Storage struct {
	// Путь к файлу SQLite; ":memory:" для эфемерного стенда
	Path string `yaml:"path"`
}

type Oracle struct {
	// URL внешнего оракула решений. Пустая строка включает встроенный
	// скриптовый оракул (локальная разработка и тесты).
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type Scheduler struct {
	// Период тика автономности на мир
	TickSeconds int `yaml:"tick_seconds"`

	// Окно простоя: сущность без событий (кроме checkTasks) за это время
	// получает синтетический checkTasks
	IdleWindowSeconds int `yaml:"idle_window_seconds"`
}

type Memory struct {
	// Сколько воспоминаний уходит в контекст оракула
	ContextLimit int `yaml:"context_limit"`

	// Таблица важности по виду события; вид не из таблицы получает DefaultImportance
	Importance        map[string]float64 `yaml:"importance"`
	DefaultImportance float64            `yaml:"default_importance"`
}

type Archive struct {
	// Каталог для zstd-архивов журналов событий; пусто - архивация выключена
	Dir string `yaml:"dir"`
}

// Default возвращает рабочую конфигурацию без единого внешнего файла
func Default() Config {
	return Config{
		Server: Server{
			Port:       8080,
			SendBuffer: 100,
		},
		Storage: Storage{
			Path: "simulacra.db",
		},
		Oracle: Oracle{
			URL:            "",
			TimeoutSeconds: 30,
		},
		Scheduler: Scheduler{
			TickSeconds:       10,
			IdleWindowSeconds: 30,
		},
		Memory: Memory{
			ContextLimit: 15,
			Importance: map[string]float64{
				"speak":  2.0,
				"heard":  1.5,
				"pickup": 1.0,
				"drop":   1.0,
				"move":   0.5,
			},
			DefaultImportance: 1.0,
		},
		Archive: Archive{
			Dir: "",
		},
	}
}

// Load читает YAML поверх значений по умолчанию.
// Пустой путь - валидный случай: остаются дефолты.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Scheduler.TickSeconds <= 0 {
		return fmt.Errorf("scheduler.tick_seconds must be positive, got %d", c.Scheduler.TickSeconds)
	}
	if c.Scheduler.IdleWindowSeconds <= 0 {
		return fmt.Errorf("scheduler.idle_window_seconds must be positive, got %d", c.Scheduler.IdleWindowSeconds)
	}
	if c.Memory.ContextLimit <= 0 {
		return fmt.Errorf("memory.context_limit must be positive, got %d", c.Memory.ContextLimit)
	}
	return nil
}

// OracleTimeout возвращает таймаут оракула как Duration
func (c Config) OracleTimeout() time.Duration {
	return time.Duration(c.Oracle.TimeoutSeconds) * time.Second
}

// SchedulerTick возвращает период тика как Duration
func (c Config) SchedulerTick() time.Duration {
	return time.Duration(c.Scheduler.TickSeconds) * time.Second
}

// IdleWindow возвращает окно простоя как Duration
func (c Config) IdleWindow() time.Duration {
	return time.Duration(c.Scheduler.IdleWindowSeconds) * time.Second
}
