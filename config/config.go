package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimeout         = 5 * time.Second
	defaultMaxRequestBytes = 1024
	defaultIndexFile       = "index.html"
	defaultNotFoundFile    = "404.html"
	defaultSweepInterval   = time.Minute
)

// Config основная конфигурация приложения
type Config struct {
	// Настройки TCP сервера и пула воркеров
	Server ServerConfig `yaml:"server"`

	// Каталог с HTML страницами
	Content ContentConfig `yaml:"content"`

	// Настройки rate limiter
	RateLimiter *RateLimiterConfig `yaml:"rateLimiter,omitempty"`

	// Служебный HTTP сервер: метрики, health, управление лимитами
	Admin *AdminConfig `yaml:"admin,omitempty"`

	// Настройки логгера
	Logger *LoggerConfig `yaml:"logger"`
}

// ServerConfig конфигурация сервера
type ServerConfig struct {
	// Адрес для прослушивания, например 127.0.0.1:7878
	Addr string `yaml:"addr"`

	// Количество воркеров в пуле
	Workers int `yaml:"workers"`

	// Таймаут чтения запроса
	ReadTimeout time.Duration `yaml:"readTimeout"`

	// Таймаут записи ответа
	WriteTimeout time.Duration `yaml:"writeTimeout"`

	// Сколько байт запроса читать максимум
	MaxRequestBytes int `yaml:"maxRequestBytes"`
}

// ContentConfig конфигурация раздачи страниц
type ContentConfig struct {
	// Корневой каталог
	Root string `yaml:"root"`

	// Страница для пути "/"
	IndexFile string `yaml:"indexFile"`

	// Страница для 404
	NotFoundFile string `yaml:"notFoundFile"`
}

// RateLimiterConfig конфигурация rate limiter (token bucket на каждый IP клиента)
type RateLimiterConfig struct {
	// Включен ли rate limiter
	Enabled bool `yaml:"enabled"`

	// Количество запросов в секунду по умолчанию
	Rate float64 `yaml:"rate"`

	// Максимальный размер корзины
	Burst int `yaml:"burst"`

	// Как часто удалять наполнившиеся корзины клиентов
	SweepInterval time.Duration `yaml:"sweepInterval"`
}

// AdminConfig конфигурация служебного сервера
type AdminConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LoggerConfig конфигурация логгера
type LoggerConfig struct {
	// Уровень логирования: debug, info, warn, error, fatal
	LogLevel string `yaml:"logLevel"`

	// IP узла
	NodeIP string `yaml:"nodeIP"`

	// IP пода (для Kubernetes)
	PodIP string `yaml:"podIP"`

	// Имя сервиса
	ServiceName string `yaml:"serviceName"`

	// Цветной консольный вывод вместо JSON
	Development bool `yaml:"development"`
}

// LoadFromFile загружает конфигурацию из YAML файла
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	return Parse(data)
}

// Parse разбирает YAML, заполняет значения по умолчанию и проверяет конфигурацию
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	config.applyDefaults()

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.ReadTimeout <= 0 {
		c.Server.ReadTimeout = defaultTimeout
	}
	if c.Server.WriteTimeout <= 0 {
		c.Server.WriteTimeout = defaultTimeout
	}
	if c.Server.MaxRequestBytes <= 0 {
		c.Server.MaxRequestBytes = defaultMaxRequestBytes
	}
	if c.Content.IndexFile == "" {
		c.Content.IndexFile = defaultIndexFile
	}
	if c.Content.NotFoundFile == "" {
		c.Content.NotFoundFile = defaultNotFoundFile
	}
	if c.RateLimiter != nil && c.RateLimiter.SweepInterval <= 0 {
		c.RateLimiter.SweepInterval = defaultSweepInterval
	}
}

// validate проверяет корректность конфигурации
func (c *Config) validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server addr is required")
	}
	if c.Server.Workers <= 0 {
		return fmt.Errorf("server workers must be positive, got %d", c.Server.Workers)
	}

	if c.Content.Root == "" {
		return fmt.Errorf("content root is required")
	}

	// Проверяем rate limiter
	if c.RateLimiter != nil && c.RateLimiter.Enabled {
		if c.RateLimiter.Rate <= 0 {
			return fmt.Errorf("rate limiter rate must be positive")
		}
		if c.RateLimiter.Burst <= 0 {
			return fmt.Errorf("rate limiter burst must be positive")
		}
	}

	if c.Admin != nil && c.Admin.Enabled && c.Admin.Addr == "" {
		return fmt.Errorf("admin addr is required when admin is enabled")
	}

	// Проверяем конфигурацию логгера
	if c.Logger == nil {
		return fmt.Errorf("logger configuration is required")
	}

	switch c.Logger.LogLevel {
	case "debug", "info", "warn", "error", "fatal":
		// OK
	default:
		return fmt.Errorf("unsupported log level: %s", c.Logger.LogLevel)
	}

	if c.Logger.ServiceName == "" {
		return fmt.Errorf("logger service name is required")
	}

	return nil
}
