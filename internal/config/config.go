package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/annel0/terragen/internal/cache"
	"github.com/annel0/terragen/internal/heightmap"
	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации приложения.
type Config struct {
	Generator heightmap.Params  `yaml:"generator"`
	Server    ServerConfig      `yaml:"server"`
	Storage   StorageConfig     `yaml:"storage"`
	Cache     cache.CacheConfig `yaml:"cache"`
	Logging   LoggingConfig     `yaml:"logging"`
	Telemetry TelemetryConfig   `yaml:"telemetry"`
	Events    EventsConfig      `yaml:"events"`
}

type ServerConfig struct {
	RESTPort    int `yaml:"rest_port"`
	MetricsPort int `yaml:"metrics_port"`
	// Ограничение стороны карты для запросов через API
	MaxSide int `yaml:"max_side"`
	// Секрет HS256 в base64; пусто: изменяющие запросы без авторизации
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// GetJWTSecret возвращает секрет из конфига или ENV TERRAGEN_JWT_SECRET
func (s *ServerConfig) GetJWTSecret() string {
	if s.JWTSecret != "" {
		return s.JWTSecret
	}
	return os.Getenv("TERRAGEN_JWT_SECRET")
}

type StorageConfig struct {
	DataPath string `yaml:"data_path"`
	InMemory bool   `yaml:"in_memory"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
}

type TelemetryConfig struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"`
	Endpoint    string  `yaml:"endpoint"` // host:port OTLP HTTP; пусто: localhost:4318
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// EventsConfig шина событий о картах. Пустой NATSURL: шина в памяти процесса.
type EventsConfig struct {
	NATSURL    string        `yaml:"nats_url"`
	Stream     string        `yaml:"stream"`
	Retention  time.Duration `yaml:"retention"`
	BufferSize int           `yaml:"buffer_size"`
	WarmCache  bool          `yaml:"warm_cache"`
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	return &Config{
		Generator: heightmap.DefaultParams(),
		Server: ServerConfig{
			MaxSide:  1024,
			TokenTTL: 24 * time.Hour,
		},
		Storage: StorageConfig{
			DataPath: "data",
		},
		Cache: cache.CacheConfig{
			DefaultTTL: 10 * time.Minute,
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   "logs",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "terragen",
			SampleRatio: 1,
		},
		Events: EventsConfig{
			Stream:     "TERRAGEN_MAPS",
			Retention:  24 * time.Hour,
			BufferSize: 256,
			WarmCache:  true,
		},
	}
}

// GetRESTPort возвращает REST API порт с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "TERRAGEN_REST_PORT", 8088)
}

// GetMetricsPort возвращает порт Prometheus метрик с поддержкой fallback значений
func (s *ServerConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(s.MetricsPort, "TERRAGEN_METRICS_PORT", 2112)
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	// Если порт задан в конфиге и больше 0, используем его
	if configPort > 0 {
		return configPort
	}

	// Пробуем прочитать из environment variable
	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	return defaultPort
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", пытается прочитать из ENV TERRAGEN_CONFIG, иначе возвращает дефолты.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("TERRAGEN_CONFIG")
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("ошибка разбора %s: %w", path, err)
	}

	if err := cfg.Generator.Validate(); err != nil {
		return nil, fmt.Errorf("секция generator в %s: %w", path, err)
	}

	return cfg, nil
}
