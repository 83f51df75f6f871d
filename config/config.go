package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

const (
	DefaultCopyBufferSize = 32 * 1024
	DefaultStemsMinSize   = 8 * 1024
	DefaultMimeCacheSize  = 1024
	DefaultAdminRole      = "ADMIN"

	DefaultChunkWriteTimeout = 30 * time.Second
)

// LoggerConfig - конфигурация логгера
type LoggerConfig struct {
	zap.Config `yaml:",inline"`
}

func (lc *LoggerConfig) Build() (*zap.Logger, error) {
	return lc.Config.Build()
}

// ServerConfig - конфигурация HTTP сервера
type ServerConfig struct {
	Host         string        `yaml:"host" env:"BEATSTORE_HTTP_HOST"`
	Port         int           `yaml:"port" env:"BEATSTORE_HTTP_PORT"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"BEATSTORE_HTTP_READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"BEATSTORE_HTTP_WRITE_TIMEOUT"` // 0 - без ограничения, архивы бывают большими
	IdleTimeout  time.Duration `yaml:"idle_timeout" env:"BEATSTORE_HTTP_IDLE_TIMEOUT"`
	// Дедлайн записи одного блока ответа: клиент, переставший читать, не держит файл открытым
	ChunkWriteTimeout time.Duration `yaml:"chunk_write_timeout" env:"BEATSTORE_HTTP_CHUNK_WRITE_TIMEOUT"`
}

// GrpcConfig - конфигурация gRPC сервера выдачи
type GrpcConfig struct {
	Host string `yaml:"host" env:"BEATSTORE_GRPC_HOST"`
	Port int    `yaml:"port" env:"BEATSTORE_GRPC_PORT"`
}

// StorageConfig - конфигурация файлового хранилища
type StorageConfig struct {
	Root           string `yaml:"root" env:"BEATSTORE_STORAGE_ROOT"`                       // Корень хранилища загрузок
	CopyBufferSize int    `yaml:"copy_buffer_size" env:"BEATSTORE_STORAGE_COPY_BUFFER"`    // Размер буфера копирования
	StemsMinSize   int64  `yaml:"stems_min_size" env:"BEATSTORE_STORAGE_STEMS_MIN_SIZE"`   // Файлы стемов меньше этого размера пропускаются
	MimeCacheSize  int    `yaml:"mime_cache_size" env:"BEATSTORE_STORAGE_MIME_CACHE_SIZE"` // Размер LRU кэша MIME типов
}

// CatalogConfig - источник записей о покупках
type CatalogConfig struct {
	Driver string `yaml:"driver" env:"BEATSTORE_CATALOG_DRIVER"` // sqlite или grpc
	DSN    string `yaml:"dsn" env:"BEATSTORE_CATALOG_DSN"`
	Host   string `yaml:"host" env:"BEATSTORE_CATALOG_HOST"`
	Port   int    `yaml:"port" env:"BEATSTORE_CATALOG_PORT"`
}

// AuthConfig - конфигурация проверки JWT
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" env:"BEATSTORE_JWT_SECRET"`
	Issuer    string `yaml:"issuer" env:"BEATSTORE_JWT_ISSUER"`
	AdminRole string `yaml:"admin_role" env:"BEATSTORE_ADMIN_ROLE"`
}

// TracingConfig - конфигурация OpenTelemetry
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled" env:"BEATSTORE_OTEL_ENABLED"`
	Endpoint    string `yaml:"endpoint" env:"BEATSTORE_OTEL_ENDPOINT"`
	ServiceName string `yaml:"service_name" env:"BEATSTORE_OTEL_SERVICE_NAME"`
}

// Config - основная конфигурация приложения
type Config struct {
	Server        ServerConfig  `yaml:"server"`
	Grpc          GrpcConfig    `yaml:"grpc"`
	Storage       StorageConfig `yaml:"storage"`
	Catalog       CatalogConfig `yaml:"catalog"`
	Auth          AuthConfig    `yaml:"auth"`
	Tracing       TracingConfig `yaml:"tracing"`
	Logger        LoggerConfig  `yaml:"logger"`
	PublicBaseURL string        `yaml:"public_base_url"`
}

func LoadConfig(filename string) (*Config, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("could not open config file: %v", err)
	}
	defer file.Close()

	var config Config
	decoder := yaml.NewDecoder(file)
	err = decoder.Decode(&config)
	if err != nil {
		return nil, fmt.Errorf("could not decode config file: %v", err)
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// applyEnv переопределяет значения из переменных окружения.
// Секция логгера не трогается: zap.Config содержит функции.
func (c *Config) applyEnv() error {
	sections := []any{&c.Server, &c.Grpc, &c.Storage, &c.Catalog, &c.Auth, &c.Tracing}
	for _, s := range sections {
		if err := env.Parse(s); err != nil {
			return fmt.Errorf("parse env: %w", err)
		}
	}
	if v := os.Getenv("BEATSTORE_PUBLIC_BASE_URL"); v != "" {
		c.PublicBaseURL = v
	}
	return nil
}

// Validate проверяет конфигурацию и проставляет значения по умолчанию
func (c *Config) Validate() error {
	if c.Storage.Root == "" {
		return fmt.Errorf("storage.root is required")
	}
	root, err := filepath.Abs(c.Storage.Root)
	if err != nil {
		return fmt.Errorf("resolve storage root: %w", err)
	}
	c.Storage.Root = filepath.Clean(root)

	if c.Server.ChunkWriteTimeout <= 0 {
		c.Server.ChunkWriteTimeout = DefaultChunkWriteTimeout
	}
	if c.Storage.CopyBufferSize <= 0 {
		c.Storage.CopyBufferSize = DefaultCopyBufferSize
	}
	if c.Storage.StemsMinSize <= 0 {
		c.Storage.StemsMinSize = DefaultStemsMinSize
	}
	if c.Storage.MimeCacheSize <= 0 {
		c.Storage.MimeCacheSize = DefaultMimeCacheSize
	}
	if c.Auth.AdminRole == "" {
		c.Auth.AdminRole = DefaultAdminRole
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "beatstore-media-service"
	}

	switch c.Catalog.Driver {
	case "", "sqlite":
		c.Catalog.Driver = "sqlite"
		if c.Catalog.DSN == "" {
			return fmt.Errorf("catalog.dsn is required for sqlite driver")
		}
	case "grpc":
		if c.Catalog.Host == "" || c.Catalog.Port == 0 {
			return fmt.Errorf("catalog.host and catalog.port are required for grpc driver")
		}
	default:
		return fmt.Errorf("unknown catalog driver %q", c.Catalog.Driver)
	}
	return nil
}
