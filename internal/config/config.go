package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/DanielPopoola/vpos-gateway/internal/core/domain"
	"github.com/go-playground/validator"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
)

const (
	DefaultVposBaseURL = "https://vpos.ao/api/v1"
	// DefaultTestSupervisorCard is the supervisor card vPOS accepts in sandbox.
	DefaultTestSupervisorCard = "9610123456123412341234123456789012345"

	StorageDriverPostgres = "postgres"
	StorageDriverBolt     = "bolt"
)

type Config struct {
	Primary  Primary        `koanf:"primary"`
	Server   ServerConfig   `koanf:"server"`
	Vpos     VposConfig     `koanf:"vpos"`
	Storage  StorageConfig  `koanf:"storage"`
	Database DatabaseConfig `koanf:"database" validate:"-"`
	Logger   LoggerConfig   `koanf:"logger"`
	Worker   WorkerConfig   `koanf:"worker"`
	Events   EventsConfig   `koanf:"events"`
	Fee      FeeConfig      `koanf:"fee"`
}

type Primary struct {
	Env string `koanf:"env" validate:"required"`
}

type ServerConfig struct {
	Port           string        `koanf:"port" validate:"required"`
	ReadTimeout    time.Duration `koanf:"read_timeout" validate:"required"`
	WriteTimeout   time.Duration `koanf:"write_timeout" validate:"required"`
	IdleTimeout    time.Duration `koanf:"idle_timeout" validate:"required"`
	RequestTimeout time.Duration `koanf:"request_timeout" validate:"required"`
}

// VposConfig holds the credentials and endpoints of the vPOS integration.
type VposConfig struct {
	PosID              int           `koanf:"pos_id" validate:"required"`
	Token              string        `koanf:"token" validate:"required"`
	CallbackURL        string        `koanf:"callback_url" validate:"required,url"`
	Mode               string        `koanf:"mode" validate:"required,oneof=production sandbox"`
	BaseURL            string        `koanf:"base_url" validate:"required,url"`
	SupervisorCard     string        `koanf:"supervisor_card"`
	TestSupervisorCard string        `koanf:"test_supervisor_card"`
	Timeout            time.Duration `koanf:"timeout" validate:"required"`
}

// ActiveSupervisorCard is the card sent with refunds for the configured mode.
func (c VposConfig) ActiveSupervisorCard() string {
	if domain.Mode(c.Mode) == domain.ModeSandbox {
		return c.TestSupervisorCard
	}
	return c.SupervisorCard
}

type StorageConfig struct {
	Driver   string `koanf:"driver" validate:"required,oneof=postgres bolt"`
	BoltPath string `koanf:"bolt_path"`
}

type DatabaseConfig struct {
	Host            string        `koanf:"host" validate:"required"`
	Port            int           `koanf:"port" validate:"required"`
	User            string        `koanf:"user" validate:"required"`
	Password        string        `koanf:"password" validate:"required"`
	Name            string        `koanf:"name" validate:"required"`
	SSLMode         string        `koanf:"ssl_mode" validate:"required"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"required"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"required"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime" validate:"required"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time" validate:"required"`
}

type WorkerConfig struct {
	Enabled   bool          `koanf:"enabled"`
	Interval  time.Duration `koanf:"interval" validate:"required"`
	BatchSize int           `koanf:"batch_size" validate:"required"`
	MinAge    time.Duration `koanf:"min_age"`
}

// EventsConfig selects where completion events go. Without a NATS URL they
// stay in process.
type EventsConfig struct {
	NatsURL string `koanf:"nats_url"`
	Subject string `koanf:"subject" validate:"required"`
}

var defaults = map[string]interface{}{
	"primary.env":                 "development",
	"server.port":                 "8080",
	"server.read_timeout":         "15s",
	"server.write_timeout":        "120s",
	"server.idle_timeout":         "60s",
	"server.request_timeout":      "100s",
	"vpos.mode":                   string(domain.ModeProduction),
	"vpos.base_url":               DefaultVposBaseURL,
	"vpos.test_supervisor_card":   DefaultTestSupervisorCard,
	"vpos.timeout":                "30s",
	"storage.driver":              StorageDriverPostgres,
	"storage.bolt_path":           "vpos.db",
	"database.ssl_mode":           "disable",
	"database.max_open_conns":     10,
	"database.max_idle_conns":     2,
	"database.conn_max_lifetime":  "1h",
	"database.conn_max_idle_time": "30m",
	"logger.level":                "info",
	"logger.format":               "json",
	"worker.enabled":              true,
	"worker.interval":             "30s",
	"worker.batch_size":           50,
	"worker.min_age":              "1m",
	"events.subject":              "vpos.transaction.completed",
}

func LoadConfig() (*Config, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		logger.Error("failed to load defaults", "error", err)
		return nil, err
	}

	err := k.Load(env.Provider("GATEWAY_", ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, "GATEWAY_")),
			"__",
			".",
		)
	}), nil)
	if err != nil {
		logger.Error("failed to load environment variables", "error", err)
		return nil, err
	}

	mainConfig := &Config{}

	err = k.Unmarshal("", mainConfig)
	if err != nil {
		logger.Error("could not unmarshal main config", "error", err)
		return nil, err
	}

	if err := mainConfig.Validate(); err != nil {
		logger.Error("config validation failed", "error", err)
		return nil, err
	}

	return mainConfig, nil
}

// Validate checks the struct tags and the rules that depend on more than one field.
func (c *Config) Validate() error {
	validate := validator.New()

	if err := validate.Struct(c); err != nil {
		return err
	}

	if domain.Mode(c.Vpos.Mode) == domain.ModeProduction && c.Vpos.SupervisorCard == "" {
		return errors.New("vpos.supervisor_card is required in production mode")
	}
	if domain.Mode(c.Vpos.Mode) == domain.ModeSandbox && c.Vpos.TestSupervisorCard == "" {
		return errors.New("vpos.test_supervisor_card is required in sandbox mode")
	}

	switch c.Storage.Driver {
	case StorageDriverPostgres:
		if err := validate.Struct(c.Database); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	case StorageDriverBolt:
		if c.Storage.BoltPath == "" {
			return errors.New("storage.bolt_path is required for the bolt driver")
		}
	}

	if _, err := c.Fee.Descriptor(); err != nil {
		return err
	}
	return nil
}
