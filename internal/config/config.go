package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Device   DeviceConfig   `mapstructure:"device"`
	Clock    ClockConfig    `mapstructure:"clock"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Actuator ActuatorConfig `mapstructure:"actuator"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Events   EventsConfig   `mapstructure:"events"`
}

// ServerConfig defines process-level listeners and loop timing
type ServerConfig struct {
	MetricsPort  int    `mapstructure:"metrics_port"`
	BindAddress  string `mapstructure:"bind_address"`
	TickInterval string `mapstructure:"tick_interval"` // How often the engine evaluates triggers and timeouts
}

// DeviceConfig defines dispense workflow timings
type DeviceConfig struct {
	Name           string `mapstructure:"name"`            // Node name attached to published events
	ConfirmTimeout string `mapstructure:"confirm_timeout"` // How long a session waits for the user
	StartupGrace   string `mapstructure:"startup_grace"`   // Quiet period after start before triggers fire
	HistorySize    int    `mapstructure:"history_size"`    // Resolved sessions kept in memory
}

// ClockConfig selects the time source
type ClockConfig struct {
	Source    string `mapstructure:"source"`     // "auto", "system" or "uptime"
	RTCDevice string `mapstructure:"rtc_device"` // Presence of this path marks the system clock as trustworthy
	Timezone  string `mapstructure:"timezone"`
}

// StorageConfig defines storage backend settings
type StorageConfig struct {
	Path string `mapstructure:"path"`
	Type string `mapstructure:"type"` // "bolt", "sqlite", "redis" or "memory"
}

// RedisConfig defines Redis connection settings
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  string `mapstructure:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ActuatorConfig defines the servo controller and its sequence timings
type ActuatorConfig struct {
	Driver        string `mapstructure:"driver"` // "sim" or "none"
	HomeAngle     int    `mapstructure:"home_angle"`
	DispenseAngle int    `mapstructure:"dispense_angle"`
	Hold          string `mapstructure:"hold"`
	Settle        string `mapstructure:"settle"`
	ProbeAttempts int    `mapstructure:"probe_attempts"`
	ProbeInterval string `mapstructure:"probe_interval"`
}

// AdminConfig defines admin interface settings
type AdminConfig struct {
	Enabled         bool     `mapstructure:"enabled"`
	Port            int      `mapstructure:"port"`
	BindAddress     string   `mapstructure:"bind_address"`
	Token           string   `mapstructure:"token"` // Bearer token required on /api when set
	RateLimit       int      `mapstructure:"rate_limit"`
	RateLimitWindow string   `mapstructure:"rate_limit_window"`
	AllowedOrigins  []string `mapstructure:"allowed_origins"` // Websocket origins; empty allows same host only
}

// EventsConfig defines external event fan-out
type EventsConfig struct {
	Redis RedisEventsConfig `mapstructure:"redis"`
	NATS  NATSEventsConfig  `mapstructure:"nats"`
}

// RedisEventsConfig publishes events on a Redis pub/sub channel using the
// connection settings in RedisConfig
type RedisEventsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Channel string `mapstructure:"channel"`
}

// NATSEventsConfig publishes events to a NATS server
type NATSEventsConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	URL           string `mapstructure:"url"`
	Token         string `mapstructure:"token"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
	MaxReconnects int    `mapstructure:"max_reconnects"`
	ReconnectWait string `mapstructure:"reconnect_wait"`
	Timeout       string `mapstructure:"timeout"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Configure viper
	v.SetConfigFile(configPath)
	v.SetEnvPrefix("PILLBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	// Unmarshal config
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate config
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// KnownKeys returns every configuration key, sorted.
func KnownKeys() []string {
	v := viper.New()
	setDefaults(v)
	keys := v.AllKeys()
	sort.Strings(keys)
	return keys
}

// UnknownKeys lists keys present in the config file that the application
// does not read.
func UnknownKeys(configPath string) ([]string, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	known := make(map[string]bool)
	for _, key := range KnownKeys() {
		known[key] = true
	}

	unknown := []string{}
	for _, key := range v.AllKeys() {
		if !known[key] {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	return unknown, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.metrics_port", 9090)
	v.SetDefault("server.bind_address", "0.0.0.0")
	v.SetDefault("server.tick_interval", "1s")

	// Device defaults
	v.SetDefault("device.name", "pillbox")
	v.SetDefault("device.confirm_timeout", "10m")
	v.SetDefault("device.startup_grace", "30s")
	v.SetDefault("device.history_size", 64)

	// Clock defaults
	v.SetDefault("clock.source", "auto")
	v.SetDefault("clock.rtc_device", "/dev/rtc0")
	v.SetDefault("clock.timezone", "")

	// Storage defaults
	v.SetDefault("storage.path", "/var/lib/pillbox/pillbox.bolt")
	v.SetDefault("storage.type", "bolt")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 1)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Actuator defaults
	v.SetDefault("actuator.driver", "sim")
	v.SetDefault("actuator.home_angle", 27)
	v.SetDefault("actuator.dispense_angle", 0)
	v.SetDefault("actuator.hold", "800ms")
	v.SetDefault("actuator.settle", "500ms")
	v.SetDefault("actuator.probe_attempts", 3)
	v.SetDefault("actuator.probe_interval", "200ms")

	// Admin defaults
	v.SetDefault("admin.enabled", true)
	v.SetDefault("admin.port", 8080)
	v.SetDefault("admin.bind_address", "127.0.0.1")
	v.SetDefault("admin.token", "")
	v.SetDefault("admin.rate_limit", 100)
	v.SetDefault("admin.rate_limit_window", "1m")
	v.SetDefault("admin.allowed_origins", []string{})

	// Events defaults
	v.SetDefault("events.redis.enabled", false)
	v.SetDefault("events.redis.channel", "pillbox:events")
	v.SetDefault("events.nats.enabled", false)
	v.SetDefault("events.nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("events.nats.token", "")
	v.SetDefault("events.nats.subject_prefix", "pillbox.events")
	v.SetDefault("events.nats.max_reconnects", 10)
	v.SetDefault("events.nats.reconnect_wait", "2s")
	v.SetDefault("events.nats.timeout", "5s")
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Server.MetricsPort < 0 || cfg.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.Server.MetricsPort)
	}
	if cfg.Admin.Enabled && (cfg.Admin.Port <= 0 || cfg.Admin.Port > 65535) {
		return fmt.Errorf("invalid admin port: %d", cfg.Admin.Port)
	}

	durations := map[string]string{
		"server.tick_interval":       cfg.Server.TickInterval,
		"device.confirm_timeout":     cfg.Device.ConfirmTimeout,
		"device.startup_grace":       cfg.Device.StartupGrace,
		"actuator.hold":              cfg.Actuator.Hold,
		"actuator.settle":            cfg.Actuator.Settle,
		"actuator.probe_interval":    cfg.Actuator.ProbeInterval,
		"admin.rate_limit_window":    cfg.Admin.RateLimitWindow,
		"events.nats.reconnect_wait": cfg.Events.NATS.ReconnectWait,
		"events.nats.timeout":        cfg.Events.NATS.Timeout,
	}
	for field, value := range durations {
		if _, err := ParseDuration(field, value); err != nil {
			return err
		}
	}

	switch cfg.Clock.Source {
	case "", "auto", "system", "uptime":
	default:
		return fmt.Errorf("invalid clock source: %s", cfg.Clock.Source)
	}
	if cfg.Clock.Timezone != "" {
		if _, err := time.LoadLocation(cfg.Clock.Timezone); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", cfg.Clock.Timezone, err)
		}
	}

	switch cfg.Actuator.Driver {
	case "sim", "none":
	default:
		return fmt.Errorf("invalid actuator driver: %s", cfg.Actuator.Driver)
	}

	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "bolt"
	}
	switch cfg.Storage.Type {
	case "bolt", "sqlite":
		// Validate storage path
		if cfg.Storage.Path == "" {
			return fmt.Errorf("storage path is required")
		}

		// Ensure storage directory exists
		storageDir := filepath.Dir(cfg.Storage.Path)
		if err := os.MkdirAll(storageDir, 0755); err != nil {
			return fmt.Errorf("failed to create storage directory: %w", err)
		}
	case "redis", "memory":
	default:
		return fmt.Errorf("invalid storage type: %s", cfg.Storage.Type)
	}

	if cfg.Events.NATS.Enabled && cfg.Events.NATS.URL == "" {
		return fmt.Errorf("events.nats.url is required when NATS events are enabled")
	}

	return nil
}

// ParseDuration parses a duration setting, naming the field on error.
// Empty values parse as zero.
func ParseDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: negative duration", field)
	}
	return d, nil
}

// Duration parses a setting already checked by Load.
func Duration(value string) time.Duration {
	d, _ := ParseDuration("", value)
	return d
}
