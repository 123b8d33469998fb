package main

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/fatih/color"
	"github.com/goodtune/pillbox/internal/config"
	"github.com/spf13/cobra"
)

var (
	validateDump bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long:  `Validate the Pillbox configuration file for syntax and semantic errors.`,
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateDump, "dump", false, "Dump full configuration with defaults highlighted")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "❌ Configuration validation failed: %v\n", err)
		return err
	}

	// Check for unknown keys (always, not just with --dump)
	unknownKeys, err := config.UnknownKeys(configPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "⚠️  Warning: Could not check for unknown keys: %v\n", err)
	}

	_, _ = fmt.Fprintf(os.Stdout, "✅ Configuration is valid: %s\n", configPath)

	// Warn about unknown keys
	if len(unknownKeys) > 0 {
		red := color.New(color.FgRed, color.Bold)
		_, _ = fmt.Fprintln(os.Stdout)
		_, _ = red.Fprintf(os.Stdout, "⚠️  WARNING: Found %d unknown configuration key(s):\n", len(unknownKeys))
		for _, key := range unknownKeys {
			_, _ = red.Fprintf(os.Stdout, "   - %s\n", key)
		}
		_, _ = fmt.Fprintln(os.Stdout, "\nThese keys will be ignored and may indicate typos or deprecated settings.")
	}

	// If dump requested, show full configuration with defaults highlighted
	if validateDump {
		_, _ = fmt.Fprintln(os.Stdout, "\n"+strings.Repeat("=", 80))
		_, _ = fmt.Fprintln(os.Stdout, "FULL CONFIGURATION (values different from defaults are highlighted)")
		_, _ = fmt.Fprintln(os.Stdout, strings.Repeat("=", 80))

		dumpConfig(cfg, config.Defaults(), unknownKeys)
	}

	return nil
}

// dumpConfig dumps configuration with color highlighting for non-default values
func dumpConfig(cfg, defaultCfg *config.Config, unknownKeys []string) {
	// Setup colors (only if terminal supports it)
	yellow := color.New(color.FgYellow, color.Bold)
	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan, color.Bold)

	// Server
	_, _ = cyan.Println("\n[server]")
	dumpField("  metrics_port", cfg.Server.MetricsPort, defaultCfg.Server.MetricsPort, yellow, green)
	dumpField("  bind_address", cfg.Server.BindAddress, defaultCfg.Server.BindAddress, yellow, green)
	dumpField("  tick_interval", cfg.Server.TickInterval, defaultCfg.Server.TickInterval, yellow, green)

	// Device
	_, _ = cyan.Println("\n[device]")
	dumpField("  name", cfg.Device.Name, defaultCfg.Device.Name, yellow, green)
	dumpField("  confirm_timeout", cfg.Device.ConfirmTimeout, defaultCfg.Device.ConfirmTimeout, yellow, green)
	dumpField("  startup_grace", cfg.Device.StartupGrace, defaultCfg.Device.StartupGrace, yellow, green)
	dumpField("  history_size", cfg.Device.HistorySize, defaultCfg.Device.HistorySize, yellow, green)

	// Clock
	_, _ = cyan.Println("\n[clock]")
	dumpField("  source", cfg.Clock.Source, defaultCfg.Clock.Source, yellow, green)
	dumpField("  rtc_device", cfg.Clock.RTCDevice, defaultCfg.Clock.RTCDevice, yellow, green)
	dumpField("  timezone", cfg.Clock.Timezone, defaultCfg.Clock.Timezone, yellow, green)

	// Storage
	_, _ = cyan.Println("\n[storage]")
	dumpField("  type", cfg.Storage.Type, defaultCfg.Storage.Type, yellow, green)
	dumpField("  path", cfg.Storage.Path, defaultCfg.Storage.Path, yellow, green)

	// Redis
	_, _ = cyan.Println("\n[redis]")
	dumpField("  host", cfg.Redis.Host, defaultCfg.Redis.Host, yellow, green)
	dumpField("  port", cfg.Redis.Port, defaultCfg.Redis.Port, yellow, green)
	dumpField("  password", redactSecret(cfg.Redis.Password), redactSecret(defaultCfg.Redis.Password), yellow, green)
	dumpField("  db", cfg.Redis.DB, defaultCfg.Redis.DB, yellow, green)
	dumpField("  pool_size", cfg.Redis.PoolSize, defaultCfg.Redis.PoolSize, yellow, green)
	dumpField("  min_idle_conns", cfg.Redis.MinIdleConns, defaultCfg.Redis.MinIdleConns, yellow, green)
	dumpField("  dial_timeout", cfg.Redis.DialTimeout, defaultCfg.Redis.DialTimeout, yellow, green)
	dumpField("  read_timeout", cfg.Redis.ReadTimeout, defaultCfg.Redis.ReadTimeout, yellow, green)
	dumpField("  write_timeout", cfg.Redis.WriteTimeout, defaultCfg.Redis.WriteTimeout, yellow, green)

	// Logging
	_, _ = cyan.Println("\n[logging]")
	dumpField("  level", cfg.Logging.Level, defaultCfg.Logging.Level, yellow, green)
	dumpField("  format", cfg.Logging.Format, defaultCfg.Logging.Format, yellow, green)

	// Actuator
	_, _ = cyan.Println("\n[actuator]")
	dumpField("  driver", cfg.Actuator.Driver, defaultCfg.Actuator.Driver, yellow, green)
	dumpField("  home_angle", cfg.Actuator.HomeAngle, defaultCfg.Actuator.HomeAngle, yellow, green)
	dumpField("  dispense_angle", cfg.Actuator.DispenseAngle, defaultCfg.Actuator.DispenseAngle, yellow, green)
	dumpField("  hold", cfg.Actuator.Hold, defaultCfg.Actuator.Hold, yellow, green)
	dumpField("  settle", cfg.Actuator.Settle, defaultCfg.Actuator.Settle, yellow, green)
	dumpField("  probe_attempts", cfg.Actuator.ProbeAttempts, defaultCfg.Actuator.ProbeAttempts, yellow, green)
	dumpField("  probe_interval", cfg.Actuator.ProbeInterval, defaultCfg.Actuator.ProbeInterval, yellow, green)

	// Admin
	_, _ = cyan.Println("\n[admin]")
	dumpField("  enabled", cfg.Admin.Enabled, defaultCfg.Admin.Enabled, yellow, green)
	dumpField("  port", cfg.Admin.Port, defaultCfg.Admin.Port, yellow, green)
	dumpField("  bind_address", cfg.Admin.BindAddress, defaultCfg.Admin.BindAddress, yellow, green)
	dumpField("  token", redactSecret(cfg.Admin.Token), redactSecret(defaultCfg.Admin.Token), yellow, green)
	dumpField("  rate_limit", cfg.Admin.RateLimit, defaultCfg.Admin.RateLimit, yellow, green)
	dumpField("  rate_limit_window", cfg.Admin.RateLimitWindow, defaultCfg.Admin.RateLimitWindow, yellow, green)
	dumpField("  allowed_origins", cfg.Admin.AllowedOrigins, defaultCfg.Admin.AllowedOrigins, yellow, green)

	// Events
	_, _ = cyan.Println("\n[events]")
	_, _ = cyan.Println("  [events.redis]")
	dumpField("    enabled", cfg.Events.Redis.Enabled, defaultCfg.Events.Redis.Enabled, yellow, green)
	dumpField("    channel", cfg.Events.Redis.Channel, defaultCfg.Events.Redis.Channel, yellow, green)
	_, _ = cyan.Println("  [events.nats]")
	dumpField("    enabled", cfg.Events.NATS.Enabled, defaultCfg.Events.NATS.Enabled, yellow, green)
	dumpField("    url", cfg.Events.NATS.URL, defaultCfg.Events.NATS.URL, yellow, green)
	dumpField("    token", redactSecret(cfg.Events.NATS.Token), redactSecret(defaultCfg.Events.NATS.Token), yellow, green)
	dumpField("    subject_prefix", cfg.Events.NATS.SubjectPrefix, defaultCfg.Events.NATS.SubjectPrefix, yellow, green)
	dumpField("    max_reconnects", cfg.Events.NATS.MaxReconnects, defaultCfg.Events.NATS.MaxReconnects, yellow, green)
	dumpField("    reconnect_wait", cfg.Events.NATS.ReconnectWait, defaultCfg.Events.NATS.ReconnectWait, yellow, green)
	dumpField("    timeout", cfg.Events.NATS.Timeout, defaultCfg.Events.NATS.Timeout, yellow, green)

	// Display unknown keys if any
	if len(unknownKeys) > 0 {
		red := color.New(color.FgRed, color.Bold)

		_, _ = cyan.Println("\n[UNKNOWN KEYS - These will be ignored!]")
		for _, key := range unknownKeys {
			_, _ = red.Printf("  %s = (unknown key - check for typos)\n", key)
		}
	}

	_, _ = fmt.Fprintln(os.Stdout, "\n"+strings.Repeat("=", 80))
}

// dumpField prints a field with color if it differs from default
func dumpField(name string, value, defaultValue interface{}, modifiedColor, defaultColor *color.Color) {
	// Deep equal comparison
	isDefault := reflect.DeepEqual(value, defaultValue)

	valueStr := fmt.Sprintf("%v", value)

	if isDefault {
		_, _ = defaultColor.Printf("%s = %s\n", name, valueStr)
	} else {
		_, _ = modifiedColor.Printf("%s = %s  (modified from default: %v)\n", name, valueStr, defaultValue)
	}
}

// redactSecret redacts a password or token if not empty
func redactSecret(secret string) string {
	if secret == "" {
		return ""
	}
	return "***REDACTED***"
}
