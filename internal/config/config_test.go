package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, "storage:\n  path: "+filepath.Join(dir, "data", "pillbox.bolt")+"\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Storage.Type != "bolt" {
		t.Errorf("storage type = %q, want bolt", cfg.Storage.Type)
	}
	if Duration(cfg.Device.ConfirmTimeout) != 10*time.Minute {
		t.Errorf("confirm timeout = %q", cfg.Device.ConfirmTimeout)
	}
	if Duration(cfg.Device.StartupGrace) != 30*time.Second {
		t.Errorf("startup grace = %q", cfg.Device.StartupGrace)
	}
	if cfg.Actuator.HomeAngle != 27 || cfg.Actuator.ProbeAttempts != 3 {
		t.Errorf("actuator = %+v", cfg.Actuator)
	}
	if _, err := os.Stat(filepath.Join(dir, "data")); err != nil {
		t.Errorf("storage directory not created: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("PILLBOX_STORAGE_TYPE", "memory")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Type != "memory" {
		t.Errorf("storage type = %q, want memory from env", cfg.Storage.Type)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, "storage:\n  type: memory\ndevice:\n  confirm_timeout: 5m\n")
	t.Setenv("PILLBOX_DEVICE_CONFIRM_TIMEOUT", "2m")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Device.ConfirmTimeout != "2m" {
		t.Errorf("confirm timeout = %q, want env value 2m", cfg.Device.ConfirmTimeout)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad duration", "storage:\n  type: memory\ndevice:\n  confirm_timeout: soon\n", "device.confirm_timeout"},
		{"bad clock", "storage:\n  type: memory\nclock:\n  source: sundial\n", "clock source"},
		{"bad storage", "storage:\n  type: floppy\n", "storage type"},
		{"bad driver", "storage:\n  type: memory\nactuator:\n  driver: pca\n", "actuator driver"},
		{"bad admin port", "storage:\n  type: memory\nadmin:\n  port: 70000\n", "admin port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestParseDuration(t *testing.T) {
	if d, err := ParseDuration("x", ""); err != nil || d != 0 {
		t.Errorf("empty = %v, %v", d, err)
	}
	if _, err := ParseDuration("x", "-1s"); err == nil {
		t.Error("negative duration should be rejected")
	}
}

func TestLoadSecretFromEnv(t *testing.T) {
	path := writeConfig(t, "storage:\n  type: memory\n")
	t.Setenv("PILLBOX_ADMIN_TOKEN", "s3cret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Admin.Token != "s3cret" {
		t.Errorf("admin token = %q, want value from env", cfg.Admin.Token)
	}
}

func TestUnknownKeys(t *testing.T) {
	path := writeConfig(t, "storage:\n  type: memory\ndevice:\n  confirm_timout: 5m\nlegacy: true\n")

	unknown, err := UnknownKeys(path)
	if err != nil {
		t.Fatalf("UnknownKeys: %v", err)
	}
	want := []string{"device.confirm_timout", "legacy"}
	if strings.Join(unknown, ",") != strings.Join(want, ",") {
		t.Errorf("unknown = %v, want %v", unknown, want)
	}
}

func TestDefaults(t *testing.T) {
	d := Defaults()
	if d.Admin.Port != 8080 || d.Storage.Type != "bolt" || d.Clock.Source != "auto" {
		t.Errorf("defaults = %+v", d)
	}
}
