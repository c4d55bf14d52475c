package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9000\n")

	cfg, err := NewManager().Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Host = %q, want the default", cfg.Server.Host)
	}
	if cfg.Monitor.CheckIntervalMinutes != 30 {
		t.Errorf("CheckIntervalMinutes = %d, want default 30", cfg.Monitor.CheckIntervalMinutes)
	}
	if cfg.Cache.DurationSeconds != 300 || cfg.Cache.MaxSize != 100 {
		t.Errorf("cache defaults not applied: %+v", cfg.Cache)
	}
	if cfg.Storage.Backend != "file" {
		t.Errorf("Backend = %q, want file", cfg.Storage.Backend)
	}
}

func TestLoad_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad port", "server:\n  port: 70000\n"},
		{"bad backend", "storage:\n  backend: cassandra\n"},
		{"bad change percent", "alerts:\n  min_change_percent: 250\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewManager().Load(writeConfig(t, tt.body)); err == nil {
				t.Error("Load must reject the config")
			}
		})
	}
}

func TestGetConfig_BeforeLoad(t *testing.T) {
	if got := NewManager().GetConfig(); got != nil {
		t.Errorf("GetConfig before Load = %+v, want nil", got)
	}
}
