package config

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

func resetSingleton() {
	current.Store(nil)
}

func TestInitialize(t *testing.T) {
	resetSingleton()

	path := writeConfig(t, `
proxy:
  listen_address: "127.0.0.1:8181"
`)

	if err := Initialize(path); err != nil {
		t.Fatalf("failed to initialize config: %v", err)
	}

	cfg := GetConfig()
	if cfg == nil {
		t.Fatal("expected non-nil config after initialization")
	}
	if cfg.Proxy.ListenAddress != "127.0.0.1:8181" {
		t.Errorf("expected listen address %q, got %q", "127.0.0.1:8181", cfg.Proxy.ListenAddress)
	}
}

func TestInitialize_MultipleCallsIgnored(t *testing.T) {
	resetSingleton()

	path1 := writeConfig(t, "proxy:\n  listen_address: \"127.0.0.1:8080\"\n")
	path2 := writeConfig(t, "proxy:\n  listen_address: \"0.0.0.0:9999\"\n")

	if err := Initialize(path1); err != nil {
		t.Fatalf("failed to initialize config: %v", err)
	}
	Initialize(path2)

	if got := GetConfig().Proxy.ListenAddress; got != "127.0.0.1:8080" {
		t.Errorf("second Initialize call should be ignored, got %q", got)
	}
}

func TestInitialize_RetryAfterFailure(t *testing.T) {
	resetSingleton()

	bad := writeConfig(t, "proxy:\n  max_request_bytes: 1\n")
	if err := Initialize(bad); err == nil {
		t.Fatal("expected invalid config to fail")
	}
	if GetConfig() != nil {
		t.Fatal("failed Initialize must not install a config")
	}

	good := writeConfig(t, "proxy:\n  listen_address: \"127.0.0.1:8282\"\n")
	if err := Initialize(good); err != nil {
		t.Fatalf("Initialize after failure: %v", err)
	}
	if got := GetConfig().Proxy.ListenAddress; got != "127.0.0.1:8282" {
		t.Errorf("listen address = %q", got)
	}
}

func TestGetConfig_BeforeInitialize(t *testing.T) {
	resetSingleton()

	if cfg := GetConfig(); cfg != nil {
		t.Error("expected nil config before initialization")
	}
}

func TestSetConfig(t *testing.T) {
	resetSingleton()

	SetConfig(NewTestConfig().WithListenAddress("192.168.1.1:7070").Build())

	if got := GetConfig().Proxy.ListenAddress; got != "192.168.1.1:7070" {
		t.Errorf("expected listen address %q, got %q", "192.168.1.1:7070", got)
	}
}

func TestReloadConfig(t *testing.T) {
	resetSingleton()

	path := writeConfig(t, "telemetry:\n  logging:\n    level: info\n")
	if err := Initialize(path); err != nil {
		t.Fatalf("failed to initialize: %v", err)
	}

	if err := os.WriteFile(path, []byte("telemetry:\n  logging:\n    level: debug\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := ReloadConfig(path); err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if got := GetConfig().Telemetry.Logging.Level; got != "debug" {
		t.Errorf("expected reloaded level debug, got %q", got)
	}

	// A broken file leaves the current configuration in place.
	if err := os.WriteFile(path, []byte("telemetry:\n  logging:\n    level: loud\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := ReloadConfig(path); err == nil {
		t.Fatal("expected reload of invalid config to fail")
	}
	if got := GetConfig().Telemetry.Logging.Level; got != "debug" {
		t.Errorf("invalid reload replaced config, level = %q", got)
	}
}

func TestMustGetConfig_Panics(t *testing.T) {
	resetSingleton()

	defer func() {
		if recover() == nil {
			t.Error("expected panic when config is not initialized")
		}
	}()
	MustGetConfig()
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	resetSingleton()

	path := writeConfig(t, "telemetry:\n  logging:\n    level: info\n")
	if err := Initialize(path); err != nil {
		t.Fatalf("failed to initialize: %v", err)
	}

	w, err := NewWatcher(path, nil)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	w.SetDebounce(10 * time.Millisecond)

	reloaded := make(chan *Config, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- w.Watch(ctx, func(cfg *Config) {
			select {
			case reloaded <- cfg:
			default:
			}
		})
	}()

	// Give the watcher a moment to register the directory.
	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(path, []byte("telemetry:\n  logging:\n    level: error\n"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.Telemetry.Logging.Level != "error" {
			t.Errorf("expected reloaded level error, got %q", cfg.Telemetry.Logging.Level)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not reload the config")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Watch returned error: %v", err)
	}
}

func TestReloadConfig_Overrides(t *testing.T) {
	pinLevel := func(level string) Override {
		return func(cfg *Config) error {
			cfg.Telemetry.Logging.Level = level
			return nil
		}
	}

	tests := []struct {
		name      string
		overrides []Override
		wantErr   bool
		wantLevel string
	}{
		{name: "no overrides", wantLevel: "info"},
		{name: "override wins over file", overrides: []Override{pinLevel("warn")}, wantLevel: "warn"},
		{name: "applied in order", overrides: []Override{pinLevel("warn"), pinLevel("debug")}, wantLevel: "debug"},
		{
			name:      "override error keeps current",
			overrides: []Override{func(*Config) error { return errors.New("bad port") }},
			wantErr:   true,
			wantLevel: "error",
		},
		{name: "invalid result keeps current", overrides: []Override{pinLevel("loud")}, wantErr: true, wantLevel: "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetSingleton()
			SetConfig(NewTestConfig().WithLoggingLevel("error").Build())

			path := writeConfig(t, "telemetry:\n  logging:\n    level: info\n")
			err := ReloadConfig(path, tt.overrides...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ReloadConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := GetConfig().Telemetry.Logging.Level; got != tt.wantLevel {
				t.Errorf("level = %q, want %q", got, tt.wantLevel)
			}
		})
	}
}

func TestWatcher_KeepsOverrides(t *testing.T) {
	resetSingleton()

	path := writeConfig(t, "proxy:\n  listen_address: \"127.0.0.1:8080\"\n")
	if err := Initialize(path); err != nil {
		t.Fatalf("failed to initialize: %v", err)
	}

	w, err := NewWatcher(path, nil)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	w.SetDebounce(10 * time.Millisecond)
	w.SetOverrides(nil, func(cfg *Config) error {
		cfg.Proxy.ListenAddress = "127.0.0.1:3128"
		return nil
	})

	reloaded := make(chan *Config, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- w.Watch(ctx, func(cfg *Config) {
			select {
			case reloaded <- cfg:
			default:
			}
		})
	}()

	time.Sleep(50 * time.Millisecond)
	content := "proxy:\n  listen_address: \"127.0.0.1:9000\"\ntelemetry:\n  logging:\n    level: warn\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.Proxy.ListenAddress != "127.0.0.1:3128" {
			t.Errorf("listen address = %q, want the override", cfg.Proxy.ListenAddress)
		}
		if cfg.Telemetry.Logging.Level != "warn" {
			t.Errorf("level = %q, want warn from the file", cfg.Telemetry.Logging.Level)
		}
		if GetConfig() != cfg {
			t.Error("installed config differs from the one passed to onReload")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not reload the config")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Watch returned error: %v", err)
	}
}
