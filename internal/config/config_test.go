package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// clearEnv unsets every variable Load reads so tests are hermetic.
func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"CONFIG_FILE", "PORT", "ENVIRONMENT", "LOG_LEVEL",
		"GCP_PROJECT", "TOKEN_SECRET",
		"WS_PATH", "WS_AUTH_TOKEN", "WS_COMPRESSION", "WS_METRICS",
		"WS_ALLOWED_ORIGINS", "WS_SUBPROTOCOLS", "WS_MAX_MESSAGE_SIZE",
		"WS_READ_BUFFER_SIZE", "WS_WRITE_BUFFER_SIZE", "WS_HANDSHAKE_TIMEOUT_SECONDS",
	}
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %s, want 8080", cfg.Port)
	}
	if cfg.Environment != "development" {
		t.Errorf("Environment = %s, want development", cfg.Environment)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %s, want info", cfg.LogLevel)
	}
	if cfg.Gateway.Path != "/ws" {
		t.Errorf("Gateway.Path = %s, want /ws", cfg.Gateway.Path)
	}
	if !cfg.Gateway.EnableMetrics {
		t.Error("Gateway.EnableMetrics should default to true")
	}
	if cfg.Gateway.EnableCompression {
		t.Error("Gateway.EnableCompression should default to false")
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("WS_PATH", "/gateway")
	t.Setenv("WS_AUTH_TOKEN", "s3cret")
	t.Setenv("WS_COMPRESSION", "true")
	t.Setenv("WS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("WS_SUBPROTOCOLS", `[{"name":"chat","versions":["v1","v2"]}]`)
	t.Setenv("WS_MAX_MESSAGE_SIZE", "65536")
	t.Setenv("WS_HANDSHAKE_TIMEOUT_SECONDS", "5")

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Port != "9000" {
		t.Errorf("Port = %s, want 9000", cfg.Port)
	}
	if cfg.Gateway.Path != "/gateway" {
		t.Errorf("Gateway.Path = %s, want /gateway", cfg.Gateway.Path)
	}
	if cfg.Gateway.AuthToken != "s3cret" {
		t.Errorf("Gateway.AuthToken = %s, want s3cret", cfg.Gateway.AuthToken)
	}
	if !cfg.Gateway.EnableCompression {
		t.Error("Gateway.EnableCompression should be true")
	}

	wantOrigins := []string{"https://a.example.com", "https://b.example.com"}
	if len(cfg.Gateway.AllowedOrigins) != len(wantOrigins) {
		t.Fatalf("AllowedOrigins = %v, want %v", cfg.Gateway.AllowedOrigins, wantOrigins)
	}
	for i, o := range wantOrigins {
		if cfg.Gateway.AllowedOrigins[i] != o {
			t.Errorf("AllowedOrigins[%d] = %s, want %s", i, cfg.Gateway.AllowedOrigins[i], o)
		}
	}

	if len(cfg.Gateway.Subprotocols) != 1 || cfg.Gateway.Subprotocols[0].Name != "chat" {
		t.Errorf("Subprotocols = %+v, want one chat family", cfg.Gateway.Subprotocols)
	}
	if cfg.Gateway.MaxMessageSize != 65536 {
		t.Errorf("MaxMessageSize = %d, want 65536", cfg.Gateway.MaxMessageSize)
	}
	if cfg.Gateway.HandshakeTimeout() != 5*time.Second {
		t.Errorf("HandshakeTimeout() = %v, want 5s", cfg.Gateway.HandshakeTimeout())
	}
}

func TestLoadFromFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.json")
	data := `{
		"port": "7070",
		"log_level": "debug",
		"gateway": {
			"path": "/ws",
			"auth_token": "file-token",
			"subprotocols": [{"name": "echo"}],
			"enable_metrics": true
		}
	}`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Port != "7070" {
		t.Errorf("Port = %s, want 7070", cfg.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %s, want debug", cfg.LogLevel)
	}
	if cfg.Gateway.AuthToken != "file-token" {
		t.Errorf("Gateway.AuthToken = %s, want file-token", cfg.Gateway.AuthToken)
	}
	if len(cfg.Gateway.Subprotocols) != 1 || cfg.Gateway.Subprotocols[0].Name != "echo" {
		t.Errorf("Subprotocols = %+v, want one echo family", cfg.Gateway.Subprotocols)
	}
}

func TestLoadFileMissing(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_FILE", "/nonexistent/config.json")

	if _, err := Load(context.Background()); err == nil {
		t.Error("Load() should fail for a missing config file")
	}
}

func TestLoadInvalidSubprotocolsJSON(t *testing.T) {
	clearEnv(t)
	t.Setenv("WS_SUBPROTOCOLS", "not json")

	if _, err := Load(context.Background()); err == nil {
		t.Error("Load() should fail for malformed WS_SUBPROTOCOLS")
	}
}

func TestLoadProductionRequiresProject(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("TOKEN_SECRET", "gateway-token")

	if _, err := Load(context.Background()); err == nil {
		t.Error("Load() should fail when TOKEN_SECRET is set without GCP_PROJECT")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"bad path", func(c *Config) { c.Gateway.Path = "ws" }, true},
		{"unnamed subprotocol", func(c *Config) {
			c.Gateway.Subprotocols = []ProtocolConfig{{Versions: []string{"v1"}}}
		}, true},
		{"negative message size", func(c *Config) { c.Gateway.MaxMessageSize = -1 }, true},
		{"negative buffer", func(c *Config) { c.Gateway.ReadBufferSize = -1 }, true},
		{"negative timeout", func(c *Config) { c.Gateway.HandshakeTimeoutSeconds = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Gateway: GatewayConfig{Path: "/ws"}}
			tt.mutate(cfg)
			err := cfg.validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
