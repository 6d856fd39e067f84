// Package config handles loading and validation of gateway configuration.
// Supports both development (env vars) and production (Secret Manager) modes.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
)

// Config holds all service configuration.
// Environment determines whether the auth token loads from env vars
// (development) or Secret Manager (production).
type Config struct {
	// Server settings
	Port        string
	Environment string // "development" or "production"
	LogLevel    string // "debug", "info", "warn", "error"

	// GCP settings (required in production)
	GCPProject  string
	TokenSecret string // Secret Manager secret holding the gateway auth token

	// Gateway behaviour
	Gateway GatewayConfig
}

// GatewayConfig contains the websocket endpoint settings.
// In development it is loaded from individual env vars or CONFIG_FILE;
// production additionally pulls AuthToken from Secret Manager.
type GatewayConfig struct {
	// Path is the upgrade endpoint, e.g. "/ws".
	Path string `json:"path"`

	// AllowedOrigins enables origin enforcement when non-empty.
	AllowedOrigins []string `json:"allowed_origins,omitempty"`

	// AuthToken enables bearer-token enforcement when non-empty.
	AuthToken string `json:"auth_token,omitempty"`

	// Subprotocols the gateway accepts, e.g. {"name":"chat","versions":["v1","v2"]}.
	Subprotocols []ProtocolConfig `json:"subprotocols,omitempty"`

	ReadBufferSize  int `json:"read_buffer_size,omitempty"`
	WriteBufferSize int `json:"write_buffer_size,omitempty"`

	// MaxMessageSize caps inbound frames in bytes. Zero means unlimited.
	MaxMessageSize int64 `json:"max_message_size,omitempty"`

	// HandshakeTimeoutSeconds bounds the upgrade, not the session.
	HandshakeTimeoutSeconds int `json:"handshake_timeout_seconds,omitempty"`

	EnableCompression bool `json:"enable_compression,omitempty"`
	EnableMetrics     bool `json:"enable_metrics,omitempty"`
}

// ProtocolConfig describes one accepted subprotocol family.
type ProtocolConfig struct {
	Name     string   `json:"name"`
	Versions []string `json:"versions,omitempty"`
}

// HandshakeTimeout returns the configured timeout as a duration.
func (g GatewayConfig) HandshakeTimeout() time.Duration {
	return time.Duration(g.HandshakeTimeoutSeconds) * time.Second
}

// Load reads configuration from file, environment, or Secret Manager.
// Priority: CONFIG_FILE (if set) -> ENV vars / Secret Manager.
// Validates all required fields and returns an error if any are missing.
func Load(ctx context.Context) (*Config, error) {
	// If CONFIG_FILE is set, load everything from the JSON file
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromFile(configPath)
	}

	cfg := &Config{
		Port:        envOrDefault("PORT", "8080"),
		Environment: envOrDefault("ENVIRONMENT", "development"),
		LogLevel:    envOrDefault("LOG_LEVEL", "info"),
		GCPProject:  os.Getenv("GCP_PROJECT"),
		TokenSecret: os.Getenv("TOKEN_SECRET"),
	}

	if err := cfg.loadGatewayFromEnv(); err != nil {
		return nil, fmt.Errorf("loading gateway config: %w", err)
	}

	// Production pulls the auth token out of Secret Manager instead of the
	// environment.
	if cfg.Environment == "production" && cfg.TokenSecret != "" {
		if cfg.GCPProject == "" {
			return nil, fmt.Errorf("GCP_PROJECT required when TOKEN_SECRET is set")
		}
		if err := cfg.loadTokenFromSecretManager(ctx); err != nil {
			return nil, fmt.Errorf("loading auth token: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromFile reads all configuration from a JSON file.
// Used for local development to avoid multiple ENV vars.
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var fileConfig struct {
		Port        string        `json:"port"`
		Environment string        `json:"environment"`
		LogLevel    string        `json:"log_level"`
		Gateway     GatewayConfig `json:"gateway"`
	}

	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg := &Config{
		Port:        withDefault(fileConfig.Port, "8080"),
		Environment: withDefault(fileConfig.Environment, "development"),
		LogLevel:    withDefault(fileConfig.LogLevel, "info"),
		Gateway:     fileConfig.Gateway,
	}
	if cfg.Gateway.Path == "" {
		cfg.Gateway.Path = "/ws"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadGatewayFromEnv reads gateway config from individual environment
// variables. Used in development mode for local testing.
func (c *Config) loadGatewayFromEnv() error {
	c.Gateway = GatewayConfig{
		Path:              envOrDefault("WS_PATH", "/ws"),
		AuthToken:         os.Getenv("WS_AUTH_TOKEN"),
		EnableCompression: os.Getenv("WS_COMPRESSION") == "true",
		EnableMetrics:     envOrDefault("WS_METRICS", "true") == "true",
	}

	if origins := os.Getenv("WS_ALLOWED_ORIGINS"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.Gateway.AllowedOrigins = append(c.Gateway.AllowedOrigins, o)
			}
		}
	}

	// Subprotocols as JSON to keep the env surface small
	if protosJSON := os.Getenv("WS_SUBPROTOCOLS"); protosJSON != "" {
		if err := json.Unmarshal([]byte(protosJSON), &c.Gateway.Subprotocols); err != nil {
			return fmt.Errorf("parsing WS_SUBPROTOCOLS JSON: %w", err)
		}
	}

	var err error
	if c.Gateway.MaxMessageSize, err = envInt64("WS_MAX_MESSAGE_SIZE"); err != nil {
		return err
	}
	readBuf, err := envInt("WS_READ_BUFFER_SIZE")
	if err != nil {
		return err
	}
	writeBuf, err := envInt("WS_WRITE_BUFFER_SIZE")
	if err != nil {
		return err
	}
	timeout, err := envInt("WS_HANDSHAKE_TIMEOUT_SECONDS")
	if err != nil {
		return err
	}
	c.Gateway.ReadBufferSize = readBuf
	c.Gateway.WriteBufferSize = writeBuf
	c.Gateway.HandshakeTimeoutSeconds = timeout

	return nil
}

// loadTokenFromSecretManager fetches the gateway auth token from GCP Secret
// Manager. Secret name format: projects/{project}/secrets/{name}/versions/latest
func (c *Config) loadTokenFromSecretManager(ctx context.Context) error {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("creating secret manager client: %w", err)
	}
	defer client.Close()

	secretName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest",
		c.GCPProject, c.TokenSecret)

	result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: secretName,
	})
	if err != nil {
		return fmt.Errorf("accessing secret %s: %w", secretName, err)
	}

	c.Gateway.AuthToken = strings.TrimSpace(string(result.Payload.Data))
	return nil
}

// validate checks that all required configuration fields are coherent.
func (c *Config) validate() error {
	if !strings.HasPrefix(c.Gateway.Path, "/") {
		return fmt.Errorf("gateway path must start with /: %q", c.Gateway.Path)
	}
	for _, p := range c.Gateway.Subprotocols {
		if p.Name == "" {
			return fmt.Errorf("subprotocol name is required")
		}
	}
	if c.Gateway.MaxMessageSize < 0 {
		return fmt.Errorf("max_message_size must be non-negative")
	}
	if c.Gateway.ReadBufferSize < 0 || c.Gateway.WriteBufferSize < 0 {
		return fmt.Errorf("buffer sizes must be non-negative")
	}
	if c.Gateway.HandshakeTimeoutSeconds < 0 {
		return fmt.Errorf("handshake_timeout_seconds must be non-negative")
	}
	return nil
}

// withDefault returns val if non-empty, otherwise defaultVal.
func withDefault(val, defaultVal string) string {
	if val != "" {
		return val
	}
	return defaultVal
}

// envOrDefault returns the environment variable value or the default if not set.
func envOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// envInt parses an optional integer environment variable.
func envInt(key string) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return n, nil
}

// envInt64 parses an optional 64-bit integer environment variable.
func envInt64(key string) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return n, nil
}
