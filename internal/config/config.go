// Package config provides environment configuration for the chat server.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	// AssistantFile holds the persona text seeding every system prompt.
	AssistantFile = "assistant.txt"
	// APIKeyFile holds the completion provider credential.
	APIKeyFile = "apikey.txt"
	// ChatLogDir is the directory under the root holding per-session logs.
	ChatLogDir = "Chatlogs"
)

// ErrInvalidConfig marks configuration problems that must stop startup.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ShutdownTimeout    time.Duration

	// Filesystem root holding assistant.txt, apikey.txt and Chatlogs/
	RootPath string

	// LLM settings
	LLMProvider string
	LLMModel    string
	LLMBaseURL  string
	APIKey      string

	// Assistant persona seed
	AssistantText string

	// Session cookie
	SessionSecret string
	SessionTTL    time.Duration

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Logging
	LogLevel string

	// NATS settings, events are disabled when NATSURL is empty
	NATSURL      string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string
	NATSToken    string
	NATSMaxAge   time.Duration
	NATSReplicas int

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables and the files under
// the root path. Missing or empty assistant and credential files are fatal.
func Load() (*Config, error) {
	cfg := &Config{
		// Server
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:    getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),

		RootPath: getEnv("ROOT_PATH", "."),

		// LLM
		LLMProvider: strings.ToLower(getEnv("LLM_PROVIDER", "openai")),
		LLMModel:    getEnv("LLM_MODEL", ""),
		LLMBaseURL:  getEnv("LLM_BASE_URL", ""),

		// Session
		SessionSecret: getEnv("SESSION_SECRET", "development-secret-change-in-production"),
		SessionTTL:    getDurationEnv("SESSION_TTL", 30*24*time.Hour),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 30),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// NATS
		NATSURL:      getEnv("NATS_URL", ""),
		NATSCAFile:   getEnv("NATS_CA_FILE", ""),
		NATSCertFile: getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:  getEnv("NATS_KEY_FILE", ""),
		NATSToken:    getEnv("NATS_TOKEN", ""),
		NATSMaxAge:   getDurationEnv("NATS_EVENTS_MAX_AGE", 30*24*time.Hour),
		NATSReplicas: getIntEnv("NATS_EVENTS_REPLICAS", 1),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}

	switch cfg.LLMProvider {
	case "openai", "anthropic":
	default:
		return nil, fmt.Errorf("%w: unknown LLM_PROVIDER %q", ErrInvalidConfig, cfg.LLMProvider)
	}

	var err error
	cfg.AssistantText, err = readRequired(cfg.RootPath, AssistantFile, false)
	if err != nil {
		return nil, err
	}
	cfg.APIKey, err = readRequired(cfg.RootPath, APIKeyFile, true)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// ChatLogPath returns the directory holding the conversation logs.
func (c *Config) ChatLogPath() string {
	return filepath.Join(c.RootPath, ChatLogDir)
}

func readRequired(root, name string, trim bool) (string, error) {
	path := filepath.Join(root, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read %s: %v", ErrInvalidConfig, path, err)
	}
	text := string(data)
	if trim {
		text = strings.TrimSpace(text)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: %s is empty", ErrInvalidConfig, path)
	}
	return text, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
