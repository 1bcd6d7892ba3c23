// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	DBPath      string
	LogLevel    slog.Level

	Answer      AnswerServiceConfig
	Sessions    SessionConfig
	RateLimit   RateLimitConfig
	ProfilePath string
	RedisURL    string

	ConversationLog ConversationLogConfig
}

// AnswerServiceConfig locates the remote answering service.
type AnswerServiceConfig struct {
	URL            string
	HealthGRPCAddr string // optional; probes over grpc.health.v1 when set
	HealthInterval time.Duration
	HealthTimeout  time.Duration
	AskTimeout     time.Duration
}

// SessionConfig controls per-tab controller lifetime.
type SessionConfig struct {
	TTL           time.Duration
	SweepInterval time.Duration
	// HealthInterval is how often a session reads the shared health status.
	HealthInterval time.Duration
}

// RateLimitConfig throttles submissions per visitor.
type RateLimitConfig struct {
	PerMinute int
	Burst     int
}

// ConversationLogConfig controls NDJSON conversation logging.
type ConversationLogConfig struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		DBPath:      getEnv("DB_PATH", "./data/portfolio.db"),
		LogLevel:    getEnvLevel("LOG_LEVEL", slog.LevelInfo),
		Answer: AnswerServiceConfig{
			URL:            getEnv("ANSWER_SERVICE_URL", "http://localhost:5001"),
			HealthGRPCAddr: getEnv("ANSWER_HEALTH_GRPC_ADDR", ""),
			HealthInterval: getEnvDuration("HEALTH_INTERVAL", 30*time.Second),
			HealthTimeout:  getEnvDuration("HEALTH_TIMEOUT", 5*time.Second),
			AskTimeout:     getEnvDuration("ASK_TIMEOUT", 20*time.Second),
		},
		Sessions: SessionConfig{
			TTL:            getEnvDuration("SESSION_TTL", 60*time.Minute),
			SweepInterval:  getEnvDuration("SWEEP_INTERVAL", 5*time.Minute),
			HealthInterval: getEnvDuration("SESSION_HEALTH_INTERVAL", 2*time.Second),
		},
		RateLimit: RateLimitConfig{
			PerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 20),
			Burst:     getEnvInt("RATE_LIMIT_BURST", 5),
		},
		ProfilePath: getEnv("PROFILE_PATH", ""),
		RedisURL:    getEnv("REDIS_URL", ""),
		ConversationLog: ConversationLogConfig{
			Enabled:       getEnvBool("CONVERSATION_LOG_ENABLED", false),
			Dir:           getEnv("CONVERSATION_LOG_DIR", "./data/logs/conversations"),
			GlobalEnabled: getEnvBool("CONVERSATION_LOG_GLOBAL_ENABLED", false),
			GlobalPath:    getEnv("CONVERSATION_LOG_GLOBAL_PATH", "./data/logs/conversations/all.ndjson"),
			QueueSize:     queueSize,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	u, err := url.Parse(c.Answer.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("ANSWER_SERVICE_URL must be an absolute URL, got %q", c.Answer.URL)
	}
	if c.Answer.HealthInterval <= 0 {
		return fmt.Errorf("HEALTH_INTERVAL must be > 0")
	}
	if c.Answer.HealthTimeout <= 0 {
		return fmt.Errorf("HEALTH_TIMEOUT must be > 0")
	}
	if c.Answer.AskTimeout <= 0 {
		return fmt.Errorf("ASK_TIMEOUT must be > 0")
	}
	if c.Sessions.TTL <= 0 || c.Sessions.SweepInterval <= 0 || c.Sessions.HealthInterval <= 0 {
		return fmt.Errorf("SESSION_TTL, SWEEP_INTERVAL and SESSION_HEALTH_INTERVAL must be > 0")
	}
	if c.RateLimit.PerMinute <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE and RATE_LIMIT_BURST must be > 0")
	}
	if c.ConversationLog.Enabled && c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	if c.ConversationLog.GlobalEnabled && c.ConversationLog.GlobalPath == "" {
		return fmt.Errorf("CONVERSATION_LOG_GLOBAL_PATH cannot be empty")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// AllowedOrigins returns the CORS allow-list.
func (c *Config) AllowedOrigins() []string {
	if c.FrontendURL == "" {
		return []string{"*"}
	}
	var origins []string
	for _, o := range strings.Split(c.FrontendURL, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

// getEnvDuration accepts Go durations ("45s") or bare seconds ("45").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func getEnvLevel(key string, fallback slog.Level) slog.Level {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(value))); err != nil {
		return fallback
	}
	return level
}
