package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Engine       EngineConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// RedisConfig holds Redis connection values for the optional shared
// idempotency cache. An empty Addr keeps the engine on the in-memory cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// EngineConfig tunes the qualification engine.
type EngineConfig struct {
	// AskMoveInDate appends the move-in-date question to the slot priority
	// list. When false the flow hands off to visit scheduling right after
	// budget+currency.
	AskMoveInDate bool

	AssignmentSLAMinutes   int
	DocValidationSLAHours  int
	InboundDedupeTTLSec    int
	InboundDedupeMaxKeys   int
	TimelineDedupeWindowMS int
	ReplyMaxChars          int
	SLAWatcherIntervalSec  int
}

// NotificationConfig points outbound deliveries at external HTTP endpoints.
// Empty URLs disable the corresponding delivery; the engine keeps working on
// logs alone.
type NotificationConfig struct {
	// EventWebhookURL receives every emitted event envelope as JSON.
	EventWebhookURL string
	// OutboundWebhookURL receives engine replies ({to, text}) for delivery to
	// the messaging provider. Empty means replies are only logged.
	OutboundWebhookURL string
	TimeoutSeconds     int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "lead-qualification-engine"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Engine: EngineConfig{
			AskMoveInDate:          getEnvAsBool("ENGINE_ASK_MOVE_IN_DATE", false),
			AssignmentSLAMinutes:   getEnvAsInt("ENGINE_ASSIGNMENT_SLA_MINUTES", 30),
			DocValidationSLAHours:  getEnvAsInt("ENGINE_DOC_VALIDATION_SLA_HOURS", 24),
			InboundDedupeTTLSec:    getEnvAsInt("ENGINE_INBOUND_DEDUPE_TTL_SECONDS", 600),
			InboundDedupeMaxKeys:   getEnvAsInt("ENGINE_INBOUND_DEDUPE_MAX_KEYS", 5000),
			TimelineDedupeWindowMS: getEnvAsInt("ENGINE_TIMELINE_DEDUPE_WINDOW_MS", 2000),
			ReplyMaxChars:          getEnvAsInt("ENGINE_REPLY_MAX_CHARS", 480),
			SLAWatcherIntervalSec:  getEnvAsInt("ENGINE_SLA_WATCHER_INTERVAL_SECONDS", 60),
		},
		Notification: NotificationConfig{
			EventWebhookURL:    os.Getenv("NOTIFY_EVENT_WEBHOOK_URL"),
			OutboundWebhookURL: os.Getenv("NOTIFY_OUTBOUND_WEBHOOK_URL"),
			TimeoutSeconds:     getEnvAsInt("NOTIFY_TIMEOUT_SECONDS", 5),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// AssignmentSLA returns the assignment deadline duration.
func (e EngineConfig) AssignmentSLA() time.Duration {
	return time.Duration(e.AssignmentSLAMinutes) * time.Minute
}

// DocValidationSLA returns the document validation deadline duration.
func (e EngineConfig) DocValidationSLA() time.Duration {
	return time.Duration(e.DocValidationSLAHours) * time.Hour
}

// SLAWatcherInterval returns the breach scan period.
func (e EngineConfig) SLAWatcherInterval() time.Duration {
	if e.SLAWatcherIntervalSec <= 0 {
		return time.Minute
	}
	return time.Duration(e.SLAWatcherIntervalSec) * time.Second
}

// Timeout returns the HTTP client timeout for notification deliveries.
func (n NotificationConfig) Timeout() time.Duration {
	if n.TimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(n.TimeoutSeconds) * time.Second
}

// TimelineDedupeWindow returns the timeline collapse window.
func (e EngineConfig) TimelineDedupeWindow() time.Duration {
	return time.Duration(e.TimelineDedupeWindowMS) * time.Millisecond
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
