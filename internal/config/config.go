package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Port           string
	AllowedOrigins []string
	LogLevel       string

	// WebSocket settings for the dashboard feed
	WSReadTimeout  time.Duration
	WSWriteTimeout time.Duration
	PingPeriod     time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64

	// Assignment engine
	CapacityThreshold float64
	MaxRetryRounds    int
	EnableContinuity  bool
	EnableWeighted    bool

	// Breach lifecycle
	EnableDuplicateDetection bool
	DuplicateWindow          time.Duration

	// Live-call coordination
	HoldAlertThreshold    time.Duration
	HoldCheckInterval     time.Duration
	TranscriptWindow      int
	EscalationKeywords    []string
	SentimentThreshold    float64
	HandoffRetention      time.Duration
	MaxSupervisorSlots    int
	RosterBroadcastMinGap time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:5173"), ","),
		LogLevel:       getEnv("LOG_LEVEL", "info"),

		EnableContinuity:         getEnvBool("ENABLE_CONTINUITY", true),
		EnableWeighted:           getEnvBool("ENABLE_WEIGHTED_ROTATION", false),
		EnableDuplicateDetection: getEnvBool("ENABLE_DUPLICATE_DETECTION", true),

		EscalationKeywords: strings.Split(getEnv("ESCALATION_KEYWORDS", "manager,refund,lawyer,complaint,supervisor"), ","),
		MaxMessageSize:     512,
	}

	// Parse WebSocket timeouts
	wsReadTimeout, err := strconv.Atoi(getEnv("WS_READ_TIMEOUT", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid WS_READ_TIMEOUT: %w", err)
	}
	config.WSReadTimeout = time.Duration(wsReadTimeout) * time.Second

	wsWriteTimeout, err := strconv.Atoi(getEnv("WS_WRITE_TIMEOUT", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid WS_WRITE_TIMEOUT: %w", err)
	}
	config.WSWriteTimeout = time.Duration(wsWriteTimeout) * time.Second

	// Calculate WebSocket constants
	config.PongWait = config.WSReadTimeout
	config.PingPeriod = (config.PongWait * 9) / 10 // Must be less than pongWait
	config.WriteWait = config.WSWriteTimeout

	// Assignment engine
	capacityThreshold, err := strconv.ParseFloat(getEnv("CAPACITY_THRESHOLD", "0.9"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid CAPACITY_THRESHOLD: %w", err)
	}
	if capacityThreshold <= 0 || capacityThreshold > 1 {
		return nil, fmt.Errorf("CAPACITY_THRESHOLD must be in (0, 1], got %v", capacityThreshold)
	}
	config.CapacityThreshold = capacityThreshold

	maxRetryRounds, err := strconv.Atoi(getEnv("MAX_RETRY_ROUNDS", "3"))
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_RETRY_ROUNDS: %w", err)
	}
	config.MaxRetryRounds = maxRetryRounds

	// Breach lifecycle
	dupWindow, err := strconv.Atoi(getEnv("DUPLICATE_WINDOW_SECONDS", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid DUPLICATE_WINDOW_SECONDS: %w", err)
	}
	config.DuplicateWindow = time.Duration(dupWindow) * time.Second

	// Live-call coordination
	holdThreshold, err := strconv.Atoi(getEnv("HOLD_ALERT_THRESHOLD_SECONDS", "120"))
	if err != nil {
		return nil, fmt.Errorf("invalid HOLD_ALERT_THRESHOLD_SECONDS: %w", err)
	}
	config.HoldAlertThreshold = time.Duration(holdThreshold) * time.Second

	holdInterval, err := strconv.Atoi(getEnv("HOLD_CHECK_INTERVAL_SECONDS", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid HOLD_CHECK_INTERVAL_SECONDS: %w", err)
	}
	config.HoldCheckInterval = time.Duration(holdInterval) * time.Second

	transcriptWindow, err := strconv.Atoi(getEnv("TRANSCRIPT_WINDOW", "50"))
	if err != nil {
		return nil, fmt.Errorf("invalid TRANSCRIPT_WINDOW: %w", err)
	}
	config.TranscriptWindow = transcriptWindow

	sentimentThreshold, err := strconv.ParseFloat(getEnv("SENTIMENT_THRESHOLD", "-0.5"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid SENTIMENT_THRESHOLD: %w", err)
	}
	config.SentimentThreshold = sentimentThreshold

	retentionDays, err := strconv.Atoi(getEnv("HANDOFF_RETENTION_DAYS", "7"))
	if err != nil {
		return nil, fmt.Errorf("invalid HANDOFF_RETENTION_DAYS: %w", err)
	}
	config.HandoffRetention = time.Duration(retentionDays) * 24 * time.Hour

	maxSessions, err := strconv.Atoi(getEnv("MAX_SUPERVISOR_SESSIONS", "100"))
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_SUPERVISOR_SESSIONS: %w", err)
	}
	config.MaxSupervisorSlots = maxSessions

	broadcastGap, err := strconv.Atoi(getEnv("ROSTER_BROADCAST_MIN_GAP_MS", "500"))
	if err != nil {
		return nil, fmt.Errorf("invalid ROSTER_BROADCAST_MIN_GAP_MS: %w", err)
	}
	config.RosterBroadcastMinGap = time.Duration(broadcastGap) * time.Millisecond

	// Trim spaces from list values
	for i, origin := range config.AllowedOrigins {
		config.AllowedOrigins[i] = strings.TrimSpace(origin)
	}
	for i, kw := range config.EscalationKeywords {
		config.EscalationKeywords[i] = strings.TrimSpace(kw)
	}

	return config, nil
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a fallback default
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1"
}
