package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port              int
	DatabaseURL       string
	LogLevel          string
	AnthropicAPIKey   string
	AnthropicModel    string
	NatsURL           string
	NatsToken         string
	CORSOrigins       string
	MaxUploadBytes    int64
	MaxInflationRatio int64
	ProcessingTimeout int // seconds
	RetentionHours    int
	DefaultRegion     string
	ProximityWindow   int
}

func Load() Config {
	return Config{
		Port:              envInt("MAVEN_PORT", 8760),
		DatabaseURL:       envStr("DATABASE_URL", ""),
		LogLevel:          envStr("LOG_LEVEL", "info"),
		AnthropicAPIKey:   envStr("ANTHROPIC_API_KEY", ""),
		AnthropicModel:    envStr("MAVEN_MODEL", "claude-sonnet-4-20250514"),
		NatsURL:           envStr("NATS_URL", ""),
		NatsToken:         envStr("NATS_TOKEN", ""),
		CORSOrigins:       envStr("CORS_ORIGINS", "http://localhost:8000"),
		MaxUploadBytes:    int64(envInt("MAX_UPLOAD_SIZE", 5*1024*1024)),
		MaxInflationRatio: int64(envInt("MAX_INFLATION_RATIO", 100)),
		ProcessingTimeout: envInt("PROCESSING_TIMEOUT", 30*60),
		RetentionHours:    envInt("RETENTION_HOURS", 24),
		DefaultRegion:     envStr("DEFAULT_PHONE_REGION", "IL"),
		ProximityWindow:   envInt("MAVEN_PROXIMITY_WINDOW", 2),
	}
}

// CORSOriginsList splits the comma-separated CORS_ORIGINS value.
func (c Config) CORSOriginsList() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
