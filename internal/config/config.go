package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port  string
	Debug bool

	// Schedule configuration
	TrackSchedule          string
	DailyBriefingSchedule  string
	WeeklyBriefingSchedule string
	TimeZone               string

	// Persistence
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Azure Storage configuration (briefing archive)
	StorageAccount   string
	StorageContainer string

	// Notification configuration
	AlertWebhookURL string
	EmailFrom       string
	SMTPHost        string
	SMTPPort        int
	SMTPUsername    string
	SMTPPassword    string

	// Shared secret for the cron trigger endpoints
	CronSecret string

	// Scraper configuration
	ScrapeMinDelay  time.Duration
	ScrapeTimeout   time.Duration
	ScrapeUserAgent string

	// Plan limits
	PaidTiers                 []string
	MaxCompetitorsAccelerator int
	MaxCompetitorsPremium     int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:  getEnv("PORT", "8080"),
		Debug: getBoolEnv("DEBUG", false),

		TrackSchedule:          getEnv("TRACK_SCHEDULE", "0 0 */6 * * *"),
		DailyBriefingSchedule:  getEnv("DAILY_BRIEFING_SCHEDULE", "0 0 9 * * *"),
		WeeklyBriefingSchedule: getEnv("WEEKLY_BRIEFING_SCHEDULE", "0 0 9 * * MON"),
		TimeZone:               getEnv("TIMEZONE", "UTC"),

		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		StorageAccount:   getEnv("AZURE_STORAGE_ACCOUNT", ""),
		StorageContainer: getEnv("AZURE_STORAGE_CONTAINER", "briefings"),

		AlertWebhookURL: getEnv("ALERT_WEBHOOK_URL", ""),
		EmailFrom:       getEnv("EMAIL_FROM", ""),
		SMTPHost:        getEnv("SMTP_HOST", ""),
		SMTPPort:        getIntEnv("SMTP_PORT", 587),
		SMTPUsername:    getEnv("SMTP_USERNAME", ""),
		SMTPPassword:    getEnv("SMTP_PASSWORD", ""),

		CronSecret: getEnv("CRON_SECRET", ""),

		ScrapeMinDelay:  getDurationEnv("SCRAPE_MIN_DELAY", 2*time.Second),
		ScrapeTimeout:   getDurationEnv("SCRAPE_TIMEOUT", 30*time.Second),
		ScrapeUserAgent: getEnv("SCRAPE_USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"),

		PaidTiers:                 getSliceEnv("PAID_TIERS", []string{"accelerator", "premium"}),
		MaxCompetitorsAccelerator: getIntEnv("MAX_COMPETITORS_ACCELERATOR", 5),
		MaxCompetitorsPremium:     getIntEnv("MAX_COMPETITORS_PREMIUM", 10),
	}

	// Validate required configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return fmt.Errorf("TIMEZONE %q is not a valid location: %w", c.TimeZone, err)
	}

	if c.SMTPHost != "" {
		if c.SMTPUsername == "" || c.SMTPPassword == "" {
			return fmt.Errorf("SMTP_USERNAME and SMTP_PASSWORD are required when SMTP_HOST is set")
		}
	}

	if c.AlertWebhookURL != "" {
		if u, err := url.Parse(c.AlertWebhookURL); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("ALERT_WEBHOOK_URL must be an absolute URL")
		}
	}

	if c.ScrapeMinDelay < 0 {
		return fmt.Errorf("SCRAPE_MIN_DELAY must not be negative")
	}

	if c.MaxCompetitorsAccelerator <= 0 || c.MaxCompetitorsPremium <= 0 {
		return fmt.Errorf("competitor plan limits must be positive")
	}

	return nil
}

// Location returns the configured time zone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Sender returns the address outgoing mail is sent from.
func (c *Config) Sender() string {
	if c.EmailFrom != "" {
		return c.EmailFrom
	}
	return c.SMTPUsername
}

// IsPaidTier reports whether the subscription tier unlocks competitor tracking.
func (c *Config) IsPaidTier(tier string) bool {
	for _, t := range c.PaidTiers {
		if strings.EqualFold(t, tier) {
			return true
		}
	}
	return false
}

// CompetitorLimit returns how many active competitors a tier may track.
func (c *Config) CompetitorLimit(tier string) int {
	if strings.EqualFold(tier, "premium") {
		return c.MaxCompetitorsPremium
	}
	return c.MaxCompetitorsAccelerator
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
