package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/intel")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "0 0 */6 * * *", cfg.TrackSchedule)
	assert.Equal(t, "0 0 9 * * MON", cfg.WeeklyBriefingSchedule)
	assert.Equal(t, 2*time.Second, cfg.ScrapeMinDelay)
	assert.Equal(t, []string{"accelerator", "premium"}, cfg.PaidTiers)
	assert.Equal(t, 5, cfg.MaxCompetitorsAccelerator)
	assert.Equal(t, 10, cfg.MaxCompetitorsPremium)
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/intel")
	t.Setenv("DEBUG", "true")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("SCRAPE_MIN_DELAY", "500ms")
	t.Setenv("PAID_TIERS", "pro, enterprise")
	t.Setenv("TIMEZONE", "Europe/Berlin")
	t.Setenv("SMTP_PORT", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Debug)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, 500*time.Millisecond, cfg.ScrapeMinDelay)
	assert.Equal(t, []string{"pro", "enterprise"}, cfg.PaidTiers)
	assert.Equal(t, "Europe/Berlin", cfg.Location().String())
	assert.Equal(t, 587, cfg.SMTPPort)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing database", map[string]string{}, "DATABASE_URL is required"},
		{"bad timezone", map[string]string{"TIMEZONE": "Mars/Olympus"}, "TIMEZONE"},
		{"smtp without credentials", map[string]string{"SMTP_HOST": "smtp.example.com"}, "SMTP_USERNAME"},
		{"relative webhook", map[string]string{"ALERT_WEBHOOK_URL": "/hooks/teams"}, "ALERT_WEBHOOK_URL"},
		{"zero plan limit", map[string]string{"MAX_COMPETITORS_PREMIUM": "0"}, "plan limits"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "postgres://localhost/intel")
			if tt.name == "missing database" {
				t.Setenv("DATABASE_URL", "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestTierHelpers(t *testing.T) {
	cfg := &Config{
		PaidTiers:                 []string{"accelerator", "premium"},
		MaxCompetitorsAccelerator: 5,
		MaxCompetitorsPremium:     10,
	}

	assert.True(t, cfg.IsPaidTier("Premium"))
	assert.True(t, cfg.IsPaidTier("accelerator"))
	assert.False(t, cfg.IsPaidTier("free"))

	assert.Equal(t, 10, cfg.CompetitorLimit("premium"))
	assert.Equal(t, 5, cfg.CompetitorLimit("accelerator"))
}

func TestSender(t *testing.T) {
	cfg := &Config{SMTPUsername: "bot@example.com"}
	assert.Equal(t, "bot@example.com", cfg.Sender())

	cfg.EmailFrom = "SoloSuccess <intel@example.com>"
	assert.Equal(t, "SoloSuccess <intel@example.com>", cfg.Sender())
}
