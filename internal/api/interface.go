package api

import (
	"context"

	"github.com/solosuccess/competitor-intel/internal/alerts"
	"github.com/solosuccess/competitor-intel/internal/briefing"
	"github.com/solosuccess/competitor-intel/internal/models"
	"github.com/solosuccess/competitor-intel/internal/tracker"
)

// Tracker runs competitor tracking on demand
type Tracker interface {
	TrackCompetitor(ctx context.Context, competitorID string) *models.TrackingResult
	TrackAllForUser(ctx context.Context, userID string) ([]*models.TrackingResult, error)
	TrackAllActive(ctx context.Context) (*models.TrackingSummary, error)
	GetMetrics() string
}

// AlertManager exposes in-app alerts and alert preferences
type AlertManager interface {
	Alerts(ctx context.Context, userID string, unreadOnly bool) ([]models.InAppAlert, error)
	MarkRead(ctx context.Context, userID, alertID string) error
	MarkAllRead(ctx context.Context, userID string) error
	Delete(ctx context.Context, userID, alertID string) error
	Preferences(ctx context.Context, userID string) (*models.AlertPreferences, error)
	UpdatePreferences(ctx context.Context, userID string, patch *alerts.PreferencesPatch) (*models.AlertPreferences, error)
}

// BriefingService generates, delivers and archives briefings
type BriefingService interface {
	Generate(ctx context.Context, userID, kind string) (*models.Briefing, error)
	Deliver(ctx context.Context, kind string) (*models.DeliveryResult, error)
	History(ctx context.Context, userID string) ([]string, error)
	Archived(ctx context.Context, userID, name string) (*models.Briefing, error)
}

var (
	_ Tracker         = (*tracker.Service)(nil)
	_ AlertManager    = (*alerts.Service)(nil)
	_ BriefingService = (*briefing.Service)(nil)
)
