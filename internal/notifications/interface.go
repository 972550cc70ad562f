package notifications

import (
	"context"

	"github.com/solosuccess/competitor-intel/internal/models"
)

// NotificationInterface defines the contract for delivering alerts and briefings
type NotificationInterface interface {
	SendCompetitorAlert(ctx context.Context, to string, activity *models.CompetitorActivity) error
	SendPush(ctx context.Context, userID string, activity *models.CompetitorActivity) error
	SendBriefing(ctx context.Context, to, subject, htmlBody, textBody string) error
}
