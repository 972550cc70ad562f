package alerts

import (
	"context"

	"github.com/solosuccess/competitor-intel/internal/models"
)

// MaxInAppAlerts is the length cap of each user's in-app alert list
const MaxInAppAlerts = 50

// AlertStore keeps each user's in-app alert list, newest first
type AlertStore interface {
	// Push prepends an alert and evicts entries beyond MaxInAppAlerts
	Push(ctx context.Context, userID string, alert *models.InAppAlert) error
	List(ctx context.Context, userID string) ([]models.InAppAlert, error)
	// Rewrite replaces the list with fn applied to the current entries
	Rewrite(ctx context.Context, userID string, fn func([]models.InAppAlert) []models.InAppAlert) error
}
