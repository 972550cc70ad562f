package repository

import (
	"context"
	"errors"

	"github.com/solosuccess/competitor-intel/internal/models"
)

// ErrNotFound is returned when a row does not exist
var ErrNotFound = errors.New("not found")

// CompetitorRepository persists competitor profiles
type CompetitorRepository interface {
	Create(ctx context.Context, competitor *models.CompetitorProfile) error
	Get(ctx context.Context, id string) (*models.CompetitorProfile, error)
	ListByUser(ctx context.Context, userID string, activeOnly bool) ([]*models.CompetitorProfile, error)
	ListActive(ctx context.Context) ([]*models.CompetitorProfile, error)
	CountActive(ctx context.Context, userID string) (int, error)
	Update(ctx context.Context, competitor *models.CompetitorProfile) error
	UpdateMetadata(ctx context.Context, id string, metadata models.CompetitorMetadata) error
	Deactivate(ctx context.Context, id string) error
}

// ActivityRepository persists competitor activities. Activities are never updated.
type ActivityRepository interface {
	Create(ctx context.Context, activity *models.CompetitorActivity) error
	Get(ctx context.Context, id string) (*models.CompetitorActivity, error)
	List(ctx context.Context, filter models.ActivityFilter) ([]*models.CompetitorActivity, error)
}

// UserRepository reads users and their profile preferences
type UserRepository interface {
	Get(ctx context.Context, id string) (*models.User, error)
	GetPreferences(ctx context.Context, userID string) (*models.UserPreferences, error)
	SavePreferences(ctx context.Context, userID string, prefs *models.UserPreferences) error
	ListBriefingRecipients(ctx context.Context, tiers []string) ([]*models.UserProfile, error)
}
