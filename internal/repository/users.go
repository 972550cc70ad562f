package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/solosuccess/competitor-intel/internal/models"
)

// PostgresUserRepository reads users and profile preferences from Postgres
type PostgresUserRepository struct {
	db *sqlx.DB
}

// Ensure PostgresUserRepository implements UserRepository
var _ UserRepository = (*PostgresUserRepository)(nil)

// NewPostgresUserRepository creates a new user repository
func NewPostgresUserRepository(db *sqlx.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

// Get loads a user by ID
func (r *PostgresUserRepository) Get(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	query := `SELECT id, email, subscription_tier, subscription_status, email_verified FROM users WHERE id = $1`
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// GetPreferences returns the user's preferences; a missing profile yields empty preferences
func (r *PostgresUserRepository) GetPreferences(ctx context.Context, userID string) (*models.UserPreferences, error) {
	var raw []byte
	query := `SELECT preferences FROM user_profiles WHERE user_id = $1`
	if err := r.db.GetContext(ctx, &raw, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.UserPreferences{}, nil
		}
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}

	var prefs models.UserPreferences
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &prefs); err != nil {
			return nil, fmt.Errorf("failed to decode preferences for %s: %w", userID, err)
		}
	}
	return &prefs, nil
}

// SavePreferences merges the given preferences into the stored JSON document.
// Top-level keys owned by other parts of the product are left untouched.
func (r *PostgresUserRepository) SavePreferences(ctx context.Context, userID string, prefs *models.UserPreferences) error {
	data, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}

	query := `
		INSERT INTO user_profiles (user_id, preferences, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET preferences = user_profiles.preferences || EXCLUDED.preferences, updated_at = NOW()
	`
	if _, err := r.db.ExecContext(ctx, query, userID, data); err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return nil
}

// ListBriefingRecipients returns verified users with an active subscription on one of the tiers
func (r *PostgresUserRepository) ListBriefingRecipients(ctx context.Context, tiers []string) ([]*models.UserProfile, error) {
	query := `
		SELECT u.id, u.email, u.subscription_tier, u.subscription_status, u.email_verified,
		       COALESCE(p.preferences, '{}'::jsonb) AS preferences
		FROM users u
		LEFT JOIN user_profiles p ON p.user_id = u.id
		WHERE u.subscription_tier = ANY($1)
		  AND u.subscription_status = 'active'
		  AND u.email_verified = TRUE
		ORDER BY u.id
	`

	rows, err := r.db.QueryxContext(ctx, query, pq.Array(tiers))
	if err != nil {
		return nil, fmt.Errorf("failed to list briefing recipients: %w", err)
	}
	defer rows.Close()

	var profiles []*models.UserProfile
	for rows.Next() {
		var profile models.UserProfile
		var raw []byte
		if err := rows.Scan(
			&profile.ID,
			&profile.Email,
			&profile.SubscriptionTier,
			&profile.SubscriptionStatus,
			&profile.EmailVerified,
			&raw,
		); err != nil {
			return nil, fmt.Errorf("failed to scan recipient: %w", err)
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &profile.Preferences); err != nil {
				return nil, fmt.Errorf("failed to decode preferences for %s: %w", profile.ID, err)
			}
		}
		profiles = append(profiles, &profile)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate recipients: %w", err)
	}

	return profiles, nil
}
