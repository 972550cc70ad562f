package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/solosuccess/competitor-intel/internal/models"
)

const competitorColumns = `id, user_id, name, website, industry, description, tracking_sources, is_active, metadata, created_at, updated_at`

// PostgresCompetitorRepository stores competitor profiles in Postgres
type PostgresCompetitorRepository struct {
	db *sqlx.DB
}

// Ensure PostgresCompetitorRepository implements CompetitorRepository
var _ CompetitorRepository = (*PostgresCompetitorRepository)(nil)

// NewPostgresCompetitorRepository creates a new competitor repository
func NewPostgresCompetitorRepository(db *sqlx.DB) *PostgresCompetitorRepository {
	return &PostgresCompetitorRepository{db: db}
}

type competitorRow struct {
	ID              string    `db:"id"`
	UserID          string    `db:"user_id"`
	Name            string    `db:"name"`
	Website         string    `db:"website"`
	Industry        string    `db:"industry"`
	Description     string    `db:"description"`
	TrackingSources []byte    `db:"tracking_sources"`
	IsActive        bool      `db:"is_active"`
	Metadata        []byte    `db:"metadata"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func (r competitorRow) toModel() (*models.CompetitorProfile, error) {
	c := &models.CompetitorProfile{
		ID:          r.ID,
		UserID:      r.UserID,
		Name:        r.Name,
		Website:     r.Website,
		Industry:    r.Industry,
		Description: r.Description,
		IsActive:    r.IsActive,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if len(r.TrackingSources) > 0 {
		if err := json.Unmarshal(r.TrackingSources, &c.TrackingSources); err != nil {
			return nil, fmt.Errorf("failed to decode tracking sources for %s: %w", r.ID, err)
		}
	}
	if len(r.Metadata) > 0 {
		if err := json.Unmarshal(r.Metadata, &c.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata for %s: %w", r.ID, err)
		}
	}
	return c, nil
}

func rowsToCompetitors(rows []competitorRow) ([]*models.CompetitorProfile, error) {
	competitors := make([]*models.CompetitorProfile, 0, len(rows))
	for _, row := range rows {
		c, err := row.toModel()
		if err != nil {
			return nil, err
		}
		competitors = append(competitors, c)
	}
	return competitors, nil
}

// Create inserts a new competitor
func (r *PostgresCompetitorRepository) Create(ctx context.Context, competitor *models.CompetitorProfile) error {
	if competitor.ID == "" {
		competitor.ID = uuid.NewString()
	}

	sources, err := json.Marshal(competitor.TrackingSources)
	if err != nil {
		return fmt.Errorf("failed to encode tracking sources: %w", err)
	}
	metadata, err := json.Marshal(competitor.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	query := `
		INSERT INTO competitor_profiles (id, user_id, name, website, industry, description, tracking_sources, is_active, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`
	err = r.db.QueryRowContext(ctx, query,
		competitor.ID,
		competitor.UserID,
		competitor.Name,
		competitor.Website,
		competitor.Industry,
		competitor.Description,
		sources,
		competitor.IsActive,
		metadata,
	).Scan(&competitor.CreatedAt, &competitor.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create competitor: %w", err)
	}

	return nil
}

// Get loads a competitor by ID
func (r *PostgresCompetitorRepository) Get(ctx context.Context, id string) (*models.CompetitorProfile, error) {
	var row competitorRow
	query := `SELECT ` + competitorColumns + ` FROM competitor_profiles WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("competitor %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get competitor: %w", err)
	}
	return row.toModel()
}

// ListByUser returns a user's competitors, newest first
func (r *PostgresCompetitorRepository) ListByUser(ctx context.Context, userID string, activeOnly bool) ([]*models.CompetitorProfile, error) {
	var rows []competitorRow
	query := `SELECT ` + competitorColumns + ` FROM competitor_profiles WHERE user_id = $1`
	if activeOnly {
		query += ` AND is_active = TRUE`
	}
	query += ` ORDER BY created_at DESC`

	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list competitors: %w", err)
	}
	return rowsToCompetitors(rows)
}

// ListActive returns every active competitor across all users
func (r *PostgresCompetitorRepository) ListActive(ctx context.Context) ([]*models.CompetitorProfile, error) {
	var rows []competitorRow
	query := `SELECT ` + competitorColumns + ` FROM competitor_profiles WHERE is_active = TRUE ORDER BY created_at`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list active competitors: %w", err)
	}
	return rowsToCompetitors(rows)
}

// CountActive counts a user's active competitors
func (r *PostgresCompetitorRepository) CountActive(ctx context.Context, userID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM competitor_profiles WHERE user_id = $1 AND is_active = TRUE`
	if err := r.db.GetContext(ctx, &count, query, userID); err != nil {
		return 0, fmt.Errorf("failed to count competitors: %w", err)
	}
	return count, nil
}

// Update saves the user-editable fields of a competitor
func (r *PostgresCompetitorRepository) Update(ctx context.Context, competitor *models.CompetitorProfile) error {
	sources, err := json.Marshal(competitor.TrackingSources)
	if err != nil {
		return fmt.Errorf("failed to encode tracking sources: %w", err)
	}

	query := `
		UPDATE competitor_profiles
		SET name = $2, website = $3, industry = $4, description = $5, tracking_sources = $6, is_active = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err = r.db.QueryRowContext(ctx, query,
		competitor.ID,
		competitor.Name,
		competitor.Website,
		competitor.Industry,
		competitor.Description,
		sources,
		competitor.IsActive,
	).Scan(&competitor.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("competitor %s: %w", competitor.ID, ErrNotFound)
		}
		return fmt.Errorf("failed to update competitor: %w", err)
	}
	return nil
}

// UpdateMetadata replaces the snapshot metadata of a competitor
func (r *PostgresCompetitorRepository) UpdateMetadata(ctx context.Context, id string, metadata models.CompetitorMetadata) error {
	data, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	query := `UPDATE competitor_profiles SET metadata = $2, updated_at = NOW() WHERE id = $1`
	return r.execOne(ctx, id, query, id, data)
}

// Deactivate soft-deletes a competitor
func (r *PostgresCompetitorRepository) Deactivate(ctx context.Context, id string) error {
	query := `UPDATE competitor_profiles SET is_active = FALSE, updated_at = NOW() WHERE id = $1`
	return r.execOne(ctx, id, query, id)
}

func (r *PostgresCompetitorRepository) execOne(ctx context.Context, id, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update competitor %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("competitor %s: %w", id, ErrNotFound)
	}
	return nil
}
