package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/solosuccess/competitor-intel/internal/models"
)

const activitySelect = `
	SELECT a.id, a.competitor_id, c.name AS competitor_name, a.activity_type, a.title, a.description,
	       a.source_url, a.detected_at, a.importance, a.metadata
	FROM competitor_activities a
	JOIN competitor_profiles c ON c.id = a.competitor_id`

// PostgresActivityRepository stores competitor activities in Postgres
type PostgresActivityRepository struct {
	db *sqlx.DB
}

// Ensure PostgresActivityRepository implements ActivityRepository
var _ ActivityRepository = (*PostgresActivityRepository)(nil)

// NewPostgresActivityRepository creates a new activity repository
func NewPostgresActivityRepository(db *sqlx.DB) *PostgresActivityRepository {
	return &PostgresActivityRepository{db: db}
}

type activityRow struct {
	ID             string    `db:"id"`
	CompetitorID   string    `db:"competitor_id"`
	CompetitorName string    `db:"competitor_name"`
	ActivityType   string    `db:"activity_type"`
	Title          string    `db:"title"`
	Description    string    `db:"description"`
	SourceURL      string    `db:"source_url"`
	DetectedAt     time.Time `db:"detected_at"`
	Importance     string    `db:"importance"`
	Metadata       []byte    `db:"metadata"`
}

func (r activityRow) toModel() *models.CompetitorActivity {
	return &models.CompetitorActivity{
		ID:             r.ID,
		CompetitorID:   r.CompetitorID,
		CompetitorName: r.CompetitorName,
		ActivityType:   r.ActivityType,
		Title:          r.Title,
		Description:    r.Description,
		SourceURL:      r.SourceURL,
		DetectedAt:     r.DetectedAt,
		Importance:     models.Importance(r.Importance),
		Metadata:       json.RawMessage(r.Metadata),
	}
}

// Create inserts an activity
func (r *PostgresActivityRepository) Create(ctx context.Context, activity *models.CompetitorActivity) error {
	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	metadata := []byte(activity.Metadata)
	if len(metadata) == 0 {
		metadata = []byte("{}")
	}

	query := `
		INSERT INTO competitor_activities (id, competitor_id, activity_type, title, description, source_url, detected_at, importance, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		activity.ID,
		activity.CompetitorID,
		activity.ActivityType,
		activity.Title,
		activity.Description,
		activity.SourceURL,
		activity.DetectedAt,
		string(activity.Importance),
		metadata,
	)
	if err != nil {
		return fmt.Errorf("failed to create activity: %w", err)
	}
	return nil
}

// Get loads an activity with its competitor name
func (r *PostgresActivityRepository) Get(ctx context.Context, id string) (*models.CompetitorActivity, error) {
	var row activityRow
	if err := r.db.GetContext(ctx, &row, activitySelect+` WHERE a.id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("activity %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get activity: %w", err)
	}
	return row.toModel(), nil
}

// List returns activities matching the filter, newest first
func (r *PostgresActivityRepository) List(ctx context.Context, filter models.ActivityFilter) ([]*models.CompetitorActivity, error) {
	if len(filter.CompetitorIDs) == 0 {
		return []*models.CompetitorActivity{}, nil
	}

	conditions := []string{"a.competitor_id = ANY($1)"}
	args := []any{pq.Array(filter.CompetitorIDs)}

	if !filter.Since.IsZero() {
		args = append(args, filter.Since)
		conditions = append(conditions, fmt.Sprintf("a.detected_at >= $%d", len(args)))
	}
	if !filter.Until.IsZero() {
		args = append(args, filter.Until)
		conditions = append(conditions, fmt.Sprintf("a.detected_at <= $%d", len(args)))
	}
	if filter.Importance != "" {
		args = append(args, string(filter.Importance))
		conditions = append(conditions, fmt.Sprintf("a.importance = $%d", len(args)))
	}

	query := activitySelect + " WHERE " + strings.Join(conditions, " AND ") + " ORDER BY a.detected_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	var rows []activityRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}

	activities := make([]*models.CompetitorActivity, 0, len(rows))
	for _, row := range rows {
		activities = append(activities, row.toModel())
	}
	return activities, nil
}
