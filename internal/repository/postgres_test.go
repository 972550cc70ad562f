package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/solosuccess/competitor-intel/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return sqlx.NewDb(db, "postgres"), mock
}

var competitorCols = []string{
	"id", "user_id", "name", "website", "industry", "description",
	"tracking_sources", "is_active", "metadata", "created_at", "updated_at",
}

func TestCompetitorRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresCompetitorRepository(db)
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO competitor_profiles")).
		WithArgs(sqlmock.AnyArg(), "user-1", "Acme", "https://acme.test", "", "",
			[]byte(`{"website":true,"blog":"https://acme.test/blog"}`), true, []byte(`{}`)).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(created, created))

	competitor := &models.CompetitorProfile{
		UserID:          "user-1",
		Name:            "Acme",
		Website:         "https://acme.test",
		TrackingSources: models.TrackingSources{Website: true, Blog: "https://acme.test/blog"},
		IsActive:        true,
	}

	require.NoError(t, repo.Create(context.Background(), competitor))
	assert.NotEmpty(t, competitor.ID)
	assert.Equal(t, created, competitor.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompetitorRepository_Get(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresCompetitorRepository(db)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	testCases := []struct {
		name      string
		setupMock func()
		wantErr   error
	}{
		{
			name: "decodes JSON columns",
			setupMock: func() {
				rows := sqlmock.NewRows(competitorCols).AddRow(
					"c1", "user-1", "Acme", "https://acme.test", "Widgets", "",
					[]byte(`{"website":true}`), true,
					[]byte(`{"scrapes":{"website":{"url":"https://acme.test","title":"X","content":"","links":[],"images":[],"metadata":{"scraped_at":"2026-03-01T09:00:00Z","content_hash":"abc"}}}}`),
					now, now,
				)
				mock.ExpectQuery(regexp.QuoteMeta("FROM competitor_profiles WHERE id = $1")).
					WithArgs("c1").
					WillReturnRows(rows)
			},
		},
		{
			name: "maps missing rows to ErrNotFound",
			setupMock: func() {
				mock.ExpectQuery(regexp.QuoteMeta("FROM competitor_profiles WHERE id = $1")).
					WithArgs("c1").
					WillReturnError(sql.ErrNoRows)
			},
			wantErr: ErrNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tc.setupMock()

			competitor, err := repo.Get(context.Background(), "c1")
			if tc.wantErr != nil {
				assert.True(t, errors.Is(err, tc.wantErr))
			} else {
				require.NoError(t, err)
				assert.True(t, competitor.TrackingSources.Website)
				snap := competitor.Snapshot(models.SourceTypeWebsite)
				require.NotNil(t, snap)
				assert.Equal(t, "X", snap.Title)
				assert.Equal(t, "abc", snap.Metadata.ContentHash)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCompetitorRepository_ListByUserActiveOnly(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresCompetitorRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE user_id = $1 AND is_active = TRUE ORDER BY created_at DESC")).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(competitorCols).
			AddRow("c1", "user-1", "Acme", "", "", "", []byte(`{}`), true, []byte(`{}`), now, now).
			AddRow("c2", "user-1", "Globex", "", "", "", []byte(`{}`), true, []byte(`{}`), now, now))

	list, err := repo.ListByUser(context.Background(), "user-1", true)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Globex", list[1].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompetitorRepository_Deactivate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresCompetitorRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE competitor_profiles SET is_active = FALSE")).
		WithArgs("c1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE competitor_profiles SET is_active = FALSE")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, repo.Deactivate(context.Background(), "c1"))
	assert.True(t, errors.Is(repo.Deactivate(context.Background(), "missing"), ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompetitorRepository_UpdateMetadata(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresCompetitorRepository(db)
	tracked := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE competitor_profiles SET metadata = $2")).
		WithArgs("c1", []byte(`{"last_tracked_at":"2026-03-01T09:00:00Z"}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateMetadata(context.Background(), "c1", models.CompetitorMetadata{LastTrackedAt: &tracked})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActivityRepository_List(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresActivityRepository(db)
	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	until := since.Add(24 * time.Hour)

	cols := []string{"id", "competitor_id", "competitor_name", "activity_type", "title", "description",
		"source_url", "detected_at", "importance", "metadata"}

	mock.ExpectQuery(regexp.QuoteMeta("WHERE a.competitor_id = ANY($1) AND a.detected_at >= $2 AND a.detected_at <= $3 AND a.importance = $4 ORDER BY a.detected_at DESC LIMIT $5")).
		WithArgs(sqlmock.AnyArg(), since, until, "medium", 10).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			"a1", "c1", "Acme", models.ActivityContentChange, "Website content updated", "",
			"https://acme.test", since.Add(time.Hour), "medium", []byte(`{"source_type":"website"}`),
		))

	activities, err := repo.List(context.Background(), models.ActivityFilter{
		CompetitorIDs: []string{"c1"},
		Since:         since,
		Until:         until,
		Importance:    models.ImportanceMedium,
		Limit:         10,
	})
	require.NoError(t, err)
	require.Len(t, activities, 1)
	assert.Equal(t, "Acme", activities[0].CompetitorName)
	assert.Equal(t, models.ImportanceMedium, activities[0].Importance)
	assert.JSONEq(t, `{"source_type":"website"}`, string(activities[0].Metadata))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActivityRepository_ListWithoutCompetitors(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresActivityRepository(db)

	activities, err := repo.List(context.Background(), models.ActivityFilter{})
	require.NoError(t, err)
	assert.Empty(t, activities)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActivityRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresActivityRepository(db)
	detected := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO competitor_activities")).
		WithArgs(sqlmock.AnyArg(), "c1", models.ActivityTrackingStarted, "Started tracking website",
			"Initial scan of https://acme.test", "https://acme.test", detected, "low", []byte("{}")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	activity := &models.CompetitorActivity{
		CompetitorID: "c1",
		ActivityType: models.ActivityTrackingStarted,
		Title:        "Started tracking website",
		Description:  "Initial scan of https://acme.test",
		SourceURL:    "https://acme.test",
		DetectedAt:   detected,
		Importance:   models.ImportanceLow,
	}
	require.NoError(t, repo.Create(context.Background(), activity))
	assert.NotEmpty(t, activity.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetPreferences(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT preferences FROM user_profiles")).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"preferences"}).
			AddRow([]byte(`{"alerts":{"enabled":false,"email_alerts":true,"push_alerts":false,"importance_levels":["critical"],"activity_types":[]},"theme":"dark"}`)))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT preferences FROM user_profiles")).
		WithArgs("user-2").
		WillReturnError(sql.ErrNoRows)

	prefs, err := repo.GetPreferences(context.Background(), "user-1")
	require.NoError(t, err)
	require.NotNil(t, prefs.Alerts)
	assert.False(t, prefs.Alerts.Enabled)
	assert.Equal(t, []models.Importance{models.ImportanceCritical}, prefs.Alerts.ImportanceLevels)

	empty, err := repo.GetPreferences(context.Background(), "user-2")
	require.NoError(t, err)
	assert.Nil(t, empty.Alerts)
	assert.True(t, empty.BriefingsEnabled())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_SavePreferencesMerges(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresUserRepository(db)
	off := false

	mock.ExpectExec(regexp.QuoteMeta("SET preferences = user_profiles.preferences || EXCLUDED.preferences")).
		WithArgs("user-1", []byte(`{"email_briefings":false}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SavePreferences(context.Background(), "user-1", &models.UserPreferences{EmailBriefings: &off})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_ListBriefingRecipients(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE u.subscription_tier = ANY($1)")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "subscription_tier", "subscription_status", "email_verified", "preferences"}).
			AddRow("user-1", "a@example.com", "premium", "active", true, []byte(`{}`)).
			AddRow("user-2", "b@example.com", "accelerator", "active", true, []byte(`{"email_briefings":false}`)))

	recipients, err := repo.ListBriefingRecipients(context.Background(), []string{"accelerator", "premium"})
	require.NoError(t, err)
	require.Len(t, recipients, 2)
	assert.True(t, recipients[0].Preferences.BriefingsEnabled())
	assert.False(t, recipients[1].Preferences.BriefingsEnabled())
	assert.NoError(t, mock.ExpectationsWereMet())
}
