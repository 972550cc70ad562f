package alerts

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/solosuccess/competitor-intel/internal/models"
	"github.com/solosuccess/competitor-intel/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockNotificationService is a mock implementation of the notification service
type MockNotificationService struct {
	mock.Mock
}

func (m *MockNotificationService) SendCompetitorAlert(ctx context.Context, to string, activity *models.CompetitorActivity) error {
	args := m.Called(ctx, to, activity)
	return args.Error(0)
}

func (m *MockNotificationService) SendPush(ctx context.Context, userID string, activity *models.CompetitorActivity) error {
	args := m.Called(ctx, userID, activity)
	return args.Error(0)
}

func (m *MockNotificationService) SendBriefing(ctx context.Context, to, subject, htmlBody, textBody string) error {
	args := m.Called(ctx, to, subject, htmlBody, textBody)
	return args.Error(0)
}

type fixture struct {
	service      *Service
	repo         *repository.MemoryStore
	notifier     *MockNotificationService
	alerts       *MemoryAlertStore
	competitorID string
}

func newFixture(t *testing.T, prefs *models.AlertPreferences) *fixture {
	t.Helper()
	ctx := context.Background()

	repo := repository.NewMemoryStore()
	repo.AddUser(&models.User{
		ID:                 "u1",
		Email:              "owner@example.com",
		SubscriptionTier:   models.SubscriptionTierPremium,
		SubscriptionStatus: models.SubscriptionStatusActive,
		EmailVerified:      true,
	})
	if prefs != nil {
		require.NoError(t, repo.Users().SavePreferences(ctx, "u1", &models.UserPreferences{Alerts: prefs}))
	}

	competitor := &models.CompetitorProfile{UserID: "u1", Name: "Acme", Website: "https://acme.example", IsActive: true}
	require.NoError(t, repo.Competitors().Create(ctx, competitor))

	notifier := &MockNotificationService{}
	store := NewMemoryAlertStore()
	svc := NewService(repo.Activities(), repo.Competitors(), repo.Users(), notifier, store, nil, time.UTC)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	return &fixture{service: svc, repo: repo, notifier: notifier, alerts: store, competitorID: competitor.ID}
}

func (f *fixture) addActivity(t *testing.T, importance models.Importance, activityType string, detectedAt time.Time) string {
	t.Helper()
	activity := &models.CompetitorActivity{
		CompetitorID: f.competitorID,
		ActivityType: activityType,
		Title:        "Website content updated",
		Description:  "Significant changes detected",
		SourceURL:    "https://acme.example",
		DetectedAt:   detectedAt,
		Importance:   importance,
	}
	require.NoError(t, f.repo.Activities().Create(context.Background(), activity))
	return activity.ID
}

var noon = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestProcessActivity_ImportanceOutsideFilter(t *testing.T) {
	f := newFixture(t, nil)
	id := f.addActivity(t, models.ImportanceLow, models.ActivityTitleChange, noon)

	require.NoError(t, f.service.ProcessActivity(context.Background(), id))

	f.notifier.AssertNotCalled(t, "SendCompetitorAlert", mock.Anything, mock.Anything, mock.Anything)
	f.notifier.AssertNotCalled(t, "SendPush", mock.Anything, mock.Anything, mock.Anything)
	alerts, err := f.service.Alerts(context.Background(), "u1", false)
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestProcessActivity_HighImportanceWithDefaults(t *testing.T) {
	f := newFixture(t, nil)
	id := f.addActivity(t, models.ImportanceHigh, models.ActivityContentChange, noon)

	f.notifier.On("SendCompetitorAlert", mock.Anything, "owner@example.com", mock.MatchedBy(func(a *models.CompetitorActivity) bool {
		return a.ID == id && a.CompetitorName == "Acme"
	})).Return(nil).Once()

	require.NoError(t, f.service.ProcessActivity(context.Background(), id))

	f.notifier.AssertExpectations(t)
	f.notifier.AssertNotCalled(t, "SendPush", mock.Anything, mock.Anything, mock.Anything)

	alerts, err := f.service.Alerts(context.Background(), "u1", false)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, id, alerts[0].ActivityID)
	assert.Equal(t, "Acme", alerts[0].CompetitorName)
	assert.Equal(t, "Significant changes detected", alerts[0].Message)
	assert.Equal(t, models.ImportanceHigh, alerts[0].Importance)
	assert.False(t, alerts[0].Read)
}

func TestProcessActivity_PushEnabled(t *testing.T) {
	prefs := DefaultPreferences()
	prefs.EmailAlerts = false
	prefs.PushAlerts = true
	f := newFixture(t, prefs)
	id := f.addActivity(t, models.ImportanceCritical, models.ActivityContentChange, noon)

	f.notifier.On("SendPush", mock.Anything, "u1", mock.Anything).Return(nil).Once()

	require.NoError(t, f.service.ProcessActivity(context.Background(), id))

	f.notifier.AssertExpectations(t)
	f.notifier.AssertNotCalled(t, "SendCompetitorAlert", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessActivity_QuietHours(t *testing.T) {
	tests := []struct {
		name      string
		at        time.Time
		wantEmail bool
	}{
		{name: "late evening is quiet", at: time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC), wantEmail: false},
		{name: "early morning is quiet", at: time.Date(2026, 3, 1, 7, 59, 0, 0, time.UTC), wantEmail: false},
		{name: "morning after window", at: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), wantEmail: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prefs := DefaultPreferences()
			prefs.QuietHours = &models.QuietHours{Enabled: true, Start: "22:00", End: "08:00"}
			f := newFixture(t, prefs)
			id := f.addActivity(t, models.ImportanceHigh, models.ActivityContentChange, tt.at)

			if tt.wantEmail {
				f.notifier.On("SendCompetitorAlert", mock.Anything, "owner@example.com", mock.Anything).Return(nil).Once()
			}

			require.NoError(t, f.service.ProcessActivity(context.Background(), id))

			if tt.wantEmail {
				f.notifier.AssertExpectations(t)
			} else {
				f.notifier.AssertNotCalled(t, "SendCompetitorAlert", mock.Anything, mock.Anything, mock.Anything)
			}

			// quiet hours never suppress the in-app alert
			alerts, err := f.service.Alerts(context.Background(), "u1", false)
			require.NoError(t, err)
			assert.Len(t, alerts, 1)
		})
	}
}

func TestIsQuietHours(t *testing.T) {
	svc := &Service{location: time.UTC}
	at := func(h, m int) time.Time { return time.Date(2026, 3, 1, h, m, 0, 0, time.UTC) }

	overnight := &models.QuietHours{Enabled: true, Start: "22:00", End: "08:00"}
	daytime := &models.QuietHours{Enabled: true, Start: "12:00", End: "14:00"}

	tests := []struct {
		name     string
		qh       *models.QuietHours
		at       time.Time
		expected bool
	}{
		{"nil window", nil, at(23, 0), false},
		{"disabled window", &models.QuietHours{Start: "22:00", End: "08:00"}, at(23, 0), false},
		{"overnight start inclusive", overnight, at(22, 0), true},
		{"overnight after midnight", overnight, at(3, 30), true},
		{"overnight end inclusive", overnight, at(8, 0), true},
		{"overnight just after end", overnight, at(8, 1), false},
		{"overnight afternoon", overnight, at(15, 0), false},
		{"daytime inside", daytime, at(13, 0), true},
		{"daytime before", daytime, at(11, 59), false},
		{"daytime end inclusive", daytime, at(14, 0), true},
		{"unpadded end wraps midnight", &models.QuietHours{Enabled: true, Start: "22:00", End: "8:00"}, at(3, 0), true},
		{"unpadded end still quiet before end", &models.QuietHours{Enabled: true, Start: "22:00", End: "8:00"}, at(7, 0), true},
		{"unpadded end afternoon", &models.QuietHours{Enabled: true, Start: "22:00", End: "8:00"}, at(12, 0), false},
		{"unparseable window", &models.QuietHours{Enabled: true, Start: "late", End: "08:00"}, at(23, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, svc.isQuietHours(tt.qh, tt.at))
		})
	}
}

func TestIsQuietHours_UsesConfiguredLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	svc := &Service{location: loc}
	qh := &models.QuietHours{Enabled: true, Start: "22:00", End: "08:00"}

	// 21:00 UTC is 23:00 in the configured zone
	assert.True(t, svc.isQuietHours(qh, time.Date(2026, 3, 1, 21, 0, 0, 0, time.UTC)))
}

func TestProcessActivity_ActivityTypeFilter(t *testing.T) {
	prefs := DefaultPreferences()
	prefs.ActivityTypes = []string{models.ActivityTitleChange}
	f := newFixture(t, prefs)
	id := f.addActivity(t, models.ImportanceHigh, models.ActivityContentChange, noon)

	require.NoError(t, f.service.ProcessActivity(context.Background(), id))

	f.notifier.AssertNotCalled(t, "SendCompetitorAlert", mock.Anything, mock.Anything, mock.Anything)
	alerts, _ := f.service.Alerts(context.Background(), "u1", false)
	assert.Empty(t, alerts)
}

func TestProcessActivity_Disabled(t *testing.T) {
	prefs := DefaultPreferences()
	prefs.Enabled = false
	f := newFixture(t, prefs)
	id := f.addActivity(t, models.ImportanceCritical, models.ActivityContentChange, noon)

	require.NoError(t, f.service.ProcessActivity(context.Background(), id))

	f.notifier.AssertNotCalled(t, "SendCompetitorAlert", mock.Anything, mock.Anything, mock.Anything)
	alerts, _ := f.service.Alerts(context.Background(), "u1", false)
	assert.Empty(t, alerts)
}

func TestProcessActivity_DeliveryFailureIsSwallowed(t *testing.T) {
	f := newFixture(t, nil)
	id := f.addActivity(t, models.ImportanceHigh, models.ActivityContentChange, noon)

	f.notifier.On("SendCompetitorAlert", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("smtp down"))

	require.NoError(t, f.service.ProcessActivity(context.Background(), id))

	alerts, _ := f.service.Alerts(context.Background(), "u1", false)
	assert.Len(t, alerts, 1)
}

func TestProcessActivity_UnknownActivity(t *testing.T) {
	f := newFixture(t, nil)

	err := f.service.ProcessActivity(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, repository.ErrNotFound))
}

func TestProcessActivity_InAppListIsCapped(t *testing.T) {
	prefs := DefaultPreferences()
	prefs.EmailAlerts = false
	f := newFixture(t, prefs)

	var ids []string
	for i := 0; i < MaxInAppAlerts+1; i++ {
		ids = append(ids, f.addActivity(t, models.ImportanceHigh, models.ActivityContentChange, noon.Add(time.Duration(i)*time.Minute)))
	}
	for _, id := range ids {
		require.NoError(t, f.service.ProcessActivity(context.Background(), id))
	}

	alerts, err := f.service.Alerts(context.Background(), "u1", false)
	require.NoError(t, err)
	require.Len(t, alerts, MaxInAppAlerts)
	assert.Equal(t, ids[len(ids)-1], alerts[0].ActivityID)
	for _, a := range alerts {
		assert.NotEqual(t, ids[0], a.ActivityID, "oldest alert should have been evicted")
	}
}

func TestUpdatePreferences_MergesPatch(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	push := true
	updated, err := f.service.UpdatePreferences(ctx, "u1", &PreferencesPatch{
		PushAlerts:       &push,
		ImportanceLevels: []models.Importance{models.ImportanceMedium},
	})
	require.NoError(t, err)
	assert.True(t, updated.PushAlerts)
	assert.True(t, updated.EmailAlerts, "untouched fields keep their defaults")
	assert.Equal(t, []models.Importance{models.ImportanceMedium}, updated.ImportanceLevels)

	stored, err := f.service.Preferences(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, updated, stored)
}

func TestUpdatePreferences_Validation(t *testing.T) {
	f := newFixture(t, nil)

	tests := []struct {
		name  string
		patch *PreferencesPatch
	}{
		{"unknown importance", &PreferencesPatch{ImportanceLevels: []models.Importance{"urgent"}}},
		{"bad quiet hours", &PreferencesPatch{QuietHours: &models.QuietHours{Enabled: true, Start: "10pm", End: "08:00"}}},
		{"out of range hour", &PreferencesPatch{QuietHours: &models.QuietHours{Enabled: true, Start: "24:00", End: "08:00"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.UpdatePreferences(context.Background(), "u1", tt.patch)
			assert.Error(t, err)
		})
	}
}

func TestUpdatePreferences_NormalizesQuietHours(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	prefs, err := f.service.UpdatePreferences(ctx, "u1", &PreferencesPatch{
		QuietHours: &models.QuietHours{Enabled: true, Start: "22:00", End: "8:00"},
	})
	require.NoError(t, err)
	assert.Equal(t, "08:00", prefs.QuietHours.End)

	stored, err := f.service.Preferences(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "22:00", stored.QuietHours.Start)
	assert.Equal(t, "08:00", stored.QuietHours.End)

	// 03:00 falls inside the overnight window
	assert.True(t, f.service.isQuietHours(stored.QuietHours, time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC)))
}

func TestAlertListOperations(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, f.alerts.Push(ctx, "u1", &models.InAppAlert{ID: fmt.Sprintf("a%d", i), Title: "x"}))
	}

	require.NoError(t, f.service.MarkRead(ctx, "u1", "a1"))
	unread, err := f.service.Alerts(ctx, "u1", true)
	require.NoError(t, err)
	assert.Len(t, unread, 2)

	require.NoError(t, f.service.Delete(ctx, "u1", "a2"))
	all, err := f.service.Alerts(ctx, "u1", false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a1", all[0].ID)

	require.NoError(t, f.service.MarkAllRead(ctx, "u1"))
	unread, err = f.service.Alerts(ctx, "u1", true)
	require.NoError(t, err)
	assert.Empty(t, unread)
}
