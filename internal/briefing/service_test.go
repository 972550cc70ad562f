package briefing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/solosuccess/competitor-intel/internal/config"
	"github.com/solosuccess/competitor-intel/internal/models"
	"github.com/solosuccess/competitor-intel/internal/repository"
	"github.com/solosuccess/competitor-intel/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockNotificationService is a mock implementation of the notification service
type MockNotificationService struct {
	mock.Mock
}

func (m *MockNotificationService) SendCompetitorAlert(ctx context.Context, to string, activity *models.CompetitorActivity) error {
	return m.Called(ctx, to, activity).Error(0)
}

func (m *MockNotificationService) SendPush(ctx context.Context, userID string, activity *models.CompetitorActivity) error {
	return m.Called(ctx, userID, activity).Error(0)
}

func (m *MockNotificationService) SendBriefing(ctx context.Context, to, subject, htmlBody, textBody string) error {
	return m.Called(ctx, to, subject, htmlBody, textBody).Error(0)
}

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	service  *Service
	repo     *repository.MemoryStore
	notifier *MockNotificationService
	archive  *storage.MemoryStorage
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := repository.NewMemoryStore()
	notifier := &MockNotificationService{}
	archive := storage.NewMemoryStorage()
	cfg := &config.Config{TimeZone: "UTC", PaidTiers: []string{"accelerator", "premium"}}

	svc := NewService(cfg, repo.Competitors(), repo.Activities(), repo.Users(), notifier, archive, nil)
	svc.now = func() time.Time { return now }
	return &fixture{service: svc, repo: repo, notifier: notifier, archive: archive}
}

func (f *fixture) competitor(t *testing.T, userID, name string) string {
	t.Helper()
	c := &models.CompetitorProfile{UserID: userID, Name: name, IsActive: true}
	require.NoError(t, f.repo.Competitors().Create(context.Background(), c))
	return c.ID
}

func (f *fixture) activity(t *testing.T, competitorID string, importance models.Importance, age time.Duration) {
	t.Helper()
	require.NoError(t, f.repo.Activities().Create(context.Background(), &models.CompetitorActivity{
		CompetitorID: competitorID,
		ActivityType: models.ActivityContentChange,
		Title:        fmt.Sprintf("%s change", importance),
		SourceURL:    "https://acme.example",
		DetectedAt:   now.Add(-age),
		Importance:   importance,
	}))
}

func TestGenerate_NoCompetitors(t *testing.T) {
	f := newFixture(t)

	for _, kind := range []string{KindDaily, KindWeekly} {
		t.Run(kind, func(t *testing.T) {
			b, err := f.service.Generate(context.Background(), "u1", kind)
			require.NoError(t, err)
			assert.Equal(t, kind, b.Type)
			assert.Equal(t, "No competitors are currently being tracked. Add competitors to start receiving intelligence briefings.", b.Summary)
			assert.Empty(t, b.Sections)
			assert.NotNil(t, b.Sections)
			assert.Zero(t, b.TotalActivities)
			assert.Zero(t, b.CriticalAlerts)
		})
	}
}

func TestGenerateDaily_BucketsByImportance(t *testing.T) {
	f := newFixture(t)
	acme := f.competitor(t, "u1", "Acme")
	globex := f.competitor(t, "u1", "Globex")
	other := f.competitor(t, "u2", "Initech")

	f.activity(t, acme, models.ImportanceCritical, time.Hour)
	f.activity(t, acme, models.ImportanceLow, 2*time.Hour)
	f.activity(t, globex, models.ImportanceLow, 3*time.Hour)
	f.activity(t, globex, models.ImportanceMedium, 30*time.Hour) // outside the window
	f.activity(t, other, models.ImportanceHigh, time.Hour)       // someone else's competitor

	b, err := f.service.GenerateDaily(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, "Mar 9, 2026 - Mar 10, 2026", b.Period)
	assert.Equal(t, 3, b.TotalActivities)
	assert.Equal(t, 1, b.CriticalAlerts)
	assert.Equal(t, "Detected 3 activities from your tracked competitors in the last 24 hours. 1 requires immediate attention.", b.Summary)

	require.Len(t, b.Sections, 2)
	assert.Equal(t, "🚨 Critical Alerts", b.Sections[0].Title)
	assert.Equal(t, "1 critical activity requiring immediate attention.", b.Sections[0].Content)
	assert.Equal(t, models.ImportanceCritical, b.Sections[0].Importance)
	assert.Equal(t, "📝 Minor Updates", b.Sections[1].Title)
	assert.Equal(t, "2 minor updates for your awareness.", b.Sections[1].Content)
	require.Len(t, b.Sections[1].Activities, 2)
	assert.Equal(t, "Acme", b.Sections[1].Activities[0].CompetitorName)
}

func TestDailySummary(t *testing.T) {
	tests := []struct {
		total, critical, competitors int
		expected                     string
	}{
		{0, 0, 1, "No new activities detected from your 1 tracked competitor in the last 24 hours."},
		{0, 0, 3, "No new activities detected from your 3 tracked competitors in the last 24 hours."},
		{1, 0, 2, "Detected 1 activity from your tracked competitors in the last 24 hours."},
		{5, 2, 2, "Detected 5 activities from your tracked competitors in the last 24 hours. 2 require immediate attention."},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, dailySummary(tt.total, tt.critical, tt.competitors))
	}
}

func TestDailySectionText(t *testing.T) {
	title, content := dailySectionText(models.ImportanceHigh, 1)
	assert.Equal(t, "⚠️ High Priority Updates", title)
	assert.Equal(t, "1 significant update from your competitors.", content)

	title, content = dailySectionText(models.ImportanceMedium, 4)
	assert.Equal(t, "📊 Notable Changes", title)
	assert.Equal(t, "4 moderate changes detected.", content)
}

func TestGenerateWeekly_GroupsByCompetitor(t *testing.T) {
	f := newFixture(t)
	acme := f.competitor(t, "u1", "Acme")
	globex := f.competitor(t, "u1", "Globex")
	f.competitor(t, "u1", "Quiet Co")

	// Globex has the newest activity and should come first
	f.activity(t, globex, models.ImportanceHigh, time.Hour)
	for i := 0; i < 12; i++ {
		f.activity(t, acme, models.ImportanceLow, time.Duration(i+2)*time.Hour)
	}
	f.activity(t, acme, models.ImportanceCritical, 6*24*time.Hour)
	f.activity(t, acme, models.ImportanceCritical, 8*24*time.Hour) // outside the week

	b, err := f.service.GenerateWeekly(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, "Mar 3, 2026 - Mar 10, 2026", b.Period)
	assert.Equal(t, 14, b.TotalActivities)
	assert.Equal(t, 1, b.CriticalAlerts)
	assert.Equal(t, "Weekly intelligence report covering 3 competitors with 14 total activities detected.", b.Summary)

	require.Len(t, b.Sections, 2)
	assert.Equal(t, "Globex", b.Sections[0].Title)
	assert.Equal(t, "1 activity this week", b.Sections[0].Content)
	assert.Equal(t, models.ImportanceHigh, b.Sections[0].Importance)

	assert.Equal(t, "Acme", b.Sections[1].Title)
	assert.Equal(t, "13 activities this week", b.Sections[1].Content)
	assert.Equal(t, models.ImportanceCritical, b.Sections[1].Importance)
	assert.Len(t, b.Sections[1].Activities, 10)
}

func TestWeeklyImportance(t *testing.T) {
	acts := func(levels ...models.Importance) []*models.CompetitorActivity {
		out := make([]*models.CompetitorActivity, len(levels))
		for i, l := range levels {
			out[i] = &models.CompetitorActivity{Importance: l}
		}
		return out
	}
	low := models.ImportanceLow

	assert.Equal(t, models.ImportanceLow, weeklyImportance(acts(low, low, low, low, low)))
	assert.Equal(t, models.ImportanceMedium, weeklyImportance(acts(low, low, low, low, low, low)))
	assert.Equal(t, models.ImportanceHigh, weeklyImportance(acts(low, models.ImportanceHigh)))
	assert.Equal(t, models.ImportanceCritical, weeklyImportance(acts(models.ImportanceHigh, models.ImportanceCritical)))
}

func TestParseKind(t *testing.T) {
	kind, err := ParseKind("")
	require.NoError(t, err)
	assert.Equal(t, KindDaily, kind)

	kind, err = ParseKind("Weekly")
	require.NoError(t, err)
	assert.Equal(t, KindWeekly, kind)

	_, err = ParseKind("monthly")
	assert.Error(t, err)
}

func addRecipient(f *fixture, id string, briefings *bool) {
	f.repo.AddUser(&models.User{
		ID:                 id,
		Email:              id + "@example.com",
		SubscriptionTier:   models.SubscriptionTierPremium,
		SubscriptionStatus: models.SubscriptionStatusActive,
		EmailVerified:      true,
	})
	if briefings != nil {
		_ = f.repo.Users().SavePreferences(context.Background(), id, &models.UserPreferences{EmailBriefings: briefings})
	}
}

func TestDeliver(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	off := false

	addRecipient(f, "active", nil)
	addRecipient(f, "optedout", &off)
	addRecipient(f, "idle", nil)
	addRecipient(f, "failing", nil)

	f.activity(t, f.competitor(t, "active", "Acme"), models.ImportanceHigh, time.Hour)
	f.activity(t, f.competitor(t, "optedout", "Acme"), models.ImportanceHigh, time.Hour)
	f.competitor(t, "idle", "Acme")
	f.activity(t, f.competitor(t, "failing", "Acme"), models.ImportanceLow, time.Hour)

	f.notifier.On("SendBriefing", mock.Anything, "active@example.com", "🕵️ Your Daily Intelligence Briefing - SoloSuccess AI",
		mock.MatchedBy(func(html string) bool { return strings.Contains(html, "High Priority Updates") }),
		mock.MatchedBy(func(text string) bool { return strings.HasPrefix(text, "INTELLIGENCE BRIEFING") }),
	).Return(nil).Once()
	f.notifier.On("SendBriefing", mock.Anything, "failing@example.com", mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("smtp down")).Once()

	result, err := f.service.Deliver(ctx, KindDaily)
	require.NoError(t, err)
	assert.Equal(t, 1, result.SentCount)
	assert.Equal(t, 1, result.ErrorCount)
	f.notifier.AssertExpectations(t)

	history, err := f.service.History(ctx, "active")
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-03-10-daily.json"}, history)

	archived, err := f.service.Archived(ctx, "active", history[0])
	require.NoError(t, err)
	assert.Equal(t, 1, archived.TotalActivities)

	failedHistory, err := f.service.History(ctx, "failing")
	require.NoError(t, err)
	assert.Empty(t, failedHistory)
}

func TestArchivePrunesOldest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < maxArchivedPerUser+2; i++ {
		b := &models.Briefing{UserID: "u1", Type: KindDaily, GeneratedAt: now.AddDate(0, 0, -i)}
		require.NoError(t, f.service.archiveBriefing(ctx, b))
	}

	history, err := f.service.History(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, history, maxArchivedPerUser)
	assert.Equal(t, "2026-03-10-daily.json", history[len(history)-1])
}

func TestArchived_RejectsPaths(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Archived(context.Background(), "u1", "../u2/2026-03-10-daily.json")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}
