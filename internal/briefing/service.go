package briefing

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/solosuccess/competitor-intel/internal/config"
	"github.com/solosuccess/competitor-intel/internal/metrics"
	"github.com/solosuccess/competitor-intel/internal/models"
	"github.com/solosuccess/competitor-intel/internal/notifications"
	"github.com/solosuccess/competitor-intel/internal/repository"
	"github.com/solosuccess/competitor-intel/internal/storage"
)

const (
	KindDaily  = "daily"
	KindWeekly = "weekly"

	emptySummary = "No competitors are currently being tracked. Add competitors to start receiving intelligence briefings."

	maxWeeklySectionActivities = 10
	maxArchivedPerUser         = 60
)

// ParseKind normalises a briefing kind, defaulting to daily
func ParseKind(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", KindDaily:
		return KindDaily, nil
	case KindWeekly:
		return KindWeekly, nil
	}
	return "", fmt.Errorf("unknown briefing type %q", s)
}

// Service builds intelligence briefings from recorded activities
type Service struct {
	config        *config.Config
	competitors   repository.CompetitorRepository
	activities    repository.ActivityRepository
	users         repository.UserRepository
	notifications notifications.NotificationInterface
	archive       storage.StorageInterface
	metrics       *metrics.Metrics
	location      *time.Location
	now           func() time.Time
}

// NewService creates a new briefing service. archive may be nil to skip archiving.
func NewService(
	cfg *config.Config,
	competitors repository.CompetitorRepository,
	activities repository.ActivityRepository,
	users repository.UserRepository,
	notificationService notifications.NotificationInterface,
	archive storage.StorageInterface,
	m *metrics.Metrics,
) *Service {
	return &Service{
		config:        cfg,
		competitors:   competitors,
		activities:    activities,
		users:         users,
		notifications: notificationService,
		archive:       archive,
		metrics:       m,
		location:      cfg.Location(),
		now:           time.Now,
	}
}

// Generate builds a briefing of the given kind
func (s *Service) Generate(ctx context.Context, userID, kind string) (*models.Briefing, error) {
	if kind == KindWeekly {
		return s.GenerateWeekly(ctx, userID)
	}
	return s.GenerateDaily(ctx, userID)
}

// GenerateDaily covers the last 24 hours, grouped by importance
func (s *Service) GenerateDaily(ctx context.Context, userID string) (*models.Briefing, error) {
	end := s.now()
	start := end.Add(-24 * time.Hour)

	competitors, activities, err := s.load(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}
	if len(competitors) == 0 {
		return s.emptyBriefing(userID, KindDaily, start, end), nil
	}

	buckets := make(map[models.Importance][]*models.CompetitorActivity)
	for _, a := range activities {
		buckets[a.Importance] = append(buckets[a.Importance], a)
	}

	sections := []models.BriefingSection{}
	for _, importance := range models.Importances {
		acts := buckets[importance]
		if len(acts) == 0 {
			continue
		}
		title, content := dailySectionText(importance, len(acts))
		sections = append(sections, models.BriefingSection{
			Title:      title,
			Content:    content,
			Importance: importance,
			Activities: toBriefingActivities(acts),
		})
	}

	critical := len(buckets[models.ImportanceCritical])
	return &models.Briefing{
		UserID:          userID,
		Type:            KindDaily,
		Period:          s.period(start, end),
		GeneratedAt:     end,
		Summary:         dailySummary(len(activities), critical, len(competitors)),
		Sections:        sections,
		TotalActivities: len(activities),
		CriticalAlerts:  critical,
	}, nil
}

// GenerateWeekly covers the last 7 days with one section per competitor
func (s *Service) GenerateWeekly(ctx context.Context, userID string) (*models.Briefing, error) {
	end := s.now()
	start := end.AddDate(0, 0, -7)

	competitors, activities, err := s.load(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}
	if len(competitors) == 0 {
		return s.emptyBriefing(userID, KindWeekly, start, end), nil
	}

	// activities arrive newest first, so groups are ordered by their latest activity
	var order []string
	groups := make(map[string][]*models.CompetitorActivity)
	critical := 0
	for _, a := range activities {
		if _, ok := groups[a.CompetitorName]; !ok {
			order = append(order, a.CompetitorName)
		}
		groups[a.CompetitorName] = append(groups[a.CompetitorName], a)
		if a.Importance == models.ImportanceCritical {
			critical++
		}
	}

	sections := make([]models.BriefingSection, 0, len(order))
	for _, name := range order {
		acts := groups[name]
		shown := acts
		if len(shown) > maxWeeklySectionActivities {
			shown = shown[:maxWeeklySectionActivities]
		}
		sections = append(sections, models.BriefingSection{
			Title:      name,
			Content:    fmt.Sprintf("%d %s this week", len(acts), plural(len(acts), "activity", "activities")),
			Importance: weeklyImportance(acts),
			Activities: toBriefingActivities(shown),
		})
	}

	return &models.Briefing{
		UserID:      userID,
		Type:        KindWeekly,
		Period:      s.period(start, end),
		GeneratedAt: end,
		Summary: fmt.Sprintf("Weekly intelligence report covering %d competitors with %d total activities detected.",
			len(competitors), len(activities)),
		Sections:        sections,
		TotalActivities: len(activities),
		CriticalAlerts:  critical,
	}, nil
}

func (s *Service) load(ctx context.Context, userID string, start, end time.Time) ([]*models.CompetitorProfile, []*models.CompetitorActivity, error) {
	competitors, err := s.competitors.ListByUser(ctx, userID, true)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list competitors: %w", err)
	}
	if len(competitors) == 0 {
		return nil, nil, nil
	}

	ids := make([]string, len(competitors))
	for i, c := range competitors {
		ids[i] = c.ID
	}
	activities, err := s.activities.List(ctx, models.ActivityFilter{
		CompetitorIDs: ids,
		Since:         start,
		Until:         end,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list activities: %w", err)
	}
	return competitors, activities, nil
}

func (s *Service) emptyBriefing(userID, kind string, start, end time.Time) *models.Briefing {
	return &models.Briefing{
		UserID:      userID,
		Type:        kind,
		Period:      s.period(start, end),
		GeneratedAt: end,
		Summary:     emptySummary,
		Sections:    []models.BriefingSection{},
	}
}

func (s *Service) period(start, end time.Time) string {
	const layout = "Jan 2, 2006"
	return fmt.Sprintf("%s - %s", start.In(s.location).Format(layout), end.In(s.location).Format(layout))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func dailySectionText(importance models.Importance, n int) (string, string) {
	switch importance {
	case models.ImportanceCritical:
		return "🚨 Critical Alerts",
			fmt.Sprintf("%d critical %s requiring immediate attention.", n, plural(n, "activity", "activities"))
	case models.ImportanceHigh:
		return "⚠️ High Priority Updates",
			fmt.Sprintf("%d significant %s from your competitors.", n, plural(n, "update", "updates"))
	case models.ImportanceMedium:
		return "📊 Notable Changes",
			fmt.Sprintf("%d moderate %s detected.", n, plural(n, "change", "changes"))
	default:
		return "📝 Minor Updates",
			fmt.Sprintf("%d minor %s for your awareness.", n, plural(n, "update", "updates"))
	}
}

func dailySummary(total, critical, competitors int) string {
	if total == 0 {
		return fmt.Sprintf("No new activities detected from your %d tracked %s in the last 24 hours.",
			competitors, plural(competitors, "competitor", "competitors"))
	}

	summary := fmt.Sprintf("Detected %d %s from your tracked competitors in the last 24 hours.",
		total, plural(total, "activity", "activities"))
	if critical > 0 {
		summary += fmt.Sprintf(" %d %s immediate attention.", critical, plural(critical, "requires", "require"))
	}
	return summary
}

func weeklyImportance(acts []*models.CompetitorActivity) models.Importance {
	high := false
	for _, a := range acts {
		if a.Importance == models.ImportanceCritical {
			return models.ImportanceCritical
		}
		if a.Importance == models.ImportanceHigh {
			high = true
		}
	}
	switch {
	case high:
		return models.ImportanceHigh
	case len(acts) > 5:
		return models.ImportanceMedium
	}
	return models.ImportanceLow
}

func toBriefingActivities(acts []*models.CompetitorActivity) []models.BriefingActivity {
	out := make([]models.BriefingActivity, len(acts))
	for i, a := range acts {
		out[i] = models.BriefingActivity{
			ID:             a.ID,
			CompetitorName: a.CompetitorName,
			Title:          a.Title,
			Description:    a.Description,
			SourceURL:      a.SourceURL,
			DetectedAt:     a.DetectedAt,
		}
	}
	return out
}

// Deliver emails a briefing of the given kind to every eligible user.
// Users who opted out or whose briefing has no activities are skipped.
func (s *Service) Deliver(ctx context.Context, kind string) (*models.DeliveryResult, error) {
	logrus.Infof("Starting %s briefing delivery", kind)

	recipients, err := s.users.ListBriefingRecipients(ctx, s.config.PaidTiers)
	if err != nil {
		return nil, fmt.Errorf("failed to list briefing recipients: %w", err)
	}

	result := &models.DeliveryResult{}
	for _, user := range recipients {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if !user.Preferences.BriefingsEnabled() {
			continue
		}

		logger := logrus.WithFields(logrus.Fields{"user_id": user.ID, "type": kind})

		b, err := s.Generate(ctx, user.ID, kind)
		if err != nil {
			logger.Errorf("Failed to generate briefing: %v", err)
			result.ErrorCount++
			s.metrics.RecordBriefing(kind, false)
			continue
		}
		if b.TotalActivities == 0 {
			continue
		}

		if err := s.send(ctx, user.Email, b); err != nil {
			logger.Errorf("Failed to send briefing: %v", err)
			result.ErrorCount++
			s.metrics.RecordBriefing(kind, false)
			continue
		}
		result.SentCount++
		s.metrics.RecordBriefing(kind, true)

		if err := s.archiveBriefing(ctx, b); err != nil {
			logger.Warnf("Failed to archive briefing: %v", err)
		}
	}

	logrus.Infof("%s briefing delivery completed: %d sent, %d errors", kind, result.SentCount, result.ErrorCount)
	return result, nil
}

func (s *Service) send(ctx context.Context, to string, b *models.Briefing) error {
	html, err := RenderHTML(b, s.location)
	if err != nil {
		return fmt.Errorf("failed to render briefing: %w", err)
	}
	text := RenderText(b, s.location)

	label := "Daily"
	if b.Type == KindWeekly {
		label = "Weekly"
	}
	subject := fmt.Sprintf("🕵️ Your %s Intelligence Briefing - SoloSuccess AI", label)
	return s.notifications.SendBriefing(ctx, to, subject, html, text)
}

func archivePrefix(userID string) string {
	return fmt.Sprintf("briefings/%s/", userID)
}

// archiveBriefing stores the briefing as JSON and prunes the user's oldest archives
func (s *Service) archiveBriefing(ctx context.Context, b *models.Briefing) error {
	if s.archive == nil {
		return nil
	}

	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode briefing: %w", err)
	}

	name := fmt.Sprintf("%s%s-%s.json", archivePrefix(b.UserID), b.GeneratedAt.In(s.location).Format("2006-01-02"), b.Type)
	if err := s.archive.Store(ctx, name, data); err != nil {
		return err
	}

	names, err := s.History(ctx, b.UserID)
	if err != nil {
		return err
	}
	for len(names) > maxArchivedPerUser {
		if err := s.archive.Delete(ctx, archivePrefix(b.UserID)+names[0]); err != nil {
			return err
		}
		names = names[1:]
	}
	return nil
}

// History lists the file names of the user's archived briefings, oldest first
func (s *Service) History(ctx context.Context, userID string) ([]string, error) {
	names := []string{}
	if s.archive == nil {
		return names, nil
	}

	prefix := archivePrefix(userID)
	stored, err := s.archive.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list archived briefings: %w", err)
	}
	for _, name := range stored {
		names = append(names, strings.TrimPrefix(name, prefix))
	}
	sort.Strings(names)
	return names, nil
}

// Archived loads one archived briefing by file name
func (s *Service) Archived(ctx context.Context, userID, name string) (*models.Briefing, error) {
	if s.archive == nil || strings.Contains(name, "/") {
		return nil, storage.ErrNotFound
	}
	data, err := s.archive.Retrieve(ctx, archivePrefix(userID)+name)
	if err != nil {
		return nil, err
	}
	var b models.Briefing
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to decode archived briefing: %w", err)
	}
	return &b, nil
}
