package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/solosuccess/competitor-intel/internal/config"
	"github.com/solosuccess/competitor-intel/internal/metrics"
	"github.com/solosuccess/competitor-intel/internal/models"
	"github.com/solosuccess/competitor-intel/internal/repository"
	"github.com/solosuccess/competitor-intel/internal/scraper"
)

const (
	// UnavailableMessage is reported when a competitor is missing or deactivated
	UnavailableMessage = "Competitor not found or inactive"

	maxMetadataEntries = 10
)

// AlertProcessor is notified about every high or critical activity
type AlertProcessor interface {
	ProcessActivity(ctx context.Context, activityID string) error
}

// Service scrapes tracked competitor sources and records what changed
type Service struct {
	config      *config.Config
	competitors repository.CompetitorRepository
	activities  repository.ActivityRepository
	users       repository.UserRepository
	scraper     scraper.Scraper
	alerts      AlertProcessor
	prom        *metrics.Metrics
	stats       *Stats
	mu          sync.RWMutex
	now         func() time.Time
}

// Stats holds figures from the most recent scheduled run.
// ActivityBreakdown accumulates since process start.
type Stats struct {
	LastRun            time.Time      `json:"last_run"`
	LastRunDuration    string         `json:"last_run_duration"`
	CompetitorsTracked int            `json:"competitors_tracked"`
	ActivitiesDetected int            `json:"activities_detected"`
	ActivityBreakdown  map[string]int `json:"activity_breakdown"`
	ErrorCount         int            `json:"error_count"`
}

// NewService creates a new tracker service
func NewService(
	cfg *config.Config,
	competitors repository.CompetitorRepository,
	activities repository.ActivityRepository,
	users repository.UserRepository,
	s scraper.Scraper,
	alerts AlertProcessor,
	m *metrics.Metrics,
) *Service {
	return &Service{
		config:      cfg,
		competitors: competitors,
		activities:  activities,
		users:       users,
		scraper:     s,
		alerts:      alerts,
		prom:        m,
		stats:       &Stats{ActivityBreakdown: make(map[string]int)},
		now:         time.Now,
	}
}

// TrackCompetitor scrapes every configured source of one competitor.
// A failing source is recorded in the result and does not stop the others.
func (s *Service) TrackCompetitor(ctx context.Context, competitorID string) *models.TrackingResult {
	result := &models.TrackingResult{
		CompetitorID: competitorID,
		Errors:       []string{},
	}

	competitor, err := s.competitors.Get(ctx, competitorID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		result.Errors = append(result.Errors, fmt.Sprintf("Tracking failed: %v", err))
		s.prom.RecordTrackingRun(false, 1)
		return result
	}
	if competitor == nil || !competitor.IsActive {
		result.Errors = append(result.Errors, UnavailableMessage)
		s.prom.RecordTrackingRun(false, 1)
		return result
	}

	result.CompetitorName = competitor.Name
	logger := logrus.WithFields(logrus.Fields{
		"competitor_id":   competitor.ID,
		"competitor_name": competitor.Name,
	})

	type source struct {
		sourceType string
		url        string
		label      string
	}
	var sources []source
	if competitor.TrackingSources.Website && competitor.Website != "" {
		sources = append(sources, source{models.SourceTypeWebsite, competitor.Website, "Website"})
	}
	if competitor.TrackingSources.Blog != "" {
		sources = append(sources, source{models.SourceTypeBlog, competitor.TrackingSources.Blog, "Blog"})
	}

	for _, src := range sources {
		created, err := s.trackSource(ctx, competitor, src.url, src.sourceType)
		result.ActivitiesDetected += created
		if err != nil {
			logger.Errorf("%s tracking failed: %v", src.label, err)
			result.Errors = append(result.Errors, fmt.Sprintf("%s tracking failed: %v", src.label, err))
		}
	}

	s.prom.RecordTrackingRun(len(result.Errors) == 0, len(result.Errors))
	logger.Infof("Tracked competitor: %d activities, %d errors", result.ActivitiesDetected, len(result.Errors))
	return result
}

// trackSource scrapes one URL, diffs it against the stored snapshot for the
// source type, records activities and stores the new snapshot. It returns the
// number of activities created.
func (s *Service) trackSource(ctx context.Context, competitor *models.CompetitorProfile, url, sourceType string) (int, error) {
	start := time.Now()
	current, err := s.scraper.Scrape(ctx, url)
	s.prom.RecordScrape(err == nil, time.Since(start))
	if err != nil {
		return 0, err
	}

	previous := competitor.Snapshot(sourceType)
	activities := s.generateActivities(competitor.ID, url, sourceType, previous, current)

	created, err := s.saveActivities(ctx, competitor, activities)
	if err != nil {
		return created, err
	}

	if competitor.Metadata.Scrapes == nil {
		competitor.Metadata.Scrapes = make(map[string]*models.ScrapedContent)
	}
	competitor.Metadata.Scrapes[sourceType] = current
	trackedAt := s.now()
	competitor.Metadata.LastTrackedAt = &trackedAt

	if err := s.competitors.UpdateMetadata(ctx, competitor.ID, competitor.Metadata); err != nil {
		return created, fmt.Errorf("failed to store snapshot: %w", err)
	}

	return created, nil
}

// saveActivities persists activities in order. High and critical ones are
// handed to the alert processor; its failures are logged and never abort.
func (s *Service) saveActivities(ctx context.Context, competitor *models.CompetitorProfile, activities []*models.CompetitorActivity) (int, error) {
	created := 0
	for _, activity := range activities {
		activity.CompetitorName = competitor.Name
		if err := s.activities.Create(ctx, activity); err != nil {
			return created, fmt.Errorf("failed to save activity: %w", err)
		}
		created++
		s.recordActivity(activity)

		if activity.Importance.Urgent() && s.alerts != nil {
			if err := s.alerts.ProcessActivity(ctx, activity.ID); err != nil {
				logrus.WithField("activity_id", activity.ID).Errorf("Alert processing failed: %v", err)
			}
		}
	}
	return created, nil
}

// generateActivities turns a snapshot comparison into activity records.
// A missing previous snapshot yields a single tracking_started activity.
func (s *Service) generateActivities(competitorID, url, sourceType string, previous, current *models.ScrapedContent) []*models.CompetitorActivity {
	now := s.now()
	newActivity := func(activityType, title, description string, importance models.Importance, meta models.ActivityMetadata) *models.CompetitorActivity {
		meta.SourceType = sourceType
		raw, _ := json.Marshal(meta)
		return &models.CompetitorActivity{
			CompetitorID: competitorID,
			ActivityType: activityType,
			Title:        title,
			Description:  description,
			SourceURL:    url,
			DetectedAt:   now,
			Importance:   importance,
			Metadata:     raw,
		}
	}

	if previous == nil {
		return []*models.CompetitorActivity{
			newActivity(models.ActivityTrackingStarted,
				fmt.Sprintf("Started tracking %s", sourceType),
				fmt.Sprintf("Initial scan of %s", url),
				models.ImportanceLow,
				models.ActivityMetadata{}),
		}
	}

	changes := scraper.DetectChanges(previous, current)
	if !changes.HasChanges() {
		return nil
	}

	var activities []*models.CompetitorActivity
	if changes.Title {
		activities = append(activities, newActivity(models.ActivityTitleChange,
			"Website title changed",
			"The website title has been updated",
			models.ImportanceLow,
			models.ActivityMetadata{ChangeType: "title"}))
	}
	if changes.Description {
		activities = append(activities, newActivity(models.ActivityDescriptionChange,
			"Website description changed",
			"The website meta description has been updated",
			models.ImportanceLow,
			models.ActivityMetadata{ChangeType: "description"}))
	}
	if changes.Content {
		activities = append(activities, newActivity(models.ActivityContentChange,
			"Website content updated",
			"Significant changes detected in website content",
			models.ImportanceMedium,
			models.ActivityMetadata{ChangeType: "content"}))
	}
	if n := len(changes.Links.Added); n > 0 {
		activities = append(activities, newActivity(models.ActivityNewLinksAdded,
			fmt.Sprintf("%d new link(s) added", n),
			"New links detected on the website",
			models.ImportanceLow,
			models.ActivityMetadata{ChangeType: "links", AddedLinks: head(changes.Links.Added, maxMetadataEntries)}))
	}
	if n := len(changes.Images.Added); n > 0 {
		activities = append(activities, newActivity(models.ActivityNewImagesAdded,
			fmt.Sprintf("%d new image(s) added", n),
			"New images detected on the website",
			models.ImportanceLow,
			models.ActivityMetadata{ChangeType: "images", AddedImages: head(changes.Images.Added, maxMetadataEntries)}))
	}
	return activities
}

func head(values []string, n int) []string {
	if len(values) > n {
		return values[:n]
	}
	return values
}

// TrackAllForUser tracks each of the user's active competitors in turn
func (s *Service) TrackAllForUser(ctx context.Context, userID string) ([]*models.TrackingResult, error) {
	competitors, err := s.competitors.ListByUser(ctx, userID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list competitors: %w", err)
	}

	results := make([]*models.TrackingResult, 0, len(competitors))
	for _, competitor := range competitors {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, s.TrackCompetitor(ctx, competitor.ID))
	}
	return results, nil
}

// TrackAllActive is the scheduled job: it tracks every active competitor whose
// owner holds an active paid subscription.
func (s *Service) TrackAllActive(ctx context.Context) (*models.TrackingSummary, error) {
	start := time.Now()
	logrus.Info("Starting scheduled competitor tracking run")

	competitors, err := s.competitors.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active competitors: %w", err)
	}

	summary := &models.TrackingSummary{}
	owners := make(map[string]*models.User)

	for _, competitor := range competitors {
		if err := ctx.Err(); err != nil {
			logrus.Warnf("Tracking run interrupted: %v", err)
			break
		}

		owner, ok := owners[competitor.UserID]
		if !ok {
			owner, err = s.users.Get(ctx, competitor.UserID)
			if err != nil {
				logrus.Errorf("Failed to load owner of competitor %s: %v", competitor.ID, err)
				summary.Errors++
				continue
			}
			owners[competitor.UserID] = owner
		}

		if !owner.Active() || !s.config.IsPaidTier(owner.SubscriptionTier) {
			continue
		}

		result := s.TrackCompetitor(ctx, competitor.ID)
		summary.TotalTracked++
		summary.TotalActivities += result.ActivitiesDetected
		summary.Errors += len(result.Errors)
	}

	s.mu.Lock()
	s.stats.LastRun = s.now()
	s.stats.LastRunDuration = time.Since(start).String()
	s.stats.CompetitorsTracked = summary.TotalTracked
	s.stats.ActivitiesDetected = summary.TotalActivities
	s.stats.ErrorCount = summary.Errors
	s.mu.Unlock()

	logrus.Infof("Tracking run completed in %v: %d competitors, %d activities, %d errors",
		time.Since(start), summary.TotalTracked, summary.TotalActivities, summary.Errors)
	return summary, nil
}

func (s *Service) recordActivity(activity *models.CompetitorActivity) {
	s.prom.RecordActivity(activity.ActivityType, string(activity.Importance))

	s.mu.Lock()
	s.stats.ActivityBreakdown[activity.ActivityType]++
	s.mu.Unlock()
}

// GetMetrics returns the last run figures as JSON
func (s *Service) GetMetrics() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, _ := json.MarshalIndent(s.stats, "", "  ")
	return string(data)
}
