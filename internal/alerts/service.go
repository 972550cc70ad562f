package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/solosuccess/competitor-intel/internal/metrics"
	"github.com/solosuccess/competitor-intel/internal/models"
	"github.com/solosuccess/competitor-intel/internal/notifications"
	"github.com/solosuccess/competitor-intel/internal/repository"
)

// Service decides whether an activity notifies its owner and keeps in-app alerts
type Service struct {
	activities    repository.ActivityRepository
	competitors   repository.CompetitorRepository
	users         repository.UserRepository
	notifications notifications.NotificationInterface
	store         AlertStore
	metrics       *metrics.Metrics
	location      *time.Location
	now           func() time.Time
}

// NewService creates a new alert service. Quiet hours are read in loc.
func NewService(
	activities repository.ActivityRepository,
	competitors repository.CompetitorRepository,
	users repository.UserRepository,
	notificationService notifications.NotificationInterface,
	store AlertStore,
	m *metrics.Metrics,
	loc *time.Location,
) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		activities:    activities,
		competitors:   competitors,
		users:         users,
		notifications: notificationService,
		store:         store,
		metrics:       m,
		location:      loc,
		now:           time.Now,
	}
}

// DefaultPreferences returns the preferences applied to users who never saved any
func DefaultPreferences() *models.AlertPreferences {
	return &models.AlertPreferences{
		Enabled:          true,
		EmailAlerts:      true,
		PushAlerts:       false,
		ImportanceLevels: []models.Importance{models.ImportanceHigh, models.ImportanceCritical},
		ActivityTypes:    []string{},
		QuietHours: &models.QuietHours{
			Enabled: false,
			Start:   "22:00",
			End:     "08:00",
		},
	}
}

// PreferencesPatch holds the fields to change; nil fields keep their current value
type PreferencesPatch struct {
	Enabled          *bool               `json:"enabled,omitempty"`
	EmailAlerts      *bool               `json:"email_alerts,omitempty"`
	PushAlerts       *bool               `json:"push_alerts,omitempty"`
	ImportanceLevels []models.Importance `json:"importance_levels,omitempty"`
	ActivityTypes    *[]string           `json:"activity_types,omitempty"`
	QuietHours       *models.QuietHours  `json:"quiet_hours,omitempty"`
}

// Validate checks importance levels and, for enabled quiet hours, the HH:MM format
func (p *PreferencesPatch) Validate() error {
	for _, level := range p.ImportanceLevels {
		if !level.Valid() {
			return fmt.Errorf("invalid importance level %q", level)
		}
	}
	if p.QuietHours != nil && p.QuietHours.Enabled {
		for _, v := range []*string{&p.QuietHours.Start, &p.QuietHours.End} {
			parsed, err := time.Parse("15:04", *v)
			if err != nil {
				return fmt.Errorf("quiet hours must use HH:MM, got %q", *v)
			}
			// stored zero-padded so "8:00" and "08:00" mean the same
			*v = parsed.Format("15:04")
		}
	}
	return nil
}

// minuteOfDay parses an HH:MM clock value
func minuteOfDay(v string) (int, bool) {
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}

// Preferences returns the user's stored alert preferences, or the defaults
func (s *Service) Preferences(ctx context.Context, userID string) (*models.AlertPreferences, error) {
	prefs, err := s.users.GetPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	if prefs.Alerts == nil {
		return DefaultPreferences(), nil
	}
	return prefs.Alerts, nil
}

// UpdatePreferences merges patch over the current preferences and persists the result
func (s *Service) UpdatePreferences(ctx context.Context, userID string, patch *PreferencesPatch) (*models.AlertPreferences, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	current, err := s.Preferences(ctx, userID)
	if err != nil {
		return nil, err
	}

	updated := *current
	if patch.Enabled != nil {
		updated.Enabled = *patch.Enabled
	}
	if patch.EmailAlerts != nil {
		updated.EmailAlerts = *patch.EmailAlerts
	}
	if patch.PushAlerts != nil {
		updated.PushAlerts = *patch.PushAlerts
	}
	if patch.ImportanceLevels != nil {
		updated.ImportanceLevels = patch.ImportanceLevels
	}
	if patch.ActivityTypes != nil {
		updated.ActivityTypes = *patch.ActivityTypes
	}
	if patch.QuietHours != nil {
		qh := *patch.QuietHours
		updated.QuietHours = &qh
	}

	if err := s.users.SavePreferences(ctx, userID, &models.UserPreferences{Alerts: &updated}); err != nil {
		return nil, fmt.Errorf("failed to save alert preferences: %w", err)
	}

	logrus.WithField("user_id", userID).Info("Updated alert preferences")
	return &updated, nil
}

// ProcessActivity routes a newly recorded activity to its owner's channels.
// Filtered activities are a no-op. Delivery failures are logged, not returned.
func (s *Service) ProcessActivity(ctx context.Context, activityID string) error {
	activity, err := s.activities.Get(ctx, activityID)
	if err != nil {
		return fmt.Errorf("failed to load activity: %w", err)
	}
	competitor, err := s.competitors.Get(ctx, activity.CompetitorID)
	if err != nil {
		return fmt.Errorf("failed to load competitor: %w", err)
	}
	user, err := s.users.Get(ctx, competitor.UserID)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	prefs, err := s.Preferences(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("failed to load alert preferences: %w", err)
	}

	if activity.CompetitorName == "" {
		activity.CompetitorName = competitor.Name
	}

	logger := logrus.WithFields(logrus.Fields{
		"user_id":     user.ID,
		"activity_id": activity.ID,
		"importance":  activity.Importance,
	})

	if reason := filterReason(prefs, activity); reason != "" {
		logger.Debugf("Activity filtered: %s", reason)
		s.metrics.RecordSuppressed(reason)
		return nil
	}

	quiet := s.isQuietHours(prefs.QuietHours, activity.DetectedAt)
	if quiet && (prefs.EmailAlerts || prefs.PushAlerts) {
		logger.Info("Within quiet hours, skipping email and push")
		s.metrics.RecordSuppressed("quiet_hours")
	}

	if prefs.EmailAlerts && !quiet {
		if err := s.notifications.SendCompetitorAlert(ctx, user.Email, activity); err != nil {
			logger.Errorf("Failed to send email alert: %v", err)
		} else {
			s.metrics.RecordAlert("email")
		}
	}

	if prefs.PushAlerts && !quiet {
		if err := s.notifications.SendPush(ctx, user.ID, activity); err != nil {
			logger.Errorf("Failed to send push alert: %v", err)
		} else {
			s.metrics.RecordAlert("push")
		}
	}

	alert := &models.InAppAlert{
		ID:             uuid.NewString(),
		CompetitorID:   activity.CompetitorID,
		CompetitorName: activity.CompetitorName,
		ActivityID:     activity.ID,
		Importance:     activity.Importance,
		Title:          activity.Title,
		Message:        activity.Description,
		SourceURL:      activity.SourceURL,
		Read:           false,
		CreatedAt:      s.now(),
	}
	if err := s.store.Push(ctx, user.ID, alert); err != nil {
		logger.Errorf("Failed to store in-app alert: %v", err)
	} else {
		s.metrics.RecordAlert("in_app")
	}

	return nil
}

// filterReason returns why prefs reject the activity, or "" when it passes
func filterReason(prefs *models.AlertPreferences, activity *models.CompetitorActivity) string {
	if !prefs.Enabled {
		return "disabled"
	}

	levelOK := false
	for _, level := range prefs.ImportanceLevels {
		if level == activity.Importance {
			levelOK = true
			break
		}
	}
	if !levelOK {
		return "importance"
	}

	if len(prefs.ActivityTypes) > 0 {
		for _, t := range prefs.ActivityTypes {
			if t == activity.ActivityType {
				return ""
			}
		}
		return "activity_type"
	}
	return ""
}

// isQuietHours reports whether at falls in the window. Both ends are inclusive
// and a start later than the end wraps past midnight.
func (s *Service) isQuietHours(qh *models.QuietHours, at time.Time) bool {
	if qh == nil || !qh.Enabled {
		return false
	}

	start, okStart := minuteOfDay(qh.Start)
	end, okEnd := minuteOfDay(qh.End)
	if !okStart || !okEnd {
		return false
	}

	local := at.In(s.location)
	current := local.Hour()*60 + local.Minute()
	if start > end {
		return current >= start || current <= end
	}
	return current >= start && current <= end
}

// Alerts returns the user's in-app alerts, newest first
func (s *Service) Alerts(ctx context.Context, userID string, unreadOnly bool) ([]models.InAppAlert, error) {
	alerts, err := s.store.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !unreadOnly {
		return alerts, nil
	}

	unread := make([]models.InAppAlert, 0, len(alerts))
	for _, a := range alerts {
		if !a.Read {
			unread = append(unread, a)
		}
	}
	return unread, nil
}

// MarkRead flags a single alert as read. Unknown IDs are ignored.
func (s *Service) MarkRead(ctx context.Context, userID, alertID string) error {
	return s.store.Rewrite(ctx, userID, func(alerts []models.InAppAlert) []models.InAppAlert {
		for i := range alerts {
			if alerts[i].ID == alertID {
				alerts[i].Read = true
			}
		}
		return alerts
	})
}

func (s *Service) MarkAllRead(ctx context.Context, userID string) error {
	return s.store.Rewrite(ctx, userID, func(alerts []models.InAppAlert) []models.InAppAlert {
		for i := range alerts {
			alerts[i].Read = true
		}
		return alerts
	})
}

// Delete removes an alert. Unknown IDs are ignored.
func (s *Service) Delete(ctx context.Context, userID, alertID string) error {
	return s.store.Rewrite(ctx, userID, func(alerts []models.InAppAlert) []models.InAppAlert {
		kept := alerts[:0]
		for _, a := range alerts {
			if a.ID != alertID {
				kept = append(kept, a)
			}
		}
		return kept
	})
}
