package models

import (
	"encoding/json"
	"time"
)

// Importance is the severity tag that controls alert routing
type Importance string

const (
	ImportanceLow      Importance = "low"
	ImportanceMedium   Importance = "medium"
	ImportanceHigh     Importance = "high"
	ImportanceCritical Importance = "critical"
)

// Importances lists every level from most to least severe
var Importances = []Importance{ImportanceCritical, ImportanceHigh, ImportanceMedium, ImportanceLow}

// Valid reports whether i is one of the four known levels
func (i Importance) Valid() bool {
	switch i {
	case ImportanceLow, ImportanceMedium, ImportanceHigh, ImportanceCritical:
		return true
	}
	return false
}

// Urgent reports whether the level triggers synchronous alert processing
func (i Importance) Urgent() bool {
	return i == ImportanceHigh || i == ImportanceCritical
}

// Activity types emitted by the tracker
const (
	ActivityTrackingStarted   = "tracking_started"
	ActivityTitleChange       = "website_title_change"
	ActivityDescriptionChange = "website_description_change"
	ActivityContentChange     = "website_content_change"
	ActivityNewLinksAdded     = "new_links_added"
	ActivityNewImagesAdded    = "new_images_added"
)

// Source types a competitor can be tracked on
const (
	SourceTypeWebsite = "website"
	SourceTypeBlog    = "blog"
)

const (
	SubscriptionStatusActive    = "active"
	SubscriptionTierFree        = "free"
	SubscriptionTierAccelerator = "accelerator"
	SubscriptionTierPremium     = "premium"
)

// TrackingSources configures which competitor sources are monitored
type TrackingSources struct {
	Website   bool   `json:"website"`
	Blog      string `json:"blog,omitempty"`
	Twitter   string `json:"twitter,omitempty"`
	LinkedIn  string `json:"linkedin,omitempty"`
	Facebook  string `json:"facebook,omitempty"`
	Instagram string `json:"instagram,omitempty"`
}

// CompetitorMetadata is the free-form JSON blob stored with a competitor.
// It keeps the last snapshot per source type.
type CompetitorMetadata struct {
	Scrapes       map[string]*ScrapedContent `json:"scrapes,omitempty"`
	LastTrackedAt *time.Time                 `json:"last_tracked_at,omitempty"`
}

// CompetitorProfile is a competitor tracked on behalf of a user
type CompetitorProfile struct {
	ID              string             `json:"id" db:"id"`
	UserID          string             `json:"user_id" db:"user_id"`
	Name            string             `json:"name" db:"name"`
	Website         string             `json:"website,omitempty" db:"website"`
	Industry        string             `json:"industry,omitempty" db:"industry"`
	Description     string             `json:"description,omitempty" db:"description"`
	TrackingSources TrackingSources    `json:"tracking_sources" db:"-"`
	IsActive        bool               `json:"is_active" db:"is_active"`
	Metadata        CompetitorMetadata `json:"metadata" db:"-"`
	CreatedAt       time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at" db:"updated_at"`
}

// Snapshot returns the stored scrape for a source type, or nil
func (c *CompetitorProfile) Snapshot(sourceType string) *ScrapedContent {
	if c.Metadata.Scrapes == nil {
		return nil
	}
	return c.Metadata.Scrapes[sourceType]
}

// ScrapeMetadata carries the scrape time and content hash
type ScrapeMetadata struct {
	ScrapedAt   time.Time `json:"scraped_at"`
	ContentHash string    `json:"content_hash"`
}

// ScrapedContent is the extracted representation of a single page
type ScrapedContent struct {
	URL         string         `json:"url"`
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
	Content     string         `json:"content"`
	Links       []string       `json:"links"`
	Images      []string       `json:"images"`
	Metadata    ScrapeMetadata `json:"metadata"`
}

// CompetitorActivity is a detected change in a competitor's monitored content
type CompetitorActivity struct {
	ID             string          `json:"id" db:"id"`
	CompetitorID   string          `json:"competitor_id" db:"competitor_id"`
	CompetitorName string          `json:"competitor_name,omitempty" db:"competitor_name"`
	ActivityType   string          `json:"activity_type" db:"activity_type"`
	Title          string          `json:"title" db:"title"`
	Description    string          `json:"description,omitempty" db:"description"`
	SourceURL      string          `json:"source_url,omitempty" db:"source_url"`
	DetectedAt     time.Time       `json:"detected_at" db:"detected_at"`
	Importance     Importance      `json:"importance" db:"importance"`
	Metadata       json.RawMessage `json:"metadata,omitempty" db:"metadata"`
}

// ActivityMetadata describes what changed
type ActivityMetadata struct {
	SourceType  string   `json:"source_type"`
	ChangeType  string   `json:"change_type,omitempty"`
	AddedLinks  []string `json:"added_links,omitempty"`
	AddedImages []string `json:"added_images,omitempty"`
}

// ActivityFilter narrows activity listings
type ActivityFilter struct {
	CompetitorIDs []string
	Since         time.Time
	Until         time.Time
	Importance    Importance
	Limit         int
}

// User is the owning tenant of competitors
type User struct {
	ID                 string `json:"id" db:"id"`
	Email              string `json:"email" db:"email"`
	SubscriptionTier   string `json:"subscription_tier" db:"subscription_tier"`
	SubscriptionStatus string `json:"subscription_status" db:"subscription_status"`
	EmailVerified      bool   `json:"email_verified" db:"email_verified"`
}

// Active reports whether the user's subscription is in good standing
func (u *User) Active() bool {
	return u.SubscriptionStatus == SubscriptionStatusActive
}

// UserProfile pairs a user with their stored preferences
type UserProfile struct {
	User
	Preferences UserPreferences `json:"preferences"`
}

// QuietHours is a daily window during which email and push are suppressed
type QuietHours struct {
	Enabled bool   `json:"enabled"`
	Start   string `json:"start"` // HH:MM
	End     string `json:"end"`   // HH:MM
}

// AlertPreferences controls how a user is notified about activities
type AlertPreferences struct {
	Enabled          bool         `json:"enabled"`
	EmailAlerts      bool         `json:"email_alerts"`
	PushAlerts       bool         `json:"push_alerts"`
	ImportanceLevels []Importance `json:"importance_levels"`
	ActivityTypes    []string     `json:"activity_types"`
	QuietHours       *QuietHours  `json:"quiet_hours,omitempty"`
}

// UserPreferences is the JSON blob stored in a user's profile
type UserPreferences struct {
	Alerts         *AlertPreferences `json:"alerts,omitempty"`
	EmailBriefings *bool             `json:"email_briefings,omitempty"`
}

// BriefingsEnabled is true unless the user explicitly opted out
func (p *UserPreferences) BriefingsEnabled() bool {
	return p.EmailBriefings == nil || *p.EmailBriefings
}

// InAppAlert is an entry in a user's in-app alert list
type InAppAlert struct {
	ID             string     `json:"id"`
	CompetitorID   string     `json:"competitor_id"`
	CompetitorName string     `json:"competitor_name"`
	ActivityID     string     `json:"activity_id"`
	Importance     Importance `json:"importance"`
	Title          string     `json:"title"`
	Message        string     `json:"message"`
	SourceURL      string     `json:"source_url,omitempty"`
	Read           bool       `json:"read"`
	CreatedAt      time.Time  `json:"created_at"`
}

// TrackingResult summarises a single competitor's tracking run
type TrackingResult struct {
	CompetitorID       string   `json:"competitor_id"`
	CompetitorName     string   `json:"competitor_name"`
	ActivitiesDetected int      `json:"activities_detected"`
	Errors             []string `json:"errors"`
}

// TrackingSummary aggregates a scheduled run across all users
type TrackingSummary struct {
	TotalTracked    int `json:"total_tracked"`
	TotalActivities int `json:"total_activities"`
	Errors          int `json:"errors"`
}

// BriefingActivity is an activity as rendered in a briefing
type BriefingActivity struct {
	ID             string    `json:"id"`
	CompetitorName string    `json:"competitor_name"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	SourceURL      string    `json:"source_url,omitempty"`
	DetectedAt     time.Time `json:"detected_at"`
}

// BriefingSection groups activities under a heading
type BriefingSection struct {
	Title      string             `json:"title"`
	Content    string             `json:"content"`
	Importance Importance         `json:"importance"`
	Activities []BriefingActivity `json:"activities"`
}

// Briefing is a periodic digest of accumulated activities
type Briefing struct {
	UserID          string            `json:"user_id"`
	Type            string            `json:"type"` // "daily" or "weekly"
	Period          string            `json:"period"`
	GeneratedAt     time.Time         `json:"generated_at"`
	Summary         string            `json:"summary"`
	Sections        []BriefingSection `json:"sections"`
	TotalActivities int               `json:"total_activities"`
	CriticalAlerts  int               `json:"critical_alerts"`
}

// DeliveryResult counts briefing emails sent in one run
type DeliveryResult struct {
	SentCount  int `json:"sent_count"`
	ErrorCount int `json:"error_count"`
}
