package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/solosuccess/competitor-intel/internal/models"
)

// MemoryStore keeps users, competitors and activities in process memory.
// It implements every repository interface and backs tests and local runs.
type MemoryStore struct {
	mu          sync.RWMutex
	users       map[string]*models.User
	preferences map[string]*models.UserPreferences
	competitors map[string]*models.CompetitorProfile
	activities  map[string]*models.CompetitorActivity
	now         func() time.Time
}

var (
	_ CompetitorRepository = (*MemoryCompetitors)(nil)
	_ ActivityRepository   = (*MemoryActivities)(nil)
	_ UserRepository       = (*MemoryUsers)(nil)
)

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       make(map[string]*models.User),
		preferences: make(map[string]*models.UserPreferences),
		competitors: make(map[string]*models.CompetitorProfile),
		activities:  make(map[string]*models.CompetitorActivity),
		now:         time.Now,
	}
}

// AddUser registers a user
func (s *MemoryStore) AddUser(user *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := *user
	s.users[user.ID] = &u
}

// Competitors returns the competitor repository view of the store
func (s *MemoryStore) Competitors() *MemoryCompetitors { return &MemoryCompetitors{s} }

// Activities returns the activity repository view of the store
func (s *MemoryStore) Activities() *MemoryActivities { return &MemoryActivities{s} }

// Users returns the user repository view of the store
func (s *MemoryStore) Users() *MemoryUsers { return &MemoryUsers{s} }

// cloneCompetitor deep-copies through JSON so callers never share snapshot maps
func cloneCompetitor(c *models.CompetitorProfile) *models.CompetitorProfile {
	data, _ := json.Marshal(c)
	var out models.CompetitorProfile
	_ = json.Unmarshal(data, &out)
	return &out
}

// MemoryCompetitors is the in-memory CompetitorRepository
type MemoryCompetitors struct{ s *MemoryStore }

func (m *MemoryCompetitors) Create(_ context.Context, competitor *models.CompetitorProfile) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if competitor.ID == "" {
		competitor.ID = uuid.NewString()
	}
	now := m.s.now()
	competitor.CreatedAt = now
	competitor.UpdatedAt = now
	m.s.competitors[competitor.ID] = cloneCompetitor(competitor)
	return nil
}

func (m *MemoryCompetitors) Get(_ context.Context, id string) (*models.CompetitorProfile, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	c, ok := m.s.competitors[id]
	if !ok {
		return nil, fmt.Errorf("competitor %s: %w", id, ErrNotFound)
	}
	return cloneCompetitor(c), nil
}

func (m *MemoryCompetitors) list(match func(*models.CompetitorProfile) bool, newestFirst bool) []*models.CompetitorProfile {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	result := []*models.CompetitorProfile{}
	for _, c := range m.s.competitors {
		if match(c) {
			result = append(result, cloneCompetitor(c))
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if newestFirst {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

func (m *MemoryCompetitors) ListByUser(_ context.Context, userID string, activeOnly bool) ([]*models.CompetitorProfile, error) {
	return m.list(func(c *models.CompetitorProfile) bool {
		return c.UserID == userID && (!activeOnly || c.IsActive)
	}, true), nil
}

func (m *MemoryCompetitors) ListActive(_ context.Context) ([]*models.CompetitorProfile, error) {
	return m.list(func(c *models.CompetitorProfile) bool { return c.IsActive }, false), nil
}

func (m *MemoryCompetitors) CountActive(ctx context.Context, userID string) (int, error) {
	list, _ := m.ListByUser(ctx, userID, true)
	return len(list), nil
}

func (m *MemoryCompetitors) Update(_ context.Context, competitor *models.CompetitorProfile) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	existing, ok := m.s.competitors[competitor.ID]
	if !ok {
		return fmt.Errorf("competitor %s: %w", competitor.ID, ErrNotFound)
	}
	existing.Name = competitor.Name
	existing.Website = competitor.Website
	existing.Industry = competitor.Industry
	existing.Description = competitor.Description
	existing.TrackingSources = competitor.TrackingSources
	existing.IsActive = competitor.IsActive
	existing.UpdatedAt = m.s.now()
	competitor.UpdatedAt = existing.UpdatedAt
	return nil
}

func (m *MemoryCompetitors) UpdateMetadata(_ context.Context, id string, metadata models.CompetitorMetadata) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	existing, ok := m.s.competitors[id]
	if !ok {
		return fmt.Errorf("competitor %s: %w", id, ErrNotFound)
	}
	existing.Metadata = cloneCompetitor(&models.CompetitorProfile{Metadata: metadata}).Metadata
	existing.UpdatedAt = m.s.now()
	return nil
}

func (m *MemoryCompetitors) Deactivate(_ context.Context, id string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	existing, ok := m.s.competitors[id]
	if !ok {
		return fmt.Errorf("competitor %s: %w", id, ErrNotFound)
	}
	existing.IsActive = false
	existing.UpdatedAt = m.s.now()
	return nil
}

// MemoryActivities is the in-memory ActivityRepository
type MemoryActivities struct{ s *MemoryStore }

func (m *MemoryActivities) Create(_ context.Context, activity *models.CompetitorActivity) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	a := *activity
	m.s.activities[a.ID] = &a
	return nil
}

func (m *MemoryActivities) withName(a *models.CompetitorActivity) *models.CompetitorActivity {
	out := *a
	if c, ok := m.s.competitors[a.CompetitorID]; ok {
		out.CompetitorName = c.Name
	}
	return &out
}

func (m *MemoryActivities) Get(_ context.Context, id string) (*models.CompetitorActivity, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	a, ok := m.s.activities[id]
	if !ok {
		return nil, fmt.Errorf("activity %s: %w", id, ErrNotFound)
	}
	return m.withName(a), nil
}

func (m *MemoryActivities) List(_ context.Context, filter models.ActivityFilter) ([]*models.CompetitorActivity, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	ids := make(map[string]struct{}, len(filter.CompetitorIDs))
	for _, id := range filter.CompetitorIDs {
		ids[id] = struct{}{}
	}

	result := []*models.CompetitorActivity{}
	for _, a := range m.s.activities {
		if _, ok := ids[a.CompetitorID]; !ok {
			continue
		}
		if !filter.Since.IsZero() && a.DetectedAt.Before(filter.Since) {
			continue
		}
		if !filter.Until.IsZero() && a.DetectedAt.After(filter.Until) {
			continue
		}
		if filter.Importance != "" && a.Importance != filter.Importance {
			continue
		}
		result = append(result, m.withName(a))
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].DetectedAt.Equal(result[j].DetectedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].DetectedAt.After(result[j].DetectedAt)
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// MemoryUsers is the in-memory UserRepository
type MemoryUsers struct{ s *MemoryStore }

func (m *MemoryUsers) Get(_ context.Context, id string) (*models.User, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	u, ok := m.s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	out := *u
	return &out, nil
}

func (m *MemoryUsers) GetPreferences(_ context.Context, userID string) (*models.UserPreferences, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	p, ok := m.s.preferences[userID]
	if !ok {
		return &models.UserPreferences{}, nil
	}
	out := *p
	return &out, nil
}

func (m *MemoryUsers) SavePreferences(_ context.Context, userID string, prefs *models.UserPreferences) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	current, ok := m.s.preferences[userID]
	if !ok {
		current = &models.UserPreferences{}
		m.s.preferences[userID] = current
	}
	if prefs.Alerts != nil {
		a := *prefs.Alerts
		current.Alerts = &a
	}
	if prefs.EmailBriefings != nil {
		b := *prefs.EmailBriefings
		current.EmailBriefings = &b
	}
	return nil
}

func (m *MemoryUsers) ListBriefingRecipients(_ context.Context, tiers []string) ([]*models.UserProfile, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	allowed := make(map[string]struct{}, len(tiers))
	for _, t := range tiers {
		allowed[t] = struct{}{}
	}

	var profiles []*models.UserProfile
	for _, u := range m.s.users {
		if _, ok := allowed[u.SubscriptionTier]; !ok {
			continue
		}
		if !u.Active() || !u.EmailVerified {
			continue
		}
		profile := &models.UserProfile{User: *u}
		if p, ok := m.s.preferences[u.ID]; ok {
			profile.Preferences = *p
		}
		profiles = append(profiles, profile)
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].ID < profiles[j].ID })
	return profiles, nil
}
