package alerts

import (
	"context"
	"sync"

	"github.com/solosuccess/competitor-intel/internal/models"
)

// MemoryAlertStore keeps alert lists in process memory
type MemoryAlertStore struct {
	mu     sync.Mutex
	alerts map[string][]models.InAppAlert
}

var _ AlertStore = (*MemoryAlertStore)(nil)

func NewMemoryAlertStore() *MemoryAlertStore {
	return &MemoryAlertStore{alerts: make(map[string][]models.InAppAlert)}
}

func (s *MemoryAlertStore) Push(_ context.Context, userID string, alert *models.InAppAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := append([]models.InAppAlert{*alert}, s.alerts[userID]...)
	if len(list) > MaxInAppAlerts {
		list = list[:MaxInAppAlerts]
	}
	s.alerts[userID] = list
	return nil
}

func (s *MemoryAlertStore) List(_ context.Context, userID string) ([]models.InAppAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]models.InAppAlert{}, s.alerts[userID]...), nil
}

func (s *MemoryAlertStore) Rewrite(_ context.Context, userID string, fn func([]models.InAppAlert) []models.InAppAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := append([]models.InAppAlert{}, s.alerts[userID]...)
	s.alerts[userID] = fn(current)
	return nil
}
