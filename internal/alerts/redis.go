package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/solosuccess/competitor-intel/internal/models"
)

const maxRewriteAttempts = 5

// RedisAlertStore keeps alert lists as Redis lists keyed per user
type RedisAlertStore struct {
	client *redis.Client
	prefix string
}

// Ensure RedisAlertStore implements AlertStore
var _ AlertStore = (*RedisAlertStore)(nil)

// NewRedisAlertStore creates a store using client
func NewRedisAlertStore(client *redis.Client) *RedisAlertStore {
	return &RedisAlertStore{client: client, prefix: "alerts:"}
}

func (s *RedisAlertStore) key(userID string) string {
	return s.prefix + userID
}

func (s *RedisAlertStore) Push(ctx context.Context, userID string, alert *models.InAppAlert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to encode alert: %w", err)
	}

	key := s.key(userID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, data)
		pipe.LTrim(ctx, key, 0, MaxInAppAlerts-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to push alert for %s: %w", userID, err)
	}
	return nil
}

func (s *RedisAlertStore) List(ctx context.Context, userID string) ([]models.InAppAlert, error) {
	values, err := s.client.LRange(ctx, s.key(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts for %s: %w", userID, err)
	}
	return decodeAlerts(values)
}

// Rewrite applies fn under WATCH so concurrent pushes are not lost
func (s *RedisAlertStore) Rewrite(ctx context.Context, userID string, fn func([]models.InAppAlert) []models.InAppAlert) error {
	key := s.key(userID)

	txf := func(tx *redis.Tx) error {
		values, err := tx.LRange(ctx, key, 0, -1).Result()
		if err != nil {
			return err
		}
		current, err := decodeAlerts(values)
		if err != nil {
			return err
		}

		updated := fn(current)
		encoded := make([]interface{}, 0, len(updated))
		for i := range updated {
			data, err := json.Marshal(&updated[i])
			if err != nil {
				return fmt.Errorf("failed to encode alert: %w", err)
			}
			encoded = append(encoded, data)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			if len(encoded) > 0 {
				pipe.RPush(ctx, key, encoded...)
			}
			return nil
		})
		return err
	}

	for i := 0; i < maxRewriteAttempts; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to rewrite alerts for %s: %w", userID, err)
		}
		return nil
	}
	return fmt.Errorf("failed to rewrite alerts for %s: too much contention", userID)
}

func decodeAlerts(values []string) ([]models.InAppAlert, error) {
	alerts := make([]models.InAppAlert, 0, len(values))
	for _, v := range values {
		var alert models.InAppAlert
		if err := json.Unmarshal([]byte(v), &alert); err != nil {
			return nil, fmt.Errorf("failed to decode alert: %w", err)
		}
		alerts = append(alerts, alert)
	}
	return alerts, nil
}
