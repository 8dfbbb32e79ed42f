// internal/draft/store.go
package draft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"loan-portal/internal/common/logger"
)

const (
	keyPrefix   = "draft:"
	eventPrefix = "draft:events:"
)

// Snapshot is one persisted draft state for a form session.
type Snapshot struct {
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}

// SaveEvent is published after every successful write so other browser
// contexts on the same draft key can reflect the save.
type SaveEvent struct {
	Key       string    `json:"key"`
	Origin    string    `json:"origin"`
	Timestamp time.Time `json:"timestamp"`
}

// Store persists draft snapshots. Load returns (nil, nil) when no usable
// snapshot exists: absence and corruption are both treated as "nothing to
// restore".
type Store interface {
	Load(ctx context.Context, key string) (*Snapshot, error)
	Save(ctx context.Context, key string, snap *Snapshot, origin string) error
	Delete(ctx context.Context, key string) error
	Subscribe(ctx context.Context, key string) (<-chan SaveEvent, func())
}

// RedisStore keeps snapshots in redis with a TTL and broadcasts save events
// over pub/sub.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewRedisStore(client *redis.Client, ttl time.Duration, log logger.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "draft-store"}),
	}
}

func (s *RedisStore) Load(ctx context.Context, key string) (*Snapshot, error) {
	raw, err := s.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("load draft: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		// Corrupt payloads are discarded, not surfaced; the user starts fresh.
		s.logger.Warn("discarding corrupt draft snapshot", map[string]interface{}{
			"key":   key,
			"error": err,
		})
		return nil, nil
	}
	return &snap, nil
}

func (s *RedisStore) Save(ctx context.Context, key string, snap *Snapshot, origin string) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal draft: %w", err)
	}

	if err := s.client.Set(ctx, keyPrefix+key, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}

	event, err := json.Marshal(SaveEvent{Key: key, Origin: origin, Timestamp: snap.Timestamp})
	if err != nil {
		return fmt.Errorf("marshal save event: %w", err)
	}
	if err := s.client.Publish(ctx, eventPrefix+key, event).Err(); err != nil {
		// The write itself succeeded; a lost broadcast only delays the other
		// contexts' indicator.
		s.logger.Warn("draft save event publish failed", map[string]interface{}{
			"key":   key,
			"error": err,
		})
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}

// Subscribe streams save events for one draft key until the returned cancel
// function is called.
func (s *RedisStore) Subscribe(ctx context.Context, key string) (<-chan SaveEvent, func()) {
	pubsub := s.client.Subscribe(ctx, eventPrefix+key)
	out := make(chan SaveEvent)

	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			var event SaveEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				s.logger.Warn("dropping malformed draft save event", map[string]interface{}{
					"key":   key,
					"error": err,
				})
				continue
			}
			select {
			case out <- event:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, func() { pubsub.Close() }
}
