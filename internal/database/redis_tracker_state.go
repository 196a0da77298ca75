// Redis-backed persistence for the kill switch state, so a restart keeps
// a paused engine paused. When Redis is unavailable the store falls back
// to an in-memory copy and trading continues without interruption.
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	// trackerStateKey holds the serialized kill switch state
	trackerStateKey = "engine:tracker:state"

	// trackerStateTTL keeps stale state from outliving a long shutdown
	trackerStateTTL = 30 * 24 * time.Hour
)

// TrackerState is the persisted slice of the performance tracker: enough
// to restore the advisory pause across restarts.
type TrackerState struct {
	State       string    `json:"state"`
	PauseReason string    `json:"pause_reason"`
	Balance     float64   `json:"balance"`
	Peak        float64   `json:"peak"`
	SavedAt     time.Time `json:"saved_at"`
}

// TrackerStateStore stores kill switch state in Redis with an in-memory
// fallback when Redis is unavailable.
type TrackerStateStore struct {
	client         *redis.Client
	redisAvailable atomic.Bool

	mu       sync.RWMutex
	fallback *TrackerState

	logger zerolog.Logger
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// NewTrackerStateStore connects to Redis and verifies the connection.
// A failed connection is not fatal; the store degrades to memory-only
// and keeps probing on every write.
func NewTrackerStateStore(cfg RedisConfig, logger zerolog.Logger) *TrackerStateStore {
	store := &TrackerStateStore{
		logger: logger.With().Str("component", "tracker_state").Logger(),
	}
	if cfg.Addr == "" {
		store.logger.Warn().Msg("no redis address configured, using in-memory state only")
		return store
	}

	store.client = redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.client.Ping(ctx).Err(); err != nil {
		store.logger.Warn().Err(err).Msg("redis unavailable, falling back to in-memory state")
	} else {
		store.redisAvailable.Store(true)
		store.logger.Info().Str("addr", cfg.Addr).Msg("connected to redis")
	}
	return store
}

// Save persists the tracker state. Redis failures degrade to the
// in-memory fallback, never to an error for the caller.
func (s *TrackerStateStore) Save(ctx context.Context, state TrackerState) {
	state.SavedAt = time.Now().UTC()

	s.mu.Lock()
	s.fallback = &state
	s.mu.Unlock()

	if s.client == nil {
		return
	}
	payload, err := json.Marshal(state)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to encode tracker state")
		return
	}
	if err := s.client.Set(ctx, trackerStateKey, payload, trackerStateTTL).Err(); err != nil {
		if s.redisAvailable.Swap(false) {
			s.logger.Warn().Err(err).Msg("redis write failed, state held in memory")
		}
		return
	}
	s.redisAvailable.Store(true)
}

// Load restores the most recent tracker state. Returns false when no
// state was ever saved.
func (s *TrackerStateStore) Load(ctx context.Context) (TrackerState, bool) {
	if s.client != nil {
		payload, err := s.client.Get(ctx, trackerStateKey).Bytes()
		switch {
		case err == redis.Nil:
			// fall through to memory
		case err != nil:
			s.logger.Warn().Err(err).Msg("redis read failed, using in-memory state")
		default:
			var state TrackerState
			if err := json.Unmarshal(payload, &state); err != nil {
				s.logger.Error().Err(err).Msg("failed to decode tracker state")
			} else {
				s.redisAvailable.Store(true)
				return state, true
			}
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.fallback == nil {
		return TrackerState{}, false
	}
	return *s.fallback, true
}

// Clear removes the persisted state
func (s *TrackerStateStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.fallback = nil
	s.mu.Unlock()

	if s.client == nil {
		return nil
	}
	if err := s.client.Del(ctx, trackerStateKey).Err(); err != nil {
		return fmt.Errorf("failed to clear tracker state: %w", err)
	}
	return nil
}

// Close releases the Redis connection
func (s *TrackerStateStore) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}
