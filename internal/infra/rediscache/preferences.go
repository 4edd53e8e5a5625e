// Package rediscache puts a Redis read-through cache in front of the
// preference reads of a store.Store. Redis failures never fail a request:
// the cache falls back to the backing store.
//
// Every upsert bumps a per-user generation counter and each cached entry
// carries the generation it was read under. A fill that raced an upsert is
// therefore stored under an old generation and ignored by later reads.
package rediscache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/logger"
	"github.com/dvloznov/finance-assistant/internal/store"
	redis "github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "prefs:"
	genPrefix = "prefs-gen:"
)

// Cmdable is the subset of *redis.Client the cache uses.
type Cmdable interface {
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
}

type entry struct {
	Gen         int64                   `json:"gen"`
	Preferences *domain.UserPreferences `json:"preferences"`
}

// Store decorates a store.Store with cached preference reads. All other
// methods go straight to the embedded store.
type Store struct {
	store.Store
	client Cmdable
	ttl    time.Duration
}

// New wraps backing with a cache on client. Entries expire after ttl.
func New(backing store.Store, client Cmdable, ttl time.Duration) *Store {
	return &Store{Store: backing, client: client, ttl: ttl}
}

// Connect creates a Redis client for addr and checks it with a ping.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("Connect: ping redis %s: %w", addr, err)
	}
	return client, nil
}

func key(userID string) string {
	return keyPrefix + userID
}

func genKey(userID string) string {
	return genPrefix + userID
}

// GetPreferences implements store.PreferenceStore.
func (s *Store) GetPreferences(ctx context.Context, userID string) (*domain.UserPreferences, error) {
	log := logger.FromContext(ctx)

	cacheUsable := true
	var gen int64
	vals, err := s.client.MGet(ctx, key(userID), genKey(userID)).Result()
	if err != nil || len(vals) != 2 {
		log.Warn().Err(err).Str("user_id", userID).Msg("Preference cache read failed")
		cacheUsable = false
	} else {
		if g, ok := vals[1].(string); ok {
			gen, _ = strconv.ParseInt(g, 10, 64)
		}
		if raw, ok := vals[0].(string); ok {
			var cached entry
			switch {
			case json.Unmarshal([]byte(raw), &cached) != nil || cached.Preferences == nil:
				log.Warn().Str("user_id", userID).Msg("Discarding undecodable cached preferences")
			case cached.Gen == gen:
				return cached.Preferences, nil
			}
		}
	}

	prefs, err := s.Store.GetPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}

	if cacheUsable {
		if data, err := json.Marshal(entry{Gen: gen, Preferences: prefs}); err == nil {
			if err := s.client.Set(ctx, key(userID), data, s.ttl).Err(); err != nil {
				log.Warn().Err(err).Str("user_id", userID).Msg("Preference cache write failed")
			}
		}
	}
	return prefs, nil
}

// UpsertPreferences implements store.PreferenceStore. After the backing write
// the generation is bumped and the entry dropped, so no earlier fill is served
// again.
func (s *Store) UpsertPreferences(ctx context.Context, prefs *domain.UserPreferences) error {
	if err := s.Store.UpsertPreferences(ctx, prefs); err != nil {
		return err
	}

	log := logger.FromContext(ctx)
	if err := s.client.Incr(ctx, genKey(prefs.UserID)).Err(); err != nil {
		log.Warn().Err(err).Str("user_id", prefs.UserID).Msg("Preference cache generation bump failed")
	}
	if err := s.client.Del(ctx, key(prefs.UserID)).Err(); err != nil {
		log.Warn().Err(err).Str("user_id", prefs.UserID).Msg("Preference cache invalidation failed")
	}
	return nil
}

var _ store.Store = (*Store)(nil)
