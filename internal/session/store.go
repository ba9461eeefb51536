// Package session is the Redis-backed facade over presence, chat
// membership, the offline queue, the refresh-token allowlist, and the
// per-sender rate limiter. Every operation is a degraded-mode candidate:
// a Redis failure here must never take down the realtime path, so callers
// get a bool/err pair and are expected to fall back to "local sockets
// only" rather than propagate a fatal error.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	onlineTTL              = 90 * time.Second
	defaultMaxOfflineItems = 300
)

// Store wraps a Redis client with the key layout from §6 of the chat
// design: online:{uid}, chat_members:{cid}, offline:{uid},
// refresh_jti:{jti}, ratelimit:msg:{uid}.
type Store struct {
	client          *redis.Client
	maxOfflineItems int64
}

func NewStore(addr, password string, db int) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	return &Store{client: client, maxOfflineItems: defaultMaxOfflineItems}, nil
}

// SetOfflineQueueCap overrides the per-user offline queue cap (default 300).
func (s *Store) SetOfflineQueueCap(n int64) {
	if n > 0 {
		s.maxOfflineItems = n
	}
}

func (s *Store) Close() error {
	return s.client.Close()
}

// Client exposes the underlying Redis client so a Bus can share the same
// connection pool.
func (s *Store) Client() *redis.Client {
	return s.client
}

// Presence

func (s *Store) MarkOnline(ctx context.Context, uid uuid.UUID) error {
	return s.client.Set(ctx, onlineKey(uid), "1", onlineTTL).Err()
}

func (s *Store) MarkOffline(ctx context.Context, uid uuid.UUID) error {
	return s.client.Del(ctx, onlineKey(uid)).Err()
}

func (s *Store) IsOnline(ctx context.Context, uid uuid.UUID) (bool, error) {
	n, err := s.client.Exists(ctx, onlineKey(uid)).Result()
	return n > 0, err
}

// Chat membership mirror, used by the Delivery Engine to pick fan-out
// targets without a database round-trip on every publish.

func (s *Store) AddUserToChat(ctx context.Context, uid, cid uuid.UUID) error {
	return s.client.SAdd(ctx, chatMembersKey(cid), uid.String()).Err()
}

func (s *Store) RemoveUserFromChat(ctx context.Context, uid, cid uuid.UUID) error {
	return s.client.SRem(ctx, chatMembersKey(cid), uid.String()).Err()
}

func (s *Store) ChatMembers(ctx context.Context, cid uuid.UUID) ([]uuid.UUID, error) {
	members, err := s.client.SMembers(ctx, chatMembersKey(cid)).Result()
	if err != nil {
		return nil, err
	}

	out := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		id, err := uuid.Parse(m)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	return out, nil
}

// Offline queue: right-push, trim to the last 300, drain atomically.

func (s *Store) StoreOffline(ctx context.Context, uid uuid.UUID, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	key := offlineKey(uid)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, -s.maxOfflineItems, -1)
	_, err = pipe.Exec(ctx)
	return err
}

// DrainOffline reads and deletes every queued payload for uid, returning
// them oldest-first (FIFO enqueue order).
func (s *Store) DrainOffline(ctx context.Context, uid uuid.UUID) ([]json.RawMessage, error) {
	key := offlineKey(uid)

	pipe := s.client.TxPipeline()
	rangeCmd := pipe.LRange(ctx, key, 0, -1)
	pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	raw := rangeCmd.Val()
	if len(raw) == 0 {
		return nil, nil
	}

	out := make([]json.RawMessage, len(raw))
	for i, r := range raw {
		out[i] = json.RawMessage(r)
	}
	return out, nil
}

// Refresh-token allowlist.

func (s *Store) AddRefresh(ctx context.Context, jti string, uid uuid.UUID, ttl time.Duration) error {
	return s.client.Set(ctx, refreshKey(jti), uid.String(), ttl).Err()
}

func (s *Store) IsRefreshValid(ctx context.Context, jti string, uid uuid.UUID) (bool, error) {
	val, err := s.client.Get(ctx, refreshKey(jti)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return val == uid.String(), nil
}

func (s *Store) RevokeRefresh(ctx context.Context, jti string) error {
	return s.client.Del(ctx, refreshKey(jti)).Err()
}

// Rate limiting: sliding window over a sorted set, score = unix seconds.

// RateCheck reports whether uid is still under max events within window,
// and records the current attempt if so. Old entries (older than
// now-window) are trimmed first so the set doesn't grow unbounded.
func (s *Store) RateCheck(ctx context.Context, uid uuid.UUID, max int64, window time.Duration) (bool, error) {
	key := rateLimitKey(uid)
	now := time.Now()
	cutoff := now.Add(-window)

	pipe := s.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("(%d", cutoff.Unix()))
	countCmd := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}

	if countCmd.Val() >= max {
		return false, nil
	}

	member := &redis.Z{Score: float64(now.Unix()), Member: fmt.Sprintf("%d-%s", now.UnixNano(), uid.String())}
	if err := s.client.ZAdd(ctx, key, *member).Err(); err != nil {
		return false, err
	}
	return true, nil
}

func onlineKey(uid uuid.UUID) string      { return "online:" + uid.String() }
func chatMembersKey(cid uuid.UUID) string { return "chat_members:" + cid.String() }
func offlineKey(uid uuid.UUID) string     { return "offline:" + uid.String() }
func refreshKey(jti string) string        { return "refresh_jti:" + jti }
func rateLimitKey(uid uuid.UUID) string   { return "ratelimit:msg:" + uid.String() }
