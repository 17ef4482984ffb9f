package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/redis/go-redis/v9"
)

// KeyTTL is how long snapshot documents live in Redis. Snapshots are
// reproducible from the article store, so eight days is retention for
// trend comparisons and debugging, not durability.
const KeyTTL = 8 * 24 * time.Hour

// keyPrefix namespaces snapshot keys in Redis.
const keyPrefix = "snap"

// RedisStore implements Store over Redis with one CBOR document per
// (date, hour) key. Writes are full-replace, so an hour is always either
// entirely the old snapshot or entirely the new one.
type RedisStore struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisStore creates a Redis-backed snapshot store.
func NewRedisStore(client *redis.Client, logger *slog.Logger) *RedisStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisStore{client: client, logger: logger}
}

// redisKey builds the Redis key for a (date, hour) bucket.
func redisKey(date string, hour int) string {
	return fmt.Sprintf("%s:%s:%02d", keyPrefix, date, hour)
}

// Get returns the snapshot for (date, hour), or nil if absent.
func (s *RedisStore) Get(ctx context.Context, date string, hour int) (*Snapshot, error) {
	if err := ValidateKey(date, hour); err != nil {
		return nil, err
	}

	data, err := s.client.Get(ctx, redisKey(date, hour)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot %s/%d: %w", date, hour, err)
	}
	return decodeSnapshot(data)
}

// Set stores a snapshot, replacing any existing document for its key.
func (s *RedisStore) Set(ctx context.Context, snap *Snapshot) error {
	if err := ValidateKey(snap.Date, snap.Hour); err != nil {
		return err
	}

	data, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}

	if err := s.client.Set(ctx, redisKey(snap.Date, snap.Hour), data, KeyTTL).Err(); err != nil {
		return fmt.Errorf("failed to write snapshot %s/%d: %w", snap.Date, snap.Hour, err)
	}
	s.logger.Debug("snapshot written",
		"date", snap.Date,
		"hour", snap.Hour,
		"items", len(snap.Items),
		"bytes", len(data))
	return nil
}

// ListHours returns all stored snapshots for a date, ascending by hour.
// The 24 candidate keys are fetched in one MGET.
func (s *RedisStore) ListHours(ctx context.Context, date string) ([]HourEntry, error) {
	if _, err := time.Parse(DateLayout, date); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}

	keys := make([]string, 24)
	for hour := 0; hour < 24; hour++ {
		keys[hour] = redisKey(date, hour)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshot hours for %s: %w", date, err)
	}

	entries := make([]HourEntry, 0, len(values))
	for hour, v := range values {
		if v == nil {
			continue
		}
		raw, ok := v.(string)
		if !ok {
			continue
		}
		snap, err := decodeSnapshot([]byte(raw))
		if err != nil {
			s.logger.Warn("skipping undecodable snapshot",
				"date", date,
				"hour", hour,
				"error", err)
			continue
		}
		entries = append(entries, HourEntry{Hour: hour, Snapshot: snap})
	}
	return entries, nil
}

// Exists reports whether a snapshot exists for (date, hour).
func (s *RedisStore) Exists(ctx context.Context, date string, hour int) (bool, error) {
	if err := ValidateKey(date, hour); err != nil {
		return false, err
	}

	n, err := s.client.Exists(ctx, redisKey(date, hour)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check snapshot %s/%d: %w", date, hour, err)
	}
	return n > 0, nil
}

// encodeSnapshot serializes a snapshot to CBOR.
func encodeSnapshot(snap *Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	if err := cbor.NewEncoder(&buf).Encode(snap); err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeSnapshot deserializes a CBOR snapshot document.
func decodeSnapshot(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := cbor.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snap, nil
}
