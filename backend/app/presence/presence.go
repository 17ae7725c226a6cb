// Package presence keeps a short-lived online marker per device in redis.
// It is an optional accelerator: when no redis client is configured every
// method degrades to "unknown" and callers fall back to last-contact
// timestamps in the store.
package presence

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "vdi:presence:"

type Tracker struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewTracker accepts a nil client; all methods are nil-safe.
func NewTracker(rdb *redis.Client, ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Tracker{rdb: rdb, ttl: ttl}
}

func (t *Tracker) Enabled() bool { return t != nil && t.rdb != nil }

// Mark refreshes the device's online marker. Errors are returned for
// logging but callers treat presence as best effort.
func (t *Tracker) Mark(ctx context.Context, deviceID string) error {
	if !t.Enabled() {
		return nil
	}
	return t.rdb.Set(ctx, keyPrefix+deviceID, time.Now().Format(time.RFC3339), t.ttl).Err()
}

func (t *Tracker) Clear(ctx context.Context, deviceID string) error {
	if !t.Enabled() {
		return nil
	}
	return t.rdb.Del(ctx, keyPrefix+deviceID).Err()
}

// Online reports whether the device's marker is live. The second return is
// false when presence is disabled and the caller must decide from the store.
func (t *Tracker) Online(ctx context.Context, deviceID string) (bool, bool) {
	if !t.Enabled() {
		return false, false
	}
	n, err := t.rdb.Exists(ctx, keyPrefix+deviceID).Result()
	if err != nil {
		return false, false
	}
	return n > 0, true
}

// OnlineDevices lists device ids with a live marker.
func (t *Tracker) OnlineDevices(ctx context.Context) ([]string, error) {
	if !t.Enabled() {
		return nil, nil
	}
	keys, err := t.rdb.Keys(ctx, keyPrefix+"*").Result()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, k[len(keyPrefix):])
	}
	return ids, nil
}
