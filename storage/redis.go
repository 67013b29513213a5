package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	// Booked date ranges per property: booked_dates:{property_id} -> JSON array
	KeyBookedDates = "booked_dates:%d"

	// Idempotent booking creation: idem:booking:{key} -> booking reference
	KeyIdemBooking = "idem:booking:%s"

	// Refresh token allow-list: refresh:{user_id}:{token_id} -> "1"
	KeyRefreshToken = "refresh:%d:%s"
)

var (
	TTLBookedDates = 10 * time.Minute
	TTLIdempotency = 24 * time.Hour
)

// NewRedis builds the shared Redis client. Addr falls back to localhost so
// development works without configuration.
func NewRedis(addr, password string) *redis.Client {
	if addr == "" {
		addr = "localhost:6379"
		log.Println("REDIS_URL not set, using localhost:6379 (development mode)")
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
}

// DateRange is one booked or blocked interval, check-out exclusive.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Cache wraps the Redis client with the read-side caching and idempotency
// operations booking handlers need.
type Cache struct {
	rdb *redis.Client
}

func NewCache(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

// BookedDates returns the cached booked ranges for a property, reporting a
// miss when the key is absent or unreadable.
func (c *Cache) BookedDates(ctx context.Context, propertyID uint) ([]DateRange, bool) {
	raw, err := c.rdb.Get(ctx, fmt.Sprintf(KeyBookedDates, propertyID)).Result()
	if err != nil {
		return nil, false
	}
	var ranges []DateRange
	if err := json.Unmarshal([]byte(raw), &ranges); err != nil {
		return nil, false
	}
	return ranges, true
}

// SetBookedDates stores the booked ranges for a property. Cache write
// failures are logged, never surfaced: the database remains the truth.
func (c *Cache) SetBookedDates(ctx context.Context, propertyID uint, ranges []DateRange) {
	raw, err := json.Marshal(ranges)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, fmt.Sprintf(KeyBookedDates, propertyID), raw, TTLBookedDates).Err(); err != nil {
		log.Printf("cache: failed to store booked dates for property %d: %v", propertyID, err)
	}
}

// InvalidateBookedDates drops the cached ranges after any write that changes
// a property's occupancy.
func (c *Cache) InvalidateBookedDates(ctx context.Context, propertyID uint) {
	if err := c.rdb.Del(ctx, fmt.Sprintf(KeyBookedDates, propertyID)).Err(); err != nil {
		log.Printf("cache: failed to invalidate booked dates for property %d: %v", propertyID, err)
	}
}

// ClaimIdempotencyKey records a client-supplied idempotency key against a
// booking reference. It returns false with the previously stored reference
// when the key was already claimed.
func (c *Cache) ClaimIdempotencyKey(ctx context.Context, key, reference string) (bool, string, error) {
	rkey := fmt.Sprintf(KeyIdemBooking, key)
	ok, err := c.rdb.SetNX(ctx, rkey, reference, TTLIdempotency).Result()
	if err != nil {
		return false, "", fmt.Errorf("cache: claim idempotency key: %w", err)
	}
	if ok {
		return true, reference, nil
	}
	existing, err := c.rdb.Get(ctx, rkey).Result()
	if err != nil {
		return false, "", fmt.Errorf("cache: read idempotency key: %w", err)
	}
	return false, existing, nil
}

// ReleaseIdempotencyKey removes a claim after the guarded write failed, so
// the client may retry with the same key.
func (c *Cache) ReleaseIdempotencyKey(ctx context.Context, key string) {
	if err := c.rdb.Del(ctx, fmt.Sprintf(KeyIdemBooking, key)).Err(); err != nil {
		log.Printf("cache: failed to release idempotency key %s: %v", key, err)
	}
}
