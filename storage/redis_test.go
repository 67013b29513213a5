package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
)

func TestBookedDatesCacheRoundTrip(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := NewCache(db)
	ctx := context.Background()

	ranges := []DateRange{
		{Start: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2025, 6, 4, 0, 0, 0, 0, time.UTC)},
	}
	raw, err := json.Marshal(ranges)
	if err != nil {
		t.Fatal(err)
	}
	key := fmt.Sprintf(KeyBookedDates, uint(7))

	mock.ExpectSet(key, raw, TTLBookedDates).SetVal("OK")
	cache.SetBookedDates(ctx, 7, ranges)

	mock.ExpectGet(key).SetVal(string(raw))
	got, ok := cache.BookedDates(ctx, 7)
	if !ok {
		t.Fatal("expected a cache hit after set")
	}
	if len(got) != 1 || !got[0].Start.Equal(ranges[0].Start) || !got[0].End.Equal(ranges[0].End) {
		t.Fatalf("expected cached ranges returned intact, got %+v", got)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestBookedDatesCacheMiss(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := NewCache(db)

	mock.ExpectGet(fmt.Sprintf(KeyBookedDates, uint(7))).RedisNil()
	if _, ok := cache.BookedDates(context.Background(), 7); ok {
		t.Fatal("expected a miss on an absent key")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestBookedDatesCacheInvalidate(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := NewCache(db)

	mock.ExpectDel(fmt.Sprintf(KeyBookedDates, uint(7))).SetVal(1)
	cache.InvalidateBookedDates(context.Background(), 7)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestClaimIdempotencyKey(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := NewCache(db)
	ctx := context.Background()

	key := fmt.Sprintf(KeyIdemBooking, "abc-123")

	// First claim wins.
	mock.ExpectSetNX(key, "HOY-1", TTLIdempotency).SetVal(true)
	claimed, ref, err := cache.ClaimIdempotencyKey(ctx, "abc-123", "HOY-1")
	if err != nil {
		t.Fatal(err)
	}
	if !claimed || ref != "HOY-1" {
		t.Fatalf("expected first claim to win with its own reference, got claimed=%v ref=%q", claimed, ref)
	}

	// Second claim returns the stored reference.
	mock.ExpectSetNX(key, "HOY-2", TTLIdempotency).SetVal(false)
	mock.ExpectGet(key).SetVal("HOY-1")
	claimed, ref, err = cache.ClaimIdempotencyKey(ctx, "abc-123", "HOY-2")
	if err != nil {
		t.Fatal(err)
	}
	if claimed || ref != "HOY-1" {
		t.Fatalf("expected repeat claim to surface the original reference, got claimed=%v ref=%q", claimed, ref)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
