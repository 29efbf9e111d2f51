package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/ride-booking/internal/location"
	"github.com/example/ride-booking/internal/models"
)

// fakeStore implements location.LastSeenStore for retry tests.
type fakeStore struct {
	failures int
	calls    int
}

func (f *fakeStore) Upsert(ctx context.Context, s models.LocationSample) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("redis down")
	}
	return nil
}

func (f *fakeStore) Get(ctx context.Context, driverID string) (models.LocationSample, error) {
	return models.LocationSample{}, location.ErrNoLocation
}

func TestUpsertWithRetry_SucceedsAfterRetries(t *testing.T) {
	f := &fakeStore{failures: 2}
	s := models.LocationSample{DriverID: "d1", Coord: models.Coord{Lat: 1, Lon: 2}}

	start := time.Now()
	if err := upsertWithRetry(context.Background(), f, s, 3, 10*time.Millisecond); err != nil {
		t.Fatalf("expected success, got err=%v", err)
	}
	if f.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", f.calls)
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Fatalf("expected at least one backoff")
	}
}

func TestUpsertWithRetry_FailsWhenExhausted(t *testing.T) {
	f := &fakeStore{failures: 5}
	s := models.LocationSample{DriverID: "d1", Coord: models.Coord{Lat: 1, Lon: 2}}

	if err := upsertWithRetry(context.Background(), f, s, 3, time.Millisecond); err == nil {
		t.Fatal("expected error after retries")
	}
	if f.calls != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", f.calls)
	}
}
