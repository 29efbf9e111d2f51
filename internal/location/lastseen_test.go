package location

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ride-booking/internal/models"
)

func TestRedisLastSeen_Upsert(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRedisLastSeen(db, "drivers_lastseen")

	heading := 90.5
	speed := 11.2
	ts := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	s := models.LocationSample{
		DriverID:   "d1",
		Coord:      models.Coord{Lat: 6.9271, Lon: 79.8612},
		HeadingDeg: &heading,
		SpeedMps:   &speed,
		RecordedAt: ts,
	}

	mock.ExpectGeoAdd("drivers_lastseen", &redis.GeoLocation{Longitude: 79.8612, Latitude: 6.9271, Name: "d1"}).SetVal(1)
	mock.ExpectHSet("driver:lastseen:d1",
		"lat", "6.9271",
		"lon", "79.8612",
		"heading_deg", "90.5",
		"speed_mps", "11.2",
		"recorded_at", ts.Format(time.RFC3339Nano),
	).SetVal(5)

	require.NoError(t, store.Upsert(context.Background(), s))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLastSeen_GetMissing(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRedisLastSeen(db, "drivers_lastseen")

	mock.ExpectHGetAll("driver:lastseen:ghost").SetVal(map[string]string{})

	_, err := store.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNoLocation)
}

func TestRedisLastSeen_Get(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRedisLastSeen(db, "drivers_lastseen")

	mock.ExpectHGetAll("driver:lastseen:d1").SetVal(map[string]string{
		"lat":         "6.9271",
		"lon":         "79.8612",
		"heading_deg": "",
		"speed_mps":   "11.2",
		"recorded_at": "2025-03-14T09:30:00Z",
	})

	s, err := store.Get(context.Background(), "d1")
	require.NoError(t, err)
	assert.InDelta(t, 6.9271, s.Coord.Lat, 1e-9)
	assert.InDelta(t, 79.8612, s.Coord.Lon, 1e-9)
	assert.Nil(t, s.HeadingDeg)
	require.NotNil(t, s.SpeedMps)
	assert.InDelta(t, 11.2, *s.SpeedMps, 1e-9)
	assert.Equal(t, 2025, s.RecordedAt.Year())
}

func TestMemoryLastSeen_Overwrites(t *testing.T) {
	store := NewMemoryLastSeen()
	ctx := context.Background()

	first := models.LocationSample{DriverID: "d1", Coord: models.Coord{Lat: 1, Lon: 1}, RecordedAt: time.Now()}
	second := models.LocationSample{DriverID: "d1", Coord: models.Coord{Lat: 2, Lon: 2}, RecordedAt: time.Now()}

	require.NoError(t, store.Upsert(ctx, first))
	require.NoError(t, store.Upsert(ctx, second))

	got, err := store.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, 2.0, got.Coord.Lat, "one record per driver, overwritten each update")

	_, err = store.Get(ctx, "unknown")
	assert.ErrorIs(t, err, ErrNoLocation)
}
