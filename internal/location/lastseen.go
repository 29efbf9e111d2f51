package location

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/ride-booking/internal/models"
)

var ErrNoLocation = errors.New("no location recorded for driver")

// LastSeenStore persists one last-known location per driver,
// overwritten on each update.
type LastSeenStore interface {
	Upsert(ctx context.Context, s models.LocationSample) error
	Get(ctx context.Context, driverID string) (models.LocationSample, error)
}

// RedisLastSeen keeps driver positions in a GEO key plus a per-driver
// hash for the sample fields.
type RedisLastSeen struct {
	client *redis.Client
	geoKey string
}

func NewRedisLastSeen(client *redis.Client, geoKey string) *RedisLastSeen {
	return &RedisLastSeen{client: client, geoKey: geoKey}
}

func (r *RedisLastSeen) Upsert(ctx context.Context, s models.LocationSample) error {
	loc := &redis.GeoLocation{Longitude: s.Coord.Lon, Latitude: s.Coord.Lat, Name: s.DriverID}
	if err := r.client.GeoAdd(ctx, r.geoKey, loc).Err(); err != nil {
		return err
	}
	// Field order is fixed so the full record overwrites cleanly.
	return r.client.HSet(ctx, lastSeenKey(s.DriverID),
		"lat", formatFloat(s.Coord.Lat),
		"lon", formatFloat(s.Coord.Lon),
		"heading_deg", formatOptFloat(s.HeadingDeg),
		"speed_mps", formatOptFloat(s.SpeedMps),
		"recorded_at", s.RecordedAt.UTC().Format(time.RFC3339Nano),
	).Err()
}

func (r *RedisLastSeen) Get(ctx context.Context, driverID string) (models.LocationSample, error) {
	m, err := r.client.HGetAll(ctx, lastSeenKey(driverID)).Result()
	if err != nil {
		return models.LocationSample{}, err
	}
	if len(m) == 0 {
		return models.LocationSample{}, ErrNoLocation
	}
	s := models.LocationSample{DriverID: driverID}
	s.Coord.Lat, _ = strconv.ParseFloat(m["lat"], 64)
	s.Coord.Lon, _ = strconv.ParseFloat(m["lon"], 64)
	if v := m["heading_deg"]; v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			s.HeadingDeg = &f
		}
	}
	if v := m["speed_mps"]; v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			s.SpeedMps = &f
		}
	}
	if ts, err := time.Parse(time.RFC3339Nano, m["recorded_at"]); err == nil {
		s.RecordedAt = ts
	}
	return s, nil
}

func lastSeenKey(driverID string) string { return "driver:lastseen:" + driverID }

func formatFloat(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

func formatOptFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return formatFloat(*f)
}

// MemoryLastSeen is the in-process fallback used when Redis is not
// configured, and by tests.
type MemoryLastSeen struct {
	mu      sync.RWMutex
	samples map[string]models.LocationSample
}

func NewMemoryLastSeen() *MemoryLastSeen {
	return &MemoryLastSeen{samples: make(map[string]models.LocationSample)}
}

func (m *MemoryLastSeen) Upsert(_ context.Context, s models.LocationSample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples[s.DriverID] = s
	return nil
}

func (m *MemoryLastSeen) Get(_ context.Context, driverID string) (models.LocationSample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.samples[driverID]
	if !ok {
		return models.LocationSample{}, ErrNoLocation
	}
	return s, nil
}
