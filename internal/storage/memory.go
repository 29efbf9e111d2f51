package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/ride-booking/internal/models"
)

// MemoryStore keeps rides and bookings in maps. It backs local runs
// without Postgres and the package tests.
type MemoryStore struct {
	mu       sync.RWMutex
	rides    map[uuid.UUID]*models.Ride
	bookings map[uuid.UUID]*models.Booking
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rides:    make(map[uuid.UUID]*models.Ride),
		bookings: make(map[uuid.UUID]*models.Booking),
	}
}

// PutRide seeds a ride; used by tests and local fixtures.
func (m *MemoryStore) PutRide(r *models.Ride) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.rides[r.ID] = &cp
}

func (m *MemoryStore) GetRide(_ context.Context, id uuid.UUID) (*models.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rides[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryStore) DecrementSeats(_ context.Context, id uuid.UUID, seats, expected int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[id]
	if !ok {
		return false, ErrNotFound
	}
	if r.AvailableSeats != expected {
		return false, nil
	}
	r.AvailableSeats -= seats
	r.UpdatedAt = time.Now()
	return true, nil
}

func (m *MemoryStore) AdjustSeats(_ context.Context, id uuid.UUID, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[id]
	if !ok {
		return ErrNotFound
	}
	r.AvailableSeats += delta
	r.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) CreateBooking(_ context.Context, b *models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *b
	m.bookings[b.ID] = &cp
	return nil
}

func (m *MemoryStore) DeleteBooking(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.bookings, id)
	return nil
}

func (m *MemoryStore) GetBooking(_ context.Context, id uuid.UUID) (*models.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *MemoryStore) UpdateBookingStatus(_ context.Context, id uuid.UUID, status models.BookingStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return ErrNotFound
	}
	b.Status = status
	b.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) PendingForDriver(_ context.Context, driverID uuid.UUID) ([]models.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Booking
	for _, b := range m.bookings {
		if b.Status != models.BookingPending {
			continue
		}
		r, ok := m.rides[b.RideID]
		if !ok || r.DriverID != driverID {
			continue
		}
		out = append(out, *b)
	}
	sortByCreated(out)
	return out, nil
}

func (m *MemoryStore) HistoryForPassenger(_ context.Context, passengerID uuid.UUID) ([]models.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Booking
	for _, b := range m.bookings {
		if b.PassengerID == passengerID {
			out = append(out, *b)
		}
	}
	sortByCreated(out)
	return out, nil
}

func sortByCreated(bs []models.Booking) {
	sort.Slice(bs, func(i, j int) bool { return bs[i].CreatedAt.After(bs[j].CreatedAt) })
}
