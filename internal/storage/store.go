package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/example/ride-booking/internal/models"
)

var ErrNotFound = errors.New("not found")

// RideStore exposes the two seat-mutation paths that exist in the
// booking protocol. DecrementSeats is the conditional path used at
// creation; AdjustSeats is the unconditional procedure used at
// approval. They intentionally share no invariant enforcement.
type RideStore interface {
	GetRide(ctx context.Context, id uuid.UUID) (*models.Ride, error)
	// DecrementSeats subtracts seats from the ride's available count
	// only if the count still equals expected. Returns false when the
	// precondition no longer holds (another writer won the race).
	DecrementSeats(ctx context.Context, id uuid.UUID, seats, expected int) (bool, error)
	// AdjustSeats applies delta to the ride's available count with no
	// precondition.
	AdjustSeats(ctx context.Context, id uuid.UUID, delta int) error
}

// BookingStore defines persistence operations for bookings.
type BookingStore interface {
	CreateBooking(ctx context.Context, b *models.Booking) error
	DeleteBooking(ctx context.Context, id uuid.UUID) error
	GetBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	UpdateBookingStatus(ctx context.Context, id uuid.UUID, status models.BookingStatus) error
	PendingForDriver(ctx context.Context, driverID uuid.UUID) ([]models.Booking, error)
	HistoryForPassenger(ctx context.Context, passengerID uuid.UUID) ([]models.Booking, error)
}

// Store combines both so a single backend can serve the booking flow.
type Store interface {
	RideStore
	BookingStore
}
