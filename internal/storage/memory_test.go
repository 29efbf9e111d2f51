package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ride-booking/internal/models"
)

func TestDecrementSeats_Precondition(t *testing.T) {
	store := NewMemoryStore()
	id := uuid.New()
	store.PutRide(&models.Ride{ID: id, AvailableSeats: 3, Status: models.RideActive})
	ctx := context.Background()

	ok, err := store.DecrementSeats(ctx, id, 2, 3)
	require.NoError(t, err)
	assert.True(t, ok)

	// stale expected value must not match
	ok, err = store.DecrementSeats(ctx, id, 1, 3)
	require.NoError(t, err)
	assert.False(t, ok)

	r, err := store.GetRide(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, r.AvailableSeats)
}

func TestDecrementSeats_UnknownRide(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.DecrementSeats(context.Background(), uuid.New(), 1, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPendingForDriver_FiltersByDriverAndStatus(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	driver := uuid.New()
	other := uuid.New()

	rideA := &models.Ride{ID: uuid.New(), DriverID: driver, AvailableSeats: 4, Status: models.RideActive}
	rideB := &models.Ride{ID: uuid.New(), DriverID: other, AvailableSeats: 4, Status: models.RideActive}
	store.PutRide(rideA)
	store.PutRide(rideB)

	mk := func(ride uuid.UUID, status models.BookingStatus, age time.Duration) {
		require.NoError(t, store.CreateBooking(ctx, &models.Booking{
			ID: uuid.New(), RideID: ride, PassengerID: uuid.New(), Seats: 1,
			Status: status, CreatedAt: time.Now().Add(-age),
		}))
	}
	mk(rideA.ID, models.BookingPending, time.Minute)
	mk(rideA.ID, models.BookingPending, time.Hour)
	mk(rideA.ID, models.BookingConfirmed, 0)
	mk(rideB.ID, models.BookingPending, 0)

	got, err := store.PendingForDriver(ctx, driver)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].CreatedAt.After(got[1].CreatedAt), "newest first")
	for _, b := range got {
		assert.Equal(t, models.BookingPending, b.Status)
		assert.Equal(t, rideA.ID, b.RideID)
	}
}
