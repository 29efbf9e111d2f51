package booking

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ride-booking/internal/models"
	"github.com/example/ride-booking/internal/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedRide(store *storage.MemoryStore, seats int, status models.RideStatus) *models.Ride {
	r := &models.Ride{
		ID:             uuid.New(),
		DriverID:       uuid.New(),
		Origin:         "Colombo Fort",
		Destination:    "Kandy",
		AvailableSeats: seats,
		Status:         status,
		DepartAt:       time.Now().Add(2 * time.Hour),
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	store.PutRide(r)
	return r
}

func newService(store storage.Store) *Service {
	return &Service{Rides: store, Bookings: store, Logger: testLogger()}
}

func TestCreate_InsufficientSeats(t *testing.T) {
	store := storage.NewMemoryStore()
	ride := seedRide(store, 2, models.RideActive)
	svc := newService(store)
	passenger := uuid.New()

	b, err := svc.Create(context.Background(), ride.ID, passenger, 3)

	assert.ErrorIs(t, err, ErrInsufficientSeats)
	assert.Nil(t, b)

	history, _ := store.HistoryForPassenger(context.Background(), passenger)
	assert.Empty(t, history, "no booking row may exist after rejection")

	got, _ := store.GetRide(context.Background(), ride.ID)
	assert.Equal(t, 2, got.AvailableSeats)
}

func TestCreate_RideNotActive(t *testing.T) {
	store := storage.NewMemoryStore()
	ride := seedRide(store, 4, models.RideCompleted)
	svc := newService(store)

	_, err := svc.Create(context.Background(), ride.ID, uuid.New(), 1)

	assert.ErrorIs(t, err, ErrRideNotActive)
}

func TestCreate_UnknownRide(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := newService(store)

	_, err := svc.Create(context.Background(), uuid.New(), uuid.New(), 1)

	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCreate_SucceedsAndExhaustsSeats(t *testing.T) {
	store := storage.NewMemoryStore()
	ride := seedRide(store, 2, models.RideActive)
	svc := newService(store)
	passenger := uuid.New()

	b, err := svc.Create(context.Background(), ride.ID, passenger, 2)

	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, models.BookingPending, b.Status)

	got, _ := store.GetRide(context.Background(), ride.ID)
	assert.Equal(t, 0, got.AvailableSeats)

	history, _ := store.HistoryForPassenger(context.Background(), passenger)
	require.Len(t, history, 1)
	assert.Equal(t, b.ID, history[0].ID)
}

// conflictStore simulates losing the seat-count race: the conditional
// update never matches.
type conflictStore struct {
	*storage.MemoryStore
}

func (c *conflictStore) DecrementSeats(_ context.Context, _ uuid.UUID, _, _ int) (bool, error) {
	return false, nil
}

func TestCreate_LostRaceRollsBackBooking(t *testing.T) {
	mem := storage.NewMemoryStore()
	ride := seedRide(mem, 3, models.RideActive)
	store := &conflictStore{MemoryStore: mem}
	svc := newService(store)
	passenger := uuid.New()

	b, err := svc.Create(context.Background(), ride.ID, passenger, 1)

	assert.ErrorIs(t, err, ErrSeatConflict)
	assert.Nil(t, b)

	history, _ := mem.HistoryForPassenger(context.Background(), passenger)
	assert.Empty(t, history, "the inserted booking must be deleted after the conditional update misses")
}

// countingStore tracks calls to the unconditional adjustment path.
type countingStore struct {
	*storage.MemoryStore
	adjustCalls int
}

func (c *countingStore) AdjustSeats(ctx context.Context, id uuid.UUID, delta int) error {
	c.adjustCalls++
	return c.MemoryStore.AdjustSeats(ctx, id, delta)
}

func TestApprove_ConfirmsAndAdjustsSeatsOnce(t *testing.T) {
	mem := storage.NewMemoryStore()
	ride := seedRide(mem, 4, models.RideActive)
	store := &countingStore{MemoryStore: mem}
	svc := newService(store)

	b, err := svc.Create(context.Background(), ride.ID, uuid.New(), 1)
	require.NoError(t, err)
	store.adjustCalls = 0

	approved, err := svc.Approve(context.Background(), b.ID)

	require.NoError(t, err)
	assert.Equal(t, models.BookingConfirmed, approved.Status)
	assert.Equal(t, 1, store.adjustCalls, "approval must invoke the seat adjustment exactly once")

	stored, _ := mem.GetBooking(context.Background(), b.ID)
	assert.Equal(t, models.BookingConfirmed, stored.Status)
}

func TestReject_CancelsWithoutAdjustingSeats(t *testing.T) {
	mem := storage.NewMemoryStore()
	ride := seedRide(mem, 4, models.RideActive)
	store := &countingStore{MemoryStore: mem}
	svc := newService(store)

	b, err := svc.Create(context.Background(), ride.ID, uuid.New(), 1)
	require.NoError(t, err)
	store.adjustCalls = 0

	rejected, err := svc.Reject(context.Background(), b.ID)

	require.NoError(t, err)
	assert.Equal(t, models.BookingCancelled, rejected.Status)
	assert.Zero(t, store.adjustCalls, "rejection must not touch the seat count")
}

func TestApprove_TwiceFails(t *testing.T) {
	store := storage.NewMemoryStore()
	ride := seedRide(store, 4, models.RideActive)
	svc := newService(store)

	b, err := svc.Create(context.Background(), ride.ID, uuid.New(), 1)
	require.NoError(t, err)

	_, err = svc.Approve(context.Background(), b.ID)
	require.NoError(t, err)

	_, err = svc.Approve(context.Background(), b.ID)
	assert.ErrorIs(t, err, ErrNotPending)
}

func TestCancel_DirectStatusUpdate(t *testing.T) {
	store := storage.NewMemoryStore()
	ride := seedRide(store, 4, models.RideActive)
	svc := newService(store)

	b, err := svc.Create(context.Background(), ride.ID, uuid.New(), 2)
	require.NoError(t, err)

	cancelled, err := svc.Cancel(context.Background(), b.ID)

	require.NoError(t, err)
	assert.Equal(t, models.BookingCancelled, cancelled.Status)
}

// fakeGateway records the payment lifecycle.
type fakeGateway struct {
	holds    int
	captures int
	releases int
	failHold bool
}

func (f *fakeGateway) Hold(_ context.Context, _ int64, _, _ string) (string, error) {
	f.holds++
	if f.failHold {
		return "", assert.AnError
	}
	return "pi_test", nil
}
func (f *fakeGateway) Capture(_ context.Context, _ string) error { f.captures++; return nil }
func (f *fakeGateway) Release(_ context.Context, _ string) error { f.releases++; return nil }

func TestPaymentLifecycle(t *testing.T) {
	store := storage.NewMemoryStore()
	ride := seedRide(store, 4, models.RideActive)
	gw := &fakeGateway{}
	svc := newService(store)
	svc.Payments = gw
	svc.PricePerSeatMinor = 2500
	svc.Currency = "usd"

	b, err := svc.Create(context.Background(), ride.ID, uuid.New(), 2)
	require.NoError(t, err)
	assert.Equal(t, "pi_test", b.PaymentRef)
	assert.Equal(t, 1, gw.holds)

	_, err = svc.Approve(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, gw.captures)
	assert.Zero(t, gw.releases)
}

func TestCreate_ReleasesHoldOnConflict(t *testing.T) {
	mem := storage.NewMemoryStore()
	ride := seedRide(mem, 3, models.RideActive)
	store := &conflictStore{MemoryStore: mem}
	gw := &fakeGateway{}
	svc := newService(store)
	svc.Payments = gw
	svc.PricePerSeatMinor = 2500
	svc.Currency = "usd"

	_, err := svc.Create(context.Background(), ride.ID, uuid.New(), 1)

	assert.ErrorIs(t, err, ErrSeatConflict)
	assert.Equal(t, 1, gw.releases, "the payment hold must be released when the booking rolls back")
}
