package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/example/ride-booking/internal/models"
	"github.com/example/ride-booking/internal/notify"
	"github.com/example/ride-booking/internal/observability"
	"github.com/example/ride-booking/internal/payments"
	"github.com/example/ride-booking/internal/storage"
)

var (
	ErrRideNotActive     = errors.New("ride is not active")
	ErrInsufficientSeats = errors.New("not enough seats available")
	// ErrSeatConflict means the conditional seat decrement affected no
	// rows: another booking changed the count between our read and
	// write. The booking inserted by the same call has been deleted.
	ErrSeatConflict = errors.New("seat count changed, booking rolled back")
	ErrNotPending   = errors.New("booking is not pending")
)

// Service implements the seat-reservation protocol: optimistic
// concurrency on the ride's seat count with manual compensation, plus
// the accept/reject/cancel transitions.
type Service struct {
	Rides    storage.RideStore
	Bookings storage.BookingStore
	Payments payments.Gateway // optional; nil skips the hold/capture steps
	Notifier notify.Notifier
	Logger   *slog.Logger

	PricePerSeatMinor int64
	Currency          string
}

// Create reserves seats on a ride. Steps: read the ride, validate
// status and capacity, insert a pending booking, then decrement the
// seat count conditioned on it still matching the value read. Losing
// the race deletes the booking and returns ErrSeatConflict. This is
// not atomic: a crash between insert and delete leaves an orphan, and
// no reconciliation sweep exists.
func (s *Service) Create(ctx context.Context, rideID, passengerID uuid.UUID, seats int) (*models.Booking, error) {
	if seats <= 0 {
		return nil, fmt.Errorf("seats must be positive, got %d", seats)
	}

	ride, err := s.Rides.GetRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.Status != models.RideActive {
		return nil, ErrRideNotActive
	}
	if ride.AvailableSeats < seats {
		return nil, ErrInsufficientSeats
	}

	now := time.Now()
	b := &models.Booking{
		ID:          uuid.New(),
		RideID:      rideID,
		PassengerID: passengerID,
		Seats:       seats,
		Status:      models.BookingPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if s.Payments != nil && s.PricePerSeatMinor > 0 {
		ref, err := s.Payments.Hold(ctx, int64(seats)*s.PricePerSeatMinor, s.Currency, passengerID.String())
		if err != nil {
			return nil, fmt.Errorf("payment hold: %w", err)
		}
		b.PaymentRef = ref
	}

	if err := s.Bookings.CreateBooking(ctx, b); err != nil {
		s.releaseHold(ctx, b)
		return nil, err
	}

	ok, err := s.Rides.DecrementSeats(ctx, rideID, seats, ride.AvailableSeats)
	if err != nil {
		s.compensate(ctx, b)
		return nil, err
	}
	if !ok {
		// Lost the race: the seat count we read is stale.
		s.compensate(ctx, b)
		observability.BookingConflicts.Inc()
		return nil, ErrSeatConflict
	}

	observability.BookingsCreated.Inc()
	s.notify(ride.DriverID.String(), fmt.Sprintf("New booking request for %d seat(s) on your ride", seats))
	return b, nil
}

// Approve confirms a pending booking. The seat adjustment here goes
// through the unconditional procedure, a separate path from the
// conditional decrement used at creation.
func (s *Service) Approve(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	b, err := s.pendingBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.Bookings.UpdateBookingStatus(ctx, id, models.BookingConfirmed); err != nil {
		return nil, err
	}
	if err := s.Rides.AdjustSeats(ctx, b.RideID, -b.Seats); err != nil {
		s.Logger.Warn("seat adjustment failed after approval", "booking_id", id, "error", err)
	} else {
		observability.SeatAdjustments.Inc()
	}
	if s.Payments != nil && b.PaymentRef != "" {
		if err := s.Payments.Capture(ctx, b.PaymentRef); err != nil {
			s.Logger.Warn("payment capture failed", "booking_id", id, "error", err)
		}
	}
	b.Status = models.BookingConfirmed
	s.notify(b.PassengerID.String(), "Your booking was confirmed")
	return b, nil
}

// Reject cancels a pending booking without touching the seat count.
func (s *Service) Reject(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	b, err := s.pendingBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.Bookings.UpdateBookingStatus(ctx, id, models.BookingCancelled); err != nil {
		return nil, err
	}
	s.releaseHold(ctx, b)
	b.Status = models.BookingCancelled
	s.notify(b.PassengerID.String(), "Your booking request was declined")
	return b, nil
}

// Cancel is the direct status update used by passenger cancellation.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	b, err := s.Bookings.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.Bookings.UpdateBookingStatus(ctx, id, models.BookingCancelled); err != nil {
		return nil, err
	}
	s.releaseHold(ctx, b)
	b.Status = models.BookingCancelled
	return b, nil
}

// PendingForDriver lists pending requests across a driver's rides.
func (s *Service) PendingForDriver(ctx context.Context, driverID uuid.UUID) ([]models.Booking, error) {
	return s.Bookings.PendingForDriver(ctx, driverID)
}

// HistoryForPassenger lists a passenger's bookings, newest first.
func (s *Service) HistoryForPassenger(ctx context.Context, passengerID uuid.UUID) ([]models.Booking, error) {
	return s.Bookings.HistoryForPassenger(ctx, passengerID)
}

func (s *Service) pendingBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	b, err := s.Bookings.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status != models.BookingPending {
		return nil, ErrNotPending
	}
	return b, nil
}

// compensate undoes the booking insert after a failed conditional
// update. Best effort: a failure here is exactly the orphan window the
// protocol accepts.
func (s *Service) compensate(ctx context.Context, b *models.Booking) {
	if err := s.Bookings.DeleteBooking(ctx, b.ID); err != nil {
		s.Logger.Error("booking rollback failed, orphan left behind", "booking_id", b.ID, "error", err)
	}
	s.releaseHold(ctx, b)
}

func (s *Service) releaseHold(ctx context.Context, b *models.Booking) {
	if s.Payments == nil || b.PaymentRef == "" {
		return
	}
	if err := s.Payments.Release(ctx, b.PaymentRef); err != nil {
		s.Logger.Warn("payment release failed", "booking_id", b.ID, "error", err)
	}
}

func (s *Service) notify(userID, message string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.Notify(userID, message); err != nil && !errors.Is(err, notify.ErrNoSession) {
		s.Logger.Warn("notification failed", "user_id", userID, "error", err)
	}
}
