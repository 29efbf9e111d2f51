package models

import (
	"time"

	"github.com/google/uuid"
)

type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type RideStatus string

const (
	RideActive    RideStatus = "active"
	RideCompleted RideStatus = "completed"
	RideCancelled RideStatus = "cancelled"
)

// Ride's AvailableSeats is the single source of truth for remaining
// capacity; it is mutated only through the booking flow.
type Ride struct {
	ID             uuid.UUID  `json:"id"`
	DriverID       uuid.UUID  `json:"driver_id"`
	Origin         string     `json:"origin"`
	Destination    string     `json:"destination"`
	AvailableSeats int        `json:"available_seats"`
	Status         RideStatus `json:"status"`
	DepartAt       time.Time  `json:"depart_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

// Booking status is the only mutable field after creation.
type Booking struct {
	ID          uuid.UUID     `json:"id"`
	RideID      uuid.UUID     `json:"ride_id"`
	PassengerID uuid.UUID     `json:"passenger_id"`
	Seats       int           `json:"seats"`
	Status      BookingStatus `json:"status"`
	PaymentRef  string        `json:"payment_ref,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// LocationSample is an ephemeral live-tracking value. It is persisted
// only through the last-seen store, one record per driver, overwritten
// on each update.
type LocationSample struct {
	DriverID   string    `json:"driver_id"`
	Coord      Coord     `json:"coord"`
	HeadingDeg *float64  `json:"heading_deg,omitempty"`
	SpeedMps   *float64  `json:"speed_mps,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}
