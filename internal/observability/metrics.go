package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingsCreated  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_booking", Name: "bookings_created_total", Help: "Bookings successfully created"})
	BookingConflicts = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_booking", Name: "booking_conflicts_total", Help: "Bookings rolled back after losing the seat-count race"})
	SeatAdjustments  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_booking", Name: "seat_adjustments_total", Help: "Unconditional seat adjustments performed at approval"})
	LocationUpdates  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_booking", Name: "location_updates_total", Help: "Driver location samples accepted"})

	GeocodeLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_booking", Name: "geocode_lookups_total", Help: "Geocoding lookups by scope and outcome"},
		[]string{"scope", "outcome"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_booking", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ride_booking",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
