package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/example/ride-booking/internal/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromDB wraps an already-opened handle; cmd/server
// uses this after running migrations on the same connection.
func NewPostgresStoreFromDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Close() error { return p.db.Close() }

func (p *PostgresStore) GetRide(ctx context.Context, id uuid.UUID) (*models.Ride, error) {
	var r models.Ride
	err := p.db.QueryRowContext(ctx,
		`SELECT id, driver_id, origin, destination, available_seats, status, depart_at, created_at, updated_at
		 FROM rides WHERE id=$1`, id).
		Scan(&r.ID, &r.DriverID, &r.Origin, &r.Destination, &r.AvailableSeats, &r.Status, &r.DepartAt, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ride: %w", err)
	}
	return &r, nil
}

// DecrementSeats is the compare-and-swap path: the WHERE clause pins
// available_seats to the value the caller read, so a racing booking
// that already changed the count makes this a no-op.
func (p *PostgresStore) DecrementSeats(ctx context.Context, id uuid.UUID, seats, expected int) (bool, error) {
	res, err := p.db.ExecContext(ctx,
		`UPDATE rides SET available_seats = available_seats - $1, updated_at = now()
		 WHERE id = $2 AND available_seats = $3`, seats, id, expected)
	if err != nil {
		return false, fmt.Errorf("decrement seats: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (p *PostgresStore) AdjustSeats(ctx context.Context, id uuid.UUID, delta int) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE rides SET available_seats = available_seats + $1, updated_at = now() WHERE id = $2`,
		delta, id)
	if err != nil {
		return fmt.Errorf("adjust seats: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) CreateBooking(ctx context.Context, b *models.Booking) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO bookings(id, ride_id, passenger_id, seats, status, payment_ref, created_at, updated_at)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8)`,
		b.ID, b.RideID, b.PassengerID, b.Seats, b.Status, b.PaymentRef, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

func (p *PostgresStore) DeleteBooking(ctx context.Context, id uuid.UUID) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM bookings WHERE id=$1`, id)
	return err
}

func (p *PostgresStore) GetBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	var b models.Booking
	err := p.db.QueryRowContext(ctx,
		`SELECT id, ride_id, passenger_id, seats, status, payment_ref, created_at, updated_at
		 FROM bookings WHERE id=$1`, id).
		Scan(&b.ID, &b.RideID, &b.PassengerID, &b.Seats, &b.Status, &b.PaymentRef, &b.CreatedAt, &b.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return &b, nil
}

func (p *PostgresStore) UpdateBookingStatus(ctx context.Context, id uuid.UUID, status models.BookingStatus) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE bookings SET status=$1, updated_at=now() WHERE id=$2`, status, id)
	if err != nil {
		return fmt.Errorf("update booking status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) PendingForDriver(ctx context.Context, driverID uuid.UUID) ([]models.Booking, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT b.id, b.ride_id, b.passenger_id, b.seats, b.status, b.payment_ref, b.created_at, b.updated_at
		 FROM bookings b JOIN rides r ON r.id = b.ride_id
		 WHERE r.driver_id = $1 AND b.status = $2
		 ORDER BY b.created_at DESC`, driverID, models.BookingPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBookings(rows)
}

func (p *PostgresStore) HistoryForPassenger(ctx context.Context, passengerID uuid.UUID) ([]models.Booking, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, ride_id, passenger_id, seats, status, payment_ref, created_at, updated_at
		 FROM bookings WHERE passenger_id = $1
		 ORDER BY created_at DESC`, passengerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBookings(rows)
}

func scanBookings(rows *sql.Rows) ([]models.Booking, error) {
	var out []models.Booking
	for rows.Next() {
		var b models.Booking
		if err := rows.Scan(&b.ID, &b.RideID, &b.PassengerID, &b.Seats, &b.Status, &b.PaymentRef, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
