package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/ride-booking/internal/booking"
	"github.com/example/ride-booking/internal/geocode"
	"github.com/example/ride-booking/internal/ingest"
	"github.com/example/ride-booking/internal/location"
	"github.com/example/ride-booking/internal/models"
	"github.com/example/ride-booking/internal/notify"
	"github.com/example/ride-booking/internal/observability"
	"github.com/example/ride-booking/internal/storage"
)

// Geocoder is the lookup slice of the geocode client, kept as an
// interface so handlers can be tested without a remote service.
type Geocoder interface {
	Lookup(ctx context.Context, query string) (*geocode.Place, error)
}

type Server struct {
	Bookings *booking.Service
	Geocoder Geocoder
	LastSeen location.LastSeenStore
	Producer *ingest.KafkaProducer // optional; nil means direct upsert
	WSReg    *notify.WSRegistry

	logger *slog.Logger
	mux    *mux.Router
}

// NewServer wires explicitly constructed dependencies; nothing here
// reaches for ambient state.
func NewServer(b *booking.Service, g Geocoder, ls location.LastSeenStore, kp *ingest.KafkaProducer, ws *notify.WSRegistry, logger *slog.Logger) *Server {
	s := &Server{Bookings: b, Geocoder: g, LastSeen: ls, Producer: kp, WSReg: ws, logger: logger, mux: mux.NewRouter()}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/v1/bookings", s.handleCreateBooking).Methods("POST")
	s.mux.HandleFunc("/api/v1/bookings/{id}/approve", s.transitionHandler(s.Bookings.Approve)).Methods("POST")
	s.mux.HandleFunc("/api/v1/bookings/{id}/reject", s.transitionHandler(s.Bookings.Reject)).Methods("POST")
	s.mux.HandleFunc("/api/v1/bookings/{id}/cancel", s.transitionHandler(s.Bookings.Cancel)).Methods("POST")
	s.mux.HandleFunc("/api/v1/drivers/{id}/requests", s.handleDriverRequests).Methods("GET")
	s.mux.HandleFunc("/api/v1/passengers/{id}/bookings", s.handlePassengerHistory).Methods("GET")
	s.mux.HandleFunc("/api/v1/geocode", s.handleGeocode).Methods("GET")
	s.mux.HandleFunc("/api/v1/drivers/{id}/location", s.handleDriverLastSeen).Methods("GET")
	s.mux.HandleFunc("/internal/driver/locations", s.handleDriverLocation).Methods("POST")
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/ws/{user_id}", s.handleWS)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

type createBookingRequest struct {
	RideID      uuid.UUID `json:"ride_id"`
	PassengerID uuid.UUID `json:"passenger_id"`
	Seats       int       `json:"seats"`
}

func (s *Server) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.Seats <= 0 {
		writeError(w, http.StatusBadRequest, "seats must be positive")
		return
	}
	b, err := s.Bookings.Create(r.Context(), req.RideID, req.PassengerID, req.Seats)
	if err != nil {
		s.writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) transitionHandler(fn func(context.Context, uuid.UUID) (*models.Booking, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(mux.Vars(r)["id"])
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid booking id")
			return
		}
		b, err := fn(r.Context(), id)
		if err != nil {
			s.writeBookingError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, b)
	}
}

func (s *Server) handleDriverRequests(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid driver id")
		return
	}
	bs, err := s.Bookings.PendingForDriver(r.Context(), id)
	if err != nil {
		s.writeBookingError(w, err)
		return
	}
	if bs == nil {
		bs = []models.Booking{}
	}
	writeJSON(w, http.StatusOK, bs)
}

func (s *Server) handlePassengerHistory(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid passenger id")
		return
	}
	bs, err := s.Bookings.HistoryForPassenger(r.Context(), id)
	if err != nil {
		s.writeBookingError(w, err)
		return
	}
	if bs == nil {
		bs = []models.Booking{}
	}
	writeJSON(w, http.StatusOK, bs)
}

func (s *Server) handleGeocode(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "missing q parameter")
		return
	}
	place, err := s.Geocoder.Lookup(r.Context(), q)
	if err != nil {
		s.logger.Warn("geocode lookup failed", "query", q, "error", err)
		writeError(w, http.StatusBadGateway, "geocoding unavailable")
		return
	}
	if place == nil {
		writeError(w, http.StatusNotFound, "no results")
		return
	}
	writeJSON(w, http.StatusOK, place)
}

func (s *Server) handleDriverLocation(w http.ResponseWriter, r *http.Request) {
	var sample models.LocationSample
	if err := json.NewDecoder(r.Body).Decode(&sample); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if sample.DriverID == "" {
		writeError(w, http.StatusBadRequest, "missing driver_id")
		return
	}
	if sample.RecordedAt.IsZero() {
		sample.RecordedAt = time.Now()
	}
	// With kafka configured the upsert happens in cmd/tracker;
	// otherwise write through directly.
	if s.Producer != nil {
		if err := s.Producer.PublishSample(sample); err != nil {
			s.logger.Error("publish location sample", "driver_id", sample.DriverID, "error", err)
			writeError(w, http.StatusServiceUnavailable, "location pipeline unavailable")
			return
		}
	} else if err := s.LastSeen.Upsert(r.Context(), sample); err != nil {
		s.logger.Error("upsert location sample", "driver_id", sample.DriverID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not store location")
		return
	}
	observability.LocationUpdates.Inc()
	// live fan-out to anyone following this driver's socket
	_ = s.WSReg.PushLocation(sample.DriverID, sample)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDriverLastSeen(w http.ResponseWriter, r *http.Request) {
	driverID := mux.Vars(r)["id"]
	sample, err := s.LastSeen.Get(r.Context(), driverID)
	if err != nil {
		if errors.Is(err, location.ErrNoLocation) {
			writeError(w, http.StatusNotFound, "no location recorded")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not read location")
		return
	}
	writeJSON(w, http.StatusOK, sample)
}

var upgrader = websocket.Upgrader{}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		writeError(w, http.StatusBadRequest, "upgrade failed")
		return
	}
	s.WSReg.Add(userID, conn)
}

func (s *Server) writeBookingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrSeatConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, booking.ErrInsufficientSeats),
		errors.Is(err, booking.ErrRideNotActive),
		errors.Is(err, booking.ErrNotPending):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		s.logger.Error("booking operation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }
