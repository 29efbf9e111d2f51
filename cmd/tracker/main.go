package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/example/ride-booking/internal/location"
	"github.com/example/ride-booking/internal/logging"
	"github.com/example/ride-booking/internal/models"
)

var (
	samplesConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tracker_samples_consumed_total",
		Help: "Total location samples consumed",
	})
	upserts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tracker_lastseen_upserts_total",
		Help: "Total successful last-seen upserts",
	})
	upsertErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tracker_lastseen_errors_total",
		Help: "Total last-seen upsert failures after retries",
	})
)

func init() {
	prometheus.MustRegister(samplesConsumed, upserts, upsertErrors)
}

func main() {
	var metricsAddr string
	flag.StringVar(&metricsAddr, "metrics-addr", ":2112", "address to serve prometheus metrics on")
	flag.Parse()

	logger := logging.NewLogger(os.Getenv("LOG_LEVEL"))

	brokers := splitBrokers(os.Getenv("KAFKA_BROKERS"))
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}
	topic := getenv("KAFKA_TOPIC", "driver-locations")
	group := getenv("KAFKA_GROUP", "ride-booking-tracker")
	redisAddr := getenv("REDIS_ADDR", "localhost:6379")
	geoKey := getenv("REDIS_GEO_KEY", "drivers_lastseen")

	rc := redis.NewClient(&redis.Options{Addr: redisAddr, Password: os.Getenv("REDIS_PASSWORD")})
	store := location.NewRedisLastSeen(rc, geoKey)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
		mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			if err := rc.Ping(r.Context()).Err(); err != nil {
				http.Error(w, "redis not ready", 503)
				return
			}
			w.WriteHeader(200)
			w.Write([]byte("ready"))
		})
		logger.Info("metrics/health listening", "addr", metricsAddr)
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			logger.Warn("metrics server stopped", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	source := location.NewKafkaSource(brokers, topic, group)
	defer source.Close()
	defer rc.Close()

	tracker := &location.Tracker{Source: source, Logger: logging.Component(logger, "tracker")}

	logger.Info("tracker consuming", "topic", topic, "brokers", brokers, "group", group)

	cancel := tracker.Watch(ctx, func(s models.LocationSample) {
		samplesConsumed.Inc()
		if err := upsertWithRetry(ctx, store, s, 3, 200*time.Millisecond); err != nil {
			upsertErrors.Inc()
			logger.Warn("last-seen upsert failed", "driver_id", s.DriverID, "error", err)
			return
		}
		upserts.Inc()
	})
	defer cancel()

	<-ctx.Done()
	logger.Info("shutting down tracker")
}

// upsertWithRetry writes a sample with bounded retry and doubling
// delay; the last-seen record is overwritten wholesale so retries are
// safe to repeat.
func upsertWithRetry(ctx context.Context, store location.LastSeenStore, s models.LocationSample, attempts int, delay time.Duration) error {
	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := store.Upsert(ctx, s); err != nil {
			lastErr = err
			if i == attempts-1 {
				return lastErr
			}
			time.Sleep(delay)
			delay *= 2
			continue
		}
		return nil
	}
	return lastErr
}

func splitBrokers(v string) []string {
	var out []string
	for _, b := range strings.Split(v, ",") {
		if s := strings.TrimSpace(b); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
