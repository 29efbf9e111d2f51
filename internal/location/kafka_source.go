package location

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/example/ride-booking/internal/models"
)

// KafkaSource feeds the tracker from the location-sample topic. It is
// the production Source behind cmd/tracker.
type KafkaSource struct {
	reader *kafka.Reader
}

func NewKafkaSource(brokers []string, topic, group string) *KafkaSource {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  group,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})
	return &KafkaSource{reader: r}
}

func (k *KafkaSource) Current(ctx context.Context) (models.LocationSample, error) {
	m, err := k.reader.ReadMessage(ctx)
	if err != nil {
		return models.LocationSample{}, err
	}
	var s models.LocationSample
	if err := json.Unmarshal(m.Value, &s); err != nil {
		return models.LocationSample{}, fmt.Errorf("invalid sample: %w", err)
	}
	return s, nil
}

func (k *KafkaSource) Stream(ctx context.Context, updates chan<- models.LocationSample, errs chan<- error) {
	for {
		m, err := k.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			select {
			case errs <- err:
			case <-ctx.Done():
				return
			}
			continue
		}
		var s models.LocationSample
		if err := json.Unmarshal(m.Value, &s); err != nil {
			select {
			case errs <- fmt.Errorf("invalid sample: %w", err):
			case <-ctx.Done():
				return
			}
			continue
		}
		select {
		case updates <- s:
		case <-ctx.Done():
			return
		}
	}
}

func (k *KafkaSource) Close() error { return k.reader.Close() }
