package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Arham-Git047/Project-Sentinel/internal/config"
	"github.com/Arham-Git047/Project-Sentinel/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// AlertWriter produces alert lifecycle events to a Kafka topic.
// It implements notify.Sink.
type AlertWriter struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewAlertWriter creates a Kafka producer for the configured alerts topic.
func NewAlertWriter(cfg *config.Config, logger *slog.Logger) *AlertWriter {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaAlertsTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &AlertWriter{writer: w, logger: logger}
}

func (w *AlertWriter) Name() string { return "kafka" }

// Publish writes one event keyed by alert id, so every transition of an
// alert lands on the same partition in order.
func (w *AlertWriter) Publish(ctx context.Context, ev domain.AlertEvent) error {
	msg, err := serializeEventToMessage(ev)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write alert event %s: %w", ev.AlertID, err)
	}
	w.logger.Debug("alert event published", "alert_id", ev.AlertID, "kind", ev.Kind)
	return nil
}

func (w *AlertWriter) Close() error {
	return w.writer.Close()
}

// serializeEventToMessage marshals an AlertEvent into a Kafka message.
func serializeEventToMessage(ev domain.AlertEvent) (kafkago.Message, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize alert event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(ev.AlertID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "kind", Value: []byte(ev.Kind)},
			{Key: "zone", Value: []byte(ev.Zone)},
			{Key: "threat_type", Value: []byte(ev.ThreatType)},
			{Key: "emitted_at", Value: []byte(ev.Timestamp.Format(time.RFC3339))},
		},
	}, nil
}
