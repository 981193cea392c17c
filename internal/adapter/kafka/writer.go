package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/flood-risk-engine/internal/alert"
	"github.com/couchcryptid/flood-risk-engine/internal/config"
)

// AlertWriter publishes flood-alert reports to a Kafka topic.
type AlertWriter struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewAlertWriter creates a Kafka producer for the configured alert topic.
func NewAlertWriter(cfg *config.Config, logger *slog.Logger) *AlertWriter {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaAlertTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &AlertWriter{writer: w, logger: logger}
}

// Publish serializes a report and writes it to the alert topic.
func (w *AlertWriter) Publish(ctx context.Context, report alert.Report) error {
	msg, err := serializeToMessage(report)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish alert: %w", err)
	}
	w.logger.Info("flood alert published", "id", report.ID, "zones", report.Count)
	return nil
}

func (w *AlertWriter) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a Report into a Kafka message. The zone
// grid itself stays out of the payload; consumers fetch the persisted
// rasters when they need cell-level detail.
func serializeToMessage(report alert.Report) (kafkago.Message, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize alert report: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(report.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "zone_count", Value: []byte(strconv.Itoa(report.Count))},
			{Key: "detected_at", Value: []byte(report.DetectedAt.Format(time.RFC3339))},
		},
	}, nil
}
