package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sahaya-health/adherence-platform/pkg/common/config"
	"github.com/sahaya-health/adherence-platform/pkg/common/logger"
	"github.com/sahaya-health/adherence-platform/pkg/common/models"
	"github.com/segmentio/kafka-go"
)

type Producer struct {
	writer *kafka.Writer
}

func NewProducer(topic string) *Producer {
	cfg := config.Load()
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.KafkaBrokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		BatchSize:    1,
		BatchTimeout: 10 * time.Millisecond,
	}

	return &Producer{writer: writer}
}

// PublishDoseEvent publishes an engine event keyed by patient so that all
// events for one patient land on the same partition.
func (p *Producer) PublishDoseEvent(ctx context.Context, eventType string, patientID, medicationID string, metadata map[string]string) error {
	event := models.DoseEvent{
		ID:           models.NewDoseEventID(),
		Type:         eventType,
		PatientID:    patientID,
		MedicationID: medicationID,
		OccurredAt:   time.Now().UTC(),
		Metadata:     metadata,
	}

	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal dose event: %w", err)
	}

	message := kafka.Message{
		Key:   []byte(patientID),
		Value: eventBytes,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(eventType)},
		},
	}

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		logger.Log.WithError(err).WithFields(map[string]interface{}{
			"event_id":   event.ID,
			"event_type": eventType,
			"patient_id": patientID,
		}).Error("Failed to publish dose event")
		return err
	}

	logger.Log.WithFields(map[string]interface{}{
		"event_id":   event.ID,
		"event_type": eventType,
		"topic":      p.writer.Topic,
	}).Debug("Dose event published")

	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
