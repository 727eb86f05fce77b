package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/veltrix/shoprec/internal/config"
	"github.com/veltrix/shoprec/pkg/models"
)

// InteractionPublisher streams tracked interaction events to Kafka for
// downstream consumers (analytics, model retraining). Publishing is
// best-effort: the tracker has already persisted the event, so a
// publish failure is logged and dropped, never surfaced.
type InteractionPublisher struct {
	writer *kafka.Writer
	logger *logrus.Logger
}

type interactionEnvelope struct {
	Event     models.UserInteraction `json:"event"`
	Timestamp time.Time              `json:"timestamp"`
}

func NewInteractionPublisher(cfg *config.KafkaConfig, logger *logrus.Logger) *InteractionPublisher {
	return &InteractionPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topics.UserInteractions,
			Balancer:     &kafka.Hash{}, // key by user for per-user ordering
			RequiredAcks: kafka.RequireOne,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
			BatchSize:    100,
		},
		logger: logger,
	}
}

func (p *InteractionPublisher) Publish(ctx context.Context, event models.UserInteraction) error {
	payload, err := json.Marshal(interactionEnvelope{
		Event:     event,
		Timestamp: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal interaction event: %w", err)
	}

	message := kafka.Message{
		Key:   []byte(event.UserID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "interaction_type", Value: []byte(event.InteractionType)},
			{Key: "session_id", Value: []byte(event.SessionID)},
		},
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("failed to write interaction event: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"user_id":          event.UserID,
		"product_id":       event.ProductID,
		"interaction_type": event.InteractionType,
	}).Debug("Interaction event published")

	return nil
}

func (p *InteractionPublisher) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close interaction writer: %w", err)
	}
	return nil
}
