package rmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"trip-hail-system/internal/common/logger"
	"trip-hail-system/internal/trip/model"

	amqp "github.com/rabbitmq/amqp091-go"
)

type TripEventMessage struct {
	TripID    string `json:"trip_id"`
	EventType string `json:"event_type"`
	Payload   any    `json:"payload"`
	EmittedAt string `json:"emitted_at"`
}

// PublishTripEvent fans a lifecycle event out on the trip exchange for
// downstream consumers (analytics, driver apps). Callers treat failure as
// best-effort.
func (c *Client) PublishTripEvent(ctx context.Context, tripID string, eventType model.TripEventType, payload any) error {
	msg := TripEventMessage{
		TripID:    tripID,
		EventType: string(eventType),
		Payload:   payload,
		EmittedAt: time.Now().UTC().Format(time.RFC3339),
	}

	body, err := json.Marshal(msg)
	if err != nil {
		logger.Error("publish_trip_event", "failed to marshal trip event message", "", tripID, err.Error())
		return fmt.Errorf("failed to marshal trip event message: %w", err)
	}

	routingKey := fmt.Sprintf("trip.event.%s", eventType)

	if err := c.Channel.PublishWithContext(
		ctx,
		c.Exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	); err != nil {
		logger.Error("publish_trip_event", "failed to publish trip event", "", tripID, err.Error())
		return fmt.Errorf("failed to publish trip event: %w", err)
	}

	logger.Debug("publish_trip_event", fmt.Sprintf("published %s", routingKey), "", tripID)
	return nil
}
