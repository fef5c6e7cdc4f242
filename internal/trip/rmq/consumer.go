package rmq

import (
	"encoding/json"
	"fmt"

	"trip-hail-system/internal/common/logger"
)

// ExpiryMessage is the driver-location service's signal that a trip's
// invitation TTL or its whole search window ran out. Kind is "assignment"
// or "search".
type ExpiryMessage struct {
	TripID string `json:"trip_id"`
	Kind   string `json:"kind"`
}

const (
	ExpiryKindAssignment = "assignment"
	ExpiryKindSearch     = "search"
)

// ConsumeExpirySignals binds queueName to trip.expiry.* and feeds each signal
// to handler on a background goroutine. The orchestrator never polls TTLs
// itself; expiry is the matcher's responsibility, reported back here.
func (c *Client) ConsumeExpirySignals(queueName string, handler func(msg ExpiryMessage)) error {
	q, err := c.Channel.QueueDeclare(
		queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := c.Channel.QueueBind(
		q.Name,
		"trip.expiry.*",
		c.Exchange,
		false,
		nil,
	); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	deliveries, err := c.Channel.Consume(
		q.Name,
		"",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	go func() {
		for d := range deliveries {
			var msg ExpiryMessage
			if err := json.Unmarshal(d.Body, &msg); err != nil {
				logger.Warn("expiry_unmarshal_failed", "dropping malformed expiry signal", "", "", err.Error())
				continue
			}
			handler(msg)
		}
	}()

	return nil
}
