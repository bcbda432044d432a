package notify

import (
	"context"
	"time"
)

// Event is an ETA update for one shipment.
type Event struct {
	ShipmentID string      `json:"shipment_id"`
	Type       string      `json:"type"`
	Data       interface{} `json:"data"`
	Timestamp  time.Time   `json:"timestamp"`
}

// Publisher delivers events to downstream consumers and returns the
// provider's message id.
type Publisher interface {
	Publish(ctx context.Context, event *Event) (string, error)
}
