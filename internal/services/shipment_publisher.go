package services

import (
	"context"
	"sync"
	"time"

	"etaservice/pkg/logger"
	"etaservice/pkg/notify"
)

// Publishers fans an update out to every publisher and returns the total
// number of recipients.
type Publishers []ShipmentPublisher

func (p Publishers) BroadcastToShipment(shipmentID, messageType string, data interface{}) int {
	sent := 0
	for _, publisher := range p {
		sent += publisher.BroadcastToShipment(shipmentID, messageType, data)
	}
	return sent
}

// DefaultMaxInFlight bounds concurrent topic publishes when none is configured.
const DefaultMaxInFlight = 64

// TopicPublisher forwards shipment updates to a notify.Publisher without
// blocking the prediction path. At most maxInFlight publishes run at once;
// updates beyond that are dropped. Failures are logged and dropped.
type TopicPublisher struct {
	publisher notify.Publisher
	timeout   time.Duration
	slots     chan struct{}
	logger    *logger.Logger
	pending   sync.WaitGroup
}

func NewTopicPublisher(publisher notify.Publisher, timeout time.Duration, maxInFlight int, log *logger.Logger) *TopicPublisher {
	if log == nil {
		log = logger.Discard()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if maxInFlight <= 0 {
		maxInFlight = DefaultMaxInFlight
	}
	return &TopicPublisher{
		publisher: publisher,
		timeout:   timeout,
		slots:     make(chan struct{}, maxInFlight),
		logger:    log.WithField("component", "topic_publisher"),
	}
}

func (t *TopicPublisher) BroadcastToShipment(shipmentID, messageType string, data interface{}) int {
	event := &notify.Event{
		ShipmentID: shipmentID,
		Type:       messageType,
		Data:       data,
		Timestamp:  time.Now().UTC(),
	}

	select {
	case t.slots <- struct{}{}:
	default:
		t.logger.WithField("shipment_id", shipmentID).Warn("Dropping shipment update, too many publishes in flight")
		return 0
	}

	t.pending.Add(1)
	go func() {
		defer t.pending.Done()
		defer func() { <-t.slots }()

		ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
		defer cancel()

		if _, err := t.publisher.Publish(ctx, event); err != nil {
			t.logger.WithError(err).WithField("shipment_id", shipmentID).Warn("Failed to publish shipment update")
		}
	}()
	return 1
}

// Wait blocks until in-flight publishes finish or ctx is done.
func (t *TopicPublisher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
