package producer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
	"github.com/rbroggi/parcelhub/internal/core/model"
)

const (
	// AttrEventType carries the model.ParcelEventType of the message.
	AttrEventType = "event_type"

	// AttrTrackingNumber carries the tracking number of the parcel.
	AttrTrackingNumber = "tracking_number"
)

// NewProducer creates a new producer.
func NewProducer(topic *pubsub.Topic) (*Producer, error) {
	if topic == nil {
		return nil, errors.New("topic is nil")
	}
	return &Producer{topic: topic}, nil
}

// Producer is the pubsub producer of parcel events.
type Producer struct {
	topic *pubsub.Topic
}

// Send publishes the event as JSON and waits for the server ack.
func (p *Producer) Send(ctx context.Context, event model.ParcelEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("error marshaling parcel-event message: %w", err)
	}
	result := p.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			AttrEventType:      string(event.Type),
			AttrTrackingNumber: event.Parcel.TrackingNumber,
		},
	})
	// Block until the result is returned and a server-generated
	// ID is returned for the published message.
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("pubsub: result.Get: %w", err)
	}
	return nil
}
