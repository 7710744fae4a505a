package subscriber

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
	"github.com/rbroggi/parcelhub/internal/core/model"
	"github.com/rbroggi/parcelhub/internal/core/ports"

	log "github.com/sirupsen/logrus"
)

// EventRecorder observes the outcome of handled events.
type EventRecorder interface {
	RecordEvent(eventType model.ParcelEventType, err error)
}

// SubscriberArgs contain the mandatory arguments to build a subscriber.
type SubscriberArgs struct {
	// Subscription is a pubsub subscription
	Subscription *pubsub.Subscription

	// ParcelEventHandler is a event handler
	ParcelEventHandler ports.ParcelEventHandler
}

// SubscriberOptArgs are the optional arguments for building a Subscriber.
type SubscriberOptArgs = func(*Subscriber)

// WithEventRecorder records every handled event.
func WithEventRecorder(recorder EventRecorder) SubscriberOptArgs {
	return func(s *Subscriber) {
		s.recorder = recorder
	}
}

// Subscriber is a pubsub async subscriber
type Subscriber struct {
	subscription       *pubsub.Subscription
	parcelEventHandler ports.ParcelEventHandler
	recorder           EventRecorder
}

// NewSubscriber creates a subscriber
func NewSubscriber(args SubscriberArgs, optArgs ...SubscriberOptArgs) *Subscriber {
	s := &Subscriber{
		subscription:       args.Subscription,
		parcelEventHandler: args.ParcelEventHandler,
	}
	for _, opt := range optArgs {
		opt(s)
	}
	return s
}

// Consume starts the subscriber. This is a blocking method and should be started in it's own go-routine.
// The way to terminate the method is to cancel the context in input.
func (s *Subscriber) Consume(ctx context.Context) error {
	if err := s.subscription.Receive(ctx, s.receive); err != nil {
		return fmt.Errorf("error receiving messages from subscription: %w", err)
	}
	return nil
}

func (s *Subscriber) receive(ctx context.Context, msg *pubsub.Message) {
	event, err := decodeMsgIntoParcelEvent(msg)
	if err != nil {
		// redelivering a malformed message cannot succeed
		log.WithError(err).WithField("message_id", msg.ID).Error("dropping undecodable parcel-event")
		msg.Ack()
		return
	}

	err = s.parcelEventHandler.Handle(ctx, *event)
	if s.recorder != nil {
		s.recorder.RecordEvent(event.Type, err)
	}
	if err != nil {
		log.WithError(err).WithField("event_type", event.Type).Error("error in parcel event handler")
		msg.Nack()
		return
	}
	msg.Ack()
}

func decodeMsgIntoParcelEvent(msg *pubsub.Message) (*model.ParcelEvent, error) {
	if msg == nil {
		return nil, errors.New("cannot decode nil pubsub msg")
	}
	event := new(model.ParcelEvent)
	if err := json.Unmarshal(msg.Data, event); err != nil {
		return nil, fmt.Errorf("json unmarshal error: %w", err)
	}
	if event.Type == "" {
		return nil, errors.New("parcel-event without type")
	}
	if event.ID == "" {
		event.ID = msg.ID
	}
	return event, nil
}
