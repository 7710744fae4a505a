package ports

import (
	"context"

	"github.com/rbroggi/parcelhub/internal/core/model"
)

// EventSender is the port for publishing outbound parcel events.
type EventSender interface {
	// Send sends parcel-event data.
	Send(ctx context.Context, event model.ParcelEvent) error
}

// Notifier delivers notifications to the people involved in a parcel.
type Notifier interface {
	// Notify delivers the notification.
	Notify(ctx context.Context, notification model.Notification) error
}

// TransitionRecorder observes parcel status changes, e.g. for metrics.
type TransitionRecorder interface {
	// RecordTransition is called once per persisted history entry.
	RecordTransition(from, to model.ParcelStatus)
}
