package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/rbroggi/parcelhub/internal/core/model"
	"github.com/rbroggi/parcelhub/internal/core/ports"
)

// InformerArgs contains the mandatory arguments for the Informer.
type InformerArgs struct {
	// Users is the identity store, used to find the sender contact.
	Users ports.UserRepository

	// Notifier delivers the notifications.
	Notifier ports.Notifier
}

// NewInformer builds a new informer.
func NewInformer(args InformerArgs) *Informer {
	return &Informer{users: args.Users, notifier: args.Notifier}
}

// Informer turns parcel events into notifications for the sender and the recipient of the parcel.
type Informer struct {
	users    ports.UserRepository
	notifier ports.Notifier
}

// Handle notifies the people interested in the event.
func (i *Informer) Handle(ctx context.Context, event model.ParcelEvent) error {
	parcel := event.Parcel
	var notifications []model.Notification

	switch event.Type {
	case model.EventParcelCreated:
		notifications = append(notifications, i.toRecipient(parcel,
			fmt.Sprintf("A parcel is on its way: %s", parcel.TrackingNumber),
			fmt.Sprintf("A parcel has been booked for you. Track it with %s.", parcel.TrackingNumber)))
	case model.EventParcelBlocked, model.EventParcelUnblocked:
		// holds are only relevant to the sender
	default:
		notifications = append(notifications, i.toRecipient(parcel,
			fmt.Sprintf("Parcel %s is now %s", parcel.TrackingNumber, parcel.CurrentStatus),
			statusBody(parcel)))
	}

	if event.Type != model.EventParcelCreated {
		sender, err := i.users.FindUserByID(ctx, parcel.Sender, ports.IncludeDeleted)
		switch {
		case err == nil:
			notifications = append(notifications, model.Notification{
				To:      sender.Email,
				Name:    sender.Name,
				Subject: fmt.Sprintf("Your parcel %s: %s", parcel.TrackingNumber, event.Type),
				Body:    statusBody(parcel),
			})
		case errors.Is(err, model.ErrNotFound):
		default:
			return fmt.Errorf("error finding sender of parcel [%s]: %w", parcel.ID, err)
		}
	}

	for _, n := range notifications {
		if n.To == "" {
			continue
		}
		if err := i.notifier.Notify(ctx, n); err != nil {
			return fmt.Errorf("error notifying event ID [%s]: %w", event.ID, err)
		}
	}
	return nil
}

func (i *Informer) toRecipient(parcel model.Parcel, subject, body string) model.Notification {
	return model.Notification{To: parcel.Recipient.Email, Name: parcel.Recipient.Name, Subject: subject, Body: body}
}

func statusBody(parcel model.Parcel) string {
	body := fmt.Sprintf("Parcel %s is %s.", parcel.TrackingNumber, parcel.CurrentStatus)
	if n := len(parcel.StatusHistory); n > 0 && parcel.StatusHistory[n-1].Note != "" {
		body += " " + parcel.StatusHistory[n-1].Note
	}
	return body
}
