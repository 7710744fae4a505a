package model

import (
	"time"

	"github.com/google/uuid"
)

// ParcelEventType is the kind of change described by a ParcelEvent.
type ParcelEventType string

const (
	EventParcelCreated           ParcelEventType = "parcel.created"
	EventParcelAssigned          ParcelEventType = "parcel.assigned"
	EventParcelStatusUpdated     ParcelEventType = "parcel.status_updated"
	EventParcelCancelled         ParcelEventType = "parcel.cancelled"
	EventParcelDeliveryConfirmed ParcelEventType = "parcel.delivery_confirmed"
	EventParcelBlocked           ParcelEventType = "parcel.blocked"
	EventParcelUnblocked         ParcelEventType = "parcel.unblocked"
)

// ParcelEvent collects a parcel change.
type ParcelEvent struct {
	// ID is the event id.
	ID string `json:"id"`

	// Type is the kind of change.
	Type ParcelEventType `json:"type"`

	// Actor is the id of the user that caused the change.
	Actor uuid.UUID `json:"actor"`

	// Parcel is the parcel state after the change.
	Parcel Parcel `json:"parcel"`

	// OccurredAt is the moment of the change.
	OccurredAt time.Time `json:"occurredAt"`
}

// Notification is a message addressed to a person involved in a parcel.
type Notification struct {
	// To is the email of the addressee.
	To string

	// Name is the name of the addressee.
	Name string

	// Subject is a one line summary.
	Subject string

	// Body is the message text.
	Body string
}
