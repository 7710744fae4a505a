package model

import (
	"time"

	"github.com/google/uuid"
)

// ParcelStatus is the delivery status of a parcel.
type ParcelStatus string

const (
	StatusPending   ParcelStatus = "PENDING"
	StatusPickedUp  ParcelStatus = "PICKED_UP"
	StatusInTransit ParcelStatus = "IN_TRANSIT"
	StatusDelivered ParcelStatus = "DELIVERED"
	StatusCancelled ParcelStatus = "CANCELLED"
	StatusReturned  ParcelStatus = "RETURNED"
)

// Valid reports whether s is one of the known statuses.
func (s ParcelStatus) Valid() bool {
	switch s {
	case StatusPending, StatusPickedUp, StatusInTransit, StatusDelivered, StatusCancelled, StatusReturned:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no transition can leave s.
func (s ParcelStatus) IsTerminal() bool {
	switch s {
	case StatusDelivered, StatusCancelled, StatusReturned:
		return true
	default:
		return false
	}
}

// Recipient is the addressee of a parcel.
type Recipient struct {
	// Name is the recipient name.
	Name string `json:"name"`

	// Phone is the recipient phone number.
	Phone string `json:"phone"`

	// Address is the delivery address.
	Address string `json:"address"`

	// Email is the recipient email, if known.
	Email string `json:"email,omitempty"`

	// UserID links the recipient to a registered user. uuid.Nil when not linked.
	UserID uuid.UUID `json:"userId"`
}

// IsLinked reports whether the recipient is linked to a registered user.
func (r Recipient) IsLinked() bool {
	return r.UserID != uuid.Nil
}

// StatusLog is one entry of the status history of a parcel.
type StatusLog struct {
	// Status is the status of the parcel after the entry was recorded.
	Status ParcelStatus `json:"currentStatus"`

	// Timestamp is the moment the entry was recorded.
	Timestamp time.Time `json:"timestamp"`

	// UpdatedBy is the id of the user that caused the entry. uuid.Nil when unknown.
	UpdatedBy uuid.UUID `json:"updatedBy"`

	// Note is a free-text note.
	Note string `json:"note,omitempty"`
}

// Parcel is a shipment booked by a sender.
type Parcel struct {
	// ID unique identifier of the parcel.
	ID uuid.UUID `json:"_id"`

	// TrackingNumber is the human readable identifier, assigned once at creation.
	TrackingNumber string `json:"trackingNumber"`

	// Sender is the id of the user that booked the parcel.
	Sender uuid.UUID `json:"sender"`

	// Recipient is the addressee of the parcel.
	Recipient Recipient `json:"recipient"`

	// DeliveryMan is the id of the assigned delivery man. uuid.Nil when unassigned.
	DeliveryMan uuid.UUID `json:"deliveryMan"`

	// DeliveryFee is the optional delivery fee.
	DeliveryFee *float64 `json:"deliveryFee,omitempty"`

	// PickupAddress is the optional pickup address.
	PickupAddress string `json:"pickupAddress,omitempty"`

	// Weight is the parcel weight. Always positive.
	Weight float64 `json:"weight"`

	// CurrentStatus mirrors the status of the last history entry.
	CurrentStatus ParcelStatus `json:"currentStatus"`

	// StatusHistory is the append-only audit trail of the parcel.
	StatusHistory []StatusLog `json:"statusHistory"`

	// IsBlocked marks parcels on administrative hold.
	IsBlocked bool `json:"isBlocked"`

	// Notes is a free-text note from the sender.
	Notes string `json:"notes,omitempty"`

	// CreatedAt is the time at which the parcel was booked.
	CreatedAt time.Time `json:"createdAt"`

	// UpdatedAt is the time at which the parcel was last updated
	UpdatedAt time.Time `json:"updatedAt"`
}

// Record appends an entry to the status history and moves the current status along with it.
// The entry timestamp is never allowed to precede the previous one.
func (p *Parcel) Record(entry StatusLog) {
	if n := len(p.StatusHistory); n > 0 && entry.Timestamp.Before(p.StatusHistory[n-1].Timestamp) {
		entry.Timestamp = p.StatusHistory[n-1].Timestamp
	}
	p.StatusHistory = append(p.StatusHistory, entry)
	p.CurrentStatus = entry.Status
	p.UpdatedAt = entry.Timestamp
}

// Clone returns a deep copy of the parcel.
func (p *Parcel) Clone() *Parcel {
	c := *p
	c.StatusHistory = append([]StatusLog(nil), p.StatusHistory...)
	if p.DeliveryFee != nil {
		fee := *p.DeliveryFee
		c.DeliveryFee = &fee
	}
	return &c
}

// IsVisibleTo reports whether the principal may read the parcel.
func (p *Parcel) IsVisibleTo(principal Principal) bool {
	switch principal.Role {
	case RoleAdmin:
		return true
	case RoleUser:
		return p.Sender == principal.UserID || (p.Recipient.IsLinked() && p.Recipient.UserID == principal.UserID)
	case RoleDeliveryMan:
		return p.DeliveryMan == principal.UserID ||
			p.Sender == principal.UserID ||
			(p.Recipient.IsLinked() && p.Recipient.UserID == principal.UserID)
	default:
		return false
	}
}
