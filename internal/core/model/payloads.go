package model

import (
	"time"

	"github.com/google/uuid"
)

// RegisterUserArgs contain the arguments of the RegisterUser method.
type RegisterUserArgs struct {
	// Name is the user display name.
	Name string

	// Email is the user email
	Email string

	// Password is the plain-text password.
	Password string

	// Phone is the user phone number.
	Phone string

	// Address is the user postal address.
	Address string

	// Picture is the user avatar URL.
	Picture string

	// Role is the requested role. Zero-value defaults to USER.
	Role Role
}

// ListUsersArgs contain the arguments for the ListUsers use-case.
type ListUsersArgs struct {
	// Roles to which the desired users belong to. Zero-value will be ignored as filter.
	Roles []Role

	// ActiveStates of the desired users. Zero-value will be ignored as filter.
	ActiveStates []ActiveState

	// IncludeDeleted also returns soft-deleted users.
	IncludeDeleted bool

	// Page is the 1-based page. Zero-value is interpreted as the first page.
	Page uint32

	// Limit is the page size. Zero-value will be interpreted as the default page size.
	Limit uint32
}

// ListUsersResponse contains the users matching the input query of the ListUsers api.
type ListUsersResponse struct {
	// Users are the users matching the ListUsers query.
	Users []User

	// Meta describes the page.
	Meta PageMeta
}

// CreateParcelArgs contain the arguments of the CreateParcel method.
type CreateParcelArgs struct {
	// Recipient is the recipient data as supplied by the sender.
	Recipient RecipientInput

	// DeliveryFee is the optional delivery fee.
	DeliveryFee *float64

	// PickupAddress is the optional pickup address.
	PickupAddress string

	// Weight is the parcel weight.
	Weight float64

	// Notes is a free-text note.
	Notes string
}

// RecipientInput is the recipient data supplied at parcel creation. Either UserID or Name, Phone and Address
// must be provided.
type RecipientInput struct {
	// UserID is the id of a registered recipient, as sent by the caller. Empty when not provided.
	UserID string

	// Name is the recipient name.
	Name string

	// Phone is the recipient phone number.
	Phone string

	// Address is the delivery address.
	Address string

	// Email is the optional recipient email.
	Email string
}

// TransitionArgs contain the arguments of the parcel operations that append to the history.
type TransitionArgs struct {
	// ParcelID is the id of the parcel.
	ParcelID uuid.UUID

	// Note is an optional note stored in the history entry.
	Note string
}

// AssignDeliveryManArgs contain the arguments of the AssignDeliveryMan method.
type AssignDeliveryManArgs struct {
	// ParcelID is the id of the parcel.
	ParcelID uuid.UUID

	// DeliveryManID is the id of the delivery man to assign.
	DeliveryManID uuid.UUID

	// Note is an optional note stored in the history entry.
	Note string
}

// UpdateDeliveryStatusArgs contain the arguments of the UpdateDeliveryStatus method.
type UpdateDeliveryStatusArgs struct {
	// ParcelID is the id of the parcel.
	ParcelID uuid.UUID

	// Status is the target status.
	Status ParcelStatus

	// Note is an optional note stored in the history entry.
	Note string
}

// ListParcelsArgs contain the arguments for the parcel listings.
type ListParcelsArgs struct {
	// Statuses filters on the current status. Zero-value will be ignored as filter.
	Statuses []ParcelStatus

	// CreatedAfter is the left time boundary in which the parcel was created. Zero-value will be ignored as filter.
	CreatedAfter time.Time

	// CreatedBefore is the right time boundary in which the parcel was created. Zero-value will be ignored as filter.
	CreatedBefore time.Time

	// Page is the 1-based page. Zero-value is interpreted as the first page.
	Page uint32

	// Limit is the page size. Zero-value will be interpreted as the default page size.
	Limit uint32
}

// ParcelView is a parcel along with the expanded users it references.
type ParcelView struct {
	Parcel

	// SenderInfo is the expanded sender. Nil when the user no longer exists.
	SenderInfo *UserSummary `json:"senderInfo,omitempty"`

	// DeliveryManInfo is the expanded delivery man. Nil when unassigned.
	DeliveryManInfo *UserSummary `json:"deliveryManInfo,omitempty"`

	// HistoryActors maps the actor ids found in the history to their summaries.
	HistoryActors map[uuid.UUID]UserSummary `json:"historyActors,omitempty"`
}

// UserSummary is the public projection of a user used in joins.
type UserSummary struct {
	ID    uuid.UUID `json:"_id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Phone string    `json:"phone,omitempty"`
	Role  Role      `json:"role"`
}

// Summary projects the user into a UserSummary.
func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Email: u.Email, Phone: u.Phone, Role: u.Role}
}

// ListParcelsResponse contains a page of parcels.
type ListParcelsResponse struct {
	// Parcels are the parcels in the page.
	Parcels []ParcelView

	// Meta describes the page.
	Meta PageMeta
}

// PageMeta describes a page of a listing.
type PageMeta struct {
	Page  uint32 `json:"page"`
	Limit uint32 `json:"limit"`
	Total int64  `json:"total"`
}

// LoginResponse contains the tokens and the user after a successful login.
type LoginResponse struct {
	Tokens TokenPair
	User   User
}
