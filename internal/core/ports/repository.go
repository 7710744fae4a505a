package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rbroggi/parcelhub/internal/core/model"
)

// Visibility tells user reads whether soft-deleted users are returned.
type Visibility int

const (
	// ExcludeDeleted hides soft-deleted users.
	ExcludeDeleted Visibility = iota

	// IncludeDeleted returns soft-deleted users as well.
	IncludeDeleted
)

// UserRepository is the identity store.
type UserRepository interface {
	// SaveUser durably saves a new user. It returns model.ErrConflict if a non-deleted user already uses the email.
	SaveUser(ctx context.Context, user *model.User) error

	// UpdateUser replaces the mutable fields of an existing user. It returns model.ErrNotFound if the user does not exist.
	UpdateUser(ctx context.Context, user *model.User) error

	// FindUserByID returns the user with the given id. It returns model.ErrNotFound if no visible user matches.
	FindUserByID(ctx context.Context, id uuid.UUID, visibility Visibility) (*model.User, error)

	// FindUserByEmail returns the user with the given email. It returns model.ErrNotFound if no visible user matches.
	FindUserByEmail(ctx context.Context, email string, visibility Visibility) (*model.User, error)

	// FindUsersByIDs returns the visible users among ids. Missing ids are silently skipped.
	FindUsersByIDs(ctx context.Context, ids []uuid.UUID, visibility Visibility) ([]model.User, error)

	// ListUsers lists all users matching the query parameters.
	ListUsers(ctx context.Context, query ListUsersQuery) (*ListUsersResult, error)
}

// ListUsersQuery gather the parameters of a user listing.
type ListUsersQuery struct {
	// Roles to which the desired users belong to. Zero-value will be ignored as filter.
	Roles []model.Role

	// ActiveStates of the desired users. Zero-value will be ignored as filter.
	ActiveStates []model.ActiveState

	// Visibility tells whether soft-deleted users are listed.
	Visibility Visibility

	// Limit is the maximum amount of users to return (for pagination). Zero-value will be interpreted as no-limit.
	Limit uint32

	// Offset is the offset to apply (for pagination). Zero-value will be interpreted as 0 Offset.
	Offset uint32
}

// ListUsersResult gathers the result
type ListUsersResult struct {
	// Users are the users matching the query parameters
	Users []model.User

	// Total is the amount of users matching the query regardless of pagination.
	Total int64
}

// ParcelRepository is the parcel store.
type ParcelRepository interface {
	// SaveParcel durably saves a new parcel. It returns model.ErrConflict if the tracking number is taken.
	SaveParcel(ctx context.Context, parcel *model.Parcel) error

	// FindParcelByID returns the parcel with the given id. It returns model.ErrNotFound if it does not exist.
	FindParcelByID(ctx context.Context, id uuid.UUID) (*model.Parcel, error)

	// FindParcelByTrackingNumber returns the parcel with the given tracking number. It returns model.ErrNotFound
	// if it does not exist.
	FindParcelByTrackingNumber(ctx context.Context, trackingNumber string) (*model.Parcel, error)

	// AppendParcelStatus persists the history entries of parcel past knownHistoryLen together with its current
	// status, delivery man, blocked flag and update time. The write only happens if the stored history still has
	// knownHistoryLen entries; otherwise model.ErrConflict is returned and nothing is written. It returns
	// model.ErrNotFound if the parcel does not exist.
	AppendParcelStatus(ctx context.Context, parcel *model.Parcel, knownHistoryLen int) error

	// ListParcels lists all parcels matching the query parameters, newest first.
	ListParcels(ctx context.Context, query ListParcelsQuery) (*ListParcelsResult, error)
}

// ListParcelsQuery gather the parameters of a parcel listing. Non-zero references are combined with AND.
type ListParcelsQuery struct {
	// Sender filters on the sender id. Zero-value will be ignored as filter.
	Sender uuid.UUID

	// RecipientUserID filters on the linked recipient. Zero-value will be ignored as filter.
	RecipientUserID uuid.UUID

	// DeliveryMan filters on the assigned delivery man. Zero-value will be ignored as filter.
	DeliveryMan uuid.UUID

	// Statuses filters on the current status. Zero-value will be ignored as filter.
	Statuses []model.ParcelStatus

	// CreatedAfter is the left time boundary in which the parcel was created. Zero-value will be ignored as filter.
	CreatedAfter time.Time

	// CreatedBefore is the right time boundary in which the parcel was created. Zero-value will be ignored as filter.
	CreatedBefore time.Time

	// Limit is the maximum amount of parcels to return (for pagination). Zero-value will be interpreted as no-limit.
	Limit uint32

	// Offset is the offset to apply (for pagination). Zero-value will be interpreted as 0 Offset.
	Offset uint32
}

// ListParcelsResult gathers the result
type ListParcelsResult struct {
	// Parcels are the parcels matching the query parameters
	Parcels []model.Parcel

	// Total is the amount of parcels matching the query regardless of pagination.
	Total int64
}
