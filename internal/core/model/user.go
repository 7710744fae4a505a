package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role is the closed set of roles a user can hold.
type Role string

const (
	RoleAdmin       Role = "ADMIN"
	RoleUser        Role = "USER"
	RoleDeliveryMan Role = "DELIVERY_MAN"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleUser, RoleDeliveryMan:
		return true
	default:
		return false
	}
}

// ActiveState is the account state of a user.
type ActiveState string

const (
	StateActive   ActiveState = "ACTIVE"
	StateBlocked  ActiveState = "BLOCKED"
	StateInactive ActiveState = "INACTIVE"
)

// Valid reports whether s is one of the known states.
func (s ActiveState) Valid() bool {
	switch s {
	case StateActive, StateBlocked, StateInactive:
		return true
	default:
		return false
	}
}

const (
	// ProviderCredentials is the provider name of email/password accounts.
	ProviderCredentials = "credentials"

	// ProviderGoogle is the provider name of Google federated accounts.
	ProviderGoogle = "google"
)

// AuthProvider binds a user to an authentication provider.
type AuthProvider struct {
	// Provider is the provider name, e.g. "credentials" or "google".
	Provider string `json:"provider"`

	// ProviderID is the identifier assigned by the provider.
	ProviderID string `json:"providerId"`
}

// User represents a user in the system.
type User struct {
	// ID unique identifier of the user.
	ID uuid.UUID `json:"_id"`

	// Name is the user display name.
	Name string `json:"name"`

	// Email is the user email. Unique among non-deleted users.
	Email string `json:"email"`

	// PasswordHash contains the password hash. Empty for federated-only users.
	PasswordHash string `json:"-"`

	// Password is a new plain-text password waiting to be hashed. It is only set when the password changes
	// and is never persisted.
	Password string `json:"-"`

	// Phone is the user phone number.
	Phone string `json:"phone,omitempty"`

	// Address is the user postal address.
	Address string `json:"address,omitempty"`

	// Picture is the user avatar URL.
	Picture string `json:"picture,omitempty"`

	// Role is the role of the user.
	Role Role `json:"role"`

	// ActiveState is the account state.
	ActiveState ActiveState `json:"isActive"`

	// IsDeleted marks soft-deleted users.
	IsDeleted bool `json:"isDeleted"`

	// IsVerified marks users with a verified email.
	IsVerified bool `json:"isVerified"`

	// Auths lists the authentication providers bound to the user.
	Auths []AuthProvider `json:"auths"`

	// CreatedAt is the time at which the user was created in the system.
	CreatedAt time.Time `json:"createdAt"`

	// UpdatedAt is the time at which the user was last updated
	UpdatedAt time.Time `json:"updatedAt"`
}

// HasPassword reports whether the user can log in with credentials.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// HasProvider reports whether the user is bound to the provider.
func (u *User) HasProvider(provider string) bool {
	for _, a := range u.Auths {
		if a.Provider == provider {
			return true
		}
	}
	return false
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
