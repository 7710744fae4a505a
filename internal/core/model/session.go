package model

import "github.com/google/uuid"

// Claims is the identity payload carried by a signed session token.
type Claims struct {
	// UserID is the id of the authenticated user.
	UserID uuid.UUID

	// Email is the email of the authenticated user.
	Email string

	// Role is the role of the user at the time the token was issued.
	Role Role
}

// Principal is the verified caller of an operation.
type Principal struct {
	// UserID is the id of the caller.
	UserID uuid.UUID

	// Email is the email of the caller.
	Email string

	// Role is the current role of the caller.
	Role Role
}

// IsAdmin reports whether the principal holds the ADMIN role.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// TokenPair is the couple of tokens issued on login.
type TokenPair struct {
	// AccessToken is the short-lived token used to authenticate requests.
	AccessToken string `json:"accessToken"`

	// RefreshToken is the long-lived token used to obtain new access tokens.
	RefreshToken string `json:"refreshToken,omitempty"`
}

// FederatedIdentity is the identity returned by an external provider after a successful login.
type FederatedIdentity struct {
	// Provider is the provider name.
	Provider string

	// ProviderID is the subject assigned by the provider.
	ProviderID string

	// Email is the email asserted by the provider.
	Email string

	// Name is the display name asserted by the provider.
	Name string

	// Picture is the avatar URL asserted by the provider.
	Picture string
}
