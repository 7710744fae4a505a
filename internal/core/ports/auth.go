package ports

import (
	"context"
	"time"

	"github.com/rbroggi/parcelhub/internal/core/model"
)

// PasswordHasher hashes and checks passwords.
type PasswordHasher interface {
	// Hash returns the encoded hash of the plain-text password.
	Hash(password string) (string, error)

	// Compare reports whether the plain-text password matches the encoded hash.
	Compare(password, hash string) (bool, error)
}

// TokenService signs and verifies session tokens.
type TokenService interface {
	// Sign returns a token carrying claims, signed with secret and expiring after ttl.
	Sign(claims model.Claims, secret []byte, ttl time.Duration) (string, error)

	// Verify checks the signature and the expiry of token and returns its claims.
	// It returns model.ErrUnauthorized on any failure.
	Verify(token string, secret []byte) (*model.Claims, error)
}

// IdentityProvider is an external (federated) login provider.
type IdentityProvider interface {
	// Name is the provider name stored in the user auth bindings.
	Name() string

	// LoginURL returns the URL the user agent must be redirected to. state is echoed back on callback.
	LoginURL(state string) string

	// Exchange trades the authorization code for the identity of the user.
	Exchange(ctx context.Context, code string) (*model.FederatedIdentity, error)
}
