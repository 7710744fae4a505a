package argon2

import (
	"fmt"

	"github.com/alexedwards/argon2id"
)

// Hasher hashes passwords with argon2id.
type Hasher struct {
	params *argon2id.Params
}

// HasherOptArgs are the optional arguments for building a Hasher
type HasherOptArgs = func(*Hasher)

// WithParams overrides the argon2id parameters. Cheap parameters are useful for testing.
func WithParams(params *argon2id.Params) HasherOptArgs {
	return func(h *Hasher) {
		h.params = params
	}
}

// NewHasher creates a Hasher using argon2id.DefaultParams unless overridden.
func NewHasher(optArgs ...HasherOptArgs) *Hasher {
	h := &Hasher{params: argon2id.DefaultParams}
	for _, opt := range optArgs {
		opt(h)
	}
	return h
}

// Hash returns a Argon2id hash of a plain-text password. The returned hash follows the format used by the Argon2
// reference C implementation and looks like this:
// $argon2id$v=19$m=65536,t=3,p=2$c29tZXNhbHQ$RdescudvJCsgt3ub+b+dWRWJTmaaJObG
func (h *Hasher) Hash(password string) (string, error) {
	hash, err := argon2id.CreateHash(password, h.params)
	if err != nil {
		return "", fmt.Errorf("error creating password hash: %w", err)
	}
	return hash, nil
}

// Compare reports whether password matches the encoded hash.
func (h *Hasher) Compare(password, hash string) (bool, error) {
	match, err := argon2id.ComparePasswordAndHash(password, hash)
	if err != nil {
		return false, fmt.Errorf("error comparing password and hash: %w", err)
	}
	return match, nil
}
