package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rbroggi/parcelhub/internal/core/model"
)

// claims is the wire form of model.Claims.
type claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// TokenService signs HS256 tokens.
type TokenService struct {
	issuer  string
	nowFunc func() time.Time
}

// TokenServiceOptArgs are the optional arguments for building a TokenService
type TokenServiceOptArgs = func(*TokenService)

// WithNowFunc can be used to override the nowFunc. Useful for testing.
func WithNowFunc(nowFunc func() time.Time) TokenServiceOptArgs {
	return func(s *TokenService) {
		s.nowFunc = nowFunc
	}
}

// WithIssuer sets the issuer claim of the signed tokens.
func WithIssuer(issuer string) TokenServiceOptArgs {
	return func(s *TokenService) {
		s.issuer = issuer
	}
}

// NewTokenService creates a new TokenService.
func NewTokenService(optArgs ...TokenServiceOptArgs) *TokenService {
	s := &TokenService{nowFunc: time.Now}
	for _, opt := range optArgs {
		opt(s)
	}
	return s
}

// Sign returns a token carrying the claims, valid for ttl.
func (s *TokenService) Sign(c model.Claims, secret []byte, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("empty signing secret")
	}
	now := s.nowFunc()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims{
		UserID: c.UserID.String(),
		Email:  c.Email,
		Role:   string(c.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   c.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("error signing token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry of the token. Every failure is reported as model.ErrUnauthorized.
func (s *TokenService) Verify(token string, secret []byte) (*model.Claims, error) {
	parsed := new(claims)
	_, err := jwt.ParseWithClaims(token, parsed, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.nowFunc),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, model.NewError(model.ErrUnauthorized, "Token has expired")
		}
		return nil, model.NewError(model.ErrUnauthorized, "Invalid token")
	}
	id, err := uuid.Parse(parsed.UserID)
	if err != nil {
		return nil, model.NewError(model.ErrUnauthorized, "Invalid token subject")
	}
	return &model.Claims{UserID: id, Email: parsed.Email, Role: model.Role(parsed.Role)}, nil
}
