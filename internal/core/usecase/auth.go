package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rbroggi/parcelhub/internal/core/model"
	"github.com/rbroggi/parcelhub/internal/core/ports"
	log "github.com/sirupsen/logrus"
)

// AuthServiceArgs contains the mandatory arguments for the AuthService.
type AuthServiceArgs struct {
	// Repository is the identity store.
	Repository ports.UserRepository

	// Hasher hashes and checks passwords.
	Hasher ports.PasswordHasher

	// Tokens signs and verifies session tokens.
	Tokens ports.TokenService

	// AccessSecret signs the access tokens.
	AccessSecret []byte

	// AccessTTL is the lifetime of the access tokens.
	AccessTTL time.Duration

	// RefreshSecret signs the refresh tokens.
	RefreshSecret []byte

	// RefreshTTL is the lifetime of the refresh tokens.
	RefreshTTL time.Duration
}

// AuthServiceOptArgs are the optional arguments for building an AuthService
type AuthServiceOptArgs = func(*AuthService)

// WithIdentityProvider enables federated login through the provider.
func WithIdentityProvider(provider ports.IdentityProvider) AuthServiceOptArgs {
	return func(s *AuthService) {
		s.provider = provider
	}
}

// WithAuthNowFunc can be used to override the clock of the AuthService. Useful for testing.
func WithAuthNowFunc(nowFunc func() time.Time) AuthServiceOptArgs {
	return func(s *AuthService) {
		s.store.nowFunc = nowFunc
	}
}

// NewAuthService creates a new AuthService.
func NewAuthService(args AuthServiceArgs, optArgs ...AuthServiceOptArgs) *AuthService {
	s := &AuthService{
		repository:    args.Repository,
		hasher:        args.Hasher,
		tokens:        args.Tokens,
		accessSecret:  args.AccessSecret,
		accessTTL:     args.AccessTTL,
		refreshSecret: args.RefreshSecret,
		refreshTTL:    args.RefreshTTL,
		store: identityStore{
			repository: args.Repository,
			hasher:     args.Hasher,
			nowFunc:    func() time.Time { return time.Now().UTC() },
		},
	}
	for _, opt := range optArgs {
		opt(s)
	}
	return s
}

// AuthService gathers the session functionality: logins, token refresh and password reset.
type AuthService struct {
	repository    ports.UserRepository
	hasher        ports.PasswordHasher
	tokens        ports.TokenService
	accessSecret  []byte
	accessTTL     time.Duration
	refreshSecret []byte
	refreshTTL    time.Duration
	provider      ports.IdentityProvider
	store         identityStore
}

// Login checks email and password and issues a token pair.
func (s *AuthService) Login(ctx context.Context, email, password string) (*model.LoginResponse, error) {
	user, err := s.repository.FindUserByEmail(ctx, model.NormalizeEmail(email), ports.IncludeDeleted)
	if errors.Is(err, model.ErrNotFound) {
		return nil, model.NewError(model.ErrUnauthorized, "Invalid email or password")
	}
	if err != nil {
		return nil, fmt.Errorf("error finding user by email: %w", err)
	}
	if err := CheckUserState(user); err != nil {
		return nil, err
	}
	if !user.HasPassword() {
		return nil, model.NewError(model.ErrUnauthorized,
			"You have authenticated through Google. To log in with a password, set one first")
	}
	ok, err := s.hasher.Compare(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("error comparing password: %w", err)
	}
	if !ok {
		return nil, model.NewError(model.ErrUnauthorized, "Invalid email or password")
	}
	return s.issue(user)
}

// Refresh issues a new access token from a valid refresh token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*model.TokenPair, error) {
	if refreshToken == "" {
		return nil, model.NewError(model.ErrUnauthorized, "No refresh token received")
	}
	claims, err := s.tokens.Verify(refreshToken, s.refreshSecret)
	if err != nil {
		return nil, fmt.Errorf("error verifying refresh token: %w", err)
	}
	user, err := s.repository.FindUserByID(ctx, claims.UserID, ports.IncludeDeleted)
	if errors.Is(err, model.ErrNotFound) {
		return nil, model.NewError(model.ErrUnauthorized, "User does not exist")
	}
	if err != nil {
		return nil, fmt.Errorf("error loading user of refresh token: %w", err)
	}
	if err := CheckUserState(user); err != nil {
		return nil, err
	}
	access, err := s.tokens.Sign(claimsOf(user), s.accessSecret, s.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("error signing access token: %w", err)
	}
	return &model.TokenPair{AccessToken: access}, nil
}

// ResetPassword replaces the password of the principal after checking the old one.
func (s *AuthService) ResetPassword(ctx context.Context, principal model.Principal, oldPassword, newPassword string) error {
	user, err := s.repository.FindUserByID(ctx, principal.UserID, ports.ExcludeDeleted)
	if errors.Is(err, model.ErrNotFound) {
		return model.NewError(model.ErrNotFound, "User not found")
	}
	if err != nil {
		return fmt.Errorf("error finding user: %w", err)
	}
	if !user.HasPassword() {
		return model.NewError(model.ErrValidation, "You have authenticated through Google and have no password to reset")
	}
	ok, err := s.hasher.Compare(oldPassword, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("error comparing password: %w", err)
	}
	if !ok {
		return model.NewError(model.ErrUnauthorized, "Old password does not match")
	}
	user.Password = newPassword
	return s.store.save(ctx, user)
}

// FederatedLoginURL returns the provider login URL carrying state.
func (s *AuthService) FederatedLoginURL(state string) (string, error) {
	if s.provider == nil {
		return "", model.NewError(model.ErrNotFound, "Federated login is not configured")
	}
	return s.provider.LoginURL(state), nil
}

// FederatedLogin completes a provider login. Unknown emails get a new verified USER account.
func (s *AuthService) FederatedLogin(ctx context.Context, code string) (*model.LoginResponse, error) {
	if s.provider == nil {
		return nil, model.NewError(model.ErrNotFound, "Federated login is not configured")
	}
	if code == "" {
		return nil, model.NewValidationError("Missing authorization code", model.ErrorSource{Path: "code", Message: "code is required"})
	}
	identity, err := s.provider.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("error exchanging authorization code: %w", err)
	}
	email := model.NormalizeEmail(identity.Email)
	if email == "" {
		return nil, model.NewError(model.ErrUnauthorized, "No email found")
	}

	user, err := s.repository.FindUserByEmail(ctx, email, ports.IncludeDeleted)
	switch {
	case errors.Is(err, model.ErrNotFound):
		user, err = s.createFederatedUser(ctx, identity, email)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("error finding user by email: %w", err)
	default:
		if err := CheckUserState(user); err != nil {
			return nil, err
		}
		if !user.HasProvider(identity.Provider) {
			user.Auths = append(user.Auths, model.AuthProvider{Provider: identity.Provider, ProviderID: identity.ProviderID})
			user.IsVerified = true
			if err := s.store.save(ctx, user); err != nil {
				return nil, err
			}
		}
	}
	return s.issue(user)
}

func (s *AuthService) createFederatedUser(ctx context.Context, identity *model.FederatedIdentity, email string) (*model.User, error) {
	name := strings.TrimSpace(identity.Name)
	if name == "" {
		name = email
	}
	user := &model.User{
		ID:          uuid.New(),
		Name:        name,
		Email:       email,
		Picture:     identity.Picture,
		Role:        model.RoleUser,
		ActiveState: model.StateActive,
		IsVerified:  true,
		Auths:       []model.AuthProvider{{Provider: identity.Provider, ProviderID: identity.ProviderID}},
	}
	if err := s.store.create(ctx, user); err != nil {
		return nil, err
	}
	log.WithField("user_id", user.ID).WithField("provider", identity.Provider).Info("federated user created")
	return user, nil
}

func (s *AuthService) issue(user *model.User) (*model.LoginResponse, error) {
	claims := claimsOf(user)
	access, err := s.tokens.Sign(claims, s.accessSecret, s.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("error signing access token: %w", err)
	}
	refresh, err := s.tokens.Sign(claims, s.refreshSecret, s.refreshTTL)
	if err != nil {
		return nil, fmt.Errorf("error signing refresh token: %w", err)
	}
	return &model.LoginResponse{
		Tokens: model.TokenPair{AccessToken: access, RefreshToken: refresh},
		User:   *user,
	}, nil
}

func claimsOf(user *model.User) model.Claims {
	return model.Claims{UserID: user.ID, Email: user.Email, Role: user.Role}
}
