package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rbroggi/parcelhub/internal/core/model"
	"github.com/rbroggi/parcelhub/internal/core/ports"
	log "github.com/sirupsen/logrus"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// UserServiceArgs contains the mandatory arguments for the UserService.
type UserServiceArgs struct {
	// Repository is the repository for persistance operations.
	Repository ports.UserRepository

	// Hasher hashes the user passwords.
	Hasher ports.PasswordHasher
}

// UserServiceOptArgs are the optional arguments for building a UserService
type UserServiceOptArgs = func(*UserService)

// WithUserNowFunc can be used to override the clock of the UserService. Useful for testing.
func WithUserNowFunc(nowFunc func() time.Time) UserServiceOptArgs {
	return func(s *UserService) {
		s.store.nowFunc = nowFunc
	}
}

// NewUserService creates a new UserService.
func NewUserService(args UserServiceArgs, optArgs ...UserServiceOptArgs) *UserService {
	s := &UserService{
		repository: args.Repository,
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

// UserService gathers the functionality around the user-lifecycle
type UserService struct {
	repository ports.UserRepository
	store      identityStore
}

// RegisterUser creates a credentials user. It returns model.ErrConflict if the email is already taken.
func (s *UserService) RegisterUser(ctx context.Context, args model.RegisterUserArgs) (*model.User, error) {
	role := args.Role
	if role == "" {
		role = model.RoleUser
	}
	switch role {
	case model.RoleUser, model.RoleDeliveryMan:
	case model.RoleAdmin:
		return nil, model.NewError(model.ErrForbidden, "Admin accounts cannot be self-registered")
	default:
		return nil, model.NewValidationError("Invalid role", model.ErrorSource{Path: "role", Message: fmt.Sprintf("%q is not a valid role", role)})
	}

	email := model.NormalizeEmail(args.Email)
	if err := s.ensureEmailAvailable(ctx, email); err != nil {
		return nil, err
	}

	user := &model.User{
		ID:          uuid.New(),
		Name:        strings.TrimSpace(args.Name),
		Email:       email,
		Password:    args.Password,
		Phone:       args.Phone,
		Address:     args.Address,
		Picture:     args.Picture,
		Role:        role,
		ActiveState: model.StateActive,
		Auths:       []model.AuthProvider{{Provider: model.ProviderCredentials, ProviderID: email}},
	}
	if err := s.store.create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// GetUser returns a non-deleted user.
func (s *UserService) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.repository.FindUserByID(ctx, id, ports.ExcludeDeleted)
	if errors.Is(err, model.ErrNotFound) {
		return nil, model.NewError(model.ErrNotFound, "User not found")
	}
	if err != nil {
		return nil, fmt.Errorf("error finding user: %w", err)
	}
	return user, nil
}

// ListUsers lists users matching the arguments.
func (s *UserService) ListUsers(ctx context.Context, args model.ListUsersArgs) (*model.ListUsersResponse, error) {
	page, limit := normalizePage(args.Page, args.Limit)
	visibility := ports.ExcludeDeleted
	if args.IncludeDeleted {
		visibility = ports.IncludeDeleted
	}
	res, err := s.repository.ListUsers(ctx, ports.ListUsersQuery{
		Roles:        args.Roles,
		ActiveStates: args.ActiveStates,
		Visibility:   visibility,
		Limit:        limit,
		Offset:       pageOffset(page, limit),
	})
	if err != nil {
		return nil, fmt.Errorf("error listing users on the repository: %w", err)
	}

	return &model.ListUsersResponse{
		Users: res.Users,
		Meta:  model.PageMeta{Page: page, Limit: limit, Total: res.Total},
	}, nil
}

// AssignRole changes the role of a user.
func (s *UserService) AssignRole(ctx context.Context, admin model.Principal, id uuid.UUID, role model.Role) (*model.User, error) {
	if err := Authorize(admin, model.RoleAdmin); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, model.NewValidationError("Invalid role", model.ErrorSource{Path: "role", Message: fmt.Sprintf("%q is not a valid role", role)})
	}
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	user.Role = role
	if err := s.store.save(ctx, user); err != nil {
		return nil, err
	}
	log.WithField("user_id", user.ID).WithField("role", role).WithField("admin_id", admin.UserID).Info("role assigned")
	return user, nil
}

// UpdateUserStatus changes the active state of a user. Admins cannot change their own state.
func (s *UserService) UpdateUserStatus(ctx context.Context, admin model.Principal, id uuid.UUID, state model.ActiveState) (*model.User, error) {
	if err := Authorize(admin, model.RoleAdmin); err != nil {
		return nil, err
	}
	if !state.Valid() {
		return nil, model.NewValidationError("Invalid status", model.ErrorSource{Path: "isActive", Message: fmt.Sprintf("%q is not a valid status", state)})
	}
	if admin.UserID == id {
		return nil, model.NewError(model.ErrForbidden, "You cannot change your own status")
	}
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	user.ActiveState = state
	if err := s.store.save(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// DeleteUser soft-deletes a user. Admins cannot delete themselves.
func (s *UserService) DeleteUser(ctx context.Context, admin model.Principal, id uuid.UUID) error {
	if err := Authorize(admin, model.RoleAdmin); err != nil {
		return err
	}
	if admin.UserID == id {
		return model.NewError(model.ErrForbidden, "You cannot delete yourself")
	}
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return err
	}
	user.IsDeleted = true
	return s.store.save(ctx, user)
}

// EnsureAdmin creates an admin with the given credentials unless a user with the email already exists.
// The boolean reports whether a user was created.
func (s *UserService) EnsureAdmin(ctx context.Context, email, password string) (*model.User, bool, error) {
	email = model.NormalizeEmail(email)
	existing, err := s.repository.FindUserByEmail(ctx, email, ports.IncludeDeleted)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return nil, false, fmt.Errorf("error looking up admin: %w", err)
	}
	if password == "" {
		return nil, false, model.NewValidationError("Admin password is required")
	}

	admin := &model.User{
		ID:          uuid.New(),
		Name:        "Super Admin",
		Email:       email,
		Password:    password,
		Role:        model.RoleAdmin,
		ActiveState: model.StateActive,
		IsVerified:  true,
		Auths:       []model.AuthProvider{{Provider: model.ProviderCredentials, ProviderID: email}},
	}
	if err := s.store.create(ctx, admin); err != nil {
		return nil, false, err
	}
	return admin, true, nil
}

func (s *UserService) ensureEmailAvailable(ctx context.Context, email string) error {
	_, err := s.repository.FindUserByEmail(ctx, email, ports.ExcludeDeleted)
	if err == nil {
		return model.NewError(model.ErrConflict, "User with this email already exists")
	}
	if !errors.Is(err, model.ErrNotFound) {
		return fmt.Errorf("error checking email availability: %w", err)
	}
	return nil
}

func normalizePage(page, limit uint32) (uint32, uint32) {
	if page == 0 {
		page = 1
	}
	if limit == 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}

// pageOffset is the number of items before page. Offsets past the uint32 range are clamped so the page comes back
// empty instead of wrapping to an earlier one.
func pageOffset(page, limit uint32) uint32 {
	offset := (uint64(page) - 1) * uint64(limit)
	if offset > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(offset)
}
