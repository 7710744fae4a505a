// Package memory holds in-process implementations of the repositories. They are used by the tests and by the
// "memory" storage driver.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rbroggi/parcelhub/internal/core/model"
	"github.com/rbroggi/parcelhub/internal/core/ports"
)

// Store keeps users and parcels in maps guarded by a single lock.
type Store struct {
	mu      sync.RWMutex
	users   map[uuid.UUID]model.User
	parcels map[uuid.UUID]*model.Parcel
	nowFunc func() time.Time
}

// StoreOptArgs are the optional arguments for building a Store
type StoreOptArgs = func(*Store)

// WithNowFunc can be used to override the nowFunc. Useful for testing.
func WithNowFunc(nowFunc func() time.Time) StoreOptArgs {
	return func(s *Store) {
		s.nowFunc = nowFunc
	}
}

// NewStore creates an empty Store.
func NewStore(optArgs ...StoreOptArgs) *Store {
	s := &Store{
		users:   make(map[uuid.UUID]model.User),
		parcels: make(map[uuid.UUID]*model.Parcel),
		nowFunc: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range optArgs {
		opt(s)
	}
	return s
}

// SaveUser will save the user in the store.
func (s *Store) SaveUser(_ context.Context, user *model.User) error {
	if user == nil {
		return errors.New("nil user passed to save method")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if _, exists := s.users[user.ID]; exists {
		return model.NewError(model.ErrConflict, "User already exists")
	}
	if s.emailTaken(user.Email, user.ID) {
		return model.NewError(model.ErrConflict, "User with this email already exists")
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.nowFunc()
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = user.CreatedAt
	}
	s.users[user.ID] = cloneUser(*user)
	return nil
}

// UpdateUser will update user. It returns model.ErrNotFound if the input user does not exist.
func (s *Store) UpdateUser(_ context.Context, user *model.User) error {
	if user == nil {
		return errors.New("nil user passed to update method")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[user.ID]
	if !ok {
		return model.ErrNotFound
	}
	if !user.IsDeleted && s.emailTaken(user.Email, user.ID) {
		return model.NewError(model.ErrConflict, "User with this email already exists")
	}
	updated := cloneUser(*user)
	updated.CreatedAt = existing.CreatedAt
	updated.Password = ""
	s.users[user.ID] = updated
	return nil
}

// FindUserByID returns the user with the given id.
func (s *Store) FindUserByID(_ context.Context, id uuid.UUID, visibility ports.Visibility) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok || !visible(user, visibility) {
		return nil, model.ErrNotFound
	}
	u := cloneUser(user)
	return &u, nil
}

// FindUserByEmail returns the user with the given email. Non-deleted users win over deleted ones.
func (s *Store) FindUserByEmail(_ context.Context, email string, visibility ports.Visibility) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *model.User
	for _, user := range s.users {
		if user.Email != email || !visible(user, visibility) {
			continue
		}
		if found == nil || (found.IsDeleted && !user.IsDeleted) {
			u := cloneUser(user)
			found = &u
		}
	}
	if found == nil {
		return nil, model.ErrNotFound
	}
	return found, nil
}

// FindUsersByIDs returns the visible users among ids.
func (s *Store) FindUsersByIDs(_ context.Context, ids []uuid.UUID, visibility ports.Visibility) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]model.User, 0, len(ids))
	for _, id := range ids {
		if user, ok := s.users[id]; ok && visible(user, visibility) {
			users = append(users, cloneUser(user))
		}
	}
	return users, nil
}

// ListUsers list users matching the parameters in input, oldest first.
func (s *Store) ListUsers(_ context.Context, query ports.ListUsersQuery) (*ports.ListUsersResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matching []model.User
	for _, user := range s.users {
		if !visible(user, query.Visibility) {
			continue
		}
		if len(query.Roles) > 0 && !containsRole(query.Roles, user.Role) {
			continue
		}
		if len(query.ActiveStates) > 0 && !containsState(query.ActiveStates, user.ActiveState) {
			continue
		}
		matching = append(matching, cloneUser(user))
	}
	sort.Slice(matching, func(i, j int) bool {
		if matching[i].CreatedAt.Equal(matching[j].CreatedAt) {
			return matching[i].ID.String() < matching[j].ID.String()
		}
		return matching[i].CreatedAt.Before(matching[j].CreatedAt)
	})
	total := int64(len(matching))
	return &ports.ListUsersResult{Users: paginate(matching, query.Limit, query.Offset), Total: total}, nil
}

// SaveParcel will save the parcel in the store.
func (s *Store) SaveParcel(_ context.Context, parcel *model.Parcel) error {
	if parcel == nil {
		return errors.New("nil parcel passed to save method")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if parcel.ID == uuid.Nil {
		parcel.ID = uuid.New()
	}
	if _, exists := s.parcels[parcel.ID]; exists {
		return model.NewError(model.ErrConflict, "Parcel already exists")
	}
	for _, p := range s.parcels {
		if p.TrackingNumber == parcel.TrackingNumber {
			return model.NewError(model.ErrConflict, "Tracking number already exists")
		}
	}
	if parcel.CreatedAt.IsZero() {
		parcel.CreatedAt = s.nowFunc()
	}
	if parcel.UpdatedAt.IsZero() {
		parcel.UpdatedAt = parcel.CreatedAt
	}
	s.parcels[parcel.ID] = parcel.Clone()
	return nil
}

// FindParcelByID returns the parcel with the given id.
func (s *Store) FindParcelByID(_ context.Context, id uuid.UUID) (*model.Parcel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	parcel, ok := s.parcels[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return parcel.Clone(), nil
}

// FindParcelByTrackingNumber returns the parcel with the given tracking number.
func (s *Store) FindParcelByTrackingNumber(_ context.Context, trackingNumber string) (*model.Parcel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, parcel := range s.parcels {
		if parcel.TrackingNumber == trackingNumber {
			return parcel.Clone(), nil
		}
	}
	return nil, model.ErrNotFound
}

// AppendParcelStatus appends the new history entries if the stored history still has knownHistoryLen entries.
func (s *Store) AppendParcelStatus(_ context.Context, parcel *model.Parcel, knownHistoryLen int) error {
	if parcel == nil {
		return errors.New("nil parcel passed to append method")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.parcels[parcel.ID]
	if !ok {
		return model.ErrNotFound
	}
	if len(stored.StatusHistory) != knownHistoryLen || len(parcel.StatusHistory) < knownHistoryLen {
		return model.ErrConflict
	}
	updated := stored.Clone()
	updated.StatusHistory = append(updated.StatusHistory, parcel.StatusHistory[knownHistoryLen:]...)
	updated.CurrentStatus = parcel.CurrentStatus
	updated.DeliveryMan = parcel.DeliveryMan
	updated.IsBlocked = parcel.IsBlocked
	updated.UpdatedAt = parcel.UpdatedAt
	s.parcels[parcel.ID] = updated
	return nil
}

// ListParcels list parcels matching the parameters in input, newest first.
func (s *Store) ListParcels(_ context.Context, query ports.ListParcelsQuery) (*ports.ListParcelsResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matching []model.Parcel
	for _, p := range s.parcels {
		if query.Sender != uuid.Nil && p.Sender != query.Sender {
			continue
		}
		if query.RecipientUserID != uuid.Nil && p.Recipient.UserID != query.RecipientUserID {
			continue
		}
		if query.DeliveryMan != uuid.Nil && p.DeliveryMan != query.DeliveryMan {
			continue
		}
		if len(query.Statuses) > 0 && !containsStatus(query.Statuses, p.CurrentStatus) {
			continue
		}
		if !query.CreatedAfter.IsZero() && p.CreatedAt.Before(query.CreatedAfter) {
			continue
		}
		if !query.CreatedBefore.IsZero() && p.CreatedAt.After(query.CreatedBefore) {
			continue
		}
		matching = append(matching, *p.Clone())
	}
	sort.Slice(matching, func(i, j int) bool {
		if matching[i].CreatedAt.Equal(matching[j].CreatedAt) {
			return matching[i].TrackingNumber > matching[j].TrackingNumber
		}
		return matching[i].CreatedAt.After(matching[j].CreatedAt)
	})
	total := int64(len(matching))
	return &ports.ListParcelsResult{Parcels: paginate(matching, query.Limit, query.Offset), Total: total}, nil
}

func (s *Store) emailTaken(email string, except uuid.UUID) bool {
	for id, u := range s.users {
		if id != except && !u.IsDeleted && u.Email == email {
			return true
		}
	}
	return false
}

func visible(user model.User, visibility ports.Visibility) bool {
	return visibility == ports.IncludeDeleted || !user.IsDeleted
}

func cloneUser(u model.User) model.User {
	u.Auths = append([]model.AuthProvider(nil), u.Auths...)
	return u
}

func paginate[T any](items []T, limit, offset uint32) []T {
	if int(offset) >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit != 0 && int(limit) < len(items) {
		items = items[:limit]
	}
	return items
}

func containsRole(roles []model.Role, r model.Role) bool {
	for _, x := range roles {
		if x == r {
			return true
		}
	}
	return false
}

func containsState(states []model.ActiveState, s model.ActiveState) bool {
	for _, x := range states {
		if x == s {
			return true
		}
	}
	return false
}

func containsStatus(statuses []model.ParcelStatus, s model.ParcelStatus) bool {
	for _, x := range statuses {
		if x == s {
			return true
		}
	}
	return false
}
