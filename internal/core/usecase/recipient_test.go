package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rbroggi/parcelhub/internal/actors/memory"
	"github.com/rbroggi/parcelhub/internal/core/model"
	"github.com/rbroggi/parcelhub/internal/core/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingEmailLookup fails every lookup by email.
type failingEmailLookup struct {
	*memory.Store
}

func (failingEmailLookup) FindUserByEmail(context.Context, string, ports.Visibility) (*model.User, error) {
	return nil, errors.New("connection reset")
}

func TestRecipientResolver_Resolve(t *testing.T) {
	deleted := func(u *model.User) { u.IsDeleted = true }
	tests := []struct {
		name        string
		users       func(f *fixture) ports.UserRepository
		input       func(f *fixture) model.RecipientInput
		expectedErr error
		expected    func(t *testing.T, r model.Recipient)
	}{
		{
			name: "deleted user id is not found",
			input: func(f *fixture) model.RecipientInput {
				u := f.user("Gone Receiver", model.RoleUser, deleted)
				return model.RecipientInput{UserID: u.ID.String()}
			},
			expectedErr: model.ErrNotFound,
		},
		{
			name: "deleted user email is not linked",
			input: func(f *fixture) model.RecipientInput {
				u := f.user("Gone Receiver", model.RoleUser, deleted)
				return model.RecipientInput{Name: "Gone", Phone: "+8801712345678", Address: "Road 1", Email: u.Email}
			},
			expected: func(t *testing.T, r model.Recipient) {
				assert.Equal(t, uuid.Nil, r.UserID)
				assert.Equal(t, "gone.receiver@example.com", r.Email)
			},
		},
		{
			name: "failed email lookup leaves the recipient unlinked",
			users: func(f *fixture) ports.UserRepository {
				return failingEmailLookup{Store: f.store}
			},
			input: func(f *fixture) model.RecipientInput {
				u := f.user("Bob Receiver", model.RoleUser)
				return model.RecipientInput{Name: "Bob", Phone: "+8801712345678", Address: "Road 2", Email: u.Email}
			},
			expected: func(t *testing.T, r model.Recipient) {
				assert.Equal(t, uuid.Nil, r.UserID)
				assert.Equal(t, "Bob", r.Name)
			},
		},
		{
			name: "active user email is linked",
			input: func(f *fixture) model.RecipientInput {
				f.user("Bob Receiver", model.RoleUser)
				return model.RecipientInput{Name: "Bob", Phone: "+8801712345678", Address: "Road 2", Email: " BOB.Receiver@example.com "}
			},
			expected: func(t *testing.T, r model.Recipient) {
				assert.NotEqual(t, uuid.Nil, r.UserID)
				assert.Equal(t, "bob.receiver@example.com", r.Email)
			},
		},
		{
			name: "user id without contact details gets placeholders",
			input: func(f *fixture) model.RecipientInput {
				u := f.user("Bare Receiver", model.RoleUser, func(u *model.User) {
					u.Phone = ""
					u.Address = ""
				})
				return model.RecipientInput{UserID: u.ID.String()}
			},
			expected: func(t *testing.T, r model.Recipient) {
				assert.Equal(t, phonePlaceholder, r.Phone)
				assert.Equal(t, addressPlaceholder, r.Address)
			},
		},
		{
			name: "malformed user id",
			input: func(f *fixture) model.RecipientInput {
				return model.RecipientInput{UserID: "not-an-id"}
			},
			expectedErr: model.ErrValidation,
		},
		{
			name: "missing manual details",
			input: func(f *fixture) model.RecipientInput {
				return model.RecipientInput{Name: "Bob"}
			},
			expectedErr: model.ErrValidation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			var users ports.UserRepository = f.store
			if tt.users != nil {
				users = tt.users(f)
			}
			recipient, err := NewRecipientResolver(users).Resolve(context.Background(), tt.input(f))
			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
				return
			}
			require.NoError(t, err)
			tt.expected(t, recipient)
		})
	}
}
