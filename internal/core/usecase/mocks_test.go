package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rbroggi/parcelhub/internal/actors/memory"
	"github.com/rbroggi/parcelhub/internal/core/model"
	"github.com/stretchr/testify/require"
)

var (
	dummyTime = time.Now().Truncate(time.Second).UTC()
)

func dummyTimeFunc() time.Time {
	return dummyTime
}

// MockSender is a mock implementation of the EventSender interface.
type MockSender struct {
	mu        sync.Mutex
	Events    []model.ParcelEvent
	SendError error
}

func (m *MockSender) Send(_ context.Context, event model.ParcelEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, event)
	return m.SendError
}

// MockNotifier is a mock implementation of the Notifier interface.
type MockNotifier struct {
	Notifications []model.Notification
	NotifyError   error
}

func (m *MockNotifier) Notify(_ context.Context, n model.Notification) error {
	m.Notifications = append(m.Notifications, n)
	return m.NotifyError
}

// MockRecorder is a mock implementation of the TransitionRecorder interface.
type MockRecorder struct {
	Transitions []string
}

func (m *MockRecorder) RecordTransition(from, to model.ParcelStatus) {
	m.Transitions = append(m.Transitions, fmt.Sprintf("%s->%s", from, to))
}

// fakeHasher prefixes passwords instead of hashing them.
type fakeHasher struct{}

func (fakeHasher) Hash(password string) (string, error) {
	return "hashed:" + password, nil
}

func (fakeHasher) Compare(password, hash string) (bool, error) {
	return hash == "hashed:"+password, nil
}

// fakeTokens encodes the claims in clear text along with the secret.
type fakeTokens struct{}

func (fakeTokens) Sign(claims model.Claims, secret []byte, _ time.Duration) (string, error) {
	return strings.Join([]string{string(secret), claims.UserID.String(), claims.Email, string(claims.Role)}, "|"), nil
}

func (fakeTokens) Verify(token string, secret []byte) (*model.Claims, error) {
	parts := strings.Split(token, "|")
	if len(parts) != 4 || parts[0] != string(secret) {
		return nil, model.NewError(model.ErrUnauthorized, "invalid token")
	}
	id, err := uuid.Parse(parts[1])
	if err != nil {
		return nil, model.NewError(model.ErrUnauthorized, "invalid token")
	}
	return &model.Claims{UserID: id, Email: parts[2], Role: model.Role(parts[3])}, nil
}

// fixture seeds users in a memory store.
type fixture struct {
	t     *testing.T
	store *memory.Store
}

func newFixture(t *testing.T) *fixture {
	return &fixture{t: t, store: memory.NewStore(memory.WithNowFunc(dummyTimeFunc))}
}

func (f *fixture) user(name string, role model.Role, mutators ...func(*model.User)) *model.User {
	u := &model.User{
		ID:          uuid.New(),
		Name:        name,
		Email:       strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com",
		Phone:       "+8801700000000",
		Address:     name + " street 1",
		Role:        role,
		ActiveState: model.StateActive,
	}
	for _, m := range mutators {
		m(u)
	}
	require.NoError(f.t, f.store.SaveUser(context.Background(), u))
	return u
}

func principalOf(u *model.User) model.Principal {
	return model.Principal{UserID: u.ID, Email: u.Email, Role: u.Role}
}

func (f *fixture) parcelService(opts ...ParcelServiceOptArgs) *ParcelService {
	opts = append([]ParcelServiceOptArgs{WithNowFunc(dummyTimeFunc)}, opts...)
	return NewParcelService(ParcelServiceArgs{Parcels: f.store, Users: f.store}, opts...)
}

func (f *fixture) parcelQuery() *ParcelQuery {
	return NewParcelQuery(ParcelQueryArgs{Parcels: f.store, Users: f.store})
}

func (f *fixture) manualParcel(svc *ParcelService, sender *model.User) *model.Parcel {
	p, err := svc.CreateParcel(context.Background(), principalOf(sender), model.CreateParcelArgs{
		Recipient: model.RecipientInput{Name: "Walk In", Phone: "+8801711111111", Address: "Somewhere 2"},
		Weight:    1.5,
	})
	require.NoError(f.t, err)
	return p
}

func requireConsistent(t *testing.T, p *model.Parcel) {
	t.Helper()
	require.NotEmpty(t, p.StatusHistory)
	require.Equal(t, p.StatusHistory[len(p.StatusHistory)-1].Status, p.CurrentStatus)
	for i := 1; i < len(p.StatusHistory); i++ {
		require.False(t, p.StatusHistory[i].Timestamp.Before(p.StatusHistory[i-1].Timestamp))
	}
}
