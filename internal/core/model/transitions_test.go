package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allStatuses = []ParcelStatus{StatusPending, StatusPickedUp, StatusInTransit, StatusDelivered, StatusCancelled, StatusReturned}

func TestCheckTransition(t *testing.T) {
	allowed := map[[2]ParcelStatus]TransitionKind{
		{StatusPending, StatusPickedUp}:    ViaAssignment,
		{StatusPending, StatusCancelled}:   ViaCancellation,
		{StatusPickedUp, StatusInTransit}:  ViaDeliveryUpdate,
		{StatusPickedUp, StatusDelivered}:  ViaDeliveryUpdate,
		{StatusInTransit, StatusDelivered}: ViaDeliveryUpdate,
		{StatusInTransit, StatusReturned}:  ViaDeliveryUpdate,
	}
	for _, from := range allStatuses {
		for _, to := range allStatuses {
			for _, via := range []TransitionKind{ViaAssignment, ViaCancellation, ViaDeliveryUpdate} {
				err := CheckTransition(from, to, via)
				if kind, ok := allowed[[2]ParcelStatus{from, to}]; ok && kind == via {
					assert.NoError(t, err, "%s -> %s via %s", from, to, via)
					continue
				}
				assert.ErrorIs(t, err, ErrIllegalTransition, "%s -> %s via %s", from, to, via)
			}
		}
	}
}

func TestNextStatuses(t *testing.T) {
	assert.Equal(t, []ParcelStatus{StatusInTransit, StatusDelivered}, NextStatuses(StatusPickedUp, ViaDeliveryUpdate))
	assert.Equal(t, []ParcelStatus{StatusCancelled}, NextStatuses(StatusPending, ViaCancellation))
	assert.Empty(t, NextStatuses(StatusDelivered, ViaDeliveryUpdate))
}

func TestParcel_Record(t *testing.T) {
	now := time.Now().UTC()
	p := &Parcel{}
	p.Record(StatusLog{Status: StatusPending, Timestamp: now})
	p.Record(StatusLog{Status: StatusPickedUp, Timestamp: now.Add(-time.Minute)})

	require.Len(t, p.StatusHistory, 2)
	assert.Equal(t, StatusPickedUp, p.CurrentStatus)
	assert.Equal(t, now, p.StatusHistory[1].Timestamp, "timestamps never go backwards")
	assert.Equal(t, now, p.UpdatedAt)
}

func TestParcel_IsVisibleTo(t *testing.T) {
	sender, recipient, dm, stranger := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	p := &Parcel{Sender: sender, Recipient: Recipient{UserID: recipient}, DeliveryMan: dm}

	assert.True(t, p.IsVisibleTo(Principal{UserID: stranger, Role: RoleAdmin}))
	assert.True(t, p.IsVisibleTo(Principal{UserID: sender, Role: RoleUser}))
	assert.True(t, p.IsVisibleTo(Principal{UserID: recipient, Role: RoleUser}))
	assert.True(t, p.IsVisibleTo(Principal{UserID: dm, Role: RoleDeliveryMan}))
	assert.False(t, p.IsVisibleTo(Principal{UserID: stranger, Role: RoleUser}))
	assert.False(t, p.IsVisibleTo(Principal{UserID: dm, Role: RoleUser}))
	assert.False(t, p.IsVisibleTo(Principal{UserID: sender, Role: Role("ROOT")}))

	unlinked := &Parcel{Sender: sender}
	assert.False(t, unlinked.IsVisibleTo(Principal{UserID: uuid.Nil, Role: RoleUser}))
}
