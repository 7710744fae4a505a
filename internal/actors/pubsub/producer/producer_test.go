package producer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/google/uuid"
	"github.com/rbroggi/parcelhub/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func newTopic(t *testing.T) (*pstest.Server, *pubsub.Topic) {
	t.Helper()
	ctx := context.Background()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.Dial(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	client, err := pubsub.NewClient(ctx, "parcelhub-test", option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	topic, err := client.CreateTopic(ctx, "parcel-events")
	require.NoError(t, err)
	t.Cleanup(topic.Stop)
	return srv, topic
}

func TestNewProducer(t *testing.T) {
	_, err := NewProducer(nil)
	assert.Error(t, err)
}

func TestProducer_Send(t *testing.T) {
	srv, topic := newTopic(t)
	producer, err := NewProducer(topic)
	require.NoError(t, err)

	event := model.ParcelEvent{
		ID:         uuid.NewString(),
		Type:       model.EventParcelAssigned,
		Actor:      uuid.New(),
		OccurredAt: time.Date(2024, time.January, 1, 10, 0, 0, 0, time.UTC),
		Parcel: model.Parcel{
			ID:             uuid.New(),
			TrackingNumber: "TRK-20240101-ABC123",
			CurrentStatus:  model.StatusPickedUp,
		},
	}
	require.NoError(t, producer.Send(context.Background(), event))

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, string(model.EventParcelAssigned), msgs[0].Attributes[AttrEventType])
	assert.Equal(t, "TRK-20240101-ABC123", msgs[0].Attributes[AttrTrackingNumber])

	var got model.ParcelEvent
	require.NoError(t, json.Unmarshal(msgs[0].Data, &got))
	assert.Equal(t, event.ID, got.ID)
	assert.Equal(t, event.Actor, got.Actor)
	assert.Equal(t, event.Parcel.ID, got.Parcel.ID)
	assert.True(t, event.OccurredAt.Equal(got.OccurredAt))
}

func TestProducer_SendCancelled(t *testing.T) {
	_, topic := newTopic(t)
	producer, err := NewProducer(topic)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, producer.Send(ctx, model.ParcelEvent{Type: model.EventParcelCreated}))
}
