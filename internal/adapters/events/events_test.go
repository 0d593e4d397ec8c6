package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DanielPopoola/vpos-gateway/internal/core/domain"
	"github.com/DanielPopoola/vpos-gateway/internal/testhelpers"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEvent() domain.TransactionCompleted {
	return domain.TransactionCompleted{
		TransactionID:  uuid.New(),
		Type:           domain.TypePayment,
		TrackingHandle: "req-1",
		Amount:         "1500.00",
		Mobile:         "923000000",
		Status:         domain.OutcomeAccepted,
		Source:         domain.SourceWebhook,
		CompletedAt:    time.Now().UTC(),
	}
}

func TestBus_Publish(t *testing.T) {
	t.Run("fans out in order", func(t *testing.T) {
		bus := NewBus(testhelpers.DiscardLogger())
		var got []string
		bus.Subscribe(func(_ context.Context, e domain.TransactionCompleted) error {
			got = append(got, "first:"+e.TrackingHandle)
			return nil
		})
		bus.Subscribe(func(_ context.Context, e domain.TransactionCompleted) error {
			got = append(got, "second:"+e.TrackingHandle)
			return nil
		})

		require.NoError(t, bus.Publish(context.Background(), sampleEvent()))
		assert.Equal(t, []string{"first:req-1", "second:req-1"}, got)
	})

	t.Run("failing handler does not stop others", func(t *testing.T) {
		bus := NewBus(testhelpers.DiscardLogger())
		boom := errors.New("boom")
		called := false
		bus.Subscribe(func(context.Context, domain.TransactionCompleted) error { return boom })
		bus.Subscribe(func(context.Context, domain.TransactionCompleted) error {
			called = true
			return nil
		})

		err := bus.Publish(context.Background(), sampleEvent())

		assert.ErrorIs(t, err, boom)
		assert.True(t, called)
	})

	t.Run("no subscribers", func(t *testing.T) {
		bus := NewBus(testhelpers.DiscardLogger())
		bus.Subscribe(LogHandler(testhelpers.DiscardLogger()))

		assert.NoError(t, bus.Publish(context.Background(), sampleEvent()))
	})
}

type fakeConn struct {
	msgs []*nats.Msg
	err  error
}

func (f *fakeConn) PublishMsg(m *nats.Msg) error {
	f.msgs = append(f.msgs, m)
	return f.err
}

func TestNatsPublisher_Publish(t *testing.T) {
	t.Run("publishes json with message id", func(t *testing.T) {
		conn := &fakeConn{}
		pub := NewNatsPublisher(conn, "vpos.transaction.completed")
		event := sampleEvent()

		require.NoError(t, pub.Handler()(context.Background(), event))

		require.Len(t, conn.msgs, 1)
		msg := conn.msgs[0]
		assert.Equal(t, "vpos.transaction.completed", msg.Subject)
		assert.Equal(t, event.TransactionID.String(), msg.Header.Get(nats.MsgIdHdr))

		var decoded domain.TransactionCompleted
		require.NoError(t, json.Unmarshal(msg.Data, &decoded))
		assert.Equal(t, event.TransactionID, decoded.TransactionID)
		assert.Equal(t, domain.OutcomeAccepted, decoded.Status)
		assert.Equal(t, "1500.00", decoded.Amount)
	})

	t.Run("wraps connection errors", func(t *testing.T) {
		conn := &fakeConn{err: nats.ErrConnectionClosed}
		pub := NewNatsPublisher(conn, "subject")

		err := pub.Publish(context.Background(), sampleEvent())

		assert.ErrorIs(t, err, nats.ErrConnectionClosed)
	})

	t.Run("respects cancelled context", func(t *testing.T) {
		conn := &fakeConn{}
		pub := NewNatsPublisher(conn, "subject")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := pub.Publish(ctx, sampleEvent())

		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, conn.msgs)
	})
}
