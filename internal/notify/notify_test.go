package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/JonMunkholm/bulkimport/internal/core"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestNewMessage_UsesImportContext(t *testing.T) {
	ctx := core.WithImportContext(context.Background(), core.ImportContext{ProjectID: "p", SessionID: "s"})

	m := NewMessage(ctx, "5 processes imported", core.KindSuccess)

	assert.NotEmpty(t, m.ID)
	assert.Equal(t, "p", m.ProjectID)
	assert.Equal(t, "s", m.SessionID)
	assert.Equal(t, core.KindSuccess, m.Kind)
	assert.False(t, m.Time.IsZero())
}

func TestHub_FanOut(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := NewHub()
	a, unsubA := h.Subscribe()
	b, unsubB := h.Subscribe()
	defer unsubB()
	assert.Equal(t, 2, h.Subscribers())

	require.NoError(t, h.Notify(context.Background(), "CSV template downloaded successfully", core.KindSuccess))

	assert.Equal(t, "CSV template downloaded successfully", (<-a).Message)
	assert.Equal(t, "CSV template downloaded successfully", (<-b).Message)

	unsubA()
	unsubA()
	_, ok := <-a
	assert.False(t, ok)
	assert.Equal(t, 1, h.Subscribers())
}

func TestHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	h := NewHub()
	_, unsub := h.Subscribe()
	defer unsub()

	for range 100 {
		h.Publish(Message{Message: "x"})
	}
}

func TestHub_Close(t *testing.T) {
	h := NewHub()
	ch, _ := h.Subscribe()
	h.Close()

	_, ok := <-ch
	assert.False(t, ok)

	late, _ := h.Subscribe()
	_, ok = <-late
	assert.False(t, ok)
}

func TestMulti_JoinsErrors(t *testing.T) {
	var mu sync.Mutex
	var got []string
	ok := core.NotifierFunc(func(_ context.Context, msg string, _ core.NotificationKind) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, msg)
		return nil
	})
	boom := errors.New("boom")
	failing := core.NotifierFunc(func(context.Context, string, core.NotificationKind) error { return boom })

	err := Multi{ok, nil, failing, ok}.Notify(context.Background(), "hi", core.KindError)

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"hi", "hi"}, got)
	assert.NoError(t, LogNotifier{}.Notify(context.Background(), "hi", core.KindSuccess))
}

type fakeChannel struct {
	published []amqp.Publishing
	exchange  string
	key       string
	err       error
	closed    bool
}

func (c *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if c.err != nil {
		return c.err
	}
	c.exchange, c.key = exchange, key
	c.published = append(c.published, msg)
	return nil
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

func TestAMQPPublisher_Notify(t *testing.T) {
	ch := &fakeChannel{}
	p := newAMQPPublisher(ch, "dashboard", "notifications.import")

	ctx := core.WithImportContext(context.Background(), core.ImportContext{SessionID: "sess-9"})
	require.NoError(t, p.Notify(ctx, "Import failed: network error", core.KindError))

	require.Len(t, ch.published, 1)
	pub := ch.published[0]
	assert.Equal(t, "dashboard", ch.exchange)
	assert.Equal(t, "notifications.import", ch.key)
	assert.Equal(t, amqp.Persistent, pub.DeliveryMode)
	assert.Equal(t, "application/json", pub.ContentType)
	assert.Equal(t, "error", pub.Type)

	var m Message
	require.NoError(t, json.Unmarshal(pub.Body, &m))
	assert.Equal(t, "Import failed: network error", m.Message)
	assert.Equal(t, "sess-9", m.SessionID)
	assert.Equal(t, pub.MessageId, m.ID)

	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}

func TestAMQPPublisher_PublishError(t *testing.T) {
	p := newAMQPPublisher(&fakeChannel{err: amqp.ErrClosed}, "dashboard", "k")

	err := p.Notify(context.Background(), "x", core.KindSuccess)
	assert.ErrorIs(t, err, amqp.ErrClosed)
}
