package broadcast

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newHub(t *testing.T, ctx context.Context, opts ...Option) *Hub {
	t.Helper()
	base := []Option{WithContext(ctx), WithLogger(discardLogger), WithTopic("prices")}
	h, err := New(append(base, opts...)...)
	require.NoError(t, err)
	return h
}

func TestHub_FanOut(t *testing.T) {
	h := newHub(t, t.Context())

	a, cancelA := h.Subscribe()
	defer cancelA()
	b, cancelB := h.Subscribe()
	defer cancelB()
	assert.Equal(t, 2, h.Subscribers())

	payload := []byte(`{"type":"price_update"}`)
	require.NoError(t, h.Publish(payload))

	for _, ch := range []<-chan []byte{a, b} {
		select {
		case msg := <-ch:
			assert.Equal(t, payload, msg)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive message")
		}
	}
}

func TestHub_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	h := newHub(t, t.Context(), WithBuffer(1))
	ch, cancel := h.Subscribe()
	defer cancel()

	require.NoError(t, h.Publish([]byte("1")))
	require.NoError(t, h.Publish([]byte("2")))

	assert.Equal(t, []byte("1"), <-ch)
	select {
	case msg := <-ch:
		t.Fatalf("unexpected message %s", msg)
	default:
	}
}

func TestHub_CancelUnsubscribes(t *testing.T) {
	h := newHub(t, t.Context())
	ch, cancel := h.Subscribe()
	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, h.Subscribers())
	assert.NoError(t, h.Publish([]byte("nobody listening")))
}

func TestHub_ContextCancellationClosesSubscribers(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	h := newHub(t, ctx)
	ch, unsubscribe := h.Subscribe()
	defer unsubscribe()

	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed after context cancel")
	}
	assert.Eventually(t, func() bool {
		return h.Publish([]byte("late")) != nil
	}, time.Second, 5*time.Millisecond)
}

func TestHub_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
	}{
		{"no context", []Option{WithLogger(discardLogger), WithTopic("prices")}},
		{"no logger", []Option{WithContext(context.Background()), WithTopic("prices")}},
		{"empty topic", []Option{WithContext(context.Background()), WithLogger(discardLogger), WithTopic("")}},
		{"negative buffer", []Option{WithContext(context.Background()), WithLogger(discardLogger), WithTopic("prices"), WithBuffer(-1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opts...)
			assert.ErrorIs(t, err, ErrInvalidHubConfig)
		})
	}
}

func TestHub_DefaultTopic(t *testing.T) {
	h, err := New(WithContext(t.Context()), WithLogger(discardLogger))
	require.NoError(t, err)
	assert.Equal(t, DefaultTopic, h.topic)

	h, err = New(WithContext(t.Context()), WithLogger(discardLogger), WithTopic("ledger"))
	require.NoError(t, err)
	assert.Equal(t, "ledger", h.topic)
}
