package broadcast

import (
	"context"
	"log/slog"
	"sync"

	"priceoracle/pkg/types/pubsub"

	"github.com/pkg/errors"
)

const DefaultTopic = "prices"

var (
	_ pubsub.PubSub = (*Hub)(nil)

	ErrInvalidHubConfig = errors.New("invalid hub config")
	ErrHubClosed        = errors.New("hub closed")
)

// Hub fans every published payload out to all current subscribers. A
// subscriber whose buffer is full misses the message; Publish never blocks.
type Hub struct {
	topic  string
	buffer int
	ctx    context.Context
	logger *slog.Logger

	mu     sync.RWMutex
	subs   map[int]chan []byte
	nextID int
	closed bool
}

type Option func(*Hub)

func WithContext(ctx context.Context) Option {
	return func(h *Hub) {
		h.ctx = ctx
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) {
		h.logger = l
	}
}

func WithTopic(topic string) Option {
	return func(h *Hub) {
		h.topic = topic
	}
}

func WithBuffer(n int) Option {
	return func(h *Hub) {
		h.buffer = n
	}
}

func (h *Hub) IsValid() error {
	switch {
	case h.ctx == nil:
		return errors.Wrap(ErrInvalidHubConfig, "ctx cannot be nil")
	case h.logger == nil:
		return errors.Wrap(ErrInvalidHubConfig, "logger cannot be nil")
	case h.topic == "":
		return errors.Wrap(ErrInvalidHubConfig, "topic cannot be empty")
	case h.buffer < 0:
		return errors.Wrap(ErrInvalidHubConfig, "buffer cannot be negative")
	default:
		return nil
	}
}

func New(opts ...Option) (*Hub, error) {
	h := &Hub{
		topic:  DefaultTopic,
		buffer: 16,
		subs:   make(map[int]chan []byte),
	}

	for _, opt := range opts {
		opt(h)
	}

	if err := h.IsValid(); err != nil {
		return nil, err
	}

	go func() {
		<-h.ctx.Done()
		h.close()
	}()

	return h, nil
}

func (h *Hub) Publish(payload []byte) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return ErrHubClosed
	}

	for id, ch := range h.subs {
		select {
		case ch <- payload:
		default:
			h.logger.Warn("subscriber buffer full, dropping message", "topic", h.topic, "subscriber", id)
		}
	}
	return nil
}

// Subscribe registers a new subscriber. The returned cancel func unregisters
// it and closes the channel; the channel is also closed when the hub's
// context ends.
func (h *Hub) Subscribe() (<-chan []byte, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan []byte, h.buffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}

	id := h.nextID
	h.nextID++
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(c)
			}
		})
	}
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
