package mirror

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"priceoracle/pkg/types/prices"
	"priceoracle/pkg/types/pubsub"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

const DefaultPrefix = "oracle:price:"

var (
	ErrInvalidMirrorConfig = errors.New("invalid mirror config")
	ErrAlreadyStarted      = errors.New("mirror already started")
)

// Setter is the subset of redis.Cmdable the mirror writes through.
type Setter interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// Mirror copies every published price update into Redis so other services
// can read the latest quote without calling the API.
type Mirror struct {
	ctx        context.Context
	logger     *slog.Logger
	client     Setter
	subscriber pubsub.Subscriber
	ttl        time.Duration
	prefix     string

	mu      sync.Mutex
	started bool
	done    chan struct{}
}

type Option func(*Mirror)

func WithContext(ctx context.Context) Option {
	return func(m *Mirror) {
		m.ctx = ctx
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Mirror) {
		m.logger = l
	}
}

func WithClient(c Setter) Option {
	return func(m *Mirror) {
		m.client = c
	}
}

func WithSubscriber(s pubsub.Subscriber) Option {
	return func(m *Mirror) {
		m.subscriber = s
	}
}

func WithTTL(ttl time.Duration) Option {
	return func(m *Mirror) {
		m.ttl = ttl
	}
}

func WithPrefix(prefix string) Option {
	return func(m *Mirror) {
		m.prefix = prefix
	}
}

func (m *Mirror) IsValid() error {
	switch {
	case m.ctx == nil:
		return errors.Wrap(ErrInvalidMirrorConfig, "ctx cannot be nil")
	case m.logger == nil:
		return errors.Wrap(ErrInvalidMirrorConfig, "logger cannot be nil")
	case m.client == nil:
		return errors.Wrap(ErrInvalidMirrorConfig, "client cannot be nil")
	case m.subscriber == nil:
		return errors.Wrap(ErrInvalidMirrorConfig, "subscriber cannot be nil")
	case m.ttl < 0:
		return errors.Wrap(ErrInvalidMirrorConfig, "ttl cannot be negative")
	default:
		return nil
	}
}

func New(opts ...Option) (*Mirror, error) {
	m := &Mirror{
		prefix: DefaultPrefix,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if err := m.IsValid(); err != nil {
		return nil, err
	}
	return m, nil
}

// Key returns the Redis key holding the latest record for symbol.
func (m *Mirror) Key(symbol string) string {
	return m.prefix + symbol
}

// Start subscribes and mirrors updates until the context ends or the
// subscription is closed.
func (m *Mirror) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return ErrAlreadyStarted
	}
	m.started = true

	msgs, cancel := m.subscriber.Subscribe()
	go func() {
		defer close(m.done)
		defer cancel()
		for {
			select {
			case <-m.ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				if err := m.write(msg); err != nil {
					m.logger.Warn("failed to mirror price", "error", err)
				}
			}
		}
	}()
	return nil
}

// Done is closed once the mirror loop has exited.
func (m *Mirror) Done() <-chan struct{} {
	return m.done
}

func (m *Mirror) write(msg []byte) error {
	var update prices.PriceUpdateMessage
	if err := json.Unmarshal(msg, &update); err != nil {
		return errors.Wrap(err, "decode price update")
	}
	if update.Type != prices.MessagePriceUpdate || update.Payload.Symbol == "" {
		return nil
	}

	value, err := json.Marshal(update.Payload)
	if err != nil {
		return errors.Wrap(err, "encode price record")
	}

	key := m.Key(update.Payload.Symbol)
	if err := m.client.Set(m.ctx, key, value, m.ttl).Err(); err != nil {
		return errors.Wrapf(err, "set %s", key)
	}
	m.logger.Debug("mirrored price", "key", key, "price", update.Payload.Price)
	return nil
}
