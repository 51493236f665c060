package controller

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"priceoracle/internal/models"
	"priceoracle/internal/repo"
	"priceoracle/internal/service"
	"priceoracle/internal/store"
	"priceoracle/pkg/integrations/memcache"
	"priceoracle/pkg/types/cache"
	"priceoracle/pkg/types/prices"
	"priceoracle/pkg/types/pubsub"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	ServiceName    = "Stellar Price Oracle"
	ServiceVersion = "1.0.0"

	marketStatusKey = "dexscreener"
	marketStatusTTL = 15 * time.Second
)

// Oracle is the part of the oracle service the HTTP layer needs.
type Oracle interface {
	Status() service.RuntimeStatus
	Assets() []prices.AssetConfig
	Submit(ctx context.Context, in service.ManualSubmission) (prices.PriceRecord, error)
}

type MarketStatusProvider interface {
	MarketStatus(ctx context.Context) prices.MarketStatus
}

type SubmissionLister interface {
	ListSubmissions(filter repo.SubmissionFilter) ([]models.Submission, error)
}

type Controller struct {
	oracle      Oracle
	store       *store.Store
	market      MarketStatusProvider
	marketCache cache.Cache[string, prices.MarketStatus]
	submissions SubmissionLister
	subscriber  pubsub.Subscriber
	logger      *slog.Logger
	routes      func() gin.RoutesInfo
	upgrader    websocket.Upgrader
}

type Option func(*Controller)

func WithOracle(o Oracle) Option {
	return func(c *Controller) {
		c.oracle = o
	}
}

func WithStore(s *store.Store) Option {
	return func(c *Controller) {
		c.store = s
	}
}

func WithMarketStatus(m MarketStatusProvider) Option {
	return func(c *Controller) {
		c.market = m
	}
}

func WithSubmissions(s SubmissionLister) Option {
	return func(c *Controller) {
		c.submissions = s
	}
}

func WithSubscriber(s pubsub.Subscriber) Option {
	return func(c *Controller) {
		c.subscriber = s
	}
}

// WithRoutes supplies the mounted route table for the /status catalog,
// usually engine.Routes.
func WithRoutes(routes func() gin.RoutesInfo) Option {
	return func(c *Controller) {
		c.routes = routes
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

func (c *Controller) IsValid() error {
	switch {
	case c.oracle == nil:
		return ErrNilOracle
	case c.store == nil:
		return ErrNilStore
	case c.logger == nil:
		return ErrNilLogger
	default:
		return nil
	}
}

func New(opts ...Option) (*Controller, error) {
	c := &Controller{
		marketCache: memcache.New[string, prices.MarketStatus](memcache.WithTTL(marketStatusTTL)),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// the dashboard is served from another origin
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.IsValid(); err != nil {
		return nil, err
	}
	return c, nil
}
