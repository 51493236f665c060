package handler

import (
	"errors"
	"log/slog"

	"priceoracle/internal/controller"
	"priceoracle/internal/store"
	"priceoracle/pkg/types/pubsub"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ErrNilEngine = errors.New("engine is required")
	ErrNilOracle = errors.New("oracle is required")
	ErrNilStore  = errors.New("store is required")
	ErrNilLogger = errors.New("logger is required")
)

type Handler struct {
	engine      *gin.Engine
	logger      *slog.Logger
	oracle      controller.Oracle
	store       *store.Store
	market      controller.MarketStatusProvider
	submissions controller.SubmissionLister
	subscriber  pubsub.Subscriber
	gatherer    prometheus.Gatherer
}

func (h *Handler) IsValid() error {
	switch {
	case h.engine == nil:
		return ErrNilEngine
	case h.oracle == nil:
		return ErrNilOracle
	case h.store == nil:
		return ErrNilStore
	case h.logger == nil:
		return ErrNilLogger
	default:
		return nil
	}
}

type Option func(*Handler)

func WithEngine(engine *gin.Engine) Option {
	return func(h *Handler) {
		h.engine = engine
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = l
	}
}

func WithOracle(o controller.Oracle) Option {
	return func(h *Handler) {
		h.oracle = o
	}
}

func WithStore(s *store.Store) Option {
	return func(h *Handler) {
		h.store = s
	}
}

func WithMarketStatus(m controller.MarketStatusProvider) Option {
	return func(h *Handler) {
		h.market = m
	}
}

func WithSubmissions(s controller.SubmissionLister) Option {
	return func(h *Handler) {
		h.submissions = s
	}
}

func WithSubscriber(s pubsub.Subscriber) Option {
	return func(h *Handler) {
		h.subscriber = s
	}
}

// WithGatherer exposes the given registry on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(h *Handler) {
		h.gatherer = g
	}
}

func New(opts ...Option) (*Handler, error) {
	h := &Handler{}
	for _, opt := range opts {
		opt(h)
	}
	if err := h.IsValid(); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Handler) Setup() error {
	ctrl, err := controller.New(
		controller.WithOracle(h.oracle),
		controller.WithStore(h.store),
		controller.WithMarketStatus(h.market),
		controller.WithSubmissions(h.submissions),
		controller.WithSubscriber(h.subscriber),
		controller.WithLogger(h.logger),
		controller.WithRoutes(h.engine.Routes),
	)
	if err != nil {
		return err
	}

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AddAllowHeaders(RequestIDHeader)
	corsCfg.AddExposeHeaders(RequestIDHeader)

	h.engine.Use(
		RequestID(),
		RequestLogger(h.logger),
		cors.New(corsCfg),
	)

	h.engine.GET("/health", ctrl.Health)
	h.engine.GET("/status", ctrl.Status)

	prices := h.engine.Group("/prices")
	if h.subscriber != nil {
		prices.GET("/stream", ctrl.StreamPrices)
	}
	prices.GET("", ctrl.ListPrices)
	prices.GET("/:symbol", ctrl.GetPrice)

	h.engine.GET("/history/:symbol", ctrl.GetHistory)
	h.engine.POST("/submit", ctrl.SubmitPrice)
	h.engine.GET("/submissions", ctrl.ListSubmissions)

	if h.subscriber != nil {
		h.engine.GET("/ws", ctrl.PriceSocket)
	}
	if h.gatherer != nil {
		h.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))
	}

	return nil
}
