package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"priceoracle/internal/config"
	"priceoracle/internal/handler"
	"priceoracle/internal/metrics"
	"priceoracle/internal/mirror"
	"priceoracle/internal/repo"
	"priceoracle/internal/service"
	"priceoracle/internal/store"
	"priceoracle/pkg/database"
	"priceoracle/pkg/integrations/broadcast"
	"priceoracle/pkg/integrations/dexscreener"
	"priceoracle/pkg/integrations/ratelimit"
	"priceoracle/pkg/integrations/stellar"
	"priceoracle/pkg/logging"
	repoTypes "priceoracle/pkg/types/repo"
	"priceoracle/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const shutdownTimeout = 5 * time.Second

func main() {
	utils.LoadEnv()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger, logCloser := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	defer logCloser.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(database.WithLogger(logger), database.WithPath(cfg.DBPath))
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer db.Close()

	repository, err := repo.New(db.Get())
	if err != nil {
		log.Fatal("Failed to create repository:", err)
	}
	if err := repository.Migrate(); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}
	var submissions repoTypes.SubmissionRepository = repository

	limiter, err := ratelimit.New(cfg.RequestInterval())
	if err != nil {
		log.Fatal("Failed to create rate limiter:", err)
	}
	market := dexscreener.New(limiter)
	market.BaseURL = cfg.DexScreenerURL

	ledger, err := stellar.New(
		stellar.WithBaseURL(cfg.StellarRPCURL),
		stellar.WithNetwork(cfg.StellarNetwork),
		stellar.WithCredential(cfg.ProviderSecret),
		stellar.WithContractID(cfg.ContractID),
		stellar.WithLogger(logger),
	)
	if err != nil {
		log.Fatal("Failed to create stellar client:", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	oracleMetrics := metrics.New(registry)

	hub, err := broadcast.New(
		broadcast.WithContext(ctx),
		broadcast.WithLogger(logger),
		broadcast.WithTopic("prices"),
	)
	if err != nil {
		log.Fatal("Failed to create broadcast hub:", err)
	}

	resolver, err := service.NewResolver(
		service.WithResolverFetcher(market),
		service.WithResolverLogger(logger),
		service.WithResolverMetrics(oracleMetrics),
	)
	if err != nil {
		log.Fatal("Failed to create resolver:", err)
	}

	priceStore := store.New()
	oracle, err := service.NewOracleService(
		service.WithOracleContext(ctx),
		service.WithOracleLogger(logger),
		service.WithOracleAssets(cfg.Assets),
		service.WithOracleResolver(resolver),
		service.WithOracleStore(priceStore),
		service.WithOracleLedger(ledger),
		service.WithOracleRecorder(submissions),
		service.WithOraclePublisher(hub),
		service.WithOracleMetrics(oracleMetrics),
		service.WithOracleInterval(cfg.UpdateInterval()),
	)
	if err != nil {
		log.Fatal("Failed to create oracle service:", err)
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()

		m, err := mirror.New(
			mirror.WithContext(ctx),
			mirror.WithLogger(logger),
			mirror.WithClient(rdb),
			mirror.WithSubscriber(hub),
			mirror.WithTTL(10*cfg.UpdateInterval()),
		)
		if err != nil {
			log.Fatal("Failed to create redis mirror:", err)
		}
		if err := m.Start(); err != nil {
			log.Fatal("Failed to start redis mirror:", err)
		}
		logger.Info("mirroring prices to redis", "addr", cfg.RedisAddr)
	}

	if err := oracle.Start(); err != nil {
		log.Fatal("Failed to start oracle service:", err)
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	h, err := handler.New(
		handler.WithEngine(r),
		handler.WithLogger(logger),
		handler.WithOracle(oracle),
		handler.WithStore(priceStore),
		handler.WithMarketStatus(market),
		handler.WithSubmissions(submissions),
		handler.WithSubscriber(hub),
		handler.WithGatherer(registry),
	)
	if err != nil {
		log.Fatal("Failed to create handler:", err)
	}
	if err := h.Setup(); err != nil {
		log.Fatal("Failed to setup routes:", err)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		logger.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		if err := oracle.Stop(shutdownCtx); err != nil {
			logger.Warn("oracle did not stop cleanly", "error", err)
		}
		cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", "error", err)
		}
	}()

	logger.Info("starting price oracle",
		"port", cfg.Port,
		"assets", config.Symbols(cfg.Assets),
		"interval", cfg.UpdateInterval(),
		"network", cfg.StellarNetwork,
		"ledger", ledger.Configured(),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("Failed to start server:", err)
	}
}
