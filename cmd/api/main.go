package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"payment-webhook-engine/config"
	httpHandler "payment-webhook-engine/internal/adapter/http/handler"
	"payment-webhook-engine/internal/adapter/storage/memory"
	pgStorage "payment-webhook-engine/internal/adapter/storage/postgres"
	redisStorage "payment-webhook-engine/internal/adapter/storage/redis"
	"payment-webhook-engine/internal/core/domain"
	"payment-webhook-engine/internal/core/ports"
	"payment-webhook-engine/internal/service"
	"payment-webhook-engine/pkg/logger"
	"payment-webhook-engine/pkg/metrics"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Payment Webhook Engine")

	ctx := context.Background()

	// Initialize Redis client (nonces, rate limits, idempotency)
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	healthCheckers := []ports.HealthChecker{redisStorage.NewHealthCheck(rdb)}

	// Optional PostgreSQL audit trail sink
	var auditSvc ports.AuditService
	if cfg.Database.Enabled {
		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer pool.Close()

		auditSvc = service.NewAuditService(pgStorage.NewAuditRepository(pool), log)
		healthCheckers = append(healthCheckers, pgStorage.NewHealthCheck(pool))
	} else {
		log.Info().Msg("Audit trail disabled: no database configured")
	}

	// In-memory engine state
	subs := memory.NewSubscriptionRegistry()
	history := memory.NewDeliveryHistoryStore()

	// Statically provisioned API clients
	emitters := make([]*domain.EmitterClient, 0, len(cfg.Emitters))
	for _, e := range cfg.Emitters {
		emitters = append(emitters, &domain.EmitterClient{
			Name:         e.Name,
			AccessKey:    e.AccessKey,
			SecretKeyEnc: e.SecretKeyEnc,
		})
	}
	operators := make([]*domain.Operator, 0, len(cfg.Operators))
	for _, o := range cfg.Operators {
		operators = append(operators, &domain.Operator{
			KeyID:      o.KeyID,
			APIKeyHash: o.APIKeyHash,
		})
	}
	clients := memory.NewClientDirectory(emitters, operators)
	log.Info().
		Int("emitters", len(emitters)).
		Int("operators", len(operators)).
		Msg("API clients provisioned")

	// Initialize Redis stores
	idempotencyCache := redisStorage.NewIdempotencyCache(rdb)
	nonceStore := redisStorage.NewNonceStore(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Initialize core services
	encSvc, err := service.NewAESEncryptionService(cfg.Security.EncryptionKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize encryption service")
	}
	sigSvc := service.NewHMACSignatureService()
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	authSvc := service.NewAuthService(clients, hashSvc, tokenSvc)

	// Prometheus instruments
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.NewMetrics(prometheus.NewRegistry())
	}

	// Delivery engine
	dispatcher := service.NewDeliveryDispatcher(sigSvc, cfg.Engine.ResponseBodyLimit, log)
	manager := service.NewWebhookManager(subs, history, dispatcher, service.EngineDefaults{
		Timeout:        cfg.Engine.DeliveryTimeout,
		MaxRetries:     cfg.Engine.MaxRetries,
		RetryDelayBase: cfg.Engine.RetryDelayBase,
		RetryDelayMax:  cfg.Engine.RetryDelayMax,
	}, m, log)
	if err := manager.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start webhook engine")
	}
	emitter := service.NewEventEmitter(manager, log)

	// Load OpenAPI spec for Swagger UI
	if specBytes, err := os.ReadFile("docs/api/openapi.yaml"); err == nil {
		httpHandler.SetSwaggerSpec(specBytes)
		log.Info().Msg("OpenAPI spec loaded for Swagger UI at /swagger")
	} else {
		log.Warn().Err(err).Msg("OpenAPI spec not found, Swagger UI will be unavailable")
	}

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:           authSvc,
		Manager:           manager,
		Emitter:           emitter,
		Clients:           clients,
		EncSvc:            encSvc,
		SigSvc:            sigSvc,
		NonceStore:        nonceStore,
		TokenSvc:          tokenSvc,
		IdemCache:         idempotencyCache,
		RateLimitStore:    rateLimitStore,
		HealthCheckers:    healthCheckers,
		AuditSvc:          auditSvc,
		Metrics:           m,
		TimestampDrift:    cfg.Security.TimestampDrift,
		NonceTTL:          cfg.Security.NonceTTL,
		IdempotencyTTL:    cfg.Emit.IdempotencyTTL,
		DefaultMaxRetries: cfg.Engine.MaxRetries,
		Logger:            log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Drain in-flight deliveries after the listener stops accepting work.
	if err := manager.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Webhook engine shutdown failed")
	}

	log.Info().Msg("Server exited")
}
