package handler

import (
	"time"

	"payment-webhook-engine/internal/adapter/http/middleware"
	redisStore "payment-webhook-engine/internal/adapter/storage/redis"
	"payment-webhook-engine/internal/core/ports"
	"payment-webhook-engine/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc ports.AuthService
	Manager ports.WebhookManager
	Emitter ports.EventEmitter

	Clients    ports.ClientStore
	EncSvc     ports.EncryptionService
	SigSvc     ports.SignatureService
	NonceStore ports.NonceStore
	TokenSvc   ports.TokenService
	IdemCache  ports.IdempotencyCache

	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	AuditSvc       ports.AuditService // nil = audit logging disabled
	Metrics        *metrics.Metrics   // nil = metrics disabled

	TimestampDrift    time.Duration
	NonceTTL          time.Duration
	IdempotencyTTL    time.Duration
	DefaultMaxRetries int

	Logger zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	if deps.Metrics != nil {
		r.Use(metrics.HTTPMiddleware(deps.Metrics))
	}

	// Audit logging (after response)
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	// Liveness and readiness
	r.GET("/health", Liveness)
	r.GET("/health/ready", HealthCheck(deps.HealthCheckers...))

	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	// Swagger documentation
	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec)
	}

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// API v1 routes
	v1 := r.Group("/api/v1")

	// --- Token exchange (no auth) ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	auth := v1.Group("/auth")
	{
		auth.POST("/token", rl("auth"), authHandler.IssueToken)
	}

	// --- JWT-authenticated routes (operator API) ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	webhookHandler := NewWebhookHandler(deps.Manager, deps.DefaultMaxRetries)
	deliveryHandler := NewDeliveryHandler(deps.Manager)

	webhooks := v1.Group("/webhooks", jwtAuth)
	{
		webhooks.POST("", rl("admin"), webhookHandler.Create)
		webhooks.GET("", rl("admin"), webhookHandler.List)
		webhooks.GET("/:id", rl("admin"), webhookHandler.Get)
		webhooks.PUT("/:id", rl("admin"), webhookHandler.Upsert)
		webhooks.DELETE("/:id", rl("admin"), webhookHandler.Delete)
		webhooks.POST("/:id/enable", rl("admin"), webhookHandler.Enable)
		webhooks.POST("/:id/disable", rl("admin"), webhookHandler.Disable)
		webhooks.GET("/:id/stats", rl("admin"), webhookHandler.Stats)
	}

	deliveries := v1.Group("/deliveries", jwtAuth)
	{
		deliveries.GET("", rl("admin"), deliveryHandler.List)
		deliveries.POST("/prune", rl("admin"), deliveryHandler.Prune)
	}

	// --- HMAC-authenticated routes (emitter API) ---
	hmacAuth := middleware.HMACAuth(deps.Clients, deps.EncSvc, deps.SigSvc, deps.NonceStore, deps.TimestampDrift, deps.NonceTTL, deps.Logger)
	eventHandler := NewEventHandler(deps.Emitter, deps.IdemCache, deps.IdempotencyTTL, deps.Logger)

	events := v1.Group("/events", hmacAuth)
	{
		events.POST("/auth-result", rl("emit"), eventHandler.EmitAuthResult)
		events.POST("/settlement", rl("emit"), eventHandler.EmitSettlement)
		events.POST("/chargeback", rl("emit"), eventHandler.EmitChargeback)
		events.POST("/loyalty", rl("emit"), eventHandler.EmitLoyaltyEvent)
	}

	return r
}
