package handler

import (
	"encoding/json"
	"time"

	"payment-webhook-engine/internal/adapter/http/dto"
	"payment-webhook-engine/internal/adapter/http/middleware"
	"payment-webhook-engine/internal/core/domain"
	"payment-webhook-engine/internal/core/ports"
	"payment-webhook-engine/pkg/apperror"
	"payment-webhook-engine/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// EventHandler handles event emission endpoints. Each endpoint resolves the
// fan-out's first attempts synchronously and answers 202; retries continue in
// the background. A repeated Idempotency-Key replays the original response
// instead of emitting again.
type EventHandler struct {
	emitter   ports.EventEmitter
	idemCache ports.IdempotencyCache
	idemTTL   time.Duration
	log       zerolog.Logger
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(emitter ports.EventEmitter, idemCache ports.IdempotencyCache, idemTTL time.Duration, log zerolog.Logger) *EventHandler {
	return &EventHandler{emitter: emitter, idemCache: idemCache, idemTTL: idemTTL, log: log}
}

// replay answers from the idempotency cache when the request carries a known
// Idempotency-Key. Returns the cache key to store a fresh response under
// (empty when the request opted out) and whether a cached response was sent.
// Cache failures degrade to emitting again rather than refusing the event.
func (h *EventHandler) replay(c *gin.Context) (string, bool) {
	idemKey := c.GetHeader("Idempotency-Key")
	if idemKey == "" || h.idemCache == nil {
		return "", false
	}

	accessKey := ""
	if ak, exists := c.Get(middleware.CtxAccessKey); exists {
		accessKey, _ = ak.(string)
	}
	// Keys are scoped per emitter so clients cannot collide.
	cacheKey := accessKey + ":" + idemKey

	cached, err := h.idemCache.Get(c.Request.Context(), cacheKey)
	if err != nil {
		h.log.Warn().Err(err).Str("key", cacheKey).Msg("idempotency cache read failed")
		return cacheKey, false
	}
	if cached != nil {
		response.Accepted(c, json.RawMessage(cached))
		return cacheKey, true
	}
	return cacheKey, false
}

// finish renders the emission response and remembers it for replay.
func (h *EventHandler) finish(c *gin.Context, cacheKey string, records []*domain.DeliveryAttempt) {
	resp := dto.EmissionResponse{Records: dto.NewDeliveryRecordResponses(records)}

	if cacheKey != "" && h.idemCache != nil {
		if body, err := json.Marshal(resp); err == nil {
			if err := h.idemCache.Set(c.Request.Context(), cacheKey, body, h.idemTTL); err != nil {
				h.log.Warn().Err(err).Str("key", cacheKey).Msg("idempotency cache write failed")
			}
		}
	}

	response.Accepted(c, resp)
}

// EmitAuthResult handles POST /api/v1/events/auth-result.
func (h *EventHandler) EmitAuthResult(c *gin.Context) {
	var req dto.AuthResultEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	cacheKey, replayed := h.replay(c)
	if replayed {
		return
	}

	records, err := h.emitter.EmitAuthResult(c.Request.Context(), req.TransactionID, req.Decision, *req.Score, req.Metadata)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.finish(c, cacheKey, records)
}

// EmitSettlement handles POST /api/v1/events/settlement.
func (h *EventHandler) EmitSettlement(c *gin.Context) {
	var req dto.SettlementEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	cacheKey, replayed := h.replay(c)
	if replayed {
		return
	}

	records, err := h.emitter.EmitSettlement(c.Request.Context(), req.TransactionID, req.Amount, req.Currency, req.Status, req.Metadata)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.finish(c, cacheKey, records)
}

// EmitChargeback handles POST /api/v1/events/chargeback.
func (h *EventHandler) EmitChargeback(c *gin.Context) {
	var req dto.ChargebackEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	cacheKey, replayed := h.replay(c)
	if replayed {
		return
	}

	records, err := h.emitter.EmitChargeback(c.Request.Context(), req.TransactionID, req.ChargebackID, req.Reason, req.Amount, req.Metadata)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.finish(c, cacheKey, records)
}

// EmitLoyaltyEvent handles POST /api/v1/events/loyalty.
func (h *EventHandler) EmitLoyaltyEvent(c *gin.Context) {
	var req dto.LoyaltyEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	cacheKey, replayed := h.replay(c)
	if replayed {
		return
	}

	records, err := h.emitter.EmitLoyaltyEvent(c.Request.Context(), req.CustomerID, req.EventType, *req.PointsChange, req.Metadata)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.finish(c, cacheKey, records)
}
