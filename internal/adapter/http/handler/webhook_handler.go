package handler

import (
	"strings"
	"time"

	"payment-webhook-engine/internal/adapter/http/dto"
	"payment-webhook-engine/internal/core/domain"
	"payment-webhook-engine/internal/core/ports"
	"payment-webhook-engine/pkg/apperror"
	"payment-webhook-engine/pkg/response"

	"github.com/gin-gonic/gin"
)

// WebhookHandler handles subscription management endpoints.
type WebhookHandler struct {
	manager ports.WebhookManager

	// MaxRetries cannot be defaulted downstream because zero is a legal
	// explicit value, so the handler resolves it from the request pointer.
	defaultMaxRetries int
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(manager ports.WebhookManager, defaultMaxRetries int) *WebhookHandler {
	return &WebhookHandler{manager: manager, defaultMaxRetries: defaultMaxRetries}
}

// buildConfig maps a validated request onto a subscription config. Omitted
// policy fields stay zero so the engine defaults apply.
func (h *WebhookHandler) buildConfig(req dto.WebhookRequest) domain.SubscriptionConfig {
	types := make([]domain.EventType, len(req.EventTypes))
	for i, s := range req.EventTypes {
		types[i] = domain.EventType(s)
	}

	cfg := domain.SubscriptionConfig{
		ID:         strings.TrimSpace(req.ID),
		URL:        strings.TrimSpace(req.URL),
		Secret:     req.Secret,
		EventTypes: types,
		MaxRetries: h.defaultMaxRetries,
		Enabled:    true,
	}
	if req.TimeoutMS != nil {
		cfg.Timeout = time.Duration(*req.TimeoutMS) * time.Millisecond
	}
	if req.MaxRetries != nil {
		cfg.MaxRetries = *req.MaxRetries
	}
	if req.RetryDelayBaseMS != nil {
		cfg.RetryDelayBase = time.Duration(*req.RetryDelayBaseMS) * time.Millisecond
	}
	if req.RetryDelayMaxMS != nil {
		cfg.RetryDelayMax = time.Duration(*req.RetryDelayMaxMS) * time.Millisecond
	}
	if req.Enabled != nil {
		cfg.Enabled = *req.Enabled
	}
	return cfg
}

// Create handles POST /api/v1/webhooks. Re-registering an existing id
// replaces the subscription and answers 200 instead of 201.
func (h *WebhookHandler) Create(c *gin.Context) {
	var req dto.WebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	sub, created, err := h.manager.AddWebhook(c.Request.Context(), h.buildConfig(req))
	if err != nil {
		response.Error(c, err)
		return
	}

	if created {
		response.Created(c, dto.NewWebhookResponse(sub))
		return
	}
	response.OK(c, dto.NewWebhookResponse(sub))
}

// Upsert handles PUT /api/v1/webhooks/:id. The path id wins; a body id that
// disagrees with it is rejected.
func (h *WebhookHandler) Upsert(c *gin.Context) {
	id := c.Param("id")

	var req dto.WebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	if req.ID != "" && req.ID != id {
		response.Error(c, apperror.Validation("body id does not match path id"))
		return
	}

	cfg := h.buildConfig(req)
	cfg.ID = id

	sub, created, err := h.manager.AddWebhook(c.Request.Context(), cfg)
	if err != nil {
		response.Error(c, err)
		return
	}

	if created {
		response.Created(c, dto.NewWebhookResponse(sub))
		return
	}
	response.OK(c, dto.NewWebhookResponse(sub))
}

// List handles GET /api/v1/webhooks.
func (h *WebhookHandler) List(c *gin.Context) {
	subs, err := h.manager.ListWebhooks(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.WebhookResponse, 0, len(subs))
	for _, sub := range subs {
		items = append(items, dto.NewWebhookResponse(sub))
	}

	response.OK(c, gin.H{
		"webhooks": items,
		"count":    len(items),
	})
}

// Get handles GET /api/v1/webhooks/:id.
func (h *WebhookHandler) Get(c *gin.Context) {
	sub, err := h.manager.GetWebhook(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewWebhookResponse(sub))
}

// Delete handles DELETE /api/v1/webhooks/:id. Removal is idempotent: deleting
// an unknown id still answers 204.
func (h *WebhookHandler) Delete(c *gin.Context) {
	if _, err := h.manager.RemoveWebhook(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Enable handles POST /api/v1/webhooks/:id/enable.
func (h *WebhookHandler) Enable(c *gin.Context) {
	h.setEnabled(c, true)
}

// Disable handles POST /api/v1/webhooks/:id/disable.
func (h *WebhookHandler) Disable(c *gin.Context) {
	h.setEnabled(c, false)
}

func (h *WebhookHandler) setEnabled(c *gin.Context, enabled bool) {
	sub, err := h.manager.SetWebhookEnabled(c.Request.Context(), c.Param("id"), enabled)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewWebhookResponse(sub))
}

// Stats handles GET /api/v1/webhooks/:id/stats.
func (h *WebhookHandler) Stats(c *gin.Context) {
	stats, err := h.manager.GetWebhookStats(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewStatsResponse(stats))
}
