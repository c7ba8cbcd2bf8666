package handler

import (
	"fmt"
	"strconv"

	"payment-webhook-engine/internal/adapter/http/dto"
	"payment-webhook-engine/internal/core/domain"
	"payment-webhook-engine/internal/core/ports"
	"payment-webhook-engine/pkg/apperror"
	"payment-webhook-engine/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// DeliveryHandler handles delivery history endpoints.
type DeliveryHandler struct {
	manager ports.WebhookManager
}

// NewDeliveryHandler creates a new DeliveryHandler.
func NewDeliveryHandler(manager ports.WebhookManager) *DeliveryHandler {
	return &DeliveryHandler{manager: manager}
}

// List handles GET /api/v1/deliveries. Filters combine with AND semantics;
// records come back most recent first.
func (h *DeliveryHandler) List(c *gin.Context) {
	filter := ports.DeliveryHistoryFilter{
		SubscriptionID: c.Query("subscription_id"),
		EventID:        c.Query("event_id"),
		Limit:          defaultHistoryLimit,
	}

	if s := c.Query("status"); s != "" {
		status, ok := domain.ParseDeliveryStatus(s)
		if !ok {
			response.Error(c, apperror.Validation(fmt.Sprintf("unknown status %q", s)))
			return
		}
		filter.Status = status
	}

	if l := c.Query("limit"); l != "" {
		limit, err := strconv.Atoi(l)
		if err != nil || limit < 1 {
			response.Error(c, apperror.Validation("limit must be a positive integer"))
			return
		}
		if limit > maxHistoryLimit {
			limit = maxHistoryLimit
		}
		filter.Limit = limit
	}

	recs, err := h.manager.GetDeliveryHistory(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{
		"deliveries": dto.NewDeliveryRecordResponses(recs),
		"count":      len(recs),
	})
}

// Prune handles POST /api/v1/deliveries/prune. Zero days clears everything.
func (h *DeliveryHandler) Prune(c *gin.Context) {
	var req dto.PruneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	removed, err := h.manager.ClearDeliveryHistory(c.Request.Context(), *req.OlderThanDays)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.PruneResponse{Removed: removed})
}
