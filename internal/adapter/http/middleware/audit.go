package middleware

import (
	"encoding/json"
	"time"

	"payment-webhook-engine/internal/core/domain"
	"payment-webhook-engine/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuditLog creates an audit middleware that records successful administrative
// writes. Routes are matched by their gin template so path parameters do not
// fragment the mapping.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only audit successful write operations (status 2xx)
		if c.Writer.Status() < 200 || c.Writer.Status() >= 300 {
			return
		}
		if c.Request.Method == "GET" || c.Request.Method == "HEAD" || c.Request.Method == "OPTIONS" {
			return
		}

		action, resourceType := mapRouteToAction(c.FullPath(), c.Request.Method)
		if action == "" {
			return
		}

		operatorID := ""
		if kid, exists := c.Get(CtxOperatorKeyID); exists {
			if s, ok := kid.(string); ok {
				operatorID = s
			}
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"status": c.Writer.Status(),
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			OperatorID:   operatorID,
			Action:       action,
			ResourceType: resourceType,
			ResourceID:   c.Param("id"),
			IPAddress:    c.ClientIP(),
			Details:      string(details),
			CreatedAt:    time.Now(),
		})
	}
}

func mapRouteToAction(route, method string) (domain.AuditAction, string) {
	switch {
	case route == "/api/v1/auth/token" && method == "POST":
		return domain.AuditActionTokenIssue, "session"
	case route == "/api/v1/webhooks" && method == "POST":
		return domain.AuditActionWebhookCreate, "webhook"
	case route == "/api/v1/webhooks/:id" && method == "PUT":
		return domain.AuditActionWebhookUpdate, "webhook"
	case route == "/api/v1/webhooks/:id" && method == "DELETE":
		return domain.AuditActionWebhookDelete, "webhook"
	case route == "/api/v1/webhooks/:id/enable" && method == "POST":
		return domain.AuditActionWebhookEnable, "webhook"
	case route == "/api/v1/webhooks/:id/disable" && method == "POST":
		return domain.AuditActionWebhookDisable, "webhook"
	case route == "/api/v1/deliveries/prune" && method == "POST":
		return domain.AuditActionHistoryPrune, "delivery_history"
	}
	return "", ""
}
