package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited administrative action.
type AuditAction string

const (
	AuditActionTokenIssue     AuditAction = "TOKEN_ISSUE"
	AuditActionWebhookCreate  AuditAction = "WEBHOOK_CREATE"
	AuditActionWebhookUpdate  AuditAction = "WEBHOOK_UPDATE"
	AuditActionWebhookDelete  AuditAction = "WEBHOOK_DELETE"
	AuditActionWebhookEnable  AuditAction = "WEBHOOK_ENABLE"
	AuditActionWebhookDisable AuditAction = "WEBHOOK_DISABLE"
	AuditActionHistoryPrune   AuditAction = "HISTORY_PRUNE"
)

// AuditLog records a single audited administrative action.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	OperatorID   string      `json:"operator_id,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}
