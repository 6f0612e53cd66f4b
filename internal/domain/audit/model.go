package audit

import (
	"time"

	"gorm.io/datatypes"
)

const (
	ActionStatusChange = "status_change"
	ActionDelete       = "delete"
	ActionMessage      = "message"

	ResourceSubmission = "submission"
)

// AuditLog records one reviewer action against a submission.
type AuditLog struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	Actor        string         `json:"actor" gorm:"size:128;index"`
	ActorEmail   string         `json:"actorEmail"`
	Action       string         `json:"action" gorm:"size:32;index"`
	ResourceType string         `json:"resourceType" gorm:"size:32"`
	ResourceID   string         `json:"resourceId" gorm:"size:64;index"`
	OldData      datatypes.JSON `json:"oldData,omitempty"`
	NewData      datatypes.JSON `json:"newData,omitempty"`
	IPAddress    string         `json:"ipAddress"`
	UserAgent    string         `json:"userAgent"`
	Description  string         `json:"description"`
	CreatedAt    time.Time      `json:"createdAt" gorm:"index"`
}
