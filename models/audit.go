package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/salon_backend/config"
	"github.com/mmdatafocus/salon_backend/utils"
)

// Audit publish statuses for AuditLog.PublishStatus.
const (
	AuditPublishStatusPending    = "PENDING"
	AuditPublishStatusProcessing = "PROCESSING"
	AuditPublishStatusSent       = "SENT"
	AuditPublishStatusFailed     = "FAILED"
	AuditPublishStatusDead       = "DEAD"
	// rows written while publishing is disabled are never picked up
	AuditPublishStatusSkipped = "SKIPPED"
)

const AuditListLimit = 100

// AuditLog is the append-only activity trail. Rows double as the publish outbox
// when AUDIT_PUBSUB_TOPIC is configured.
type AuditLog struct {
	ID               int           `gorm:"primary_key" json:"id"`
	Category         AuditCategory `gorm:"size:30;not null;index" json:"category"`
	Detail           string        `gorm:"type:text" json:"detail"`
	UserName         string        `gorm:"size:100" json:"user_name"`
	CorrelationId    string        `gorm:"size:64" json:"correlation_id"`
	PublishStatus    string        `gorm:"size:20;not null;default:SKIPPED;index" json:"-"`
	PublishAttempts  int           `gorm:"not null;default:0" json:"-"`
	NextAttemptAt    *time.Time    `json:"-"`
	LockedAt         *time.Time    `json:"-"`
	LockedBy         *string       `gorm:"size:64" json:"-"`
	PublishedAt      *time.Time    `json:"-"`
	PubSubMessageId  *string       `gorm:"size:100" json:"-"`
	LastPublishError *string       `gorm:"type:text" json:"-"`
	CreatedAt        time.Time     `gorm:"autoCreateTime;index" json:"created_at"`
}

func (a AuditLog) ToMessage() config.AuditMessage {
	return config.AuditMessage{
		ID:            a.ID,
		Category:      string(a.Category),
		Detail:        a.Detail,
		UserName:      a.UserName,
		CorrelationId: a.CorrelationId,
		RecordedAt:    a.CreatedAt,
	}
}

func newAuditLog(ctx context.Context, category AuditCategory, detail string) AuditLog {
	userName, _ := utils.GetUserNameFromContext(ctx)
	if userName == "" {
		userName, _ = utils.GetUsernameFromContext(ctx)
	}
	if userName == "" {
		userName = "system"
	}
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	status := AuditPublishStatusSkipped
	if config.AuditPublishEnabled() {
		status = AuditPublishStatusPending
	}
	return AuditLog{
		Category:      category,
		Detail:        detail,
		UserName:      userName,
		CorrelationId: correlationId,
		PublishStatus: status,
	}
}

// RecordAudit appends an audit row. Failures are logged and never reach the caller.
func RecordAudit(ctx context.Context, category AuditCategory, detail string) {
	db := config.GetDB()
	if db == nil {
		return
	}
	row := newAuditLog(ctx, category, detail)
	// a cancelled request still leaves its trail
	if err := db.WithContext(context.WithoutCancel(ctx)).Create(&row).Error; err != nil {
		config.LogError(config.GetLogger(), "models", "RecordAudit", string(category), detail, err)
	}
}

// ListAudit returns the most recent rows, newest first.
func ListAudit(ctx context.Context, category AuditCategory, limit int) ([]*AuditLog, error) {
	if limit <= 0 || limit > AuditListLimit {
		limit = AuditListLimit
	}
	db := config.GetDB()
	var results []*AuditLog
	q := db.WithContext(ctx).Order("id DESC").Limit(limit)
	if category != "" {
		q = q.Where("category = ?", category)
	}
	if err := q.Find(&results).Error; err != nil {
		return nil, utils.ClassifyStorageError(err)
	}
	return results, nil
}
