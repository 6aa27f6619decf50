package webhook

import (
	"time"

	"github.com/google/uuid"
)

// ProcessingStatus tracks the lifecycle of an event log row.
type ProcessingStatus string

const (
	ProcessingPending    ProcessingStatus = "PENDING"
	ProcessingInProgress ProcessingStatus = "PROCESSING"
	ProcessingSuccess    ProcessingStatus = "SUCCESS"
	ProcessingFailed     ProcessingStatus = "FAILED"
	ProcessingDuplicate  ProcessingStatus = "DUPLICATE"
)

// Terminal reports whether no further processing transitions are allowed.
func (s ProcessingStatus) Terminal() bool {
	return s == ProcessingSuccess || s == ProcessingFailed || s == ProcessingDuplicate
}

// SignatureStatus tracks the result of signature verification for a row.
type SignatureStatus string

const (
	SignaturePending SignatureStatus = "PENDING"
	SignatureValid   SignatureStatus = "VALID"
	SignatureInvalid SignatureStatus = "INVALID"
	SignatureSkipped SignatureStatus = "SKIPPED"
)

// EventLog is the durable record of every webhook delivery, one row per
// SafeHaven event id. The unique index on event_id is the deduplication
// authority: concurrent inserts for the same id cannot both succeed.
type EventLog struct {
	ID                  uuid.UUID        `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	EventID             string           `gorm:"type:varchar(255);not null;uniqueIndex:uk_webhook_event_id"`
	EventType           string           `gorm:"type:varchar(100);not null;index"`
	IdentityMappingID   *uuid.UUID       `gorm:"type:uuid;index"`
	Signature           string           `gorm:"type:varchar(512)"`
	SignatureStatus     SignatureStatus  `gorm:"type:varchar(20);not null;default:'PENDING'"`
	ProcessingStatus    ProcessingStatus `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	Payload             string           `gorm:"type:text;not null"`
	Headers             string           `gorm:"type:text"`
	ErrorMessage        string           `gorm:"type:text"`
	AttemptCount        int              `gorm:"not null;default:0"`
	CreatedAt           time.Time        `gorm:"not null;default:now();index"`
	ProcessingStartedAt *time.Time
	ProcessedAt         *time.Time `gorm:"index"`
}

func (EventLog) TableName() string {
	return "webhook_event_logs"
}

// MarkProcessingStarted records the start of a processing attempt.
func (e *EventLog) MarkProcessingStarted() {
	now := time.Now()
	e.ProcessingStatus = ProcessingInProgress
	e.ProcessingStartedAt = &now
	e.AttemptCount++
}

// MarkSuccess records a completed processing run.
func (e *EventLog) MarkSuccess() {
	now := time.Now()
	e.ProcessingStatus = ProcessingSuccess
	e.ProcessedAt = &now
}

// MarkFailed records a terminal failure with its cause.
func (e *EventLog) MarkFailed(errorMessage string) {
	now := time.Now()
	e.ProcessingStatus = ProcessingFailed
	e.ErrorMessage = errorMessage
	e.ProcessedAt = &now
}

// MarkDuplicate records that a later delivery collided with this row.
func (e *EventLog) MarkDuplicate() {
	now := time.Now()
	e.ProcessingStatus = ProcessingDuplicate
	e.ProcessedAt = &now
}

// ResetForRetry rewinds a failed or stale row so the sweep can resubmit it.
// The attempt count is preserved so the cap keeps applying across retries.
func (e *EventLog) ResetForRetry() {
	e.ProcessingStatus = ProcessingPending
	e.ProcessingStartedAt = nil
	e.ProcessedAt = nil
	e.ErrorMessage = ""
}
