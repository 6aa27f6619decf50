package repository

import (
	"context"
	"errors"
	"time"

	"safehaven-service/internal/domain/webhook"
	safehaven_errors "safehaven-service/pkg/errors"

	"gorm.io/gorm"
)

type PostgresWebhookEventRepository struct {
	db *gorm.DB
}

func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &PostgresWebhookEventRepository{db: db}
}

func (r *PostgresWebhookEventRepository) Create(ctx context.Context, e *webhook.EventLog) error {
	res := r.db.WithContext(ctx).Create(e)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return safehaven_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresWebhookEventRepository) GetByEventID(ctx context.Context, eventID string) (webhook.EventLog, error) {
	var e webhook.EventLog
	err := r.db.WithContext(ctx).Where("event_id = ?", eventID).First(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return webhook.EventLog{}, safehaven_errors.ErrNotFound
		}
		return webhook.EventLog{}, err
	}
	return e, nil
}

func (r *PostgresWebhookEventRepository) Update(ctx context.Context, e *webhook.EventLog) error {
	res := r.db.WithContext(ctx).Save(e)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return safehaven_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresWebhookEventRepository) CountByProcessingStatus(ctx context.Context, status webhook.ProcessingStatus) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&webhook.EventLog{}).
		Where("processing_status = ?", status).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *PostgresWebhookEventRepository) FindFailedReadyForRetry(ctx context.Context, maxAttempts int, failedBefore time.Time, limit int) ([]webhook.EventLog, error) {
	var events []webhook.EventLog
	q := r.db.WithContext(ctx).
		Where("processing_status = ? AND attempt_count < ? AND processed_at <= ?",
			webhook.ProcessingFailed, maxAttempts, failedBefore)
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Order("processed_at ASC").Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *PostgresWebhookEventRepository) FindStaleProcessing(ctx context.Context, startedBefore time.Time, limit int) ([]webhook.EventLog, error) {
	var events []webhook.EventLog
	q := r.db.WithContext(ctx).
		Where("processing_status = ? AND processing_started_at <= ?",
			webhook.ProcessingInProgress, startedBefore)
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Order("processing_started_at ASC").Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *PostgresWebhookEventRepository) FindByTimeRange(ctx context.Context, start, end time.Time, limit int) ([]webhook.EventLog, error) {
	var events []webhook.EventLog
	q := r.db.WithContext(ctx).
		Where("created_at BETWEEN ? AND ?", start, end)
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Order("created_at ASC").Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}
