package store

import (
	"context"
	"time"

	"github.com/go-authgate/grantd/internal/models"
)

// CreateAuditLogBatch inserts logs in batches of 100.
func (s *Store) CreateAuditLogBatch(ctx context.Context, logs []*models.AuditLog) error {
	if len(logs) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).CreateInBatches(logs, 100).Error
}

// DeleteOldAuditLogs removes entries whose event time is before olderThan.
func (s *Store) DeleteOldAuditLogs(ctx context.Context, olderThan time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("event_time < ?", olderThan).
		Delete(&models.AuditLog{})
	return result.RowsAffected, result.Error
}

// ListAuditLogs returns the most recent entries, newest first.
func (s *Store) ListAuditLogs(ctx context.Context, limit int) ([]models.AuditLog, error) {
	var logs []models.AuditLog
	err := s.db.WithContext(ctx).
		Order("event_time DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}
