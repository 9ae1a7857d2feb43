package store

import (
	"context"
	"time"

	"github.com/go-authgate/grantd/internal/models"
)

func (s *Store) CreateAuthorizationCode(ctx context.Context, code *models.AuthorizationCode) error {
	return s.db.WithContext(ctx).Create(code).Error
}

// GetAuthorizationCodeByHash looks a code up by the SHA-256 hash of its value.
func (s *Store) GetAuthorizationCodeByHash(
	ctx context.Context,
	hash string,
) (*models.AuthorizationCode, error) {
	var code models.AuthorizationCode
	if err := s.db.WithContext(ctx).Where("code_hash = ?", hash).First(&code).Error; err != nil {
		return nil, notFound(err)
	}
	return &code, nil
}

// ConsumeAuthorizationCode marks the code consumed at now. The update only
// matches an unconsumed row, so of any number of concurrent callers exactly
// one succeeds; the rest get ErrAuthCodeAlreadyConsumed.
func (s *Store) ConsumeAuthorizationCode(ctx context.Context, id uint, now time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&models.AuthorizationCode{}).
		Where("id = ? AND consumed_at IS NULL", id).
		Update("consumed_at", now)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAuthCodeAlreadyConsumed
	}
	return nil
}

// DeleteExpiredAuthorizationCodes removes codes that expired before cutoff.
// Consumed codes are kept until then so replays are still recognised.
func (s *Store) DeleteExpiredAuthorizationCodes(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at < ?", cutoff).
		Delete(&models.AuthorizationCode{})
	return result.RowsAffected, result.Error
}
