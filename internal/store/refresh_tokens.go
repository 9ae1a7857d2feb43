package store

import (
	"context"
	"time"

	"github.com/go-authgate/grantd/internal/models"

	"gorm.io/gorm"
)

func (s *Store) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	return s.db.WithContext(ctx).Create(token).Error
}

func (s *Store) GetRefreshTokenByHash(ctx context.Context, hash string) (*models.RefreshToken, error) {
	var token models.RefreshToken
	if err := s.db.WithContext(ctx).Where("token_hash = ?", hash).First(&token).Error; err != nil {
		return nil, notFound(err)
	}
	return &token, nil
}

// RotateRefreshToken marks parent rotated and stores next in one
// transaction. The status update is conditional on the parent still being
// active; a lost race returns ErrRefreshTokenNotActive and nothing is written.
func (s *Store) RotateRefreshToken(
	ctx context.Context,
	parentID string,
	next *models.RefreshToken,
	now time.Time,
) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.RefreshToken{}).
			Where("id = ? AND status = ?", parentID, models.RefreshTokenActive).
			Updates(map[string]any{
				"status":       models.RefreshTokenRotated,
				"last_used_at": now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrRefreshTokenNotActive
		}
		return tx.Create(next).Error
	})
}

// TouchRefreshToken records a use of a token that is kept across refreshes.
// Returns ErrRefreshTokenNotActive if the token was revoked meanwhile.
func (s *Store) TouchRefreshToken(ctx context.Context, id string, now time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&models.RefreshToken{}).
		Where("id = ? AND status = ?", id, models.RefreshTokenActive).
		Update("last_used_at", now)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRefreshTokenNotActive
	}
	return nil
}

// RevokeTokenFamily revokes every non-revoked token in the family and
// returns how many rows changed.
func (s *Store) RevokeTokenFamily(ctx context.Context, familyID string) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&models.RefreshToken{}).
		Where("family_id = ? AND status <> ?", familyID, models.RefreshTokenRevoked).
		Update("status", models.RefreshTokenRevoked)
	return result.RowsAffected, result.Error
}

// RevokeTokensByAuthorizationCode revokes every family started by the code.
func (s *Store) RevokeTokensByAuthorizationCode(ctx context.Context, codeID uint) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&models.RefreshToken{}).
		Where("authorization_code_id = ? AND status <> ?", codeID, models.RefreshTokenRevoked).
		Update("status", models.RefreshTokenRevoked)
	return result.RowsAffected, result.Error
}

// CountActiveRefreshTokens counts unexpired active tokens.
func (s *Store) CountActiveRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.RefreshToken{}).
		Where("status = ? AND expires_at > ?", models.RefreshTokenActive, now).
		Count(&count).Error
	return count, err
}

func (s *Store) DeleteExpiredRefreshTokens(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at < ?", cutoff).
		Delete(&models.RefreshToken{})
	return result.RowsAffected, result.Error
}
