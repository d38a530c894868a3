package repository

import (
	"context"
	"errors"

	"giveaway-bot-backend/internal/features/community/models"
)

var ErrConfigNotFound = errors.New("community config not found")

// ConfigRepository stores per-community settings.
type ConfigRepository interface {
	Get(ctx context.Context, communityID int64) (*models.CommunityConfig, error)
	Save(ctx context.Context, cfg *models.CommunityConfig) error
}
