// Package service manages per-community settings.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"giveaway-bot-backend/internal/common/logger"
	"giveaway-bot-backend/internal/features/community/models"
	"giveaway-bot-backend/internal/features/community/repository"
)

type ConfigService interface {
	// GetOrCreate returns the community's config, creating an empty one
	// on first access.
	GetOrCreate(ctx context.Context, communityID int64) (*models.CommunityConfig, error)
	AddManagerRole(ctx context.Context, communityID, roleID int64) (*models.CommunityConfig, error)
	RemoveManagerRole(ctx context.Context, communityID, roleID int64) (*models.CommunityConfig, error)
	ListManagerRoles(ctx context.Context, communityID int64) ([]int64, error)
	// IsManager reports whether the user may manage others' giveaways:
	// either by holding a manager role or by being the creator.
	IsManager(ctx context.Context, communityID, creatorID, userID int64, roleIDs []int64) (bool, error)
}

type configService struct {
	repo  repository.ConfigRepository
	clock func() time.Time
	log   zerolog.Logger
}

func NewConfigService(repo repository.ConfigRepository) ConfigService {
	return &configService{
		repo:  repo,
		clock: time.Now,
		log:   logger.For("community-service"),
	}
}

func (s *configService) GetOrCreate(ctx context.Context, communityID int64) (*models.CommunityConfig, error) {
	cfg, err := s.repo.Get(ctx, communityID)
	if errors.Is(err, repository.ErrConfigNotFound) {
		cfg = models.NewCommunityConfig(communityID, s.clock())
		if err := s.repo.Save(ctx, cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return cfg, err
}

func (s *configService) AddManagerRole(ctx context.Context, communityID, roleID int64) (*models.CommunityConfig, error) {
	cfg, err := s.GetOrCreate(ctx, communityID)
	if err != nil {
		return nil, err
	}
	if !cfg.AddManagerRole(roleID) {
		return cfg, nil
	}
	if err := s.repo.Save(ctx, cfg); err != nil {
		return nil, err
	}
	s.log.Info().Int64("community_id", communityID).Int64("role_id", roleID).Msg("Manager role added")
	return cfg, nil
}

func (s *configService) RemoveManagerRole(ctx context.Context, communityID, roleID int64) (*models.CommunityConfig, error) {
	cfg, err := s.GetOrCreate(ctx, communityID)
	if err != nil {
		return nil, err
	}
	if !cfg.RemoveManagerRole(roleID) {
		return cfg, nil
	}
	if err := s.repo.Save(ctx, cfg); err != nil {
		return nil, err
	}
	s.log.Info().Int64("community_id", communityID).Int64("role_id", roleID).Msg("Manager role removed")
	return cfg, nil
}

func (s *configService) ListManagerRoles(ctx context.Context, communityID int64) ([]int64, error) {
	cfg, err := s.GetOrCreate(ctx, communityID)
	if err != nil {
		return nil, err
	}
	return cfg.ManagerRoleIDs, nil
}

func (s *configService) IsManager(ctx context.Context, communityID, creatorID, userID int64, roleIDs []int64) (bool, error) {
	if userID == creatorID {
		return true, nil
	}
	cfg, err := s.GetOrCreate(ctx, communityID)
	if err != nil {
		return false, err
	}
	for _, roleID := range roleIDs {
		if cfg.HasManagerRole(roleID) {
			return true, nil
		}
	}
	return false, nil
}
