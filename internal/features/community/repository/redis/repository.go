package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"giveaway-bot-backend/internal/features/community/models"
	"giveaway-bot-backend/internal/features/community/repository"
)

const keyPrefixConfig = "community:config:"

type Repository struct {
	client *redis.Client
}

func NewRepository(client *redis.Client) *Repository {
	return &Repository{client: client}
}

func configKey(communityID int64) string {
	return fmt.Sprintf("%s%d", keyPrefixConfig, communityID)
}

func (r *Repository) Get(ctx context.Context, communityID int64) (*models.CommunityConfig, error) {
	data, err := r.client.Get(ctx, configKey(communityID)).Bytes()
	if err == redis.Nil {
		return nil, repository.ErrConfigNotFound
	}
	if err != nil {
		return nil, err
	}

	var cfg models.CommunityConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal community config: %w", err)
	}
	return &cfg, nil
}

func (r *Repository) Save(ctx context.Context, cfg *models.CommunityConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal community config: %w", err)
	}
	return r.client.Set(ctx, configKey(cfg.CommunityID), data, 0).Err()
}
