package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"giveaway-bot-backend/internal/features/community/models"
	"giveaway-bot-backend/internal/features/community/repository"
)

const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Get(ctx context.Context, communityID int64) (*models.CommunityConfig, error) {
	var rolesJSON, createdAt string
	err := r.db.QueryRowContext(ctx,
		`SELECT manager_role_ids, created_at FROM community_config WHERE community_id = ?`,
		communityID).Scan(&rolesJSON, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrConfigNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get community config: %w", err)
	}

	cfg := &models.CommunityConfig{CommunityID: communityID}
	if err := json.Unmarshal([]byte(rolesJSON), &cfg.ManagerRoleIDs); err != nil {
		return nil, fmt.Errorf("unmarshal manager roles: %w", err)
	}
	if cfg.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return cfg, nil
}

func (r *Repository) Save(ctx context.Context, cfg *models.CommunityConfig) error {
	roles := cfg.ManagerRoleIDs
	if roles == nil {
		roles = []int64{}
	}
	rolesJSON, err := json.Marshal(roles)
	if err != nil {
		return fmt.Errorf("marshal manager roles: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO community_config (community_id, manager_role_ids, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (community_id) DO UPDATE SET manager_role_ids = excluded.manager_role_ids`,
		cfg.CommunityID, string(rolesJSON), cfg.CreatedAt.UTC().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("save community config: %w", err)
	}
	return nil
}
