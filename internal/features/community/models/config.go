package models

import "time"

// CommunityConfig holds per-community settings: the roles allowed to
// manage giveaways besides their creators.
type CommunityConfig struct {
	CommunityID    int64     `json:"community_id"`
	ManagerRoleIDs []int64   `json:"manager_role_ids"`
	CreatedAt      time.Time `json:"created_at"`
}

func NewCommunityConfig(communityID int64, now time.Time) *CommunityConfig {
	return &CommunityConfig{
		CommunityID:    communityID,
		ManagerRoleIDs: []int64{},
		CreatedAt:      now,
	}
}

// AddManagerRole adds a role id, reporting false on a duplicate.
func (c *CommunityConfig) AddManagerRole(roleID int64) bool {
	if c.HasManagerRole(roleID) {
		return false
	}
	c.ManagerRoleIDs = append(c.ManagerRoleIDs, roleID)
	return true
}

// RemoveManagerRole removes a role id, reporting whether it was present.
func (c *CommunityConfig) RemoveManagerRole(roleID int64) bool {
	for i, id := range c.ManagerRoleIDs {
		if id == roleID {
			c.ManagerRoleIDs = append(c.ManagerRoleIDs[:i], c.ManagerRoleIDs[i+1:]...)
			return true
		}
	}
	return false
}

func (c *CommunityConfig) HasManagerRole(roleID int64) bool {
	for _, id := range c.ManagerRoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}
