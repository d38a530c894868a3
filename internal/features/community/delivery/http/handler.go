// Package http exposes community settings over gin.
package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"giveaway-bot-backend/internal/features/community/service"
)

type ConfigHandler struct {
	service service.ConfigService
}

func NewConfigHandler(svc service.ConfigService) *ConfigHandler {
	return &ConfigHandler{service: svc}
}

func (h *ConfigHandler) RegisterRoutes(router *gin.RouterGroup) {
	communities := router.Group("/communities")
	{
		communities.GET("/:id/roles", h.listRoles)
		communities.POST("/:id/roles", h.addRole)
		communities.DELETE("/:id/roles/:roleID", h.removeRole)
	}
}

type roleRequest struct {
	RoleID int64 `json:"role_id" binding:"required"`
}

func (h *ConfigHandler) listRoles(c *gin.Context) {
	communityID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid community id"})
		return
	}

	roles, err := h.service.ListManagerRoles(c.Request.Context(), communityID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"manager_role_ids": roles})
}

func (h *ConfigHandler) addRole(c *gin.Context) {
	communityID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid community id"})
		return
	}

	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg, err := h.service.AddManagerRole(c.Request.Context(), communityID, req.RoleID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (h *ConfigHandler) removeRole(c *gin.Context) {
	communityID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid community id"})
		return
	}
	roleID, err := strconv.ParseInt(c.Param("roleID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role id"})
		return
	}

	cfg, err := h.service.RemoveManagerRole(c.Request.Context(), communityID, roleID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, cfg)
}
