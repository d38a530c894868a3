// Package http exposes the giveaway API over gin.
package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"giveaway-bot-backend/internal/features/giveaway/models"
	"giveaway-bot-backend/internal/features/giveaway/repository"
	"giveaway-bot-backend/internal/features/giveaway/service"
)

type GiveawayHandler struct {
	service  service.GiveawayService
	notifier service.Notifier
}

func NewGiveawayHandler(svc service.GiveawayService, notifier service.Notifier) *GiveawayHandler {
	return &GiveawayHandler{service: svc, notifier: notifier}
}

func (h *GiveawayHandler) RegisterRoutes(router *gin.RouterGroup) {
	giveaways := router.Group("/giveaways")
	{
		giveaways.POST("", h.create)
		giveaways.GET("/:id", h.getByID)
		giveaways.DELETE("/:id", h.delete)
		giveaways.PUT("/:id/message", h.setMessageRef)
		giveaways.POST("/:id/enter", h.enter)
		giveaways.GET("/:id/entered", h.hasEntered)
		giveaways.POST("/:id/end", h.end)
		giveaways.POST("/:id/cancel", h.cancel)
		giveaways.POST("/:id/reroll", h.reroll)
	}

	communities := router.Group("/communities")
	{
		communities.GET("/:id/giveaways", h.listByCommunity)
		communities.GET("/:id/giveaways/entered", h.listEntered)
	}
}

type enterRequest struct {
	UserID  int64   `json:"user_id" binding:"required"`
	RoleIDs []int64 `json:"role_ids"`
}

type rerollRequest struct {
	ExcludePrevious bool `json:"exclude_previous"`
}

type messageRefRequest struct {
	MessageRef string `json:"message_ref" binding:"required"`
}

func (h *GiveawayHandler) create(c *gin.Context) {
	var req models.GiveawayCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	g, err := h.service.Create(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, g)
}

func (h *GiveawayHandler) getByID(c *gin.Context) {
	g, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

func (h *GiveawayHandler) delete(c *gin.Context) {
	requesterID, err := strconv.ParseInt(c.Query("requester_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "requester_id is required"})
		return
	}

	if err := h.service.Delete(c.Request.Context(), c.Param("id"), requesterID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *GiveawayHandler) setMessageRef(c *gin.Context) {
	var req messageRefRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.SetMessageRef(c.Request.Context(), c.Param("id"), req.MessageRef); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *GiveawayHandler) enter(c *gin.Context) {
	var req enterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.service.Enter(c.Request.Context(), c.Param("id"), req.UserID, req.RoleIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *GiveawayHandler) hasEntered(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	entered, err := h.service.HasEntered(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entered": entered})
}

func (h *GiveawayHandler) end(c *gin.Context) {
	res, err := h.service.End(c.Request.Context(), c.Param("id"), true)
	if err != nil {
		respondError(c, err)
		return
	}
	if h.notifier != nil {
		h.notifier.GiveawayEnded(c.Request.Context(), res)
	}
	c.JSON(http.StatusOK, res)
}

func (h *GiveawayHandler) cancel(c *gin.Context) {
	res, err := h.service.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *GiveawayHandler) reroll(c *gin.Context) {
	// The body is optional; an absent one means default options.
	var req rerollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		req = rerollRequest{}
	}

	res, err := h.service.Reroll(c.Request.Context(), c.Param("id"), req.ExcludePrevious)
	if err != nil {
		respondError(c, err)
		return
	}
	if h.notifier != nil {
		h.notifier.GiveawayEnded(c.Request.Context(), res)
	}
	c.JSON(http.StatusOK, res)
}

func (h *GiveawayHandler) listByCommunity(c *gin.Context) {
	communityID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid community id"})
		return
	}
	activeOnly := c.Query("active") == "true"

	giveaways, err := h.service.List(c.Request.Context(), communityID, activeOnly)
	if err != nil {
		respondError(c, err)
		return
	}
	if giveaways == nil {
		giveaways = []*models.Giveaway{}
	}
	c.JSON(http.StatusOK, giveaways)
}

func (h *GiveawayHandler) listEntered(c *gin.Context) {
	communityID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid community id"})
		return
	}
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	giveaways, err := h.service.ListEntered(c.Request.Context(), communityID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	if giveaways == nil {
		giveaways = []*models.Giveaway{}
	}
	c.JSON(http.StatusOK, giveaways)
}

// respondError maps service errors to HTTP status codes.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrGiveawayNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "giveaway not found"})
	case errors.Is(err, models.ErrIneligible), errors.Is(err, models.ErrNotStarted):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case models.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case models.IsInvalidState(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
