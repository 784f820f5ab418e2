package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"room-occupancy-backend/internal/model"
	"room-occupancy-backend/internal/mw"
)

// subscribeRequest mirrors the browser's PushSubscription JSON.
type subscribeRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
	Keys     struct {
		P256DH string `json:"p256dh" binding:"required"`
		Auth   string `json:"auth" binding:"required"`
	} `json:"keys" binding:"required"`
}

// Subscribe handles POST /api/notifications/subscribe. It replaces any
// earlier subscription of the caller.
func (h *Handler) Subscribe(c *gin.Context) {
	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	sub := &model.PushSubscription{
		UserID:   mw.UserID(c),
		Endpoint: req.Endpoint,
		P256DH:   req.Keys.P256DH,
		Auth:     req.Keys.Auth,
	}
	if err := h.store.SaveSubscription(c.Request.Context(), sub); err != nil {
		log.Printf("Failed to save subscription: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save subscription"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Subscribed to notifications"})
}

// Unsubscribe handles DELETE /api/notifications/subscribe.
func (h *Handler) Unsubscribe(c *gin.Context) {
	if err := h.store.DeleteSubscription(c.Request.Context(), mw.UserID(c)); err != nil {
		log.Printf("Failed to delete subscription: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete subscription"})
		return
	}
	c.Status(http.StatusNoContent)
}
