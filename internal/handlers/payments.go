package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"seatline/internal/models"
)

// OnPaymentUpdates - POST /api/payments/notifications
// Принимать уведомления от платежного шлюза
func (h *Handlers) OnPaymentUpdates(c *gin.Context) {
	var notification models.PaymentNotificationPayload
	if err := c.ShouldBindJSON(&notification); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": "validation"})
		return
	}

	err := h.services.Bookings.HandlePaymentNotification(c.Request.Context(), &notification)
	if err != nil {
		respondError(c, "Failed to handle payment notification", err)
		return
	}

	c.Status(http.StatusOK)
}
