package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetBooking - GET /api/bookings/:id
// Получить бронирование вместе с платежом
func (h *Handlers) GetBooking(c *gin.Context) {
	response, err := h.services.Bookings.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Failed to get booking", err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// CancelBooking - PATCH /api/bookings/:id/cancel
// Отменить бронирование и освободить места
func (h *Handlers) CancelBooking(c *gin.Context) {
	if err := h.services.Bookings.Cancel(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, "Failed to cancel booking", err)
		return
	}

	c.Status(http.StatusOK)
}
