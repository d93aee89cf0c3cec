package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// SeatMap - GET /api/trips/:id/seats
// Получить карту мест рейса
func (h *Handlers) SeatMap(c *gin.Context) {
	tripID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || tripID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "trip id must be a positive integer", "kind": "validation"})
		return
	}

	response, err := h.services.Seats.Map(c.Request.Context(), tripID)
	if err != nil {
		respondError(c, "Failed to load seat map", err)
		return
	}

	c.JSON(http.StatusOK, response)
}
