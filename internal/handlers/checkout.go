package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"seatline/internal/models"
)

// Checkout - POST /api/checkout
// Купить места на рейс
func (h *Handlers) Checkout(c *gin.Context) {
	var req models.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": "validation"})
		return
	}

	response, err := h.services.Checkout.Checkout(c.Request.Context(), &req)
	if err != nil {
		respondError(c, "Checkout failed", err)
		return
	}

	c.JSON(http.StatusCreated, response)
}
