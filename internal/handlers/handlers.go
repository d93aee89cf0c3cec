package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "seatline/internal/errors"
	"seatline/internal/logger"
	"seatline/internal/service"
)

type Handlers struct {
	services *service.Services
}

func NewHandlers(services *service.Services) *Handlers {
	return &Handlers{
		services: services,
	}
}

// respondError пишет ошибку сервиса с кодом по её виду.
// Внутренние ошибки логируются, наружу уходит только общий текст.
func respondError(c *gin.Context, msg string, err error) {
	status := apperrors.HTTPStatus(err)
	log := logger.WithContext(c.Request.Context())
	if status >= http.StatusInternalServerError {
		log.Error(msg, "error", err)
	} else {
		log.Info(msg, "error", err, "status", status)
	}

	c.JSON(status, gin.H{
		"error": apperrors.Message(err),
		"kind":  apperrors.KindOf(err).String(),
	})
}
