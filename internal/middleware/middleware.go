package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"seatline/internal/cache"
	apperrors "seatline/internal/errors"
	"seatline/internal/logger"
)

const requestIDHeader = "X-Request-ID"
const sessionHeader = "X-Session-Token"

func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return logger.ContextWithUserID(ctx, userID)
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	return logger.UserIDFromContext(ctx)
}

// CORS middleware для обработки CORS запросов
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, "+sessionHeader+", "+requestIDHeader)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(200)
			return
		}

		c.Next()
	}
}

// RequestID присваивает каждому запросу идентификатор для логов
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = logger.NewRequestID()
		}

		c.Set("request_id", requestID)
		c.Header(requestIDHeader, requestID)
		c.Request = c.Request.WithContext(logger.ContextWithRequestID(c.Request.Context(), requestID))

		c.Next()
	}
}

// Logger middleware для структурированного логирования запросов
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Записываем время начала
		start := time.Now()

		// Выполняем запрос
		c.Next()

		// Логируем результат
		latency := time.Since(start)

		logFields := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status_code", c.Writer.Status(),
			"latency_ms", latency.Milliseconds(),
			"client_ip", c.ClientIP(),
		}

		log := logger.WithContext(c.Request.Context())
		switch {
		case c.Writer.Status() >= 500:
			if len(c.Errors) > 0 {
				logFields = append(logFields, "error", c.Errors.String())
			}
			log.Error("Request completed with error", logFields...)
		case c.Writer.Status() >= 400:
			log.Warn("Request rejected", logFields...)
		default:
			log.Debug("Request completed", logFields...)
		}
	}
}

// Recovery middleware для восстановления после паники с детальным логированием
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.WithContext(c.Request.Context()).Error("PANIC recovered",
			"panic", recovered,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"query", c.Request.URL.RawQuery,
			"client_ip", c.ClientIP(),
		)

		if !c.Writer.Written() {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Internal server error",
			})
		}
	})
}

// SessionLookup resolves a session token to a user id
type SessionLookup interface {
	GetUserIDBySession(ctx context.Context, token string) (string, error)
}

// OptionalIdentity прикрепляет пользователя к запросу, если он передал токен.
// Анонимные запросы пропускаются, неверные токены отклоняются с 401.
func OptionalIdentity(jwtSecret string, sessions SessionLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		var userID string
		var err error
		switch {
		case strings.HasPrefix(c.GetHeader("Authorization"), "Bearer "):
			userID, err = userFromToken(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "), jwtSecret)
		case c.GetHeader(sessionHeader) != "" && sessions != nil:
			userID, err = sessions.GetUserIDBySession(ctx, c.GetHeader(sessionHeader))
			if err != nil && !errors.Is(err, cache.ErrSessionNotFound) {
				// cache outage degrades to an anonymous checkout
				logger.WithContext(ctx).Warn("Session lookup failed", "error", err)
				c.Next()
				return
			}
			if err != nil {
				err = fmt.Errorf("%w: %v", apperrors.ErrUnauthorized, err)
			}
		default:
			c.Next()
			return
		}

		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": apperrors.ErrUnauthorized.Error()})
			return
		}

		c.Set("user_id", userID)
		c.Request = c.Request.WithContext(ContextWithUserID(ctx, userID))
		c.Next()
	}
}

func userFromToken(raw, secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("%w: token authentication is not configured", apperrors.ErrUnauthorized)
	}

	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		return "", fmt.Errorf("%w: invalid token", apperrors.ErrUnauthorized)
	}

	sub, err := tok.Claims.GetSubject()
	if err != nil || sub == "" {
		slog.Debug("Token without subject", "error", err)
		return "", fmt.Errorf("%w: token has no subject", apperrors.ErrUnauthorized)
	}
	return sub, nil
}
