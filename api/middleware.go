package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/creastat/quizstore/auth"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	claimsKey       = "claims"
)

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func accessLog(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.WithFields(logrus.Fields{
			"request_id": c.GetString(requestIDKey),
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"status":     c.Writer.Status(),
			"client":     c.ClientIP(),
			"duration":   time.Since(start),
		})
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			entry.Error("request failed")
		default:
			entry.Debug("request served")
		}
	}
}

// rateLimit admits a request when the client IP is under its quota and
// answers with rejected otherwise. A limiter failure always yields 503.
func (h *Handler) rateLimit(rejected int) gin.HandlerFunc {
	return func(c *gin.Context) {
		client := c.ClientIP()
		ok, err := h.limiter.Check(c.Request.Context(), client)
		if err != nil {
			h.logger.WithError(err).WithField("client", client).Error("rate limiter unavailable")
			abort(c, http.StatusServiceUnavailable, "rate limiter unavailable")
			return
		}
		if !ok {
			abort(c, rejected, "rate limit exceeded")
			return
		}
		c.Next()
	}
}

// requireAdmin accepts a bearer token carrying the admin role.
func (h *Handler) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.Header("WWW-Authenticate", "Bearer")
			abort(c, http.StatusUnauthorized, "missing bearer token")
			return
		}

		claims, err := h.auth.Verify(token)
		if err != nil {
			if !errors.Is(err, auth.ErrInvalidToken) {
				h.logger.WithError(err).Error("failed to verify token")
			}
			c.Header("WWW-Authenticate", "Bearer")
			abort(c, http.StatusUnauthorized, "invalid token")
			return
		}
		if claims.Role != auth.RoleAdmin {
			abort(c, http.StatusUnauthorized, "admin role required")
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
