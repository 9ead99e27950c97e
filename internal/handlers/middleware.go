package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-grocery-orderflow/internal/checkout"
	"github.com/imrishuroy/go-grocery-orderflow/internal/logging"
)

const (
	headerRequestID = "X-Request-Id"
	headerUserID    = "X-User-Id"
	headerUserRole  = "X-User-Role"

	actorKey = "actor"
)

// RequestLogger tags each request with an id, stores a request scoped logger
// on the request context and logs completion.
func RequestLogger(base *zap.Logger) gin.HandlerFunc {
	if base == nil {
		base = zap.NewNop()
	}
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(headerRequestID))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(headerRequestID, requestID)

		logger := base.With(
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
		)
		if uid := strings.TrimSpace(c.GetHeader(headerUserID)); uid != "" {
			logger = logger.With(zap.String("user_id", uid))
		}
		c.Request = c.Request.WithContext(logging.WithLogger(c.Request.Context(), logger))

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
		}
		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("request completed", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("request completed", fields...)
		default:
			logger.Info("request completed", fields...)
		}
	}
}

// Identity reads the caller from the headers set by the authenticating proxy.
// Requests without a user id are rejected.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := strings.TrimSpace(c.GetHeader(headerUserID))
		if uid == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthenticated",
				"message": "missing " + headerUserID + " header",
			})
			return
		}
		c.Set(actorKey, checkout.Actor{UserID: uid, Role: checkout.ParseRole(c.GetHeader(headerUserRole))})
		c.Next()
	}
}

// RequireStaff admits admin and system callers only. It must run after Identity.
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !actorFrom(c).Privileged() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "not_authorized",
				"message": "staff role required",
			})
			return
		}
		c.Next()
	}
}

func actorFrom(c *gin.Context) checkout.Actor {
	if v, ok := c.Get(actorKey); ok {
		if a, ok := v.(checkout.Actor); ok {
			return a
		}
	}
	return checkout.Actor{}
}
