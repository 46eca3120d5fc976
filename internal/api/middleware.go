package api

import (
	"net/http"
	"strconv"
	"time"

	"provenance-relay/internal/apperr"
	"provenance-relay/internal/identity"
	"provenance-relay/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const principalKey = "principal"

// corsMiddleware makes every response, errors and preflights included,
// usable from any origin
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type, idempotency-key")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// requireAuth resolves the bearer credential and stores the principal
func (h *Handler) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := h.identity.Resolve(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			if apperr.KindOf(err) != apperr.KindUnauthorized {
				err = apperr.Wrap(apperr.KindUnauthorized, err, "Unauthorized")
			}
			h.respondError(c, err)
			return
		}
		c.Set(principalKey, principal)
		c.Next()
	}
}

func principalID(c *gin.Context) string {
	v, ok := c.Get(principalKey)
	if !ok {
		return ""
	}
	p, ok := v.(*identity.Principal)
	if !ok || p == nil {
		return ""
	}
	return p.ID
}

// statusFor maps an error kind to an HTTP status
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindInvalidInput:
		return http.StatusBadRequest
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindLedgerRejected:
		return http.StatusUnprocessableEntity
	case apperr.KindLedgerUnavailable, apperr.KindMirrorUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the uniform error envelope
func (h *Handler) respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := statusFor(kind)

	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.String("kind", string(kind)),
			zap.Error(err))
	}

	message := apperr.MessageOf(err)
	if kind == apperr.KindInternal {
		message = "Internal server error"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

func respondInvalidBody(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}

// requestLogger logs one line per request
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		logger.Info("http_request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Int("bytes", c.Writer.Size()),
			zap.Duration("latency", time.Since(start)))
	}
}
