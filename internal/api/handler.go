package api

import (
	"context"
	"net/http"
	"time"

	"provenance-relay/internal/identity"
	"provenance-relay/internal/models"
	"provenance-relay/internal/service"
	"provenance-relay/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// TopicService registers products against ledger topics
type TopicService interface {
	CreateTopic(ctx context.Context, name, description, owner string) (string, *models.Product, error)
	ListProducts(ctx context.Context, owner string) ([]models.Product, error)
}

// SubmitService appends events to topics
type SubmitService interface {
	SubmitEvent(ctx context.Context, req *service.SubmitEventRequest, actor string) (*service.SubmitEventResult, error)
}

// ReadService reads topic history
type ReadService interface {
	ListEvents(ctx context.Context, topicID string) (*service.ListEventsResult, error)
	ListCachedEvents(ctx context.Context, topicID string) ([]models.ProductEvent, error)
}

// IdentityResolver turns an Authorization header into a principal
type IdentityResolver interface {
	Resolve(ctx context.Context, authorization string) (*identity.Principal, error)
}

// ReadinessCheck reports whether a dependency is usable
type ReadinessCheck func(ctx context.Context) error

// Handler contains HTTP handlers
type Handler struct {
	topics   TopicService
	events   SubmitService
	history  ReadService
	identity IdentityResolver
	checks   map[string]ReadinessCheck
	logger   *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	topics TopicService,
	events SubmitService,
	history ReadService,
	resolver IdentityResolver,
	checks map[string]ReadinessCheck,
) *Handler {
	return &Handler{
		topics:   topics,
		events:   events,
		history:  history,
		identity: resolver,
		checks:   checks,
		logger:   util.GetLogger(),
	}
}

// CreateTopicRequest is the body of a create-topic call
type CreateTopicRequest struct {
	ProductName        string `json:"productName"`
	ProductDescription string `json:"productDescription"`
}

// ListEventsRequest is the body of a list-events call
type ListEventsRequest struct {
	TopicID string `json:"topicId"`
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(prometheusMiddleware())
	router.Use(requestLogger(h.logger))

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/list-events", h.listEvents)
		v1.GET("/products/:topicId/cached-events", h.listCachedEvents)

		authed := v1.Group("", h.requireAuth())
		authed.POST("/create-topic", h.createTopic)
		authed.POST("/submit-event", h.submitEvent)
		authed.GET("/products", h.listProducts)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck runs every registered dependency check
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not_ready",
			"failed": failed,
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// createTopic handles product registration
func (h *Handler) createTopic(c *gin.Context) {
	var req CreateTopicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidBody(c, err)
		return
	}

	topicID, product, err := h.topics.CreateTopic(c.Request.Context(), req.ProductName, req.ProductDescription, principalID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"topicId": topicID,
		"product": product,
	})
}

// submitEvent handles event submission
func (h *Handler) submitEvent(c *gin.Context) {
	var req service.SubmitEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidBody(c, err)
		return
	}
	req.IdempotencyKey = c.GetHeader("Idempotency-Key")

	result, err := h.events.SubmitEvent(c.Request.Context(), &req, principalID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"event":   result.Event,
		"status":  result.Status,
	})
}

// listEvents handles ledger history reads
func (h *Handler) listEvents(c *gin.Context) {
	var req ListEventsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidBody(c, err)
		return
	}

	result, err := h.history.ListEvents(c.Request.Context(), req.TopicID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"events":  result.Events,
		"count":   result.Count,
		"skipped": result.Skipped,
	})
}

// listCachedEvents serves the relational cache for a topic
func (h *Handler) listCachedEvents(c *gin.Context) {
	events, err := h.history.ListCachedEvents(c.Request.Context(), c.Param("topicId"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"events":      events,
		"count":       len(events),
		"provisional": true,
	})
}

// listProducts returns the caller's products
func (h *Handler) listProducts(c *gin.Context) {
	products, err := h.topics.ListProducts(c.Request.Context(), principalID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"products": products,
		"count":    len(products),
	})
}
