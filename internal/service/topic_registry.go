package service

import (
	"context"
	"strings"
	"time"

	"provenance-relay/internal/apperr"
	"provenance-relay/internal/ledger"
	"provenance-relay/internal/models"
	"provenance-relay/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const topicMemoPrefix = "Supply Chain: "

// TopicRegistry binds products to ledger topics
type TopicRegistry struct {
	products  ProductStore
	ledger    Ledger
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewTopicRegistry creates a new topic registry
func NewTopicRegistry(products ProductStore, ledgerClient Ledger, publisher Publisher) *TopicRegistry {
	return &TopicRegistry{
		products:  products,
		ledger:    ledgerClient,
		publisher: publisher,
		logger:    util.GetLogger(),
		now:       time.Now,
	}
}

// CreateTopic allocates a ledger topic for a new product and persists the
// product under the returned topic id. The topic is not rolled back if the
// product row cannot be written.
func (r *TopicRegistry) CreateTopic(ctx context.Context, name, description, owner string) (string, *models.Product, error) {
	ctx, span := util.StartSpan(ctx, "TopicRegistry.CreateTopic")
	defer span.End()

	if owner == "" {
		return "", nil, apperr.New(apperr.KindUnauthorized, "Unauthorized")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		util.TopicsFailedTotal.WithLabelValues("invalid_input").Inc()
		return "", nil, apperr.New(apperr.KindInvalidInput, "Product name is required")
	}

	topicID, err := r.ledger.CreateTopic(ctx, ledger.TruncateMemo(topicMemoPrefix+name))
	if err != nil {
		util.RecordError(span, err)
		util.TopicsFailedTotal.WithLabelValues(string(apperr.KindOf(err))).Inc()
		return "", nil, ledgerError(err, "Failed to create topic")
	}
	span.SetAttributes(util.TopicAttr(topicID))

	product := &models.Product{
		ID:        uuid.New().String(),
		TopicID:   topicID,
		Name:      name,
		CreatedBy: owner,
		CreatedAt: r.now().UTC(),
	}
	if d := strings.TrimSpace(description); d != "" {
		product.Description = &d
	}

	if err := r.products.CreateProduct(ctx, product); err != nil {
		util.RecordError(span, err)
		util.TopicsFailedTotal.WithLabelValues(string(apperr.KindPersistenceFailure)).Inc()
		util.OrphanedTopicsTotal.Inc()
		r.logger.Error("Topic allocated but product not persisted",
			zap.String("topic_id", topicID),
			zap.String("owner", owner),
			zap.Error(err))
		return "", nil, apperr.Wrap(apperr.KindPersistenceFailure, err, "Failed to save product")
	}

	util.TopicsCreatedTotal.Inc()
	r.logger.Info("Product registered",
		zap.String("product_id", product.ID),
		zap.String("topic_id", topicID))

	if r.publisher != nil {
		event := &models.TopicCreatedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.NotificationTopicCreated,
				Timestamp: r.now(),
			},
			TopicID:   topicID,
			ProductID: product.ID,
			Name:      product.Name,
			CreatedBy: owner,
		}
		if err := r.publisher.PublishTopicCreated(ctx, event); err != nil {
			r.logger.Error("Failed to publish TopicCreated event", zap.Error(err))
		}
	}

	return topicID, product, nil
}

// ListProducts returns the products owned by a principal
func (r *TopicRegistry) ListProducts(ctx context.Context, owner string) ([]models.Product, error) {
	if owner == "" {
		return nil, apperr.New(apperr.KindUnauthorized, "Unauthorized")
	}
	products, err := r.products.GetProductsByOwner(ctx, owner)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistenceFailure, err, "Failed to load products")
	}
	return products, nil
}

// ledgerError makes sure ledger failures carry a ledger kind even when the
// client returned an unclassified error.
func ledgerError(err error, message string) error {
	switch apperr.KindOf(err) {
	case apperr.KindLedgerRejected, apperr.KindLedgerUnavailable:
		return err
	}
	return apperr.Wrap(apperr.KindLedgerUnavailable, err, message)
}
