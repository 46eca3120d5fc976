package service

import (
	"context"
	"time"

	"provenance-relay/internal/mirror"
	"provenance-relay/internal/models"
)

// ProductStore persists products
type ProductStore interface {
	CreateProduct(ctx context.Context, product *models.Product) error
	GetProductByTopicID(ctx context.Context, topicID string) (*models.Product, error)
	GetProductsByOwner(ctx context.Context, owner string) ([]models.Product, error)
}

// EventStore persists the event cache
type EventStore interface {
	CreateProductEvent(ctx context.Context, event *models.ProductEvent) error
	GetProductEventsByTopicID(ctx context.Context, topicID string) ([]models.ProductEvent, error)
	CountProductEventsByTopicID(ctx context.Context, topicID string) (int, error)
}

// ProcessedLog records handled notifications
type ProcessedLog interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// Ledger appends to the external topic log and waits for receipts
type Ledger interface {
	CreateTopic(ctx context.Context, memo string) (string, error)
	SubmitMessage(ctx context.Context, topicID string, message []byte) (string, error)
}

// MirrorSource lists the authoritative contents of a topic
type MirrorSource interface {
	ListMessages(ctx context.Context, topicID string) ([]mirror.Message, error)
}

// Sequencer hands out provisional per-topic sequence values
type Sequencer interface {
	NextProvisionalSequence(ctx context.Context, topicID string) (int64, error)
}

// IdempotencyStore remembers responses by client-supplied key
type IdempotencyStore interface {
	ReserveIdempotencyKey(ctx context.Context, key string, ttl time.Duration) ([]byte, error)
	CompleteIdempotencyKey(ctx context.Context, key string, response []byte, ttl time.Duration) error
	ReleaseIdempotencyKey(ctx context.Context, key string) error
}

// Publisher emits relay notifications
type Publisher interface {
	PublishTopicCreated(ctx context.Context, event *models.TopicCreatedEvent) error
	PublishEventSubmitted(ctx context.Context, event *models.EventSubmittedEvent) error
}
