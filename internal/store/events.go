package store

import (
	"context"

	"provenance-relay/internal/models"
)

// CreateProductEvent inserts a cache row for a submitted message
func (s *Store) CreateProductEvent(ctx context.Context, event *models.ProductEvent) error {
	query := `
		INSERT INTO product_events (id, product_id, event_type, location, details,
			sequence_number, sequence_provisional, consensus_timestamp, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`

	return s.db.GetContext(ctx, &event.CreatedAt, query,
		event.ID, event.ProductID, event.EventType, event.Location, event.Details,
		event.SequenceNumber, event.SequenceIsLocal, event.ConsensusTimestamp, event.CreatedBy)
}

// GetProductEventsByTopicID retrieves cached events for a topic in
// cache order. Provisional rows carry no ledger ordering guarantee.
func (s *Store) GetProductEventsByTopicID(ctx context.Context, topicID string) ([]models.ProductEvent, error) {
	events := []models.ProductEvent{}
	err := s.db.SelectContext(ctx, &events, `
		SELECT e.* FROM product_events e
		JOIN products p ON p.id = e.product_id
		WHERE p.topic_id = $1
		ORDER BY e.sequence_number, e.created_at`, topicID)
	if err != nil {
		return nil, err
	}
	for i := range events {
		events[i].LoadSequence()
	}
	return events, nil
}

// CountProductEventsByTopicID counts cached events for a topic
func (s *Store) CountProductEventsByTopicID(ctx context.Context, topicID string) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM product_events e
		JOIN products p ON p.id = e.product_id
		WHERE p.topic_id = $1`, topicID)
	return n, err
}
