package store

import (
	"context"
	"database/sql"
	"errors"

	"provenance-relay/internal/models"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("not found")

// CreateProduct inserts a product. topic_id is unique, so a second
// registration of the same topic fails.
func (s *Store) CreateProduct(ctx context.Context, product *models.Product) error {
	query := `
		INSERT INTO products (id, topic_id, name, description, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	return s.db.GetContext(ctx, &product.CreatedAt, query,
		product.ID, product.TopicID, product.Name, product.Description, product.CreatedBy)
}

// GetProductByTopicID retrieves the product registered under a topic
func (s *Store) GetProductByTopicID(ctx context.Context, topicID string) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE topic_id = $1", topicID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProductsByOwner retrieves products created by a principal, newest first
func (s *Store) GetProductsByOwner(ctx context.Context, owner string) ([]models.Product, error) {
	products := []models.Product{}
	err := s.db.SelectContext(ctx, &products,
		"SELECT * FROM products WHERE created_by = $1 ORDER BY created_at DESC", owner)
	return products, err
}
