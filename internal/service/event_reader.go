package service

import (
	"context"
	"errors"
	"strings"

	"provenance-relay/internal/apperr"
	"provenance-relay/internal/ledger"
	"provenance-relay/internal/mirror"
	"provenance-relay/internal/models"
	"provenance-relay/internal/store"
	"provenance-relay/internal/util"

	"go.uber.org/zap"
)

// ListEventsResult is the decoded history of a topic. Skipped counts
// messages that could not be decoded and were left out of Events.
type ListEventsResult struct {
	Events  []models.Event `json:"events"`
	Count   int            `json:"count"`
	Skipped int            `json:"skipped"`
}

// EventReader rebuilds product history from the mirror service
type EventReader struct {
	mirror   MirrorSource
	products ProductStore
	events   EventStore
	logger   *zap.Logger
}

// NewEventReader creates a new event reader
func NewEventReader(source MirrorSource, products ProductStore, events EventStore) *EventReader {
	return &EventReader{
		mirror:   source,
		products: products,
		events:   events,
		logger:   util.GetLogger(),
	}
}

// ListEvents returns every decodable message of the topic in mirror order.
// The relational cache is not consulted.
func (r *EventReader) ListEvents(ctx context.Context, topicID string) (*ListEventsResult, error) {
	topicID = strings.TrimSpace(topicID)
	if topicID == "" {
		return nil, apperr.New(apperr.KindInvalidInput, "Topic ID is required")
	}

	ctx, span := util.StartSpan(ctx, "EventReader.ListEvents", util.TopicAttr(topicID))
	defer span.End()

	messages, err := r.mirror.ListMessages(ctx, topicID)
	if err != nil {
		util.RecordError(span, err)
		if apperr.KindOf(err) == apperr.KindInternal {
			err = apperr.Wrap(apperr.KindMirrorUnavailable, err, "Mirror node error")
		}
		return nil, err
	}

	result := &ListEventsResult{Events: make([]models.Event, 0, len(messages))}
	for _, msg := range messages {
		event, err := decodeMessage(msg)
		if err != nil {
			result.Skipped++
			r.logger.Warn("Error parsing message",
				zap.String("topic_id", topicID),
				zap.Int64("sequence_number", msg.SequenceNumber),
				zap.Error(err))
			continue
		}
		result.Events = append(result.Events, event)
	}
	result.Count = len(result.Events)

	util.MessagesDecodedTotal.Add(float64(result.Count))
	util.MessagesSkippedTotal.Add(float64(result.Skipped))

	return result, nil
}

func decodeMessage(msg mirror.Message) (models.Event, error) {
	rec, err := ledger.DecodeTransport(msg.Message)
	if err != nil {
		return models.Event{}, err
	}
	ts, err := mirror.ParseConsensusTimestamp(msg.ConsensusTimestamp)
	if err != nil {
		return models.Event{}, err
	}
	return models.Event{
		EventType:          rec.EventType,
		Location:           rec.Location,
		Details:            rec.Details,
		Timestamp:          rec.Timestamp,
		CreatedBy:          rec.CreatedBy,
		SequenceNumber:     msg.SequenceNumber,
		ConsensusTimestamp: ts,
	}, nil
}

// ListCachedEvents returns the relational cache rows for a topic. Their
// sequence numbers are provisional and must not be read as ledger order.
func (r *EventReader) ListCachedEvents(ctx context.Context, topicID string) ([]models.ProductEvent, error) {
	topicID = strings.TrimSpace(topicID)
	if topicID == "" {
		return nil, apperr.New(apperr.KindInvalidInput, "Topic ID is required")
	}

	if _, err := r.products.GetProductByTopicID(ctx, topicID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "Product not found")
		}
		return nil, apperr.Wrap(apperr.KindPersistenceFailure, err, "Failed to look up product")
	}

	events, err := r.events.GetProductEventsByTopicID(ctx, topicID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistenceFailure, err, "Failed to load cached events")
	}
	return events, nil
}
