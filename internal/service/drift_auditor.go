package service

import (
	"context"
	"fmt"

	"provenance-relay/internal/models"
	"provenance-relay/internal/util"

	"go.uber.org/zap"
)

// DriftAuditor compares the event cache of a topic with the ledger after
// each submission. It only reports the difference; it never rewrites
// cache rows.
type DriftAuditor struct {
	reader    *EventReader
	events    EventStore
	processed ProcessedLog
	logger    *zap.Logger
}

// NewDriftAuditor creates a new drift auditor
func NewDriftAuditor(reader *EventReader, events EventStore, processed ProcessedLog) *DriftAuditor {
	return &DriftAuditor{
		reader:    reader,
		events:    events,
		processed: processed,
		logger:    util.GetLogger(),
	}
}

// HandleTopicCreated notes a new topic. No drift series exists until the
// topic's cache and ledger disagree.
func (a *DriftAuditor) HandleTopicCreated(ctx context.Context, event *models.TopicCreatedEvent) error {
	a.logger.Debug("Tracking cache drift", zap.String("topic_id", event.TopicID))
	return nil
}

// HandleEventSubmitted audits the topic named in the notification. A
// returned error leaves it unmarked; the consumer retries it a bounded number
// of times and the next notification for the topic audits it again.
func (a *DriftAuditor) HandleEventSubmitted(ctx context.Context, event *models.EventSubmittedEvent) error {
	ctx, span := util.StartSpan(ctx, "DriftAuditor.HandleEventSubmitted", util.TopicAttr(event.TopicID))
	defer span.End()

	processed, err := a.processed.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		a.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	drift, err := a.Audit(ctx, event.TopicID)
	if err != nil {
		util.RecordError(span, err)
		return err
	}

	if drift != 0 {
		a.logger.Warn("Event cache differs from ledger",
			zap.String("topic_id", event.TopicID),
			zap.Int("ledger_minus_cache", drift),
			zap.Int64("provisional_sequence", event.ProvisionalSequence))
	}

	if err := a.processed.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		a.logger.Error("Failed to mark event processed", zap.Error(err))
	}
	return nil
}

// Audit returns the ledger message count (decoded and skipped) minus the
// cached row count for topicID. Mirror lag right after a submission shows
// up as a negative value. Topics in agreement have no gauge series.
func (a *DriftAuditor) Audit(ctx context.Context, topicID string) (int, error) {
	history, err := a.reader.ListEvents(ctx, topicID)
	if err != nil {
		return 0, fmt.Errorf("failed to read ledger history: %w", err)
	}

	cached, err := a.events.CountProductEventsByTopicID(ctx, topicID)
	if err != nil {
		return 0, fmt.Errorf("failed to count cached events: %w", err)
	}

	drift := history.Count + history.Skipped - cached
	if drift == 0 {
		util.CacheDrift.DeleteLabelValues(topicID)
	} else {
		util.CacheDrift.WithLabelValues(topicID).Set(float64(drift))
	}
	return drift, nil
}
