package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"provenance-relay/internal/apperr"
	"provenance-relay/internal/ledger"
	"provenance-relay/internal/models"
	"provenance-relay/internal/redisclient"
	"provenance-relay/internal/store"
	"provenance-relay/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	idempotencyPendingTTL = 2 * time.Minute
	idempotencyDoneTTL    = 24 * time.Hour
)

// SubmitEventRequest is a supply-chain event destined for a product topic
type SubmitEventRequest struct {
	TopicID        string `json:"topicId"`
	EventType      string `json:"eventType"`
	Location       string `json:"location"`
	Details        string `json:"details"`
	IdempotencyKey string `json:"-"`
}

// SubmitEventResult is the cached event row plus the ledger receipt status
type SubmitEventResult struct {
	Event  models.ProductEvent `json:"event"`
	Status string              `json:"status"`
}

// EventSubmitter appends events to product topics and caches them
type EventSubmitter struct {
	products    ProductStore
	events      EventStore
	ledger      Ledger
	sequencer   Sequencer
	idempotency IdempotencyStore
	publisher   Publisher
	logger      *zap.Logger
	now         func() time.Time
}

// NewEventSubmitter creates a new event submitter. idempotency may be nil.
func NewEventSubmitter(
	products ProductStore,
	events EventStore,
	ledgerClient Ledger,
	sequencer Sequencer,
	idempotency IdempotencyStore,
	publisher Publisher,
) *EventSubmitter {
	return &EventSubmitter{
		products:    products,
		events:      events,
		ledger:      ledgerClient,
		sequencer:   sequencer,
		idempotency: idempotency,
		publisher:   publisher,
		logger:      util.GetLogger(),
		now:         time.Now,
	}
}

// SubmitEvent appends one event to the topic and writes a provisional cache
// row once the ledger has acknowledged it.
func (s *EventSubmitter) SubmitEvent(ctx context.Context, req *SubmitEventRequest, actor string) (*SubmitEventResult, error) {
	ctx, span := util.StartSpan(ctx, "EventSubmitter.SubmitEvent", util.TopicAttr(req.TopicID))
	defer span.End()

	if actor == "" {
		return nil, apperr.New(apperr.KindUnauthorized, "Unauthorized")
	}
	if err := validateSubmit(req); err != nil {
		util.EventsFailedTotal.WithLabelValues(string(apperr.KindInvalidInput)).Inc()
		return nil, err
	}

	product, err := s.products.GetProductByTopicID(ctx, req.TopicID)
	if errors.Is(err, store.ErrNotFound) {
		util.EventsFailedTotal.WithLabelValues(string(apperr.KindNotFound)).Inc()
		return nil, apperr.New(apperr.KindNotFound, "Product not found")
	}
	if err != nil {
		util.RecordError(span, err)
		return nil, apperr.Wrap(apperr.KindPersistenceFailure, err, "Failed to look up product")
	}

	var idemKey string
	if req.IdempotencyKey != "" && s.idempotency != nil {
		idemKey = idempotencyScope(actor, req.TopicID, req.IdempotencyKey)
		stored, err := s.idempotency.ReserveIdempotencyKey(ctx, idemKey, idempotencyPendingTTL)
		switch {
		case errors.Is(err, redisclient.ErrIdempotencyInFlight):
			return nil, apperr.New(apperr.KindConflict, "Request with this idempotency key is in progress")
		case err != nil:
			s.logger.Warn("Idempotency store unavailable, proceeding without it", zap.Error(err))
			idemKey = ""
		case stored != nil:
			var prior SubmitEventResult
			if err := json.Unmarshal(stored, &prior); err != nil {
				s.logger.Warn("Stored idempotent response unreadable", zap.String("idempotency_key", req.IdempotencyKey))
				return nil, apperr.New(apperr.KindConflict, "Idempotency key already used")
			}
			if !samePayload(&prior.Event, req) {
				return nil, apperr.New(apperr.KindConflict, "Idempotency key reused with a different request")
			}
			s.logger.Info("Duplicate submit request detected",
				zap.String("idempotency_key", req.IdempotencyKey),
				zap.String("product_event_id", prior.Event.ID))
			return &prior, nil
		}
	}

	now := s.now().UTC()
	payload, err := ledger.EncodeRecord(models.EventRecord{
		EventType: req.EventType,
		Location:  req.Location,
		Details:   req.Details,
		Timestamp: now.Format(time.RFC3339Nano),
		CreatedBy: actor,
	})
	if err != nil {
		s.releaseKey(ctx, idemKey)
		return nil, apperr.Wrap(apperr.KindInternal, err, "Failed to encode event")
	}

	status, err := s.ledger.SubmitMessage(ctx, req.TopicID, payload)
	if err != nil {
		util.RecordError(span, err)
		util.EventsFailedTotal.WithLabelValues(string(apperr.KindOf(err))).Inc()
		s.releaseKey(ctx, idemKey)
		return nil, ledgerError(err, "Failed to submit event")
	}

	util.EventsSubmittedTotal.WithLabelValues(req.EventType).Inc()

	event := models.ProductEvent{
		ID:                 uuid.New().String(),
		ProductID:          product.ID,
		EventType:          req.EventType,
		Location:           req.Location,
		Details:            req.Details,
		ConsensusTimestamp: now,
		CreatedBy:          actor,
		CreatedAt:          now,
	}
	event.SetSequence(models.ProvisionalSequence(s.provisionalSequence(ctx, req.TopicID, now)))

	if err := s.events.CreateProductEvent(ctx, &event); err != nil {
		util.RecordError(span, err)
		util.EventsFailedTotal.WithLabelValues(string(apperr.KindPersistenceFailure)).Inc()
		// The message is on the ledger; the pending key is left to expire so a
		// retry with the same key cannot append it twice.
		s.logger.Error("Event appended to ledger but not cached",
			zap.String("topic_id", req.TopicID),
			zap.String("event_type", req.EventType),
			zap.Error(err))
		return nil, apperr.Wrap(apperr.KindPersistenceFailure, err, "Failed to save event")
	}

	s.logger.Info("Event submitted",
		zap.String("topic_id", req.TopicID),
		zap.String("event_type", req.EventType),
		zap.String("status", status),
		zap.Int64("provisional_sequence", event.Sequence.Value))

	result := &SubmitEventResult{Event: event, Status: status}

	if s.publisher != nil {
		notification := &models.EventSubmittedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.NotificationEventSubmitted,
				Timestamp: s.now(),
			},
			TopicID:             req.TopicID,
			ProductID:           product.ID,
			ProductEventID:      event.ID,
			SupplyChainType:     req.EventType,
			ProvisionalSequence: event.Sequence.Value,
			ReceiptStatus:       status,
		}
		if err := s.publisher.PublishEventSubmitted(ctx, notification); err != nil {
			s.logger.Error("Failed to publish EventSubmitted event", zap.Error(err))
		}
	}

	if idemKey != "" {
		if b, err := json.Marshal(result); err == nil {
			if err := s.idempotency.CompleteIdempotencyKey(ctx, idemKey, b, idempotencyDoneTTL); err != nil {
				s.logger.Warn("Failed to store idempotent response", zap.Error(err))
			}
		}
	}

	return result, nil
}

// provisionalSequence takes the next Redis counter value for the topic,
// falling back to wall-clock milliseconds when Redis is unavailable.
func (s *EventSubmitter) provisionalSequence(ctx context.Context, topicID string, now time.Time) int64 {
	if s.sequencer != nil {
		seq, err := s.sequencer.NextProvisionalSequence(ctx, topicID)
		if err == nil {
			return seq
		}
		s.logger.Warn("Provisional sequencer failed, falling back to wall clock",
			zap.String("topic_id", topicID),
			zap.Error(err))
	}
	util.ProvisionalSequenceFallbackTotal.Inc()
	return now.UnixMilli()
}

func (s *EventSubmitter) releaseKey(ctx context.Context, key string) {
	if key == "" || s.idempotency == nil {
		return
	}
	if err := s.idempotency.ReleaseIdempotencyKey(ctx, key); err != nil {
		s.logger.Warn("Failed to release idempotency key", zap.String("idempotency_key", key), zap.Error(err))
	}
}

// idempotencyScope binds a client key to the caller and topic so two
// callers can never share a stored response
func idempotencyScope(actor, topicID, key string) string {
	return actor + ":" + topicID + ":" + key
}

func samePayload(prior *models.ProductEvent, req *SubmitEventRequest) bool {
	return prior.EventType == req.EventType &&
		prior.Location == req.Location &&
		prior.Details == req.Details
}

func validateSubmit(req *SubmitEventRequest) error {
	req.TopicID = strings.TrimSpace(req.TopicID)
	req.EventType = strings.TrimSpace(req.EventType)
	req.Location = strings.TrimSpace(req.Location)

	switch {
	case req.TopicID == "":
		return apperr.New(apperr.KindInvalidInput, "Topic ID is required")
	case req.EventType == "":
		return apperr.New(apperr.KindInvalidInput, "Event type is required")
	case !models.ValidEventType(req.EventType):
		return apperr.Newf(apperr.KindInvalidInput, "Unknown event type %q", req.EventType)
	case req.Location == "":
		return apperr.New(apperr.KindInvalidInput, "Location is required")
	}
	return nil
}
