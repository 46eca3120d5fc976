package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"provenance-relay/internal/models"
	"provenance-relay/internal/util"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDriftAuditorInSync(t *testing.T) {
	f := newSubmitFixture(t)
	_, err := f.submitter.SubmitEvent(context.Background(), f.request(models.EventTypeHarvested), "producer-1")
	require.NoError(t, err)

	auditor := NewDriftAuditor(NewEventReader(f.ledger, f.store, f.store), f.store, f.store)
	drift, err := auditor.Audit(context.Background(), f.topicID)
	require.NoError(t, err)
	assert.Equal(t, 0, drift)
}

func TestDriftAuditorLedgerAhead(t *testing.T) {
	f := newSubmitFixture(t)
	f.store.createEventErr = errors.New("disk full")
	_, err := f.submitter.SubmitEvent(context.Background(), f.request(models.EventTypeHarvested), "producer-1")
	require.Error(t, err)

	auditor := NewDriftAuditor(NewEventReader(f.ledger, f.store, f.store), f.store, f.store)
	drift, err := auditor.Audit(context.Background(), f.topicID)
	require.NoError(t, err)
	assert.Equal(t, 1, drift)
	assert.Empty(t, f.store.events, "auditor never writes the cache")
}

func TestDriftAuditorDropsGaugeOnceInSync(t *testing.T) {
	f := newSubmitFixture(t)
	f.store.createEventErr = errors.New("disk full")
	_, err := f.submitter.SubmitEvent(context.Background(), f.request(models.EventTypeHarvested), "producer-1")
	require.Error(t, err)

	auditor := NewDriftAuditor(NewEventReader(f.ledger, f.store, f.store), f.store, f.store)
	_, err = auditor.Audit(context.Background(), f.topicID)
	require.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(util.CacheDrift.WithLabelValues(f.topicID)))

	product, err := f.store.GetProductByTopicID(context.Background(), f.topicID)
	require.NoError(t, err)
	f.store.events = append(f.store.events, models.ProductEvent{ID: "backfilled", ProductID: product.ID})

	drift, err := auditor.Audit(context.Background(), f.topicID)
	require.NoError(t, err)
	assert.Equal(t, 0, drift)
	assert.False(t, util.CacheDrift.DeleteLabelValues(f.topicID), "in-sync topics keep no series")
}

func TestDriftAuditorTopicCreatedAddsNoSeries(t *testing.T) {
	auditor := NewDriftAuditor(nil, nil, nil)
	topicID := "0.0.777001"

	require.NoError(t, auditor.HandleTopicCreated(context.Background(), &models.TopicCreatedEvent{TopicID: topicID}))
	assert.False(t, util.CacheDrift.DeleteLabelValues(topicID))
}

func TestDriftAuditorHandlesNotificationOnce(t *testing.T) {
	f := newSubmitFixture(t)
	_, err := f.submitter.SubmitEvent(context.Background(), f.request(models.EventTypeHarvested), "producer-1")
	require.NoError(t, err)
	require.Len(t, f.publisher.submitted, 1)
	notification := f.publisher.submitted[0]

	auditor := NewDriftAuditor(NewEventReader(f.ledger, f.store, f.store), f.store, f.store)
	require.NoError(t, auditor.HandleEventSubmitted(context.Background(), notification))
	assert.True(t, f.store.processed[notification.EventID])

	f.ledger.mirrorErr = errors.New("mirror down")
	assert.NoError(t, auditor.HandleEventSubmitted(context.Background(), notification), "processed notifications are skipped")
}

func TestDriftAuditorMirrorFailureLeavesUnprocessed(t *testing.T) {
	f := newSubmitFixture(t)
	f.ledger.mirrorErr = errors.New("mirror down")

	auditor := NewDriftAuditor(NewEventReader(f.ledger, f.store, f.store), f.store, f.store)
	notification := &models.EventSubmittedEvent{
		BaseEvent: models.BaseEvent{EventID: "n-1", EventType: models.NotificationEventSubmitted, Timestamp: time.Now()},
		TopicID:   f.topicID,
	}

	assert.Error(t, auditor.HandleEventSubmitted(context.Background(), notification))
	assert.False(t, f.store.processed["n-1"])
}
