package service

import (
	"context"
	"testing"
	"time"

	"provenance-relay/internal/apperr"
	"provenance-relay/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Full relay round trip against in-memory ledger, mirror and store.
func TestCreateSubmitListScenario(t *testing.T) {
	ctx := context.Background()
	clock := steppingClock(time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC), time.Second)

	st := newFakeStore()
	led := newFakeLedger(clock)
	reg := NewTopicRegistry(st, led, nil)
	reg.now = clock
	sub := NewEventSubmitter(st, st, led, &fakeSequencer{}, nil, nil)
	sub.now = clock
	reader := NewEventReader(led, st, st)

	topicID, product, err := reg.CreateTopic(ctx, "Ethiopian Coffee Batch #42", "", "producer-1")
	require.NoError(t, err)

	_, err = sub.SubmitEvent(ctx, &SubmitEventRequest{
		TopicID:   topicID,
		EventType: models.EventTypeHarvested,
		Location:  "Kochere Farm, Ethiopia",
		Details:   "",
	}, "producer-1")
	require.NoError(t, err)

	result, err := reader.ListEvents(ctx, topicID)
	require.NoError(t, err)
	require.Equal(t, 1, result.Count)
	assert.Equal(t, models.EventTypeHarvested, result.Events[0].EventType)
	assert.True(t, result.Events[0].ConsensusTimestamp.After(product.CreatedAt))
}

func TestFreshTopicListsNothing(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore()
	led := newFakeLedger(time.Now)

	topicID, _, err := NewTopicRegistry(st, led, nil).CreateTopic(ctx, "Colombian Coffee Batch #18", "", "producer-1")
	require.NoError(t, err)

	result, err := NewEventReader(led, st, st).ListEvents(ctx, topicID)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Count)
	assert.Empty(t, result.Events)
}

func TestSubmitToUnregisteredTopicScenario(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore()
	led := newFakeLedger(time.Now)
	sub := NewEventSubmitter(st, st, led, &fakeSequencer{}, nil, nil)

	_, err := sub.SubmitEvent(ctx, &SubmitEventRequest{
		TopicID:   "0.0.777",
		EventType: models.EventTypeShipped,
		Location:  "Djibouti",
	}, "producer-1")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Equal(t, 0, led.submitCount())
	assert.Empty(t, st.events)
	assert.Equal(t, 0, st.productCount())
}
