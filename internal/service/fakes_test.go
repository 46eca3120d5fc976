package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"provenance-relay/internal/ledger"
	"provenance-relay/internal/mirror"
	"provenance-relay/internal/models"
	"provenance-relay/internal/redisclient"
	"provenance-relay/internal/store"
)

// fakeStore is an in-memory ProductStore, EventStore and ProcessedLog.
type fakeStore struct {
	mu        sync.Mutex
	products  map[string]*models.Product
	events    []models.ProductEvent
	processed map[string]bool

	createProductErr error
	createEventErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		products:  map[string]*models.Product{},
		processed: map[string]bool{},
	}
}

func (s *fakeStore) CreateProduct(ctx context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createProductErr != nil {
		return s.createProductErr
	}
	if _, ok := s.products[p.TopicID]; ok {
		return fmt.Errorf("duplicate topic_id %s", p.TopicID)
	}
	cp := *p
	s.products[p.TopicID] = &cp
	return nil
}

func (s *fakeStore) GetProductByTopicID(ctx context.Context, topicID string) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[topicID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *fakeStore) GetProductsByOwner(ctx context.Context, owner string) ([]models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Product{}
	for _, p := range s.products {
		if p.CreatedBy == owner {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *fakeStore) CreateProductEvent(ctx context.Context, e *models.ProductEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createEventErr != nil {
		return s.createEventErr
	}
	s.events = append(s.events, *e)
	return nil
}

func (s *fakeStore) GetProductEventsByTopicID(ctx context.Context, topicID string) ([]models.ProductEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[topicID]
	if !ok {
		return []models.ProductEvent{}, nil
	}
	out := []models.ProductEvent{}
	for _, e := range s.events {
		if e.ProductID == p.ID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *fakeStore) CountProductEventsByTopicID(ctx context.Context, topicID string) (int, error) {
	events, err := s.GetProductEventsByTopicID(ctx, topicID)
	return len(events), err
}

func (s *fakeStore) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processed[eventID], nil
}

func (s *fakeStore) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed[eventID] = true
	return nil
}

func (s *fakeStore) productCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.products)
}

// fakeLedger keeps topics in memory and doubles as a MirrorSource, assigning
// sequence numbers and consensus timestamps the way the network would.
type fakeLedger struct {
	mu        sync.Mutex
	next      int
	topics    map[string][]mirror.Message
	memos     []string
	submits   int
	clock     func() time.Time
	createErr error
	submitErr error
	mirrorErr error
}

func newFakeLedger(clock func() time.Time) *fakeLedger {
	return &fakeLedger{next: 1000, topics: map[string][]mirror.Message{}, clock: clock}
}

func (l *fakeLedger) CreateTopic(ctx context.Context, memo string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.createErr != nil {
		return "", l.createErr
	}
	l.next++
	id := fmt.Sprintf("0.0.%d", l.next)
	l.topics[id] = []mirror.Message{}
	l.memos = append(l.memos, memo)
	return id, nil
}

func (l *fakeLedger) SubmitMessage(ctx context.Context, topicID string, message []byte) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.submits++
	if l.submitErr != nil {
		return "", l.submitErr
	}
	msgs, ok := l.topics[topicID]
	if !ok {
		return "", errors.New("INVALID_TOPIC_ID")
	}
	ts := l.clock()
	msgs = append(msgs, mirror.Message{
		SequenceNumber:     int64(len(msgs) + 1),
		ConsensusTimestamp: fmt.Sprintf("%d.%09d", ts.Unix(), ts.Nanosecond()),
		Message:            base64.StdEncoding.EncodeToString(message),
	})
	l.topics[topicID] = msgs
	return "SUCCESS", nil
}

func (l *fakeLedger) ListMessages(ctx context.Context, topicID string) ([]mirror.Message, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.mirrorErr != nil {
		return nil, l.mirrorErr
	}
	return append([]mirror.Message{}, l.topics[topicID]...), nil
}

func (l *fakeLedger) submitCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.submits
}

// staticMirror serves a fixed message list.
type staticMirror []mirror.Message

func (m staticMirror) ListMessages(ctx context.Context, topicID string) ([]mirror.Message, error) {
	return m, nil
}

type fakeSequencer struct {
	mu   sync.Mutex
	seqs map[string]int64
	err  error
}

func (f *fakeSequencer) NextProvisionalSequence(ctx context.Context, topicID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	if f.seqs == nil {
		f.seqs = map[string]int64{}
	}
	f.seqs[topicID]++
	return f.seqs[topicID], nil
}

type fakeIdempotency struct {
	mu     sync.Mutex
	values map[string][]byte
}

func newFakeIdempotency() *fakeIdempotency {
	return &fakeIdempotency{values: map[string][]byte{}}
}

func (f *fakeIdempotency) ReserveIdempotencyKey(ctx context.Context, key string, ttl time.Duration) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	if !ok {
		f.values[key] = nil
		return nil, nil
	}
	if v == nil {
		return nil, redisclient.ErrIdempotencyInFlight
	}
	return v, nil
}

func (f *fakeIdempotency) CompleteIdempotencyKey(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = response
	return nil
}

func (f *fakeIdempotency) ReleaseIdempotencyKey(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.values, key)
	return nil
}

type fakePublisher struct {
	mu        sync.Mutex
	created   []*models.TopicCreatedEvent
	submitted []*models.EventSubmittedEvent
	err       error
}

func (p *fakePublisher) PublishTopicCreated(ctx context.Context, e *models.TopicCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, e)
	return p.err
}

func (p *fakePublisher) PublishEventSubmitted(ctx context.Context, e *models.EventSubmittedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.submitted = append(p.submitted, e)
	return p.err
}

// encodedMessage builds a mirror message carrying rec.
func encodedMessage(seq int64, ts string, rec models.EventRecord) mirror.Message {
	payload, err := ledger.EncodeRecord(rec)
	if err != nil {
		panic(err)
	}
	return mirror.Message{
		SequenceNumber:     seq,
		ConsensusTimestamp: ts,
		Message:            base64.StdEncoding.EncodeToString(payload),
	}
}

// steppingClock advances by step on every call.
func steppingClock(start time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	now := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(step)
		return now
	}
}
