package models

import "time"

// Product is a supply-chain item bound to one ledger topic
type Product struct {
	ID          string    `db:"id" json:"id"`
	TopicID     string    `db:"topic_id" json:"topic_id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description"`
	CreatedBy   string    `db:"created_by" json:"created_by"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Sequence is a position in a topic's message log. Provisional values are
// local placeholders written at submission and never reflect ledger order.
type Sequence struct {
	Provisional bool  `json:"provisional"`
	Value       int64 `json:"value"`
}

// ProvisionalSequence tags a locally assigned sequence value
func ProvisionalSequence(v int64) Sequence {
	return Sequence{Provisional: true, Value: v}
}

// ProductEvent is the cached projection of one topic message
type ProductEvent struct {
	ID                 string    `db:"id" json:"id"`
	ProductID          string    `db:"product_id" json:"product_id"`
	EventType          string    `db:"event_type" json:"event_type"`
	Location           string    `db:"location" json:"location"`
	Details            string    `db:"details" json:"details"`
	SequenceNumber     int64     `db:"sequence_number" json:"-"`
	SequenceIsLocal    bool      `db:"sequence_provisional" json:"-"`
	Sequence           Sequence  `db:"-" json:"sequence_number"`
	ConsensusTimestamp time.Time `db:"consensus_timestamp" json:"consensus_timestamp"`
	CreatedBy          string    `db:"created_by" json:"created_by"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
}

// SetSequence copies s into the column pair used by the store
func (e *ProductEvent) SetSequence(s Sequence) {
	e.Sequence = s
	e.SequenceNumber = s.Value
	e.SequenceIsLocal = s.Provisional
}

// LoadSequence rebuilds the tagged sequence from the column pair
func (e *ProductEvent) LoadSequence() {
	e.Sequence = Sequence{Provisional: e.SequenceIsLocal, Value: e.SequenceNumber}
}

// Event types
const (
	EventTypeCreated      = "created"
	EventTypeHarvested    = "harvested"
	EventTypeProcessed    = "processed"
	EventTypeShipped      = "shipped"
	EventTypeRoasted      = "roasted"
	EventTypeQualityCheck = "quality-check"
	EventTypeDelivered    = "delivered"
)

var eventTypes = map[string]struct{}{
	EventTypeCreated:      {},
	EventTypeHarvested:    {},
	EventTypeProcessed:    {},
	EventTypeShipped:      {},
	EventTypeRoasted:      {},
	EventTypeQualityCheck: {},
	EventTypeDelivered:    {},
}

// ValidEventType reports whether t belongs to the supply-chain vocabulary
func ValidEventType(t string) bool {
	_, ok := eventTypes[t]
	return ok
}

// ProcessedEvent for idempotency of notification handling
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
