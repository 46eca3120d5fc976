package models

import "time"

// Notification types published on the provenance Kafka topic
const (
	NotificationTopicCreated   = "TOPIC_CREATED"
	NotificationEventSubmitted = "EVENT_SUBMITTED"
)

// BaseEvent contains common fields for all notifications
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// TopicCreatedEvent published when a product is registered against a topic
type TopicCreatedEvent struct {
	BaseEvent
	TopicID   string `json:"topic_id"`
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	CreatedBy string `json:"created_by"`
}

// EventSubmittedEvent published after a message is appended to a topic
type EventSubmittedEvent struct {
	BaseEvent
	TopicID             string `json:"topic_id"`
	ProductID           string `json:"product_id"`
	ProductEventID      string `json:"product_event_id"`
	SupplyChainType     string `json:"supply_chain_event_type"`
	ProvisionalSequence int64  `json:"provisional_sequence"`
	ReceiptStatus       string `json:"receipt_status"`
}

// EventRecord is the canonical message appended to a topic
type EventRecord struct {
	EventType string `json:"eventType"`
	Location  string `json:"location"`
	Details   string `json:"details"`
	Timestamp string `json:"timestamp"`
	CreatedBy string `json:"createdBy"`
}

// Event is an EventRecord annotated with its ledger position
type Event struct {
	EventType          string    `json:"eventType"`
	Location           string    `json:"location"`
	Details            string    `json:"details"`
	Timestamp          string    `json:"timestamp,omitempty"`
	CreatedBy          string    `json:"createdBy,omitempty"`
	SequenceNumber     int64     `json:"sequenceNumber"`
	ConsensusTimestamp time.Time `json:"consensusTimestamp"`
}
