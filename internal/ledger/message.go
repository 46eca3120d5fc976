package ledger

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"provenance-relay/internal/models"
)

// ErrEmptyMessage is returned for payloads that decode to nothing.
var ErrEmptyMessage = errors.New("empty message")

// EncodeRecord serializes the canonical event record appended to a topic.
func EncodeRecord(rec models.EventRecord) ([]byte, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event record: %w", err)
	}
	return b, nil
}

// DecodeRecord parses a raw topic payload. Every canonical field except
// details must be present.
func DecodeRecord(payload []byte) (models.EventRecord, error) {
	var rec models.EventRecord

	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return rec, ErrEmptyMessage
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return rec, fmt.Errorf("message is not a JSON object: %w", err)
	}
	for _, name := range []string{"eventType", "location", "timestamp", "createdBy"} {
		if _, ok := fields[name]; !ok {
			return rec, fmt.Errorf("message missing field %q", name)
		}
	}

	if err := json.Unmarshal(payload, &rec); err != nil {
		return rec, fmt.Errorf("failed to unmarshal event record: %w", err)
	}
	if rec.EventType == "" {
		return rec, fmt.Errorf("message has empty eventType")
	}
	return rec, nil
}

// DecodeTransport reverses the mirror service's base64 transport encoding
// and parses the record inside.
func DecodeTransport(encoded string) (models.EventRecord, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return models.EventRecord{}, fmt.Errorf("failed to decode message payload: %w", err)
	}
	return DecodeRecord(raw)
}
