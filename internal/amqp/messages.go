package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventKind names what happened to a user's ledger.
type EventKind string

const (
	TransactionCreated EventKind = "transaction.created"
	TransactionDeleted EventKind = "transaction.deleted"
	AutopayProcessed   EventKind = "autopay.processed"
	LedgerChanged      EventKind = "ledger.changed"
)

// LedgerEvent is a lightweight notification. Consumers reload the snapshot
// from storage instead of trusting the payload.
type LedgerEvent struct {
	Kind           EventKind `json:"kind"`
	UserID         string    `json:"userId"`
	TransactionIDs []string  `json:"transactionIds,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

func NewLedgerEvent(kind EventKind, userID string, txIDs ...string) *LedgerEvent {
	return &LedgerEvent{
		Kind:           kind,
		UserID:         userID,
		TransactionIDs: txIDs,
		Timestamp:      time.Now().UTC(),
	}
}

func (m *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventFromJSON decodes and validates a message body.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var msg LedgerEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.UserID == "" {
		return nil, fmt.Errorf("event without user id")
	}
	switch msg.Kind {
	case TransactionCreated, TransactionDeleted, AutopayProcessed, LedgerChanged:
	default:
		return nil, fmt.Errorf("unknown event kind %q", msg.Kind)
	}
	return &msg, nil
}
