package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventKind names the ledger mutation an event reports.
type EventKind string

const (
	MovementCreated EventKind = "movement.created"
	MovementUpdated EventKind = "movement.updated"
	MovementDeleted EventKind = "movement.deleted"
	TransferCreated EventKind = "transfer.created"
	AccountCreated  EventKind = "account.created"
)

// LedgerEvent is a lightweight notification that one or more account ledgers
// changed. Consumers refetch the full history; the event carries no amounts.
// An empty AccountIDs means any account of the tenant may have changed.
type LedgerEvent struct {
	Kind       EventKind `json:"kind"`
	TenantID   string    `json:"tenant_id"`
	AccountIDs []string  `json:"account_ids"`
	MovementID string    `json:"movement_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewLedgerEvent creates an event for the given accounts, stamped now.
func NewLedgerEvent(kind EventKind, tenantID, movementID string, accountIDs ...string) *LedgerEvent {
	return &LedgerEvent{
		Kind:       kind,
		TenantID:   tenantID,
		AccountIDs: accountIDs,
		MovementID: movementID,
		Timestamp:  time.Now(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes an event and checks its kind and tenant.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if e.Kind == "" {
		return nil, fmt.Errorf("event kind is required")
	}
	if e.TenantID == "" {
		return nil, fmt.Errorf("event %s names no tenant", e.Kind)
	}
	return &e, nil
}
