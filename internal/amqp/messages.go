package amqp

import (
	"encoding/json"
	"time"
)

// Event types carried on the finance stream.
const (
	EventInstancesGenerated = "instances.generated"
	EventItemCreated        = "item.created"
	EventItemUpdated        = "item.updated"
	EventItemRemoved        = "item.removed"
	EventDebtCreated        = "debt.created"
	EventDebtPaid           = "debt.paid"
	EventDebtNegotiated     = "debt.negotiated"
)

// FinanceEvent is a lightweight record of one engine mutation. The worker
// consumes these into the audit trail; a consumer needing full rows fetches
// them from the database by entity id.
type FinanceEvent struct {
	Type      string    `json:"type"`
	OwnerID   string    `json:"owner_id"`
	EntityID  int64     `json:"entity_id,omitempty"`
	MonthKey  string    `json:"month_key,omitempty"`
	Count     int       `json:"count,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewFinanceEvent creates an event stamped with the current time.
func NewFinanceEvent(eventType, owner string, entityID int64, monthKey string) *FinanceEvent {
	return &FinanceEvent{
		Type:      eventType,
		OwnerID:   owner,
		EntityID:  entityID,
		MonthKey:  monthKey,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the event to JSON bytes.
func (e *FinanceEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FinanceEventFromJSON creates an event from JSON bytes.
func FinanceEventFromJSON(data []byte) (*FinanceEvent, error) {
	var ev FinanceEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
