package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	EntityCategory    = "category"
	EntityTransaction = "transaction"
	EntityBudget      = "budget"

	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// LedgerEvent announces a committed change to one owned entity.
// It carries identifiers only; consumers read current state from the database.
type LedgerEvent struct {
	Entity    string    `json:"entity"`
	Action    string    `json:"action"`
	EntityID  int64     `json:"entity_id"`
	UserID    int64     `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLedgerEvent(entity, action string, entityID, userID int64) *LedgerEvent {
	return &LedgerEvent{
		Entity:    entity,
		Action:    action,
		EntityID:  entityID,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
	}
}

// RoutingKey is "<entity>.<action>", e.g. "budget.created".
func (e *LedgerEvent) RoutingKey() string {
	return e.Entity + "." + e.Action
}

// ToJSON converts the message to JSON bytes
func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes and checks an event body.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if e.Entity == "" || e.Action == "" || e.EntityID == 0 || e.UserID == 0 {
		return nil, fmt.Errorf("incomplete ledger event: %+v", e)
	}
	return &e, nil
}
