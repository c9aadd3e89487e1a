// Package events provides event management functionality.
package events

import "time"

// EventType represents different event types
type EventType string

const (
	SpaceCreated        EventType = "SPACE_CREATED"
	SpaceUpdated        EventType = "SPACE_UPDATED"
	BalanceChanged      EventType = "BALANCE_CHANGED"
	SpaceFrozen         EventType = "SPACE_FROZEN"
	SpaceUnfrozen       EventType = "SPACE_UNFROZEN"
	TransferCompleted   EventType = "TRANSFER_COMPLETED"
	TransferCompensated EventType = "TRANSFER_COMPENSATED"
	InvariantViolated   EventType = "INVARIANT_VIOLATED"
	ErrorOccurred       EventType = "ERROR_OCCURRED"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type" msgpack:"type"`
	Timestamp time.Time              `json:"timestamp" msgpack:"timestamp"`
	Data      map[string]interface{} `json:"data" msgpack:"data"`
	Module    string                 `json:"module" msgpack:"module"`
}
