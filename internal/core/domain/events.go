package domain

import (
	"fmt"
	"time"
)

// Event types pushed to connected clients
const (
	EventPayoutProcessed    = "rosca_payout_processed"
	EventSwapRequested      = "rosca_swap_requested"
	EventSwapCompleted      = "rosca_swap_completed"
	EventContributionAdded  = "rosca_contribution_recorded"
	EventCycleCreated       = "rosca_cycle_created"
	EventCycleStatusChanged = "rosca_cycle_status_changed"
)

// Event is a domain event addressed to a single room
type Event struct {
	Room       string         `json:"room"`
	Type       string         `json:"event_type"`
	Payload    map[string]any `json:"payload"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// ChamaRoom is the room every active member of a chama joins
func ChamaRoom(chamaID uint) string {
	return fmt.Sprintf("chama:%d", chamaID)
}

// UserRoom is the private room of a single user
func UserRoom(userID uint) string {
	return fmt.Sprintf("user:%d", userID)
}

// NewEvent builds an event for room
func NewEvent(room, eventType string, payload map[string]any) Event {
	return Event{
		Room:       room,
		Type:       eventType,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	}
}
