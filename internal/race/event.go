package race

import (
	"encoding/json"
	"time"
)

// EventType enum for event classification
type EventType uint8

const (
	EventTypeUnknown EventType = iota
	EventTypeRaceStart
	EventTypeMarbleSpawn
	EventTypeMarbleFinish
	EventTypeRaceTimeout
	EventTypeRaceComplete
	EventTypeRaceReset
	EventTypeEditEnter
	EventTypeEditExit
)

// EventVersion for backwards compatibility in replay
const EventVersion uint8 = 1

// Event is the core event structure for the event log
type Event struct {
	Version   uint8     `json:"version"`   // Schema version
	Type      EventType `json:"type"`      // Event type
	Timestamp int64     `json:"timestamp"` // Unix nano
	Sequence  uint64    `json:"sequence"`  // Monotonic sequence
	TickNum   uint64    `json:"tickNum"`   // Engine tick this occurred in
	Payload   []byte    `json:"payload"`   // JSON-encoded payload
}

// String returns human-readable event type
func (t EventType) String() string {
	switch t {
	case EventTypeRaceStart:
		return "race_start"
	case EventTypeMarbleSpawn:
		return "marble_spawn"
	case EventTypeMarbleFinish:
		return "marble_finish"
	case EventTypeRaceTimeout:
		return "race_timeout"
	case EventTypeRaceComplete:
		return "race_complete"
	case EventTypeRaceReset:
		return "race_reset"
	case EventTypeEditEnter:
		return "edit_enter"
	case EventTypeEditExit:
		return "edit_exit"
	default:
		return "unknown"
	}
}

// Typed payloads for different event types

// RaceStartPayload records the locked-in configuration at race start
type RaceStartPayload struct {
	Level       string  `json:"level"`
	MarbleCount int     `json:"marbleCount"`
	Gravity     float64 `json:"gravity"`
	Elasticity  float64 `json:"elasticity"`
	TimeLimit   float64 `json:"timeLimit"`
	Rate        float64 `json:"rate"`
}

// MarbleSpawnPayload records one emission
type MarbleSpawnPayload struct {
	MarbleID int     `json:"marbleId"`
	Name     string  `json:"name"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

// MarbleFinishPayload records one finish-line crossing
type MarbleFinishPayload struct {
	MarbleID    int     `json:"marbleId"`
	Name        string  `json:"name"`
	Place       int     `json:"place"`
	Elapsed     float64 `json:"elapsed"`
	TiedForLast bool    `json:"tiedForLast,omitempty"`
}

// RaceTimeoutPayload records how many marbles tied at the deadline
type RaceTimeoutPayload struct {
	TiedCount int     `json:"tiedCount"`
	Elapsed   float64 `json:"elapsed"`
}

// EncodePayload marshals a payload to JSON bytes
func EncodePayload(payload interface{}) []byte {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}

// NewEvent creates a new event with the current timestamp
func NewEvent(eventType EventType, tickNum uint64, payload interface{}) Event {
	return Event{
		Version:   EventVersion,
		Type:      eventType,
		Timestamp: time.Now().UnixNano(),
		TickNum:   tickNum,
		Payload:   EncodePayload(payload),
	}
}
