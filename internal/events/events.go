// Package events fans engine activity out to SSE subscribers.
package events

import (
	"encoding/json"
	"time"
)

// Event types published by the engine.
const (
	TypePostingDiscovered    = "posting_discovered"
	TypeApplicationSubmitted = "application_submitted"
	TypeScheduleUpdated      = "schedule_updated"
	TypeResponseReceived     = "response_received"
	TypeDiscoveryState       = "discovery_state"
)

type Event struct {
	Type      string          `json:"type"`
	Version   int             `json:"v"`
	At        time.Time       `json:"at"`
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

func MakeEvent(reqID, typ string, v int, data any) string {
	var raw json.RawMessage
	if data != nil {
		b, _ := json.Marshal(data)
		raw = b
	}
	e := Event{
		Type:      typ,
		Version:   v,
		At:        time.Now().UTC(),
		RequestID: reqID,
		Data:      raw,
	}
	b, _ := json.Marshal(e)
	return string(b)
}
