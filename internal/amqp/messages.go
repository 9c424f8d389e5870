package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"fintrack/internal/core"
)

// NewLedgerEvent stamps an event with the current time.
func NewLedgerEvent(user string, kind core.Kind, op core.Op, id int64) core.LedgerEvent {
	return core.LedgerEvent{User: user, Kind: kind, Op: op, ID: id, Timestamp: time.Now()}
}

// EncodeEvent converts the event to JSON bytes
func EncodeEvent(ev core.LedgerEvent) ([]byte, error) {
	return json.Marshal(ev)
}

// DecodeEvent parses and validates an event body.
func DecodeEvent(data []byte) (core.LedgerEvent, error) {
	var ev core.LedgerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return core.LedgerEvent{}, err
	}
	if ev.User == "" {
		return core.LedgerEvent{}, fmt.Errorf("event without user")
	}
	switch ev.Op {
	case core.OpCreate, core.OpUpdate, core.OpDelete:
		if !ev.Kind.Valid() {
			return core.LedgerEvent{}, fmt.Errorf("event with invalid kind %q", ev.Kind)
		}
	case core.OpResync:
	default:
		return core.LedgerEvent{}, fmt.Errorf("event with unknown op %q", ev.Op)
	}
	return ev, nil
}
