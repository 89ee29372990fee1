package knocki

import (
	"encoding/json"
	"fmt"
)

// EventKind identifies the lifecycle stage of a trigger that an event
// reports. The values are the wire strings the vendor sends in the
// "event" field.
type EventKind string

// The four event kinds the Knocki service pushes.
const (
	EventCreated   EventKind = "actionCreated"
	EventUpdated   EventKind = "actionUpdated"
	EventDeleted   EventKind = "actionDeleted"
	EventTriggered EventKind = "actionTriggered"
)

// Kinds returns all recognized event kinds, in a fixed order.
func Kinds() []EventKind {
	return []EventKind{EventCreated, EventUpdated, EventDeleted, EventTriggered}
}

// Valid reports whether k is one of the recognized event kinds.
func (k EventKind) Valid() bool {
	switch k {
	case EventCreated, EventUpdated, EventDeleted, EventTriggered:
		return true
	default:
		return false
	}
}

// TriggerDetails carries the per-trigger attributes: the vendor-assigned
// identifier and the human-readable name.
type TriggerDetails struct {
	TriggerID string `json:"id"`
	Name      string `json:"name"`
}

// UnmarshalJSON accepts the trigger id as either a JSON string or a
// number; the API is inconsistent about which it sends.
func (d *TriggerDetails) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID   json.RawMessage `json:"id"`
		Name string          `json:"name"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	d.Name = raw.Name
	d.TriggerID = ""
	if len(raw.ID) == 0 || string(raw.ID) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw.ID, &s); err == nil {
		d.TriggerID = s
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(raw.ID, &n); err != nil {
		return fmt.Errorf("trigger id: %w", err)
	}
	d.TriggerID = n.String()
	return nil
}

// Trigger identifies a physical Knocki device and the gesture bound to
// it. Values are immutable once parsed.
type Trigger struct {
	DeviceID string         `json:"device"`
	Details  TriggerDetails `json:"details"`
}

// Event pairs an EventKind with the trigger it concerns. Events are only
// produced by decoding inbound frames from the event stream.
type Event struct {
	Kind    EventKind `json:"event"`
	Payload Trigger   `json:"payload"`
}

// TokenResponse holds the credentials returned by Login.
type TokenResponse struct {
	Token  string
	UserID string
}

// ParseEvent decodes one inbound event-stream frame. It returns a
// *DecodeError when the payload is not valid JSON, the event kind is not
// recognized, or required trigger fields are missing. Decoding is pure:
// a failed parse has no side effects.
func ParseEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, &DecodeError{Reason: "invalid payload", Err: err}
	}
	if !ev.Kind.Valid() {
		return Event{}, &DecodeError{Reason: fmt.Sprintf("unrecognized event kind %q", ev.Kind)}
	}
	if ev.Payload.DeviceID == "" {
		return Event{}, &DecodeError{Reason: "missing device id"}
	}
	if ev.Payload.Details.TriggerID == "" {
		return Event{}, &DecodeError{Reason: "missing trigger id"}
	}
	return ev, nil
}
