package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of domain event.
type EventType string

const (
	EventUserCreated  EventType = "user.created"
	EventUserLoggedIn EventType = "user.logged_in"
)

// EventSchemaVersion is stamped on every event created by this service.
const EventSchemaVersion = "1.0"

var ErrUnknownEventType = errors.New("unknown event type")

// Event is anything the publisher can put on the wire.
type Event interface {
	ID() string
	Type() EventType
	Encode() ([]byte, error)
}

// Metadata carries provenance flags such as source, operation and
// *_available markers. Values are scalars or booleans.
type Metadata map[string]any

// BaseEvent holds the fields shared by every user event.
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType EventType `json:"event_type"`
	Timestamp string    `json:"timestamp"`
	Version   string    `json:"version"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Metadata  Metadata  `json:"metadata"`
}

func (e BaseEvent) ID() string      { return e.EventID }
func (e BaseEvent) Type() EventType { return e.EventType }

// UserCreated is emitted after a successful signup.
type UserCreated struct {
	BaseEvent
}

// UserLoggedIn is emitted after a successful login.
type UserLoggedIn struct {
	BaseEvent
	LoginTimestamp string `json:"login_timestamp"`
}

func (e UserCreated) Encode() ([]byte, error)  { return json.Marshal(e) }
func (e UserLoggedIn) Encode() ([]byte, error) { return json.Marshal(e) }

var now = func() time.Time { return time.Now().UTC() }

func newBase(t EventType, userID, email string, md Metadata) BaseEvent {
	cp := Metadata{}
	maps.Copy(cp, md)
	return BaseEvent{
		EventID:   uuid.NewString(),
		EventType: t,
		Timestamp: now().Format(time.RFC3339Nano),
		Version:   EventSchemaVersion,
		UserID:    userID,
		Email:     email,
		Metadata:  cp,
	}
}

// NewUserCreated builds a user.created event.
func NewUserCreated(userID, email string, md Metadata) UserCreated {
	return UserCreated{BaseEvent: newBase(EventUserCreated, userID, email, md)}
}

// NewUserLoggedIn builds a user.logged_in event. LoginTimestamp always
// equals Timestamp.
func NewUserLoggedIn(userID, email string, md Metadata) UserLoggedIn {
	base := newBase(EventUserLoggedIn, userID, email, md)
	return UserLoggedIn{BaseEvent: base, LoginTimestamp: base.Timestamp}
}

// RawEvent is an event held as a plain mapping, e.g. one relayed from
// another producer. It encodes to the same document as the typed form.
type RawEvent map[string]any

func (r RawEvent) ID() string {
	s, _ := r["event_id"].(string)
	return s
}

func (r RawEvent) Type() EventType {
	s, _ := r["event_type"].(string)
	return EventType(s)
}

func (r RawEvent) Encode() ([]byte, error) {
	if r.ID() == "" || r.Type() == "" {
		return nil, fmt.Errorf("raw event missing event_id or event_type")
	}
	return json.Marshal(map[string]any(r))
}

// DecodeEvent parses a wire payload back into its typed form.
func DecodeEvent(body []byte) (Event, error) {
	var head struct {
		EventType EventType `json:"event_type"`
	}
	if err := json.Unmarshal(body, &head); err != nil {
		return nil, fmt.Errorf("decoding event: %w", err)
	}

	switch head.EventType {
	case EventUserCreated:
		var e UserCreated
		if err := json.Unmarshal(body, &e); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", head.EventType, err)
		}
		return e, nil
	case EventUserLoggedIn:
		var e UserLoggedIn
		if err := json.Unmarshal(body, &e); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", head.EventType, err)
		}
		return e, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, head.EventType)
	}
}

// Base returns the shared fields of a typed event.
func Base(e Event) (BaseEvent, bool) {
	switch ev := e.(type) {
	case UserCreated:
		return ev.BaseEvent, true
	case UserLoggedIn:
		return ev.BaseEvent, true
	default:
		return BaseEvent{}, false
	}
}
