package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestEventTypeConstants(t *testing.T) {
	tests := []struct {
		name     string
		et       EventType
		expected string
	}{
		{"user created", EventUserCreated, "user.created"},
		{"user logged in", EventUserLoggedIn, "user.logged_in"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if string(tt.et) != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, string(tt.et))
			}
		})
	}
}

func TestNewUserCreated(t *testing.T) {
	e := NewUserCreated("user-1", "a@b.org", Metadata{"source": "signup"})

	if e.EventID == "" {
		t.Error("expected event id to be generated")
	}
	if e.EventType != EventUserCreated {
		t.Errorf("expected %q, got %q", EventUserCreated, e.EventType)
	}
	if e.Version != "1.0" {
		t.Errorf("expected version 1.0, got %q", e.Version)
	}
	ts, err := time.Parse(time.RFC3339Nano, e.Timestamp)
	if err != nil {
		t.Fatalf("timestamp is not ISO-8601: %v", err)
	}
	if ts.Location() != time.UTC {
		t.Errorf("expected UTC timestamp, got %s", ts.Location())
	}
}

func TestNewUserCreated_UniqueIDs(t *testing.T) {
	a := NewUserCreated("u", "a@b.org", nil)
	b := NewUserCreated("u", "a@b.org", nil)
	if a.EventID == b.EventID {
		t.Errorf("expected distinct ids, both %q", a.EventID)
	}
}

func TestNewUserLoggedIn_LoginTimestampEqualsTimestamp(t *testing.T) {
	e := NewUserLoggedIn("user-1", "a@b.org", nil)
	if e.LoginTimestamp != e.Timestamp {
		t.Errorf("login_timestamp %q != timestamp %q", e.LoginTimestamp, e.Timestamp)
	}
}

func TestFactory_CopiesMetadata(t *testing.T) {
	md := Metadata{"source": "signup"}
	e := NewUserCreated("user-1", "a@b.org", md)
	md["source"] = "mutated"

	if e.Metadata["source"] != "signup" {
		t.Errorf("event metadata changed after factory returned: %v", e.Metadata["source"])
	}
}

func TestEventRoundTrip(t *testing.T) {
	orig := NewUserLoggedIn("user-9", "x@y.org", Metadata{
		"source":             "user-service",
		"postgres_available": true,
		"attempt":            float64(2),
	})

	body, err := orig.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := DecodeEvent(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := decoded.(UserLoggedIn)
	if !ok {
		t.Fatalf("expected UserLoggedIn, got %T", decoded)
	}

	if got.EventID != orig.EventID || got.EventType != orig.EventType ||
		got.UserID != orig.UserID || got.Email != orig.Email {
		t.Errorf("round trip mismatch: %+v vs %+v", got, orig)
	}
	for k, v := range orig.Metadata {
		if got.Metadata[k] != v {
			t.Errorf("metadata[%s]: expected %v, got %v", k, v, got.Metadata[k])
		}
	}
	if got.LoginTimestamp != orig.LoginTimestamp {
		t.Errorf("login_timestamp mismatch")
	}
}

func TestRawEvent_EncodesLikeTypedEvent(t *testing.T) {
	typed := NewUserCreated("user-1", "a@b.org", Metadata{"source": "signup"})
	typedBody, _ := typed.Encode()

	var raw RawEvent
	if err := json.Unmarshal(typedBody, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	rawBody, err := raw.Encode()
	if err != nil {
		t.Fatalf("encode raw: %v", err)
	}

	var a, b map[string]any
	_ = json.Unmarshal(typedBody, &a)
	_ = json.Unmarshal(rawBody, &b)
	if len(a) != len(b) {
		t.Fatalf("field count differs: %d vs %d", len(a), len(b))
	}
	aj, _ := json.Marshal(a)
	bj, _ := json.Marshal(b)
	if string(aj) != string(bj) {
		t.Errorf("raw and typed encodings decode differently:\n%s\n%s", aj, bj)
	}
	if raw.ID() != typed.ID() || raw.Type() != typed.Type() {
		t.Errorf("raw accessors mismatch")
	}
}

func TestRawEvent_RequiresIdentity(t *testing.T) {
	if _, err := (RawEvent{"email": "a@b.org"}).Encode(); err == nil {
		t.Error("expected error for raw event without id/type")
	}
}

func TestDecodeEvent_Unknown(t *testing.T) {
	_, err := DecodeEvent([]byte(`{"event_type":"user.deleted"}`))
	if !errors.Is(err, ErrUnknownEventType) {
		t.Errorf("expected ErrUnknownEventType, got %v", err)
	}
}

func TestBase(t *testing.T) {
	e := NewUserCreated("user-1", "a@b.org", nil)
	base, ok := Base(e)
	if !ok || base.UserID != "user-1" {
		t.Errorf("unexpected base: %+v ok=%v", base, ok)
	}
	if _, ok := Base(RawEvent{}); ok {
		t.Error("raw events have no typed base")
	}
}
