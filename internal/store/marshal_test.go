package store

import (
	"testing"
	"time"

	"github.com/roach88/varsys/internal/event"
)

func TestMarshalValue(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"number", 30.0, "30"},
		{"fraction", 1.2, "1.2"},
		{"bool", true, "true"},
		{"string", "<auto>", `"<auto>"`},
		{"nil", nil, "null"},
		{"object keys sorted", map[string]any{"b": 1.0, "a": 2.0}, `{"a":2,"b":1}`},
		{"struct via json tags", event.Signal{Name: "door"}, `{"name":"door"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := marshalValue(tt.value)
			if err != nil {
				t.Fatalf("marshalValue() failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("marshalValue() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestUnmarshalValue_NumbersAreFloat(t *testing.T) {
	v, err := unmarshalValue("42")
	if err != nil {
		t.Fatalf("unmarshalValue() failed: %v", err)
	}
	if _, ok := v.(float64); !ok {
		t.Errorf("unmarshalValue(42) = %T, want float64", v)
	}

	if _, err := unmarshalValue("{"); err == nil {
		t.Error("expected error for truncated JSON")
	}
}

func TestMarshalEvent(t *testing.T) {
	reg := event.NewRegistry()

	kind, payload, err := marshalEvent(reg, event.CronFired{
		Name: "minute",
		At:   time.Date(2024, 1, 1, 0, 1, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("marshalEvent() failed: %v", err)
	}
	if kind != event.KindCron {
		t.Errorf("kind = %q, want %q", kind, event.KindCron)
	}
	if want := `{"at":"2024-01-01T00:01:00Z","name":"minute"}`; payload != want {
		t.Errorf("payload = %s, want %s", payload, want)
	}

	type unknown struct{}
	if _, _, err := marshalEvent(reg, unknown{}); err == nil {
		t.Error("expected error for unregistered event type")
	}
}
