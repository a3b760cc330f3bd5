package amqp

import (
	"strings"
	"testing"
	"time"
)

func TestFinanceEventRoundTrip(t *testing.T) {
	ev := NewFinanceEvent(EventDebtPaid, "u1", 42, "2025-03")
	if ev.Timestamp.IsZero() {
		t.Fatalf("event timestamp not stamped")
	}

	data, err := ev.ToJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	got, err := FinanceEventFromJSON(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Type != EventDebtPaid || got.OwnerID != "u1" || got.EntityID != 42 || got.MonthKey != "2025-03" {
		t.Fatalf("round trip lost fields: %+v", got)
	}
	if !got.Timestamp.Equal(ev.Timestamp) {
		t.Fatalf("timestamp drifted: %v vs %v", got.Timestamp, ev.Timestamp)
	}
}

func TestFinanceEventOmitsEmptyFields(t *testing.T) {
	ev := &FinanceEvent{Type: EventItemRemoved, OwnerID: "u1", Timestamp: time.Now()}
	data, err := ev.ToJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(data)
	for _, field := range []string{"entity_id", "month_key", "count"} {
		if strings.Contains(s, field) {
			t.Fatalf("zero field %q should be omitted: %s", field, s)
		}
	}
}

func TestFinanceEventFromJSONRejectsGarbage(t *testing.T) {
	if _, err := FinanceEventFromJSON([]byte("{not json")); err == nil {
		t.Fatalf("expected error for malformed payload")
	}
}

func TestGeneratedEventCarriesCount(t *testing.T) {
	ev := NewFinanceEvent(EventInstancesGenerated, "u1", 0, "2025-03")
	ev.Count = 3

	data, err := ev.ToJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := FinanceEventFromJSON(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Count != 3 {
		t.Fatalf("count expected 3, got %d", got.Count)
	}
}
