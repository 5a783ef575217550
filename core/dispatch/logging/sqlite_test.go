package logging

import (
	"context"
	"testing"
	"time"

	"github.com/kilianp07/fleetdispatch/core/model"
)

func TestSQLiteStore_PersistQuery(t *testing.T) {
	store, err := NewSQLiteStore("file:test.db?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = store.Close() }()
	rec := LogRecord{
		Timestamp: time.Now(),
		OrderID:   "o1",
		VehicleID: "v1",
		Action:    ActionAssigned,
		From:      model.OrderPending,
		To:        model.OrderAssigned,
		Score:     12.5,
	}
	if err := store.Append(context.Background(), rec); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := store.Append(context.Background(), LogRecord{Timestamp: time.Now(), OrderID: "o2", Action: ActionSubmitted}); err != nil {
		t.Fatalf("append: %v", err)
	}
	out, err := store.Query(context.Background(), LogQuery{VehicleID: "v1"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 record, got %d", len(out))
	}
	if out[0].To != model.OrderAssigned || out[0].Score != 12.5 {
		t.Fatalf("record not restored: %#v", out[0])
	}
}
