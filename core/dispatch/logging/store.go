package logging

import (
	"context"
	"time"

	"github.com/kilianp07/fleetdispatch/core/model"
)

// Actions recorded in the audit log.
const (
	ActionSubmitted = "submitted"
	ActionAssigned  = "assigned"
	ActionRequeued  = "requeued"
	ActionTimedOut  = "timed_out"
	ActionInTransit = "in_transit"
	ActionDelivered = "delivered"
	ActionFailed    = "failed"
	ActionCancelled = "cancelled"
	ActionAlert     = "alert"
)

// LogRecord captures one dispatch decision or order transition.
type LogRecord struct {
	Timestamp time.Time         `json:"timestamp"`
	OrderID   string            `json:"order_id"`
	VehicleID string            `json:"vehicle_id,omitempty"`
	Action    string            `json:"action"`
	From      model.OrderStatus `json:"from,omitempty"`
	To        model.OrderStatus `json:"to,omitempty"`
	Priority  model.Priority    `json:"priority,omitempty"`
	Score     float64           `json:"score,omitempty"`
	Attempts  int               `json:"attempts,omitempty"`
	Reason    string            `json:"reason,omitempty"`
	Route     *model.Route      `json:"route,omitempty"`
}

// LogQuery defines filters for retrieving records.
type LogQuery struct {
	Start     time.Time
	End       time.Time
	VehicleID string
	OrderID   string
	Action    string
	// Limit keeps the most recent records when positive.
	Limit int
}

// Match reports whether r satisfies every filter of q except Limit.
func (q LogQuery) Match(r LogRecord) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.VehicleID != "" && r.VehicleID != q.VehicleID {
		return false
	}
	if q.OrderID != "" && r.OrderID != q.OrderID {
		return false
	}
	if q.Action != "" && r.Action != q.Action {
		return false
	}
	return true
}

func (q LogQuery) limit(res []LogRecord) []LogRecord {
	if q.Limit > 0 && len(res) > q.Limit {
		return res[len(res)-q.Limit:]
	}
	return res
}

// LogStore persists LogRecords and supports querying.
type LogStore interface {
	Append(ctx context.Context, rec LogRecord) error
	Query(ctx context.Context, q LogQuery) ([]LogRecord, error)
	Close() error
}
