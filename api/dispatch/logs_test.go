package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kilianp07/fleetdispatch/core/dispatch/logging"
	"github.com/kilianp07/fleetdispatch/core/model"
)

type memStore struct{ recs []logging.LogRecord }

func (m *memStore) Append(ctx context.Context, r logging.LogRecord) error {
	m.recs = append(m.recs, r)
	return nil
}

func (m *memStore) Query(ctx context.Context, q logging.LogQuery) ([]logging.LogRecord, error) {
	var res []logging.LogRecord
	for _, r := range m.recs {
		if q.Match(r) {
			res = append(res, r)
		}
	}
	return res, nil
}

func (m *memStore) Close() error { return nil }

func TestLogHandler_AuthAndFilters(t *testing.T) {
	store := &memStore{}
	now := time.Now()
	_ = store.Append(context.Background(), logging.LogRecord{
		Timestamp: now, OrderID: "o1", VehicleID: "v1", Action: logging.ActionAssigned,
		From: model.OrderPending, To: model.OrderAssigned,
	})
	_ = store.Append(context.Background(), logging.LogRecord{
		Timestamp: now, OrderID: "o2", VehicleID: "v2", Action: logging.ActionAssigned,
	})
	h := NewLogHandler(store, "tok")

	req := httptest.NewRequest("GET", "/v1/dispatch/logs?vehicle_id=v1", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	var out []logging.LogRecord
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(out) != 1 || out[0].OrderID != "o1" {
		t.Fatalf("expected o1 only, got %+v", out)
	}
	// unauthorized
	req = httptest.NewRequest("GET", "/v1/dispatch/logs", nil)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rr.Code)
	}
}

func TestLogHandler_ActionAndEmpty(t *testing.T) {
	store := &memStore{}
	_ = store.Append(context.Background(), logging.LogRecord{Timestamp: time.Now(), OrderID: "o1", Action: logging.ActionSubmitted})
	h := NewLogHandler(store, "")

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/v1/dispatch/logs?action=timed_out", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	if rr.Body.String() != "[]\n" {
		t.Fatalf("expected empty array got %s", rr.Body.String())
	}
}

func TestLogHandler_BadTime(t *testing.T) {
	h := NewLogHandler(&memStore{}, "")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/v1/dispatch/logs?start=yesterday", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
}
