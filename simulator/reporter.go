package simulator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/kilianp07/fleetdispatch/core/logger"
	"github.com/kilianp07/fleetdispatch/core/model"
	"github.com/kilianp07/fleetdispatch/infra/telemetry"
)

// ErrReportDropped is returned by LossyReporter for a status report it lost.
var ErrReportDropped = errors.New("simulator: report dropped")

// Reporter delivers what a vehicle would send to the platform.
type Reporter interface {
	Telemetry(ctx context.Context, vehicleID string, t model.Telemetry) error
	Status(ctx context.Context, vehicleID, orderID, status string) error
}

// TelemetrySink receives telemetry samples.
type TelemetrySink interface {
	ApplyTelemetry(id string, t model.Telemetry) error
}

// StatusSink receives pickup and delivery confirmations.
type StatusSink interface {
	MarkInTransit(id string) error
	MarkDelivered(id string) error
}

// DirectReporter feeds the registry and scheduler in-process.
type DirectReporter struct {
	Fleet  TelemetrySink
	Orders StatusSink
}

// Telemetry implements Reporter.
func (d DirectReporter) Telemetry(_ context.Context, vehicleID string, t model.Telemetry) error {
	return d.Fleet.ApplyTelemetry(vehicleID, t)
}

// Status implements Reporter.
func (d DirectReporter) Status(_ context.Context, _, orderID, status string) error {
	switch status {
	case telemetry.StatusPickedUp:
		return d.Orders.MarkInTransit(orderID)
	case telemetry.StatusDelivered:
		return d.Orders.MarkDelivered(orderID)
	}
	return fmt.Errorf("simulator: unknown status %q", status)
}

// LossyReporter drops status reports with DropRate and sends the others
// after Delay. Telemetry passes through unchanged.
type LossyReporter struct {
	Next     Reporter
	Delay    time.Duration
	DropRate float64
	Log      logger.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewLossyReporter wraps next.
func NewLossyReporter(next Reporter, delay time.Duration, dropRate float64, seed int64, log logger.Logger) *LossyReporter {
	return &LossyReporter{Next: next, Delay: delay, DropRate: dropRate, Log: log, rng: rand.New(rand.NewSource(seed))}
}

// Telemetry implements Reporter.
func (l *LossyReporter) Telemetry(ctx context.Context, vehicleID string, t model.Telemetry) error {
	return l.Next.Telemetry(ctx, vehicleID, t)
}

// Status implements Reporter. A dropped report returns ErrReportDropped.
func (l *LossyReporter) Status(ctx context.Context, vehicleID, orderID, status string) error {
	if l.drop() {
		if l.Log != nil {
			l.Log.Debugf("simulator: %s report for %s by %s lost", status, orderID, vehicleID)
		}
		return ErrReportDropped
	}
	if l.Delay <= 0 {
		return l.Next.Status(ctx, vehicleID, orderID, status)
	}
	time.AfterFunc(l.Delay, func() {
		if ctx.Err() != nil {
			return
		}
		if err := l.Next.Status(ctx, vehicleID, orderID, status); err != nil && l.Log != nil {
			l.Log.Warnf("simulator: %s report for %s: %v", status, orderID, err)
		}
	})
	return nil
}

func (l *LossyReporter) drop() bool {
	if l.DropRate <= 0 {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.rng == nil {
		l.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return l.rng.Float64() < l.DropRate
}
