package notify

import (
	"context"
	"time"

	"github.com/kilianp07/fleetdispatch/core/events"
	"github.com/kilianp07/fleetdispatch/core/logger"
	"github.com/kilianp07/fleetdispatch/core/model"
	"github.com/kilianp07/fleetdispatch/internal/eventbus"
)

// StartForwarder relays dispatch decisions from the bus to vehicles until
// ctx is canceled. Assignments produce an assignment command; cancellations,
// disruptions and assignment timeouts produce a cancellation command for the
// vehicle that lost the order. Each outcome is published as VehicleNotified.
func StartForwarder(ctx context.Context, bus eventbus.EventBus, n Notifier, log logger.Logger) {
	if bus == nil || n == nil {
		return
	}
	q := bus.SubscribeQueue()
	go func() {
		defer bus.UnsubscribeQueue(q)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-q.Ready():
				for _, ev := range q.Drain() {
					forward(ctx, bus, n, log, ev)
				}
				if !ok {
					return
				}
			}
		}
	}()
}

func forward(ctx context.Context, bus eventbus.EventBus, n Notifier, log logger.Logger, ev eventbus.Event) {
	var (
		kind, vehicleID, orderID string
		err                      error
	)
	switch e := ev.(type) {
	case events.OrderAssigned:
		kind, vehicleID, orderID = KindAssignment, e.Assignment.VehicleID, e.Order.ID
		err = n.NotifyAssignment(ctx, e.Order, e.Assignment)
	case events.OrderStatusChanged:
		if e.To != model.OrderCancelled || e.VehicleID == "" {
			return
		}
		kind, vehicleID, orderID = KindCancellation, e.VehicleID, e.OrderID
		err = n.NotifyCancellation(ctx, e.VehicleID, e.OrderID, e.Reason)
	case events.OrderReassigned:
		if e.VehicleID == "" {
			return
		}
		kind, vehicleID, orderID = KindCancellation, e.VehicleID, e.OriginalOrderID
		err = n.NotifyCancellation(ctx, e.VehicleID, e.OriginalOrderID, e.Reason)
	case events.AssignmentTimedOut:
		kind, vehicleID, orderID = KindCancellation, e.VehicleID, e.OrderID
		err = n.NotifyCancellation(ctx, e.VehicleID, e.OrderID, "assignment_timeout")
	default:
		return
	}
	if err != nil && log != nil {
		log.Errorf("notify %s %s for order %s: %v", kind, vehicleID, orderID, err)
	}
	bus.Publish(events.VehicleNotified{VehicleID: vehicleID, OrderID: orderID, Kind: kind, Err: err, Time: time.Now()})
}
