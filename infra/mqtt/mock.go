package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/fleetdispatch/core/model"
	"github.com/kilianp07/fleetdispatch/core/notify"
)

// MockNotifier records commands in memory. Vehicles listed in FailIDs reject
// every command.
type MockNotifier struct {
	mu       sync.Mutex
	Commands []notify.Command
	FailIDs  map[string]bool
}

// NewMockNotifier creates a new MockNotifier.
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{FailIDs: make(map[string]bool)}
}

// NotifyAssignment records an assignment command.
func (m *MockNotifier) NotifyAssignment(_ context.Context, o model.Order, a model.Assignment) error {
	return m.add(notify.AssignmentCommand(fmt.Sprintf("cmd-%s", o.ID), o, a, a.CreatedAt))
}

// NotifyCancellation records a cancellation command.
func (m *MockNotifier) NotifyCancellation(_ context.Context, vehicleID, orderID, reason string) error {
	return m.add(notify.CancellationCommand(fmt.Sprintf("cancel-%s", orderID), vehicleID, orderID, reason, time.Time{}))
}

func (m *MockNotifier) add(cmd notify.Command) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailIDs[cmd.VehicleID] {
		return fmt.Errorf("publish failed")
	}
	m.Commands = append(m.Commands, cmd)
	return nil
}

// Sent returns a copy of the recorded commands.
func (m *MockNotifier) Sent() []notify.Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]notify.Command(nil), m.Commands...)
}
