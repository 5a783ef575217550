package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/fleetdispatch/core/logger"
	"github.com/kilianp07/fleetdispatch/core/model"
	coremon "github.com/kilianp07/fleetdispatch/core/monitoring"
	"github.com/kilianp07/fleetdispatch/core/notify"
	infralogger "github.com/kilianp07/fleetdispatch/infra/logger"
)

// PahoNotifier publishes vehicle commands on {prefix}/{vehicle}/command.
type PahoNotifier struct {
	cli        pahoClient
	cfg        Config
	log        logger.Logger
	maxRetries int
	backoff    time.Duration
	now        func() time.Time
}

// NewPahoNotifier connects to the broker.
func NewPahoNotifier(cfg Config) (*PahoNotifier, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := infralogger.New("mqtt_notifier")
	c, err := connect(cfg, log, nil)
	if err != nil {
		return nil, err
	}
	return &PahoNotifier{
		cli:        c,
		cfg:        cfg,
		log:        log,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
		now:        time.Now,
	}, nil
}

// NotifyAssignment sends the order, its route and ETA to the assigned vehicle.
func (p *PahoNotifier) NotifyAssignment(ctx context.Context, o model.Order, a model.Assignment) error {
	cmd := notify.AssignmentCommand(uuid.NewString(), o, a, p.now())
	return p.send(ctx, cmd)
}

// NotifyCancellation withdraws an order from a vehicle.
func (p *PahoNotifier) NotifyCancellation(ctx context.Context, vehicleID, orderID, reason string) error {
	cmd := notify.CancellationCommand(uuid.NewString(), vehicleID, orderID, reason, p.now())
	return p.send(ctx, cmd)
}

func (p *PahoNotifier) send(ctx context.Context, cmd notify.Command) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	topic := p.cfg.Topic(cmd.VehicleID, "command")
	qos := p.cfg.qos("command")

	var publishErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if !p.cli.IsConnected() {
			publishErr = notify.ErrNotConnected
		} else {
			token := p.cli.Publish(topic, qos, false, payload)
			token.Wait()
			publishErr = token.Error()
		}
		if publishErr == nil {
			p.log.Infof("sent %s %s for order %s to %s", cmd.Kind, cmd.ID, cmd.OrderID, topic)
			return nil
		}
		p.log.Errorf("publish attempt %d failed: %v", attempt+1, publishErr)
		if attempt == p.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.backoff * time.Duration(1<<attempt)):
		}
	}
	err = fmt.Errorf("publish %s to %s: %w", cmd.Kind, cmd.VehicleID, publishErr)
	coremon.CaptureException(err, map[string]string{"module": "mqtt", "vehicle_id": cmd.VehicleID, "order_id": cmd.OrderID})
	return err
}

// Disconnect gracefully closes the MQTT connection.
func (p *PahoNotifier) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
