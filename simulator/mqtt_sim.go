package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/fleetdispatch/core/model"
	infmqtt "github.com/kilianp07/fleetdispatch/infra/mqtt"
)

type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

var newMQTTClient = func(cfg infmqtt.Config) (publisher, error) {
	opts, err := infmqtt.NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	cli := paho.NewClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return cli, nil
}

// MQTTReporter publishes reports on the vehicle telemetry and status topics,
// as a real vehicle would.
type MQTTReporter struct {
	cli publisher
	cfg infmqtt.Config
}

// NewMQTTReporter connects with its own client id.
func NewMQTTReporter(cfg infmqtt.Config) (*MQTTReporter, error) {
	cfg.SetDefaults()
	cfg.ClientID += "-sim"
	cli, err := newMQTTClient(cfg)
	if err != nil {
		return nil, err
	}
	return &MQTTReporter{cli: cli, cfg: cfg}, nil
}

// Telemetry implements Reporter.
func (m *MQTTReporter) Telemetry(ctx context.Context, vehicleID string, t model.Telemetry) error {
	ts := t.Time.Unix()
	return m.publish(ctx, m.cfg.Topic(vehicleID, "telemetry"), map[string]any{
		"vehicle_id": vehicleID,
		"lat":        t.Position.Lat,
		"lng":        t.Position.Lng,
		"heading":    t.Heading,
		"battery":    t.Battery,
		"ts":         ts,
	})
}

// Status implements Reporter.
func (m *MQTTReporter) Status(ctx context.Context, vehicleID, orderID, status string) error {
	return m.publish(ctx, m.cfg.Topic(vehicleID, "status"), map[string]any{
		"vehicle_id": vehicleID,
		"order_id":   orderID,
		"status":     status,
	})
}

func (m *MQTTReporter) publish(ctx context.Context, topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	token := m.cli.Publish(topic, m.cfg.QoS["telemetry"], false, data)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Second):
		return fmt.Errorf("simulator: publish %s timed out", topic)
	}
	return token.Error()
}

// Close disconnects from the broker.
func (m *MQTTReporter) Close() {
	m.cli.Disconnect(250)
}
