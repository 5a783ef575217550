package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/fleetdispatch/config"
	"github.com/kilianp07/fleetdispatch/core/fleet"
	"github.com/kilianp07/fleetdispatch/core/model"
	"github.com/kilianp07/fleetdispatch/infra/logger"
	infmqtt "github.com/kilianp07/fleetdispatch/infra/mqtt"
)

// Vehicle status reports understood on the status topic.
const (
	StatusPickedUp  = "picked_up"
	StatusDelivered = "delivered"
)

// Fleet is the part of the registry fed by telemetry.
type Fleet interface {
	ApplyTelemetry(id string, t model.Telemetry) error
	List(f fleet.Filter) []model.Vehicle
}

// Orders is the part of the scheduler fed by vehicle status reports.
type Orders interface {
	Order(id string) (model.Order, error)
	MarkInTransit(id string) error
	MarkDelivered(id string) error
}

// Manager ingests vehicle telemetry and status reports from MQTT, either
// pushed by the vehicles or requested by a periodic poll.
type Manager struct {
	cfg    config.TelemetryConfig
	topics infmqtt.Config
	cli    paho.Client
	fleet  Fleet
	orders Orders
	log    logger.Logger

	respCh chan string

	messages    *prometheus.CounterVec
	pollReq     prometheus.Counter
	pollTimeout prometheus.Counter
	lastCollect prometheus.Gauge
	latency     prometheus.Histogram
}

type telemetryPayload struct {
	VehicleID string   `json:"vehicle_id"`
	Lat       float64  `json:"lat"`
	Lng       float64  `json:"lng"`
	Heading   *float64 `json:"heading"`
	Battery   float64  `json:"battery"`
	TS        *int64   `json:"ts"`
}

type statusPayload struct {
	VehicleID string `json:"vehicle_id"`
	OrderID   string `json:"order_id"`
	Status    string `json:"status"`
}

// NewManager connects to MQTT and prepares telemetry collection. Collectors
// are registered on reg, or on the default registerer when reg is nil.
func NewManager(mqttCfg infmqtt.Config, cfg config.TelemetryConfig, f Fleet, o Orders, reg prometheus.Registerer) (*Manager, error) {
	if f == nil || o == nil {
		return nil, fmt.Errorf("telemetry: nil parameter provided to NewManager")
	}
	mqttCfg.SetDefaults()
	cfg.SetDefaults()
	opts, err := infmqtt.NewClientOptions(mqttCfg)
	if err != nil {
		return nil, err
	}
	id := mqttCfg.ClientID
	if id != "" {
		id += "-telemetry"
	} else {
		id = "telemetry-" + uuid.NewString()
	}
	opts.SetClientID(id)
	cli := paho.NewClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	m := newManager(cfg, mqttCfg, cli, f, o)
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{m.messages, m.pollReq, m.pollTimeout, m.lastCollect, m.latency} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return nil, err
			}
		}
	}
	return m, nil
}

func newManager(cfg config.TelemetryConfig, topics infmqtt.Config, cli paho.Client, f Fleet, o Orders) *Manager {
	return &Manager{
		cfg:         cfg,
		topics:      topics,
		cli:         cli,
		fleet:       f,
		orders:      o,
		log:         logger.New("telemetry"),
		respCh:      make(chan string, 100),
		messages:    prometheus.NewCounterVec(prometheus.CounterOpts{Name: "telemetry_messages_total", Help: "Vehicle messages received by kind and outcome"}, []string{"kind", "outcome"}),
		pollReq:     prometheus.NewCounter(prometheus.CounterOpts{Name: "telemetry_poll_requests_total", Help: "Number of telemetry poll requests"}),
		pollTimeout: prometheus.NewCounter(prometheus.CounterOpts{Name: "telemetry_poll_timeout_total", Help: "Number of vehicles that did not answer a poll in time"}),
		lastCollect: prometheus.NewGauge(prometheus.GaugeOpts{Name: "telemetry_last_collect_timestamp_seconds", Help: "Unix timestamp of last telemetry collection"}),
		latency:     prometheus.NewHistogram(prometheus.HistogramOpts{Name: "telemetry_collect_latency_seconds", Help: "Latency of poll answers", Buckets: prometheus.DefBuckets}),
	}
}

// Start runs telemetry collection until context is done.
func (m *Manager) Start(ctx context.Context) {
	mode := strings.ToLower(m.cfg.Mode)
	if mode == "" {
		mode = "push"
	}
	if token := m.cli.Subscribe(m.topics.Topic("+", "telemetry"), m.qos("telemetry"), m.onTelemetry); token.Wait() && token.Error() != nil {
		m.log.Errorf("subscribe telemetry: %v", token.Error())
	}
	if token := m.cli.Subscribe(m.topics.Topic("+", "status"), m.qos("status"), m.onStatus); token.Wait() && token.Error() != nil {
		m.log.Errorf("subscribe status: %v", token.Error())
	}
	if mode == "pull" || mode == "hybrid" {
		go m.pollLoop(ctx)
	}
	<-ctx.Done()
	if m.cli.IsConnected() {
		m.cli.Disconnect(250)
	}
}

func (m *Manager) qos(name string) byte {
	if q, ok := m.topics.QoS[name]; ok {
		return q
	}
	return 0
}

func (m *Manager) onTelemetry(_ paho.Client, msg paho.Message) {
	id, err := m.processTelemetry(msg.Payload(), msg.Topic())
	if err != nil {
		m.messages.WithLabelValues("telemetry", "rejected").Inc()
		m.log.Errorf("telemetry from %s: %v", msg.Topic(), err)
		return
	}
	m.messages.WithLabelValues("telemetry", "applied").Inc()
	m.lastCollect.SetToCurrentTime()
	select {
	case m.respCh <- id:
	default:
	}
}

func (m *Manager) onStatus(_ paho.Client, msg paho.Message) {
	if err := m.processStatus(msg.Payload(), msg.Topic()); err != nil {
		m.messages.WithLabelValues("status", "rejected").Inc()
		m.log.Errorf("status from %s: %v", msg.Topic(), err)
		return
	}
	m.messages.WithLabelValues("status", "applied").Inc()
}

// extractID returns the vehicle id of {prefix}/{id}/{kind} topics.
func extractID(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) >= 2 {
		return parts[len(parts)-2]
	}
	return ""
}

func (m *Manager) processTelemetry(payload []byte, topic string) (string, error) {
	var msg telemetryPayload
	if err := json.Unmarshal(payload, &msg); err != nil {
		return "", &model.ValidationError{Field: "payload", Reason: err.Error()}
	}
	if msg.VehicleID == "" {
		msg.VehicleID = extractID(topic)
	}
	t := model.Telemetry{
		Position: model.Point{Lat: msg.Lat, Lng: msg.Lng},
		Heading:  msg.Heading,
		Battery:  msg.Battery,
	}
	if msg.TS != nil {
		t.Time = time.Unix(*msg.TS, 0)
	}
	return msg.VehicleID, m.fleet.ApplyTelemetry(msg.VehicleID, t)
}

func (m *Manager) processStatus(payload []byte, topic string) error {
	var msg statusPayload
	if err := json.Unmarshal(payload, &msg); err != nil {
		return &model.ValidationError{Field: "payload", Reason: err.Error()}
	}
	if msg.VehicleID == "" {
		msg.VehicleID = extractID(topic)
	}
	if msg.OrderID == "" {
		return &model.ValidationError{Field: "order_id", Reason: "required"}
	}
	if msg.VehicleID == "" {
		return &model.ValidationError{Field: "vehicle_id", Reason: "required"}
	}
	// only the vehicle carrying the order may report on it
	o, err := m.orders.Order(msg.OrderID)
	if err != nil {
		return err
	}
	if o.VehicleID != msg.VehicleID {
		return &model.ValidationError{
			Field:  "vehicle_id",
			Reason: fmt.Sprintf("order %s is not assigned to %s", msg.OrderID, msg.VehicleID),
		}
	}
	switch msg.Status {
	case StatusPickedUp:
		return m.orders.MarkInTransit(msg.OrderID)
	case StatusDelivered:
		return m.orders.MarkDelivered(msg.OrderID)
	}
	return &model.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", msg.Status)}
}

func (m *Manager) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(m.cfg.Interval()) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.doPoll(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// doPoll asks every vehicle that is on duty to report and counts the ones
// that stay silent until the timeout.
func (m *Manager) doPoll(ctx context.Context) {
	start := time.Now()
	expected := make(map[string]struct{})
	for _, v := range m.fleet.List(fleet.Filter{}) {
		if v.Status == model.VehicleOffline {
			continue
		}
		expected[v.ID] = struct{}{}
	}
	// answers from an earlier poll do not count
	for drained := false; !drained; {
		select {
		case <-m.respCh:
		default:
			drained = true
		}
	}
	m.pollReq.Inc()
	token := m.cli.Publish(m.cfg.PollTopic, 0, false, []byte("poll"))
	token.Wait()
	if err := token.Error(); err != nil {
		m.log.Errorf("poll publish: %v", err)
		return
	}
	timeout := time.NewTimer(time.Duration(m.cfg.Timeout()) * time.Second)
	defer timeout.Stop()
	for len(expected) > 0 {
		select {
		case id := <-m.respCh:
			if _, ok := expected[id]; ok {
				m.latency.Observe(time.Since(start).Seconds())
				delete(expected, id)
			}
		case <-timeout.C:
			for id := range expected {
				m.pollTimeout.Inc()
				m.log.Warnf("vehicle %s did not answer telemetry poll", id)
			}
			return
		case <-ctx.Done():
			return
		}
	}
}
