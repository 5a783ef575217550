package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/fleetdispatch/api"
	"github.com/kilianp07/fleetdispatch/config"
	"github.com/kilianp07/fleetdispatch/core/cost"
	"github.com/kilianp07/fleetdispatch/core/dispatch"
	"github.com/kilianp07/fleetdispatch/core/dispatch/logging"
	"github.com/kilianp07/fleetdispatch/core/fleet"
	"github.com/kilianp07/fleetdispatch/core/incident"
	coremetrics "github.com/kilianp07/fleetdispatch/core/metrics"
	"github.com/kilianp07/fleetdispatch/core/metrics/eco"
	"github.com/kilianp07/fleetdispatch/core/model"
	coremon "github.com/kilianp07/fleetdispatch/core/monitoring"
	"github.com/kilianp07/fleetdispatch/core/notify"
	"github.com/kilianp07/fleetdispatch/infra/kpi"
	"github.com/kilianp07/fleetdispatch/infra/logger"
	"github.com/kilianp07/fleetdispatch/infra/metrics"
	"github.com/kilianp07/fleetdispatch/infra/monitoring"
	"github.com/kilianp07/fleetdispatch/infra/mqtt"
	"github.com/kilianp07/fleetdispatch/infra/telemetry"
	"github.com/kilianp07/fleetdispatch/internal/eventbus"
	"github.com/kilianp07/fleetdispatch/simulator"
)

// Option tweaks how the service is assembled.
type Option func(*options)

type options struct {
	reg      prometheus.Registerer
	simulate bool
}

// WithRegisterer registers every collector on reg instead of the default
// registerer.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.reg = reg }
}

// WithSimulator runs the fleet simulator alongside the service.
func WithSimulator() Option {
	return func(o *options) { o.simulate = true }
}

// Service wires the dispatch core to its transports and sinks.
type Service struct {
	cfg *config.Config
	log logger.Logger

	Bus       *eventbus.Bus
	Fleet     *fleet.Registry
	Cost      *cost.Model
	Scheduler *dispatch.Scheduler
	Incidents *incident.Handler
	Sink      coremetrics.MetricsSink
	Emissions eco.Store
	Notifier  notify.Notifier
	Telemetry *telemetry.Manager
	API       *api.Server
	Simulator *simulator.Simulator

	closers []func() error
}

// New creates a Service from the configuration.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	o := options{reg: prometheus.DefaultRegisterer}
	for _, fn := range opts {
		fn(&o)
	}
	logger.Configure(cfg.Logging)
	logg := logger.New("service")

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	s := &Service{cfg: cfg, log: logg, Bus: eventbus.New()}
	if err := s.build(o); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Service) build(o options) error {
	cfg := s.cfg
	s.Fleet = fleet.NewRegistry(cfg.Fleet, s.Bus, logger.New("fleet"))
	s.Cost = cost.New(cfg.Cost)

	if err := s.buildSinks(o.reg); err != nil {
		return err
	}

	dispatch.MustRegisterMetrics(o.reg)
	incident.MustRegisterMetrics(o.reg)
	sched, err := dispatch.NewScheduler(cfg.Dispatch, s.Fleet, s.Cost, s.Bus, s.Sink, logger.New("dispatch"))
	if err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	s.Scheduler = sched
	s.closers = append(s.closers, sched.Close)
	store, err := logging.Open(cfg.Audit)
	if err != nil {
		return fmt.Errorf("audit store: %w", err)
	}
	if store != nil {
		sched.SetLogStore(store)
	}

	s.Incidents, err = incident.NewHandler(s.Fleet, sched, s.Bus, logger.New("incident"))
	if err != nil {
		return fmt.Errorf("incident handler: %w", err)
	}

	if err := s.buildNotifier(); err != nil {
		return err
	}
	if cfg.Telemetry.Enabled {
		s.Telemetry, err = telemetry.NewManager(cfg.MQTT, cfg.Telemetry, s.Fleet, sched, o.reg)
		if err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
	}
	if cfg.HTTP.Addr != "" {
		api.MustRegisterMetrics(o.reg)
		s.API, err = api.NewServer(cfg.HTTP, api.Deps{
			Scheduler: sched,
			Fleet:     s.Fleet,
			Incidents: s.Incidents,
			Cost:      s.Cost,
			Logs:      store,
			Emissions: s.Emissions,
		}, logger.New("api"))
		if err != nil {
			return fmt.Errorf("api: %w", err)
		}
	}
	if o.simulate {
		if err := s.buildSimulator(); err != nil {
			return err
		}
	}
	return nil
}

// buildSinks assembles the configured sinks plus the emissions ledger.
func (s *Service) buildSinks(reg prometheus.Registerer) error {
	configured, err := coremetrics.NewMetricsSink(s.cfg.Metrics.Sinks)
	if err != nil {
		return fmt.Errorf("metrics sinks: %w", err)
	}
	if s.cfg.Metrics.EmissionsDB != "" {
		st, err := kpi.NewSQLiteStore(s.cfg.Metrics.EmissionsDB)
		if err != nil {
			return fmt.Errorf("emissions store: %w", err)
		}
		s.closers = append(s.closers, st.Close)
		s.Emissions = st
	} else {
		s.Emissions = eco.NewMemoryStore()
	}
	ecoSink, err := metrics.NewEcoSink(s.Emissions, reg)
	if err != nil {
		return fmt.Errorf("eco sink: %w", err)
	}
	s.Sink = coremetrics.NewMultiSink(configured, ecoSink)
	return nil
}

func (s *Service) buildNotifier() error {
	n, err := notify.NewNotifier(s.cfg.Notifier)
	if err != nil {
		return fmt.Errorf("notifier: %w", err)
	}
	if s.cfg.Notifier.Type == "" && s.cfg.MQTT.Enabled() {
		p, err := mqtt.NewPahoNotifier(s.cfg.MQTT)
		if err != nil {
			return fmt.Errorf("notifier: %w", err)
		}
		n = p
	}
	if p, ok := n.(*mqtt.PahoNotifier); ok {
		s.closers = append(s.closers, func() error { p.Disconnect(); return nil })
	}
	s.Notifier = n
	return nil
}

func (s *Service) buildSimulator() error {
	cfg := s.cfg.Simulator
	var rep simulator.Reporter = simulator.DirectReporter{Fleet: s.Fleet, Orders: s.Scheduler}
	if cfg.Transport == config.SimTransportMQTT {
		if s.Telemetry == nil {
			return fmt.Errorf("simulator: mqtt transport requires telemetry.enabled")
		}
		m, err := simulator.NewMQTTReporter(s.cfg.MQTT)
		if err != nil {
			return fmt.Errorf("simulator: %w", err)
		}
		s.closers = append(s.closers, func() error { m.Close(); return nil })
		rep = m
	}
	if cfg.DropRate > 0 || cfg.ReportDelayMS > 0 {
		delay := time.Duration(cfg.ReportDelayMS) * time.Millisecond
		rep = simulator.NewLossyReporter(rep, delay, cfg.DropRate, cfg.Seed, logger.New("simulator"))
	}
	sim, err := simulator.New(cfg, s.Fleet, s.Scheduler, rep, s.Cost, logger.New("simulator"))
	if err != nil {
		return fmt.Errorf("simulator: %w", err)
	}
	s.Simulator = sim
	return nil
}

// Seed registers the configured startup fleet and the simulated vehicles.
func (s *Service) Seed() error {
	var vs []model.Vehicle
	if s.cfg.Fleet.SeedDemo {
		vs = append(vs, fleet.DemoFleet()...)
	}
	vs = append(vs, s.cfg.Fleet.Seed...)
	for _, v := range vs {
		if err := s.Fleet.Register(v); err != nil {
			if errors.Is(err, model.ErrDuplicateVehicle) {
				s.log.Warnf("seed: %v", err)
				continue
			}
			return fmt.Errorf("seed %s: %w", v.ID, err)
		}
	}
	if s.Simulator != nil {
		return s.Simulator.Seed()
	}
	return nil
}

// Run starts every component and blocks until the context is canceled or
// one of them fails.
func (s *Service) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	metrics.StartEventCollector(ctx, s.Bus, s.Sink, logger.New("collector"))
	sample := time.Duration(s.cfg.Metrics.FleetSampleSeconds) * time.Second
	metrics.StartFleetSampler(ctx, s.Fleet, s.Sink, sample, logger.New("collector"))
	notify.StartForwarder(ctx, s.Bus, s.Notifier, logger.New("notify"))

	if err := s.Seed(); err != nil {
		return err
	}
	g.Go(func() error {
		defer coremon.Recover("scheduler")
		return s.Scheduler.Run(ctx)
	})

	if s.cfg.Metrics.PrometheusPort != "" {
		g.Go(func() error {
			defer coremon.Recover("prometheus")
			return metrics.StartPromServer(ctx, s.cfg.Metrics.PrometheusPort, s.log)
		})
	}
	if s.Telemetry != nil {
		g.Go(func() error {
			defer coremon.Recover("telemetry")
			s.Telemetry.Start(ctx)
			return nil
		})
	}
	if s.API != nil {
		g.Go(func() error {
			defer coremon.Recover("api")
			return s.API.Run(ctx)
		})
	}
	if s.Simulator != nil {
		g.Go(func() error {
			defer coremon.Recover("simulator")
			return s.Simulator.Run(ctx)
		})
	}
	s.log.Infof("service started")
	err := g.Wait()
	coremon.Flush(2 * time.Second)
	return err
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	if s.Sink != nil {
		if c, ok := s.Sink.(interface{ Close() }); ok {
			c.Close()
		}
	}
	if s.Bus != nil {
		s.Bus.Close()
	}
	return errors.Join(errs...)
}
