// Package api exposes the dispatch core over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	dispatchapi "github.com/kilianp07/fleetdispatch/api/dispatch"
	vehiclesapi "github.com/kilianp07/fleetdispatch/api/vehicles"
	"github.com/kilianp07/fleetdispatch/config"
	"github.com/kilianp07/fleetdispatch/core/cost"
	"github.com/kilianp07/fleetdispatch/core/dispatch"
	"github.com/kilianp07/fleetdispatch/core/dispatch/logging"
	"github.com/kilianp07/fleetdispatch/core/fleet"
	"github.com/kilianp07/fleetdispatch/core/incident"
	"github.com/kilianp07/fleetdispatch/core/logger"
	eco "github.com/kilianp07/fleetdispatch/core/metrics/eco"
	"github.com/kilianp07/fleetdispatch/core/model"
)

// Scheduler is the part of the dispatch scheduler served over HTTP.
type Scheduler interface {
	Submit(o model.Order) (string, error)
	Order(id string) (model.Order, error)
	Orders(f dispatch.OrderFilter) []model.Order
	Cancel(id string) error
}

// Fleet is the part of the vehicle registry served over HTTP.
type Fleet interface {
	Register(v model.Vehicle) error
	Get(id string) (model.Vehicle, error)
	List(f fleet.Filter) []model.Vehicle
	CountByStatus() map[model.VehicleStatus]int
	ApplyTelemetry(id string, t model.Telemetry) error
	SetStatus(vehicleID string, status model.VehicleStatus) (string, error)
}

// Incidents is the part of the incident handler served over HTTP.
type Incidents interface {
	Report(inc model.Incident) (model.Incident, error)
	Resolve(id, note string) (model.Incident, error)
	Get(id string) (model.Incident, error)
	List(f incident.Filter) []model.Incident
}

// Deps groups the components behind the gateway. Logs and Emissions are
// optional; their routes answer 404 when nil.
type Deps struct {
	Scheduler Scheduler
	Fleet     Fleet
	Incidents Incidents
	Cost      *cost.Model
	Logs      logging.LogStore
	Emissions eco.Store
}

// Server is the HTTP gateway.
type Server struct {
	cfg     config.HTTPConfig
	sched   Scheduler
	fleet   Fleet
	inc     Incidents
	cost    *cost.Model
	logs    logging.LogStore
	eco     eco.Store
	log     logger.Logger
	handler http.Handler
}

// NewServer builds the gateway and its routes.
func NewServer(cfg config.HTTPConfig, deps Deps, log logger.Logger) (*Server, error) {
	if deps.Scheduler == nil || deps.Fleet == nil || deps.Incidents == nil || deps.Cost == nil || log == nil {
		return nil, fmt.Errorf("api: nil parameter provided to NewServer")
	}
	cfg.SetDefaults()
	s := &Server{
		cfg:   cfg,
		sched: deps.Scheduler,
		fleet: deps.Fleet,
		inc:   deps.Incidents,
		cost:  deps.Cost,
		logs:  deps.Logs,
		eco:   deps.Emissions,
		log:   log,
	}
	s.handler = s.routes()
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.metricsMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.cfg.Timeout()))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(v1 chi.Router) {
		v1.Post("/orders", s.handleSubmitOrder)
		v1.Get("/orders", s.handleListOrders)
		v1.Get("/orders/{orderID}", s.handleGetOrder)
		v1.Post("/orders/{orderID}/cancel", s.handleCancelOrder)

		v1.Post("/vehicles", s.handleRegisterVehicle)
		v1.Get("/vehicles", s.handleListVehicles)
		v1.Get("/vehicles/{vehicleID}", s.handleGetVehicle)
		v1.Post("/vehicles/{vehicleID}/telemetry", s.handleTelemetry)
		v1.Put("/vehicles/{vehicleID}/status", s.handleSetVehicleStatus)
		v1.Method(http.MethodGet, "/fleet/status", vehiclesapi.NewStatusHandler(s.fleet))

		v1.Post("/incidents", s.handleReportIncident)
		v1.Get("/incidents", s.handleListIncidents)
		v1.Get("/incidents/{incidentID}", s.handleGetIncident)
		v1.Post("/incidents/{incidentID}/resolve", s.handleResolveIncident)

		v1.Post("/routes/plan", s.handlePlanRoute)

		if s.logs != nil {
			v1.Method(http.MethodGet, "/dispatch/logs", dispatchapi.NewLogHandler(s.logs, s.cfg.LogsToken))
		}
		if s.eco != nil {
			v1.Method(http.MethodGet, "/kpi/emissions", vehiclesapi.NewKPIHandler(s.eco))
		}
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debugw("http request", map[string]any{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   ww.Status(),
			"bytes":    ww.BytesWritten(),
			"duration": time.Since(start).String(),
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"vehicles": s.fleet.CountByStatus(),
	})
}

// Run serves on cfg.Addr until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.cfg.Addr, Handler: s.handler, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("api: shutdown: %v", err)
		}
		cancel()
	}()
	s.log.Infof("api: listening on %s", s.cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
