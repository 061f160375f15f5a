// Package app wires the engine components from configuration.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gridflex/gridflex/api"
	"github.com/gridflex/gridflex/config"
	"github.com/gridflex/gridflex/core/audit"
	"github.com/gridflex/gridflex/core/marketplace"
	coremetrics "github.com/gridflex/gridflex/core/metrics"
	coremon "github.com/gridflex/gridflex/core/monitoring"
	"github.com/gridflex/gridflex/core/optimizer"
	"github.com/gridflex/gridflex/core/registry"
	"github.com/gridflex/gridflex/core/scheduler"
	"github.com/gridflex/gridflex/core/signal"
	"github.com/gridflex/gridflex/infra/gridapi"
	"github.com/gridflex/gridflex/infra/logger"
	"github.com/gridflex/gridflex/infra/metrics"
	"github.com/gridflex/gridflex/infra/monitoring"
	"github.com/gridflex/gridflex/infra/mqtt"
	"github.com/gridflex/gridflex/infra/telemetry"
	"github.com/gridflex/gridflex/internal/eventbus"
)

// Service orchestrates the signal aggregator, scheduler and marketplace
// behind the HTTP API.
type Service struct {
	Registry    *registry.Registry
	Scheduler   *scheduler.Scheduler
	Marketplace *marketplace.Marketplace
	Signals     *signal.Aggregator
	Optimizer   *optimizer.Optimizer
	Audit       audit.Store

	bus       *eventbus.Bus[registry.JobEvent]
	publisher mqtt.Publisher
	telem     *telemetry.Manager
	monitor   coremon.Monitor
	apiAddr   string
	apiToken  string
	promPort  string
	promOn    bool
	log       logger.Logger
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	sink, err := buildSink(cfg.Metrics)
	if err != nil {
		return nil, err
	}

	grid := gridapi.New(cfg.GridAPI)
	agg := signal.New(grid, cfg.Signals, logger.New("signal_aggregator"), upstreamRecorder(sink))
	opt := optimizer.New(agg, logger.New("optimizer"))

	bus := eventbus.New[registry.JobEvent]()
	reg := registry.New(logger.New("registry"), bus)

	store, err := buildAuditStore(cfg.Audit)
	if err != nil {
		return nil, fmt.Errorf("audit store: %w", err)
	}

	sched := scheduler.New(agg, opt, reg, store, sink, cfg.Scheduler, logger.New("scheduler"))
	mkt := marketplace.New(reg, opt, sched, store, slotRecorder(sink), cfg.Marketplace, logger.New("marketplace"))

	var publisher mqtt.Publisher
	var telem *telemetry.Manager
	if cfg.MQTT.Enabled {
		publisher, err = mqtt.NewPahoClient(cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
		if cfg.Telemetry.Enabled {
			telem, err = telemetry.NewManager(cfg.MQTT, cfg.Telemetry, reg)
			if err != nil {
				return nil, fmt.Errorf("telemetry: %w", err)
			}
		}
	}

	monitor, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(monitor)

	return &Service{
		Registry:    reg,
		Scheduler:   sched,
		Marketplace: mkt,
		Signals:     agg,
		Optimizer:   opt,
		Audit:       store,
		bus:         bus,
		publisher:   publisher,
		telem:       telem,
		monitor:     monitor,
		apiAddr:     cfg.API.Addr,
		apiToken:    cfg.API.AuthToken,
		promPort:    cfg.Metrics.PrometheusPort,
		promOn:      cfg.Metrics.PrometheusEnabled,
		log:         logg,
	}, nil
}

func buildSink(cfg coremetrics.Config) (coremetrics.MetricsSink, error) {
	var sinks []coremetrics.MetricsSink
	if cfg.PrometheusEnabled {
		sink, err := metrics.NewPromSink(cfg)
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.InfluxEnabled {
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket))
	}
	switch len(sinks) {
	case 0:
		return coremetrics.NopSink{}, nil
	case 1:
		return sinks[0], nil
	default:
		return metrics.NewMultiSink(sinks...), nil
	}
}

func buildAuditStore(cfg config.AuditConfig) (audit.Store, error) {
	switch cfg.Backend {
	case "memory":
		return audit.NewMemoryStore(), nil
	case "jsonl":
		return audit.NewJSONLStore(cfg.Path)
	case "sqlite":
		return audit.NewSQLiteStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown backend %s", cfg.Backend)
	}
}

func upstreamRecorder(sink coremetrics.MetricsSink) coremetrics.UpstreamRecorder {
	if r, ok := sink.(coremetrics.UpstreamRecorder); ok {
		return r
	}
	return coremetrics.NopSink{}
}

func slotRecorder(sink coremetrics.MetricsSink) coremetrics.SlotRecorder {
	if r, ok := sink.(coremetrics.SlotRecorder); ok {
		return r
	}
	return coremetrics.NopSink{}
}

// Run starts the HTTP API and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if s.promOn {
		go func() {
			defer s.monitor.Recover()
			if err := metrics.StartPromServer(ctx, s.promPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	if s.publisher != nil {
		events := s.bus.Subscribe()
		go func() {
			defer s.monitor.Recover()
			s.publishSchedules(ctx, events)
		}()
	}
	if s.telem != nil {
		go func() {
			defer s.monitor.Recover()
			s.telem.Start(ctx)
		}()
	}

	srv := api.NewServer(s.Registry, s.Scheduler, s.Marketplace, s.Signals,
		s.Optimizer, s.Audit, s.apiToken, logger.New("api"))
	httpSrv := &http.Server{
		Addr:              s.apiAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("HTTP API listening on %s", s.apiAddr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// publishSchedules forwards scheduled jobs to the MQTT broker so asset
// controllers can act on the commitment.
func (s *Service) publishSchedules(ctx context.Context, events <-chan registry.JobEvent) {
	defer s.bus.Unsubscribe(events)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Type != registry.EventScheduled {
				continue
			}
			if err := s.publisher.PublishSchedule(ev.Job); err != nil {
				s.log.Errorf("publish schedule %s: %v", ev.Job.JobID, err)
			}
		}
	}
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.publisher != nil {
		s.publisher.Disconnect()
	}
	s.bus.Close()
	if s.monitor != nil {
		s.monitor.Flush(2 * time.Second)
	}
	return s.Audit.Close()
}
