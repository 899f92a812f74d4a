// Package telemetry wires optional OpenTelemetry tracing and counting of
// dispatch operations. It stays disabled unless requested; the stdout trace
// exporter uses a synchronous span processor because the terminal dispatch
// replaces the process image and no later flush can run.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// EnvTrace enables telemetry when set to a truthy value.
const EnvTrace = "XACKER_TRACE"

// Config controls exporter behaviour.
type Config struct {
	ServiceName string
	Enabled     bool
	Writer      io.Writer
}

// Provider owns the tracer and meter providers plus the dispatch counter.
// The zero Provider (and any disabled one) is safe to use; every method
// degrades to a no-op.
type Provider struct {
	cfg            Config
	log            logrus.FieldLogger
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	reader         *sdkmetric.ManualReader
	tracer         trace.Tracer
	dispatches     metric.Int64Counter
	shutdownOnce   sync.Once
}

// Setup initialises the stdout trace exporter and a manual-reader meter
// provider for the session.
func Setup(_ context.Context, cfg Config, log logrus.FieldLogger) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{cfg: cfg, log: log}, nil
	}
	if strings.TrimSpace(cfg.ServiceName) == "" {
		cfg.ServiceName = "xacker"
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("build resource: %w", err)
	}

	opts := []stdouttrace.Option{stdouttrace.WithPrettyPrint()}
	if cfg.Writer != nil {
		opts = append(opts, stdouttrace.WithWriter(cfg.Writer))
	}
	exporter, err := stdouttrace.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	p := &Provider{cfg: cfg, log: log}
	p.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithResource(res),
	)
	p.tracer = p.tracerProvider.Tracer("github.com/xames3/xacker")

	p.reader = sdkmetric.NewManualReader()
	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(p.reader),
		sdkmetric.WithResource(res),
	)
	meter := p.meterProvider.Meter("github.com/xames3/xacker")
	p.dispatches, err = meter.Int64Counter(
		"xacker.dispatches",
		metric.WithDescription("Dispatch operations handed to the runtime."),
	)
	if err != nil {
		return nil, fmt.Errorf("create dispatch counter: %w", err)
	}
	return p, nil
}

// StartSpan opens a span for one dispatch operation. Disabled providers
// return a no-op span.
func (p *Provider) StartSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	if p == nil || p.tracer == nil {
		return noop.NewTracerProvider().Tracer("").Start(ctx, operation)
	}
	return p.tracer.Start(ctx, operation)
}

// CountDispatch increments the dispatch counter for the given subcommand.
func (p *Provider) CountDispatch(ctx context.Context, subcommand string) {
	if p == nil || p.dispatches == nil {
		return
	}
	p.dispatches.Add(ctx, 1, metric.WithAttributes(
		attribute.String("xacker.subcommand", subcommand),
	))
}

// Shutdown flushes the providers; collected counters are reported at debug
// severity. Must run before the terminal exec, which never returns.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tracerProvider == nil {
		return nil
	}
	var err error
	p.shutdownOnce.Do(func() {
		p.reportMetrics(ctx)
		if mErr := p.meterProvider.Shutdown(ctx); mErr != nil {
			err = mErr
		}
		if tErr := p.tracerProvider.Shutdown(ctx); tErr != nil && err == nil {
			err = tErr
		}
	})
	return err
}

func (p *Provider) reportMetrics(ctx context.Context) {
	if p.reader == nil || p.log == nil {
		return
	}
	var rm metricdata.ResourceMetrics
	if err := p.reader.Collect(ctx, &rm); err != nil {
		p.log.WithError(err).Debug("Metric collection failed")
		return
	}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, point := range sum.DataPoints {
					p.log.Debugf("Metric %s: %d", m.Name, point.Value)
				}
			}
		}
	}
}
