package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"

	"github.com/mohammad-safakhou/litreview/config"
)

// Telemetry holds the tracer provider and metrics server for a process.
type Telemetry struct {
	tp  *sdktrace.TracerProvider
	srv *http.Server
}

// Setup initializes tracing and the /metrics endpoint. With telemetry
// disabled it returns a no-op tracer so callers never branch.
func Setup(ctx context.Context, serviceName string, cfg config.TelemetryConfig, metrics *Metrics) (*Telemetry, trace.Tracer, error) {
	if !cfg.Enabled {
		return &Telemetry{}, otel.Tracer(serviceName), nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			attribute.String("service.namespace", "litreview"),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("resource init: %w", err)
	}

	endpoint := cfg.OTLPEndpoint
	if endpoint == "" {
		endpoint = "localhost:4317"
	}
	traceExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
		otlptracegrpc.WithDialOption(grpc.WithBlock()),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("otlp init: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	tracer := tp.Tracer(serviceName)

	t := &Telemetry{tp: tp}
	if cfg.MetricsPort > 0 && metrics != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))
		t.srv = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := t.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				fmt.Printf("metrics server error: %v\n", err)
			}
		}()
	}
	return t, tracer, nil
}

// Shutdown flushes the tracer provider and stops the metrics server.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	var err error
	if t.srv != nil {
		if e := t.srv.Shutdown(ctx); e != nil {
			err = fmt.Errorf("metrics shutdown: %w", e)
		}
	}
	if t.tp != nil {
		if e := t.tp.Shutdown(ctx); e != nil {
			if err != nil {
				err = fmt.Errorf("%v; trace shutdown: %w", err, e)
			} else {
				err = fmt.Errorf("trace shutdown: %w", e)
			}
		}
	}
	return err
}
