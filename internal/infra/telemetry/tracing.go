// Package telemetry configures OpenTelemetry tracing with an OTLP/gRPC exporter.
package telemetry

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"

	"postboard/config"
	"postboard/internal/errors"
)

// InstrumentationName names the tracer used across the service.
const InstrumentationName = "postboard"

// Params defines the required parameters
type Params struct {
	fx.In
	fx.Lifecycle

	Config *config.Config
	Logger *slog.Logger
}

// NewTracerProvider builds the SDK tracer provider and installs it globally.
// Without telemetry.otlpEndpoint spans are recorded but never exported.
func NewTracerProvider(params Params) (trace.TracerProvider, error) {
	opts := []sdktrace.TracerProviderOption{}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceNameKey.String(serviceName(params.Config))),
	)
	if err != nil {
		return nil, errors.Wrap(err, "build otel resource")
	}
	opts = append(opts, sdktrace.WithResource(res))

	cfg := params.Config.Telemetry
	if cfg != nil && strings.TrimSpace(cfg.OTLPEndpoint) != "" {
		target, insecure, err := grpcTarget(cfg.OTLPEndpoint)
		if err != nil {
			return nil, err
		}

		exporterOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(target)}
		if insecure || cfg.Insecure {
			exporterOpts = append(exporterOpts, otlptracegrpc.WithInsecure())
		}
		// The exporter connects lazily, so no startup context is needed here.
		exporter, err := otlptracegrpc.New(context.Background(), exporterOpts...)
		if err != nil {
			return nil, errors.Wrap(err, "create otlp trace exporter")
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))

		if cfg.SampleRatio > 0 && cfg.SampleRatio < 1 {
			opts = append(opts, sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))))
		}

		params.Logger.Info("OTLP trace export enabled", slog.String("endpoint", target))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	params.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return errors.Wrap(tp.Shutdown(ctx), "shutdown tracer provider")
		},
	})

	return tp, nil
}

// NewTracer returns the service tracer.
func NewTracer(tp trace.TracerProvider) trace.Tracer {
	return tp.Tracer(InstrumentationName)
}

func serviceName(cfg *config.Config) string {
	if cfg.Env.ServiceName != "" {
		return cfg.Env.ServiceName
	}

	return InstrumentationName
}

// grpcTarget reduces an endpoint URL to the host:port the gRPC exporter dials.
// Plain http endpoints are dialed without TLS.
func grpcTarget(endpoint string) (target string, insecure bool, err error) {
	endpoint = strings.TrimSpace(endpoint)
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, errors.Wrapf(err, "invalid OTLP endpoint %q", endpoint)
	}
	if u.Host == "" {
		return "", false, errors.Errorf("invalid OTLP endpoint %q: missing host", endpoint)
	}

	return u.Host, u.Scheme != "https", nil
}
