package monitoring

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// TracingConfig holds tracing configuration
type TracingConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string
	Insecure       bool
	SamplingRate   float64
	Enabled        bool
}

// TracingProvider owns the global tracer provider
type TracingProvider struct {
	provider *sdktrace.TracerProvider
	logger   *zap.Logger
	config   TracingConfig
}

// NewTracingProvider installs an OTLP/HTTP exporting tracer provider as the
// global provider. When tracing is disabled the global no-op provider stays.
func NewTracingProvider(ctx context.Context, config TracingConfig, logger *zap.Logger) (*TracingProvider, error) {
	logger = logger.Named("tracing")
	if !config.Enabled {
		logger.Info("Tracing is disabled")
		return &TracingProvider{logger: logger, config: config}, nil
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(config.OTLPEndpoint)}
	if config.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", config.ServiceName),
			attribute.String("service.version", config.ServiceVersion),
			attribute.String("deployment.environment", config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(config.SamplingRate))),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("Tracing initialized",
		zap.String("service", config.ServiceName),
		zap.String("otlp_endpoint", config.OTLPEndpoint),
		zap.Float64("sampling_rate", config.SamplingRate),
	)

	return &TracingProvider{
		provider: tp,
		logger:   logger,
		config:   config,
	}, nil
}

// Enabled reports whether spans are exported
func (t *TracingProvider) Enabled() bool {
	return t.provider != nil
}

// Shutdown flushes pending spans
func (t *TracingProvider) Shutdown(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// TraceIDFromContext returns the trace id of the active span, if any
func TraceIDFromContext(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.HasTraceID() {
		return ""
	}
	return spanCtx.TraceID().String()
}
