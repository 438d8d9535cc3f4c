package observability

import (
	"context"
	"fmt"

	"cloudysky/internal/config"
	"cloudysky/internal/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const serviceNamespace = "cloudysky"

// Tracer is the global tracer used for the application.
var Tracer trace.Tracer = otel.Tracer("cloudysky-api")

// TracingConfig holds configuration for initializing the tracer.
type TracingConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Enabled        bool
	Exporter       string // "stdout" or "otlp"
	OTLPEndpoint   string
	SamplerRatio   float64

	// Deployment choices recorded on every span's resource.
	DBDriver         string
	MediaBackend     string
	ProvisioningMode string
}

// TracingConfigFrom derives the tracer settings from the application config.
func TracingConfigFrom(cfg *config.Config, serviceName, version string) TracingConfig {
	return TracingConfig{
		ServiceName:      serviceName,
		ServiceVersion:   version,
		Environment:      cfg.Env,
		Enabled:          cfg.TracingEnabled,
		Exporter:         cfg.TracingExporter,
		OTLPEndpoint:     cfg.OTLPEndpoint,
		SamplerRatio:     cfg.TracingSamplerRatio,
		DBDriver:         cfg.DBDriver,
		MediaBackend:     cfg.MediaBackend,
		ProvisioningMode: cfg.ProvisioningMode,
	}
}

// InitTracing installs the global tracer provider and returns its shutdown
// function. With tracing disabled the returned function is a no-op.
func InitTracing(cfg TracingConfig) (func(context.Context) error, error) {
	if !cfg.Enabled {
		Tracer = otel.Tracer(cfg.ServiceName)
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := newExporter(cfg)
	if err != nil {
		return nil, err
	}
	res, err := newResource(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(newSampler(cfg.SamplerRatio)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	Tracer = tp.Tracer(cfg.ServiceName)

	return tp.Shutdown, nil
}

func newExporter(cfg TracingConfig) (sdktrace.SpanExporter, error) {
	var (
		exporter sdktrace.SpanExporter
		err      error
	)
	switch cfg.Exporter {
	case "otlp":
		exporter, err = otlptracehttp.New(context.Background(),
			otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
			otlptracehttp.WithInsecure(),
		)
	case "", "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	default:
		return nil, fmt.Errorf("unsupported TRACING_EXPORTER %q", cfg.Exporter)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create tracing exporter: %w", err)
	}
	return exporter, nil
}

// newResource describes this deployment. Empty settings are left out.
func newResource(cfg TracingConfig) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceNamespace(serviceNamespace),
	}
	optional := []struct {
		key   attribute.Key
		value string
	}{
		{semconv.ServiceVersionKey, cfg.ServiceVersion},
		{semconv.DeploymentEnvironmentKey, cfg.Environment},
		{semconv.DBSystemKey, dbSystem(cfg.DBDriver)},
		{"cloudysky.media.backend", cfg.MediaBackend},
		{"cloudysky.provisioning.mode", cfg.ProvisioningMode},
	}
	for _, o := range optional {
		if o.value != "" {
			attrs = append(attrs, o.key.String(o.value))
		}
	}
	return resource.New(context.Background(), resource.WithAttributes(attrs...))
}

func dbSystem(driver string) string {
	if driver == "postgres" {
		return "postgresql"
	}
	return driver
}

// newSampler follows the parent's decision and samples root spans at ratio.
// Ratios outside [0, 1] are clamped.
func newSampler(ratio float64) sdktrace.Sampler {
	switch {
	case ratio >= 1:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case ratio <= 0:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}
}

// ViewerAttributes describes the caller of a core operation on a span.
func ViewerAttributes(v models.Viewer) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool("viewer.authenticated", v.Authenticated),
		attribute.Bool("viewer.staff", v.IsStaff),
		attribute.Int64("viewer.id", int64(v.ID())),
	}
}

// Span wraps an OpenTelemetry span for service-layer use.
type Span struct {
	span trace.Span
}

// NewSpan starts an internal span and returns it with the derived context.
func NewSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (*Span, context.Context) {
	ctx, span := Tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
	return &Span{span: span}, ctx
}

// AddAttributes sets attributes on the span.
func (s *Span) AddAttributes(attrs ...attribute.KeyValue) {
	s.span.SetAttributes(attrs...)
}

// SetError records err on the span and marks it failed. Client mistakes
// such as validation or permission errors are recorded without failing it.
func (s *Span) SetError(err error) {
	if err == nil {
		return
	}
	s.span.RecordError(err)
	if models.StatusFor(err) >= 500 {
		s.span.SetStatus(codes.Error, err.Error())
	}
}

// End ends the span.
func (s *Span) End() {
	s.span.End()
}

// TraceID returns the trace ID of the span.
func (s *Span) TraceID() string {
	return s.span.SpanContext().TraceID().String()
}
