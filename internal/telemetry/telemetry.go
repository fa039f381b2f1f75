// Package telemetry installs the OpenTelemetry tracer provider for one CLI run.
// Tracing stays off unless the config enables it or an endpoint is forced on
// the command line.
package telemetry

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const (
	// ServiceName is the service.name used when the config leaves it blank.
	ServiceName = "bibnote"
	// DefaultEnvironment is reported when no environment variable names one.
	DefaultEnvironment = "dev"
	// DefaultEndpoint is the local OTLP HTTP collector.
	DefaultEndpoint = "http://localhost:4318"
	// BatchTimeout is the flush interval of the batch processor and the
	// shutdown deadline.
	BatchTimeout = 5 * time.Second
	// BatchSize is the largest export batch.
	BatchSize = 512
)

// ServiceVersion is set at build time via ldflags.
var ServiceVersion = "dev"

// Settings controls Init.
type Settings struct {
	Enabled bool
	// Endpoint is the configured collector URL. The command-line override and
	// OTEL_EXPORTER_OTLP_ENDPOINT win over it.
	Endpoint    string
	ServiceName string
	// Fallback receives the exporter warning and console spans when OTLP is
	// unavailable. Nil discards them.
	Fallback io.Writer
}

var (
	override atomic.Pointer[string]

	exporterFactory = newOTLPExporter
)

// SetEndpointOverride forces the collector endpoint for this process. A
// non-empty override also turns tracing on.
func SetEndpointOverride(endpoint string) {
	endpoint = strings.TrimSpace(endpoint)
	override.Store(&endpoint)
}

func endpointOverride() string {
	if value := override.Load(); value != nil {
		return *value
	}
	return ""
}

// Init installs a batching tracer provider and returns its shutdown function.
// When tracing is off nothing is installed and shutdown does nothing.
func Init(ctx context.Context, settings Settings) (func(), error) {
	if !settings.Enabled && endpointOverride() == "" {
		return func() {}, nil
	}

	res, err := newResource(ctx, settings.ServiceName)
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(
			exporterFor(ctx, resolveEndpoint(settings.Endpoint), settings.Fallback),
			sdktrace.WithBatchTimeout(BatchTimeout),
			sdktrace.WithMaxExportBatchSize(BatchSize),
		),
	)
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)

	var once sync.Once
	return func() {
		once.Do(func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), BatchTimeout)
			defer cancel()
			if err := provider.Shutdown(shutdownCtx); err != nil {
				otel.Handle(err)
			}
			otel.SetTracerProvider(previous)
		})
	}, nil
}

// exporterFor returns the OTLP exporter, or a console exporter on fallback
// when the OTLP one cannot be built.
func exporterFor(ctx context.Context, endpoint string, fallback io.Writer) sdktrace.SpanExporter {
	if fallback == nil {
		fallback = io.Discard
	}
	exporter, err := exporterFactory(ctx, endpoint)
	if err == nil {
		return exporter
	}
	fmt.Fprintf(fallback, "warning: OTLP exporter unavailable for %s (%v); falling back to console exporter\n", endpoint, err)
	return &consoleExporter{out: fallback}
}

func newOTLPExporter(ctx context.Context, endpoint string) (sdktrace.SpanExporter, error) {
	options := []otlptracehttp.Option{otlptracehttp.WithEndpointURL(endpoint)}
	if certPath := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_CERTIFICATE")); certPath != "" {
		tlsConfig, err := tlsConfigFromCertificate(certPath)
		if err != nil {
			return nil, err
		}
		options = append(options, otlptracehttp.WithTLSClientConfig(tlsConfig))
	}
	return otlptracehttp.New(ctx, options...)
}

func newResource(ctx context.Context, serviceName string) (*resource.Resource, error) {
	if serviceName = strings.TrimSpace(serviceName); serviceName == "" {
		serviceName = ServiceName
	}
	version := strings.TrimSpace(ServiceVersion)
	if version == "" {
		version = "dev"
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", serviceName),
		attribute.String("service.version", version),
		attribute.String("environment", resolveEnvironment()),
	))
	if err != nil {
		return nil, fmt.Errorf("create telemetry resource: %w", err)
	}
	return res, nil
}

// resolveEndpoint applies override, then environment, then config, then the default.
func resolveEndpoint(configured string) string {
	candidates := []string{
		endpointOverride(),
		os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		configured,
	}
	for _, candidate := range candidates {
		if candidate = strings.TrimSpace(candidate); candidate != "" {
			return candidate
		}
	}
	return DefaultEndpoint
}

func resolveEnvironment() string {
	for _, key := range []string{"BIBNOTE_ENV", "ENVIRONMENT", "ENV"} {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return strings.ToLower(value)
		}
	}
	return DefaultEnvironment
}

func tlsConfigFromCertificate(path string) (*tls.Config, error) {
	// #nosec G304 -- the path comes from OTEL_EXPORTER_OTLP_CERTIFICATE.
	certPEM, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read OTEL certificate %q: %w", path, err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(certPEM) {
		return nil, fmt.Errorf("parse OTEL certificate %q: no certificates found", path)
	}
	return &tls.Config{MinVersion: tls.VersionTLS12, RootCAs: pool}, nil
}

func setExporterFactoryForTest(factory func(context.Context, string) (sdktrace.SpanExporter, error)) func() {
	previous := exporterFactory
	exporterFactory = factory
	return func() { exporterFactory = previous }
}

func setEndpointOverrideForTest(value string) func() {
	previous := endpointOverride()
	SetEndpointOverride(value)
	return func() { SetEndpointOverride(previous) }
}
