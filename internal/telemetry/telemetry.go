// Package telemetry provides OpenTelemetry metrics integration for clearflow.
//
// Telemetry is disabled by default (zero runtime overhead when off).
//
// # Configuration
//
//	CFL_OTEL_ENABLED=true             enable telemetry (default: off)
//	CFL_OTEL_STDOUT=true              write metrics to stderr (dev mode)
//	OTEL_EXPORTER_OTLP_ENDPOINT=...   OTLP/HTTP endpoint
//	OTEL_SERVICE_NAME=cfl             override service name
package telemetry

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

var shutdownFns []func(context.Context) error

// Enabled reports whether telemetry is active (CFL_OTEL_ENABLED=true).
func Enabled() bool {
	return os.Getenv("CFL_OTEL_ENABLED") == "true"
}

// Init configures the global meter provider. When CFL_OTEL_ENABLED is not
// "true" this installs a no-op provider and returns immediately.
func Init(ctx context.Context, serviceName, version string) error {
	if !Enabled() {
		otel.SetMeterProvider(metricnoop.NewMeterProvider())
		return nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(version),
		),
		resource.WithHost(),
		resource.WithProcess(),
	)
	if err != nil {
		return fmt.Errorf("telemetry: resource: %w", err)
	}

	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}

	if os.Getenv("CFL_OTEL_STDOUT") == "true" {
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(os.Stderr))
		if err != nil {
			return fmt.Errorf("telemetry: stdout exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(10*time.Second))))
	}
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		exp, err := otlpmetrichttp.New(ctx)
		if err != nil {
			return fmt.Errorf("telemetry: otlp exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(30*time.Second))))
	}

	mp := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(mp)
	shutdownFns = append(shutdownFns, mp.Shutdown)
	return nil
}

// Shutdown flushes and stops all configured exporters.
func Shutdown(ctx context.Context) {
	for _, fn := range shutdownFns {
		fnCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_ = fn(fnCtx)
		cancel()
	}
	shutdownFns = nil
}
