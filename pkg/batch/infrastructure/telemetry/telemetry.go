// Package telemetry builds the OpenTelemetry trace and meter providers, exporting over OTLP
// when an endpoint is configured.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	config "github.com/tigerroll/chunkbatch/pkg/batch/core/config"
	logger "github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

// OTLP protocols accepted by config.ExporterConfig.Protocol.
const (
	ProtocolGRPC = "grpc"
	ProtocolHTTP = "http"
)

func newResource(cfg config.TelemetryConfig) *resource.Resource {
	return resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))
}

// NewTracerProvider builds a TracerProvider. Without an exporter endpoint, spans are created
// but not exported.
func NewTracerProvider(ctx context.Context, cfg config.TelemetryConfig) (*sdktrace.TracerProvider, error) {
	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(newResource(cfg))}

	if exp := cfg.Exporter; exp.Endpoint != "" {
		var (
			exporter sdktrace.SpanExporter
			err      error
		)
		switch exp.Protocol {
		case ProtocolGRPC, "":
			grpcOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(exp.Endpoint)}
			if exp.Insecure {
				grpcOpts = append(grpcOpts, otlptracegrpc.WithInsecure())
			}
			exporter, err = otlptracegrpc.New(ctx, grpcOpts...)
		case ProtocolHTTP:
			httpOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(exp.Endpoint)}
			if exp.Insecure {
				httpOpts = append(httpOpts, otlptracehttp.WithInsecure())
			}
			exporter, err = otlptracehttp.New(ctx, httpOpts...)
		default:
			return nil, fmt.Errorf("unsupported OTLP protocol: '%s'", exp.Protocol)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
		logger.Infof("Exporting traces over OTLP/%s to %s.", protocolName(exp.Protocol), exp.Endpoint)
	}
	return sdktrace.NewTracerProvider(opts...), nil
}

// NewMeterProvider builds a MeterProvider. Without an exporter endpoint, extra readers (for
// example a manual reader in tests) are the only consumers.
func NewMeterProvider(ctx context.Context, cfg config.TelemetryConfig, readers ...sdkmetric.Reader) (*sdkmetric.MeterProvider, error) {
	opts := []sdkmetric.Option{sdkmetric.WithResource(newResource(cfg))}
	for _, r := range readers {
		opts = append(opts, sdkmetric.WithReader(r))
	}

	if exp := cfg.Exporter; exp.Endpoint != "" {
		var (
			exporter sdkmetric.Exporter
			err      error
		)
		switch exp.Protocol {
		case ProtocolGRPC, "":
			grpcOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(exp.Endpoint)}
			if exp.Insecure {
				grpcOpts = append(grpcOpts, otlpmetricgrpc.WithInsecure())
			}
			exporter, err = otlpmetricgrpc.New(ctx, grpcOpts...)
		case ProtocolHTTP:
			httpOpts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(exp.Endpoint)}
			if exp.Insecure {
				httpOpts = append(httpOpts, otlpmetrichttp.WithInsecure())
			}
			exporter, err = otlpmetrichttp.New(ctx, httpOpts...)
		default:
			return nil, fmt.Errorf("unsupported OTLP protocol: '%s'", exp.Protocol)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)))
		logger.Infof("Exporting metrics over OTLP/%s to %s.", protocolName(exp.Protocol), exp.Endpoint)
	}
	return sdkmetric.NewMeterProvider(opts...), nil
}

func protocolName(p string) string {
	if p == "" {
		return ProtocolGRPC
	}
	return p
}
