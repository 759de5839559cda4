package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"

	config "github.com/tigerroll/chunkbatch/pkg/batch/core/config"
	metrics "github.com/tigerroll/chunkbatch/pkg/batch/core/metrics"
	logger "github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

// Backends accepted by config.TelemetryConfig.Metrics and Tracing.
const (
	BackendNone       = "none"
	BackendPrometheus = "prometheus"
	BackendOtel       = "otel"
)

// RecorderParams are the dependencies of NewMetricRecorder.
type RecorderParams struct {
	fx.In
	Lifecycle     fx.Lifecycle
	Config        *config.Config
	MeterProvider *sdkmetric.MeterProvider
}

// NewMetricRecorder returns the recorder selected by telemetry.metrics. A Prometheus recorder
// is served on telemetry.prometheus_listen when that address is set.
func NewMetricRecorder(p RecorderParams) (metrics.MetricRecorder, error) {
	cfg := p.Config.ChunkBatch.Telemetry
	switch cfg.Metrics {
	case BackendNone, "":
		return metrics.NewNoOpMetricRecorder(), nil
	case BackendPrometheus:
		r := NewPrometheusRecorder()
		if cfg.PrometheusListen != "" {
			serveMetrics(p.Lifecycle, cfg.PrometheusListen, r.Handler())
		}
		return decorateAsync(p.Lifecycle, cfg.AsyncBufferSize, r), nil
	case BackendOtel:
		r, err := NewOpenTelemetryRecorder(p.MeterProvider)
		if err != nil {
			return nil, err
		}
		return decorateAsync(p.Lifecycle, cfg.AsyncBufferSize, r), nil
	default:
		return nil, fmt.Errorf("unknown metrics backend: '%s'", cfg.Metrics)
	}
}

// decorateAsync wraps r in an AsyncMetricRecorder when bufferSize is positive. The queue is
// drained when the application stops.
func decorateAsync(lc fx.Lifecycle, bufferSize int, r metrics.MetricRecorder) metrics.MetricRecorder {
	if bufferSize <= 0 {
		return r
	}
	async := NewAsyncMetricRecorder(bufferSize, r)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			async.Close()
			return nil
		},
	})
	logger.Debugf("MetricRecorder decorated with asynchronous wrapper.")
	return async
}

// TracerParams are the dependencies of NewTracer.
type TracerParams struct {
	fx.In
	Config         *config.Config
	TracerProvider *sdktrace.TracerProvider
}

// NewTracer returns the tracer selected by telemetry.tracing.
func NewTracer(p TracerParams) (metrics.Tracer, error) {
	switch backend := p.Config.ChunkBatch.Telemetry.Tracing; backend {
	case BackendNone, "":
		return metrics.NewNoOpTracer(), nil
	case BackendOtel:
		return NewOpenTelemetryTracer(p.TracerProvider), nil
	default:
		return nil, fmt.Errorf("unknown tracing backend: '%s'", backend)
	}
}

func serveMetrics(lc fx.Lifecycle, addr string, handler http.Handler) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Addr: addr, Handler: mux}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return err
			}
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Errorf("Metrics server stopped: %v", err)
				}
			}()
			logger.Infof("Serving Prometheus metrics on %s/metrics.", ln.Addr())
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

// Module provides the metrics.MetricRecorder and metrics.Tracer selected by the telemetry configuration.
var Module = fx.Options(
	fx.Provide(
		NewMetricRecorder,
		NewTracer,
	),
)
