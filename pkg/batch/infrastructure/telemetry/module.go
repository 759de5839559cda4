package telemetry

import (
	"context"

	"github.com/hashicorp/go-multierror"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"

	config "github.com/tigerroll/chunkbatch/pkg/batch/core/config"
)

// Params are the dependencies of the providers.
type Params struct {
	fx.In
	Lifecycle fx.Lifecycle
	Config    *config.Config
}

// Providers holds both providers so they are flushed and shut down together.
type Providers struct {
	fx.Out
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
}

// NewProviders builds both providers and shuts them down when the application stops.
func NewProviders(p Params) (Providers, error) {
	ctx := context.Background()
	cfg := p.Config.ChunkBatch.Telemetry

	tp, err := NewTracerProvider(ctx, cfg)
	if err != nil {
		return Providers{}, err
	}
	mp, err := NewMeterProvider(ctx, cfg)
	if err != nil {
		return Providers{}, multierror.Append(err, tp.Shutdown(ctx))
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			var result *multierror.Error
			result = multierror.Append(result, tp.Shutdown(ctx))
			result = multierror.Append(result, mp.Shutdown(ctx))
			return result.ErrorOrNil()
		},
	})
	return Providers{TracerProvider: tp, MeterProvider: mp}, nil
}

// Module provides *sdktrace.TracerProvider and *sdkmetric.MeterProvider.
var Module = fx.Options(
	fx.Provide(NewProviders),
)
