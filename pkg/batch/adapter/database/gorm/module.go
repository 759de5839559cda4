package gorm

import (
	"context"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/fx"

	"github.com/tigerroll/chunkbatch/pkg/batch/adapter/database"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

// CloseParams are the dependencies of RegisterCloseHook.
type CloseParams struct {
	fx.In
	Lifecycle   fx.Lifecycle
	DBProviders []database.DBProvider `group:"db_providers"`
}

// RegisterCloseHook closes the connections of every provider when the application stops.
func RegisterCloseHook(p CloseParams) {
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Infof("Closing all database connections...")
			var result *multierror.Error
			for _, provider := range p.DBProviders {
				if err := provider.CloseAll(); err != nil {
					logger.Errorf("Failed to close connections for provider %s: %v", provider.Type(), err)
					result = multierror.Append(result, err)
				}
			}
			return result.ErrorOrNil()
		},
	})
}

// Module exports the gorm adapter components for dependency injection. Concrete DB providers
// come from the sqlite, mysql and postgres sub-packages.
var Module = fx.Options(
	fx.Provide(NewGormTransactionManagerFactory),
	fx.Provide(fx.Annotate(
		NewGormDBConnectionResolver,
		fx.As(new(database.DBConnectionResolver)),
	)),
	fx.Invoke(RegisterCloseHook),
)
