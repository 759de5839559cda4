package job

import (
	"go.uber.org/fx"

	"github.com/tigerroll/chunkbatch/pkg/batch/core/config/support"
)

// Module registers the setup and copy jobs with the JobFactory.
var Module = fx.Options(
	support.ProvideJob(NewCustomerSetupJob),
	support.ProvideJob(NewCustomerCopyJob),
)
