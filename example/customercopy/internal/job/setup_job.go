package job

import (
	"context"

	"github.com/tigerroll/chunkbatch/example/customercopy/internal/schema"
	seed "github.com/tigerroll/chunkbatch/example/customercopy/internal/step/tasklet"
	port "github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
	"github.com/tigerroll/chunkbatch/pkg/batch/core/config/support"
	"github.com/tigerroll/chunkbatch/pkg/batch/core/support/incrementer"
)

// Names of the setup job and its steps.
const (
	CustomerSetupJobName = "customerSetupJob"

	StepMigrateSchema = "migrateSchema"
	StepSeedCustomers = "seedCustomers"
)

// NewCustomerSetupJob registers customerSetupJob, which prepares the data set of the copy job:
// it applies the schema migrations when infrastructure.migrate is set, then seeds customer_tmp.
func NewCustomerSetupJob(p Params) support.JobRegistration {
	return support.JobRegistration{
		JobName: CustomerSetupJobName,
		Builder: func(ctx context.Context) (port.Job, error) {
			return buildCustomerSetupJob(p)
		},
		Incrementer: incrementer.NewRunIDIncrementer("run.id"),
	}
}

func buildCustomerSetupJob(p Params) (port.Job, error) {
	var steps []port.Step
	if p.Config.ChunkBatch.Infrastructure.Migrate {
		migrate, err := p.MigrationTasklets.New(map[string]interface{}{
			"db_ref":  p.dbRef(),
			"fs_name": schema.FSName,
		})
		if err != nil {
			return nil, err
		}
		steps = append(steps, p.taskletStep(StepMigrateSchema, migrate))
	}
	steps = append(steps, p.taskletStep(StepSeedCustomers,
		seed.NewSeedCustomersTasklet(p.DBResolver, p.dbRef(), p.Config.ChunkBatch.Simulation.ItemCount)))

	return p.newJob(CustomerSetupJobName, steps)
}
