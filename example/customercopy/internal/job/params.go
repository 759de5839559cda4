// Package job assembles the customer copy jobs and registers them with the JobFactory.
// Jobs are rebuilt on every launch so they resolve the current database connections.
package job

import (
	"go.uber.org/fx"

	"github.com/tigerroll/chunkbatch/pkg/batch/adapter/database"
	gormadapter "github.com/tigerroll/chunkbatch/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/chunkbatch/pkg/batch/adapter/storage"
	"github.com/tigerroll/chunkbatch/pkg/batch/component/tasklet/migration"
	port "github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
	config "github.com/tigerroll/chunkbatch/pkg/batch/core/config"
	repository "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/repository"
	"github.com/tigerroll/chunkbatch/pkg/batch/core/job/runner"
	metrics "github.com/tigerroll/chunkbatch/pkg/batch/core/metrics"
	"github.com/tigerroll/chunkbatch/pkg/batch/engine/step/tasklet"
	"github.com/tigerroll/chunkbatch/pkg/batch/listener/logging"
)

// Params are the dependencies shared by the job builders.
type Params struct {
	fx.In
	Config            *config.Config
	JobRepository     repository.JobRepository
	TxFactory         gormadapter.TransactionManagerFactory
	DBResolver        database.DBConnectionResolver
	StorageResolver   storage.StorageConnectionResolver
	MigrationTasklets *migration.TaskletFactory
	MetricRecorder    metrics.MetricRecorder
	Tracer            metrics.Tracer
	JobListener       *logging.LoggingJobListener
	StepListener      *logging.LoggingStepListener
	ChunkListener     *logging.LoggingChunkListener
	SkipListener      *logging.LoggingSkipListener
}

func (p Params) dbRef() string {
	return p.Config.ChunkBatch.Infrastructure.DatabaseRef
}

func (p Params) taskletStep(name string, t port.Tasklet, opts ...tasklet.Option) port.Step {
	base := []tasklet.Option{
		tasklet.WithJobRepository(p.JobRepository),
		tasklet.WithStepListeners(p.StepListener),
		tasklet.WithMetricRecorder(p.MetricRecorder),
		tasklet.WithTracer(p.Tracer),
	}
	return tasklet.NewTaskletStep(name, t, append(base, opts...)...)
}

func (p Params) newJob(name string, steps []port.Step) (port.Job, error) {
	job, err := runner.NewSequentialJob(name, steps,
		runner.WithJobRepository(p.JobRepository),
		runner.WithJobListeners(p.JobListener),
		runner.WithMetricRecorder(p.MetricRecorder),
		runner.WithTracer(p.Tracer),
	)
	if err != nil {
		return nil, err
	}
	return job, nil
}
