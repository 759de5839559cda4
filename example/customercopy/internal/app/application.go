package app

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"github.com/tigerroll/chunkbatch/example/customercopy/internal/job"
	usecase "github.com/tigerroll/chunkbatch/pkg/batch/core/application/usecase"
	config "github.com/tigerroll/chunkbatch/pkg/batch/core/config"
	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

// Runner launches the setup job once and then the configured job batch.runs times.
type Runner struct {
	launcher usecase.JobLauncher
	cfg      *config.Config
}

// NewRunner creates a Runner.
func NewRunner(launcher usecase.JobLauncher, cfg *config.Config) *Runner {
	return &Runner{launcher: launcher, cfg: cfg}
}

// Run returns the executions of the configured job. It stops at the first execution that
// does not complete.
func (r *Runner) Run(ctx context.Context) ([]*model.JobExecution, error) {
	setup, err := r.launch(ctx, job.CustomerSetupJobName)
	if err != nil {
		return nil, err
	}
	if setup.Status != model.BatchStatusCompleted {
		return nil, fmt.Errorf("job '%s' ended with status %s", job.CustomerSetupJobName, setup.Status)
	}

	jobName := r.cfg.ChunkBatch.Batch.JobName
	if jobName == "" {
		jobName = job.CustomerCopyJobName
	}
	runs := r.cfg.ChunkBatch.Batch.Runs
	if runs < 1 {
		runs = 1
	}

	executions := make([]*model.JobExecution, 0, runs)
	for i := 1; i <= runs; i++ {
		if err := ctx.Err(); err != nil {
			return executions, err
		}
		logger.Infof("Run %d/%d of job '%s'.", i, runs, jobName)
		je, err := r.launch(ctx, jobName)
		if err != nil {
			return executions, err
		}
		executions = append(executions, je)
		if je.Status != model.BatchStatusCompleted {
			return executions, fmt.Errorf("job '%s' ended with status %s", jobName, je.Status)
		}
	}
	return executions, nil
}

func (r *Runner) launch(ctx context.Context, jobName string) (*model.JobExecution, error) {
	je, err := r.launcher.Launch(ctx, jobName, model.NewJobParameters())
	if err != nil {
		return nil, fmt.Errorf("failed to launch job '%s': %w", jobName, err)
	}
	logger.Infof("Job '%s' (Execution ID: %s) finished with status: %s, ExitStatus: %s",
		jobName, je.ID, je.Status, je.ExitStatus)
	return je, nil
}

// RunApplication runs the application until every launch has finished and returns the
// process exit code.
func RunApplication(appCtx context.Context, envFilePath string, embeddedConfig config.EmbeddedConfig, dbProviders []fx.Option) int {
	app := fx.New(
		logger.Module,
		Options(embeddedConfig, envFilePath, dbProviders...),
		fx.Invoke(func(lc fx.Lifecycle, shutdowner fx.Shutdowner, runner *Runner) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					go func() {
						code := 0
						defer func() {
							if r := recover(); r != nil {
								logger.Errorf("Panic recovered in job execution: %v", r)
								code = 1
							}
							logger.Infof("Requesting application shutdown after job completion.")
							if err := shutdowner.Shutdown(fx.ExitCode(code)); err != nil {
								logger.Errorf("Failed to shutdown application: %v", err)
							}
						}()

						if _, err := runner.Run(appCtx); err != nil {
							logger.Errorf("Batch run failed: %v", err)
							code = 1
						}
					}()
					return nil
				},
				OnStop: func(ctx context.Context) error {
					logger.Infof("Application is shutting down.")
					return nil
				},
			})
		}),
	)

	if err := app.Start(context.Background()); err != nil {
		logger.Errorf("Application start failed: %v", err)
		return 1
	}
	signal := <-app.Wait()
	if err := app.Stop(context.Background()); err != nil {
		logger.Errorf("Application stop failed: %v", err)
		return 1
	}
	return signal.ExitCode
}
