package usecase

import (
	"go.uber.org/fx"
)

// Module is the Fx module for JobLauncher, JobOperator, and JobExplorer.
var Module = fx.Options(
	fx.Provide(
		NewSimpleJobLauncher,
		fx.Annotate(
			func(launcher *SimpleJobLauncher) *SimpleJobLauncher { return launcher },
			fx.As(new(JobLauncher)),
		),
		fx.Annotate(NewSimpleJobExplorer, fx.As(new(JobExplorer))),
		fx.Annotate(NewDefaultJobOperator, fx.As(new(JobOperator))),
	),
)
