package generic

import (
	"context"

	port "github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	logger "github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

// Keys of the summary, written to both the step and the job execution context.
const (
	ContextKeySummaryTotal = "summary.total"
	ContextKeySummaryOK    = "summary.ok"
	ContextKeySummaryKO    = "summary.ko"
)

// ExecutionSummaryTasklet reports the outcome of one chunk step of the running job:
// total = read + skipped on read, OK = written, KO = every skipped item.
type ExecutionSummaryTasklet struct {
	stepName string
}

// NewExecutionSummaryTasklet creates a summary of the step stepName.
func NewExecutionSummaryTasklet(stepName string) *ExecutionSummaryTasklet {
	return &ExecutionSummaryTasklet{stepName: stepName}
}

// Execute implements port.Tasklet. A missing step is logged, not failed.
func (t *ExecutionSummaryTasklet) Execute(ctx context.Context, stepExecution *model.StepExecution) (model.ExitStatus, error) {
	je := stepExecution.JobExecution
	var target *model.StepExecution
	if je != nil {
		target = je.StepExecution(t.stepName)
	}
	if target == nil {
		logger.Warnf("step %s was not executed!", t.stepName)
		return model.ExitStatusCompleted, nil
	}

	c := target.Counters
	total, ok, ko := c.TotalSeen(), c.ItemsWritten, c.TotalSkipped()
	logger.Infof("step %s: \n"+
		"             - total item processed: %d\n"+
		"             -             items OK: %d\n"+
		"             -             items KO: %d",
		target.StepName, total, ok, ko)

	for _, ec := range []model.ExecutionContext{stepExecution.ExecutionContext, je.ExecutionContext} {
		ec.Put(ContextKeySummaryTotal, total)
		ec.Put(ContextKeySummaryOK, ok)
		ec.Put(ContextKeySummaryKO, ko)
	}
	return model.ExitStatusCompleted, nil
}

var _ port.Tasklet = (*ExecutionSummaryTasklet)(nil)
