package test

import (
	"github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
)

// NewTestJobParameters builds JobParameters from a plain map.
func NewTestJobParameters(params map[string]interface{}) model.JobParameters {
	jp := model.NewJobParameters()
	for k, v := range params {
		jp.Put(k, v)
	}
	return jp
}

// NewTestStepExecution returns a started step execution attached to a started job execution.
func NewTestStepExecution(jobName, stepName string) *model.StepExecution {
	je := model.NewJobExecution(model.NewID(), jobName, model.NewJobParameters())
	je.MarkAsStarted()
	se := model.NewStepExecution(stepName)
	je.AddStepExecution(se)
	se.MarkAsStarted()
	return se
}
