// Package support provides the JobFactory that turns registered job builders into runnable jobs.
package support

import (
	"context"
	"sort"
	"sync"

	port "github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
	exception "github.com/tigerroll/chunkbatch/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

const moduleName = "JobFactory"

// JobBuilder creates a fresh port.Job for one launch. Jobs are built per launch so that
// every launch resolves its connections again.
type JobBuilder func(ctx context.Context) (port.Job, error)

// JobRegistration binds a job name to its builder and, optionally, to the incrementer
// applied when a launch creates a new job instance.
type JobRegistration struct {
	JobName     string
	Builder     JobBuilder
	Incrementer port.JobParametersIncrementer
}

// JobFactory is the registry of the jobs an application can launch.
type JobFactory struct {
	mu           sync.RWMutex
	jobBuilders  map[string]JobBuilder
	incrementers map[string]port.JobParametersIncrementer
}

// NewJobFactory creates an empty JobFactory.
func NewJobFactory() *JobFactory {
	return &JobFactory{
		jobBuilders:  make(map[string]JobBuilder),
		incrementers: make(map[string]port.JobParametersIncrementer),
	}
}

// RegisterJobBuilder registers builder under jobName, replacing any previous one.
func (f *JobFactory) RegisterJobBuilder(jobName string, builder JobBuilder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobBuilders[jobName] = builder
	logger.Debugf("JobBuilder for '%s' registered with JobFactory.", jobName)
}

// RegisterJobParametersIncrementer sets the incrementer of jobName.
func (f *JobFactory) RegisterJobParametersIncrementer(jobName string, incrementer port.JobParametersIncrementer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.incrementers[jobName] = incrementer
	logger.Debugf("JobParametersIncrementer %v registered for job '%s'.", incrementer, jobName)
}

// Register applies a JobRegistration.
func (f *JobFactory) Register(r JobRegistration) {
	f.RegisterJobBuilder(r.JobName, r.Builder)
	if r.Incrementer != nil {
		f.RegisterJobParametersIncrementer(r.JobName, r.Incrementer)
	}
}

// CreateJob builds a new instance of jobName.
func (f *JobFactory) CreateJob(ctx context.Context, jobName string) (port.Job, error) {
	f.mu.RLock()
	builder, ok := f.jobBuilders[jobName]
	f.mu.RUnlock()
	if !ok {
		return nil, exception.NewBatchErrorf(moduleName, "no JobBuilder registered for job '%s'", jobName)
	}

	job, err := builder(ctx)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to build job '"+jobName+"'", err, false, false)
	}
	return job, nil
}

// GetJobParametersIncrementer returns the incrementer of jobName, or nil.
func (f *JobFactory) GetJobParametersIncrementer(jobName string) port.JobParametersIncrementer {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.incrementers[jobName]
}

// JobNames returns the registered job names in sorted order.
func (f *JobFactory) JobNames() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	names := make([]string, 0, len(f.jobBuilders))
	for name := range f.jobBuilders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
