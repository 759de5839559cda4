package inmemory

import (
	"context"
	"fmt"

	"github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/chunkbatch/pkg/batch/core/domain/repository"
)

// SaveJobExecution appends je to the history of its instance and registers the steps it
// already carries.
func (r *InMemoryJobRepository) SaveJobExecution(ctx context.Context, je *model.JobExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.executions[je.ID]; dup {
		return fmt.Errorf("job execution %s is already registered", je.ID)
	}
	r.executions[je.ID] = je
	r.history[je.JobInstanceID] = append(r.history[je.JobInstanceID], je.ID)
	for _, se := range je.StepExecutions {
		r.steps[se.ID] = se
	}
	return nil
}

func (r *InMemoryJobRepository) UpdateJobExecution(ctx context.Context, je *model.JobExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.executions[je.ID]; !ok {
		return fmt.Errorf("job execution %s: %w", je.ID, repository.ErrJobExecutionNotFound)
	}
	r.executions[je.ID] = je
	return nil
}

func (r *InMemoryJobRepository) FindJobExecutionByID(ctx context.Context, id string) (*model.JobExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if je, ok := r.executions[id]; ok {
		return je, nil
	}
	return nil, repository.ErrJobExecutionNotFound
}

// FindLatestJobExecution returns the execution of jobInstanceID that was saved last.
func (r *InMemoryJobRepository) FindLatestJobExecution(ctx context.Context, jobInstanceID string) (*model.JobExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.history[jobInstanceID]
	if len(ids) == 0 {
		return nil, repository.ErrJobExecutionNotFound
	}
	return r.executions[ids[len(ids)-1]], nil
}

// FindJobExecutionsByJobInstance returns the executions of ji, latest first.
func (r *InMemoryJobRepository) FindJobExecutionsByJobInstance(ctx context.Context, ji *model.JobInstance) ([]*model.JobExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.history[ji.ID]
	out := make([]*model.JobExecution, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		out = append(out, r.executions[ids[i]])
	}
	return out, nil
}

func (r *InMemoryJobRepository) SaveStepExecution(ctx context.Context, se *model.StepExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.steps[se.ID]; dup {
		return fmt.Errorf("step execution %s is already registered", se.ID)
	}
	r.steps[se.ID] = se
	return nil
}

func (r *InMemoryJobRepository) UpdateStepExecution(ctx context.Context, se *model.StepExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.steps[se.ID]; !ok {
		return fmt.Errorf("step execution %s: %w", se.ID, repository.ErrStepExecutionNotFound)
	}
	r.steps[se.ID] = se
	return nil
}

func (r *InMemoryJobRepository) FindStepExecutionByID(ctx context.Context, id string) (*model.StepExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if se, ok := r.steps[id]; ok {
		return se, nil
	}
	return nil, repository.ErrStepExecutionNotFound
}
