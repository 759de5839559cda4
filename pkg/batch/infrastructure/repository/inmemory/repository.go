// Package inmemory provides the in-memory JobRepository. Metadata lives as long as the process.
package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/fx"

	"github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/chunkbatch/pkg/batch/core/domain/repository"
)

// Module provides InMemoryJobRepository as the repository.JobRepository.
var Module = fx.Provide(fx.Annotate(NewInMemoryJobRepository, fx.As(new(repository.JobRepository))))

// instanceKey identifies a job instance by job name and parameters hash.
type instanceKey struct {
	jobName string
	hash    string
}

// InMemoryJobRepository keeps instances, executions and steps in maps. The executions of an
// instance are also kept in launch order, so the latest one is the last of its history.
type InMemoryJobRepository struct {
	mu sync.RWMutex

	instances     map[string]*model.JobInstance
	instanceByKey map[instanceKey]string

	executions map[string]*model.JobExecution
	history    map[string][]string

	steps map[string]*model.StepExecution
}

// NewInMemoryJobRepository creates an empty repository.
func NewInMemoryJobRepository() *InMemoryJobRepository {
	return &InMemoryJobRepository{
		instances:     make(map[string]*model.JobInstance),
		instanceByKey: make(map[instanceKey]string),
		executions:    make(map[string]*model.JobExecution),
		history:       make(map[string][]string),
		steps:         make(map[string]*model.StepExecution),
	}
}

// Close is a no-op.
func (r *InMemoryJobRepository) Close() error { return nil }

var _ repository.JobRepository = (*InMemoryJobRepository)(nil)

// SaveJobInstance registers a new instance. An instance ID or a name and parameters pair
// can be registered once.
func (r *InMemoryJobRepository) SaveJobInstance(ctx context.Context, ji *model.JobInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.instances[ji.ID]; dup {
		return fmt.Errorf("job instance %s is already registered", ji.ID)
	}
	key := instanceKey{jobName: ji.JobName, hash: ji.ParametersHash}
	if other, dup := r.instanceByKey[key]; dup {
		return fmt.Errorf("job '%s' already has instance %s for these parameters", ji.JobName, other)
	}
	r.instances[ji.ID] = ji
	r.instanceByKey[key] = ji.ID
	return nil
}

func (r *InMemoryJobRepository) FindJobInstanceByID(ctx context.Context, id string) (*model.JobInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if ji, ok := r.instances[id]; ok {
		return ji, nil
	}
	return nil, repository.ErrJobInstanceNotFound
}

// FindJobInstanceByJobNameAndParameters compares parameter hashes, so key order and integer
// kinds do not matter.
func (r *InMemoryJobRepository) FindJobInstanceByJobNameAndParameters(ctx context.Context, jobName string, params model.JobParameters) (*model.JobInstance, error) {
	hash, err := params.Hash()
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if id, ok := r.instanceByKey[instanceKey{jobName: jobName, hash: hash}]; ok {
		return r.instances[id], nil
	}
	return nil, repository.ErrJobInstanceNotFound
}

func (r *InMemoryJobRepository) GetJobInstanceCount(ctx context.Context, jobName string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for key := range r.instanceByKey {
		if key.jobName == jobName {
			n++
		}
	}
	return n, nil
}

// GetJobNames returns the distinct job names, sorted.
func (r *InMemoryJobRepository) GetJobNames(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	var names []string
	for key := range r.instanceByKey {
		if !seen[key.jobName] {
			seen[key.jobName] = true
			names = append(names, key.jobName)
		}
	}
	sort.Strings(names)
	return names, nil
}
