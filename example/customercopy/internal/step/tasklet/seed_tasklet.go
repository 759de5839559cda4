// Package tasklet holds the tasklets preparing the customer copy data set.
package tasklet

import (
	"context"
	"fmt"

	"github.com/tigerroll/chunkbatch/example/customercopy/internal/domain/entity"
	"github.com/tigerroll/chunkbatch/pkg/batch/adapter/database"
	port "github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	exception "github.com/tigerroll/chunkbatch/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

// ContextKeySeeded is the execution context key holding the number of inserted rows.
const ContextKeySeeded = "seed.inserted"

const seedBatchSize = 500

// SeedCustomersTasklet fills customer_tmp with the ids 1..count. Rows already present are kept.
type SeedCustomersTasklet struct {
	resolver database.DBConnectionResolver
	dbRef    string
	count    int
}

// NewSeedCustomersTasklet creates the tasklet.
func NewSeedCustomersTasklet(resolver database.DBConnectionResolver, dbRef string, count int) *SeedCustomersTasklet {
	return &SeedCustomersTasklet{resolver: resolver, dbRef: dbRef, count: count}
}

// Execute implements port.Tasklet.
func (t *SeedCustomersTasklet) Execute(ctx context.Context, stepExecution *model.StepExecution) (model.ExitStatus, error) {
	conn, err := t.resolver.ResolveDBConnection(ctx, t.dbRef)
	if err != nil {
		return model.ExitStatusFailed, err
	}

	inserted := int64(0)
	for start := 1; start <= t.count; start += seedBatchSize {
		end := start + seedBatchSize - 1
		if end > t.count {
			end = t.count
		}
		rows := make([]entity.CustomerTmp, 0, end-start+1)
		for id := start; id <= end; id++ {
			rows = append(rows, entity.NewCustomerTmp(int64(id)))
		}

		n, err := conn.ExecuteUpsert(ctx, &rows, entity.CustomerTmpTable, []string{"id"}, nil)
		if err != nil {
			if conn.IsTableNotExistError(err) {
				return model.ExitStatusFailed, exception.NewBatchError(stepExecution.StepName,
					fmt.Sprintf("table '%s' does not exist; enable infrastructure.migrate", entity.CustomerTmpTable), err, false, false)
			}
			return model.ExitStatusFailed, exception.NewBatchError(stepExecution.StepName, "failed to seed customers", err, false, false)
		}
		inserted += n
	}

	stepExecution.ExecutionContext.Put(ContextKeySeeded, int(inserted))
	logger.Infof("Seeded %d of %d customers into '%s'.", inserted, t.count, entity.CustomerTmpTable)
	return model.ExitStatusCompleted, nil
}

var _ port.Tasklet = (*SeedCustomersTasklet)(nil)
