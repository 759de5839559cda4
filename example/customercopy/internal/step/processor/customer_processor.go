// Package processor holds the item processor of the copy step.
package processor

import (
	"context"

	"github.com/tigerroll/chunkbatch/example/customercopy/internal/domain/entity"
	"github.com/tigerroll/chunkbatch/pkg/batch/component/simulation"
	batchprocessor "github.com/tigerroll/chunkbatch/pkg/batch/component/step/processor"
)

// CopyCustomer maps a source row to its target row.
func CopyCustomer(ctx context.Context, in entity.CustomerTmp) (entity.Customer, error) {
	return entity.Customer{ID: in.ID, Name: in.Name}, nil
}

// NewCustomerProcessor returns the processor of the copy step. Items the injector marks
// as process faults fail before they are mapped.
func NewCustomerProcessor(injector *simulation.FaultInjector) *batchprocessor.FuncProcessor[entity.CustomerTmp, entity.Customer] {
	return batchprocessor.NewFuncProcessor("customerProcessor", CopyCustomer, simulation.ProcessCheck[entity.CustomerTmp](injector))
}
