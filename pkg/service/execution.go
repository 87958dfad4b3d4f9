package service

import (
	"context"

	"rebooto/pkg/database"
	"rebooto/pkg/models"
)

// ExecutionService records the append-only audit trail workers report while
// running assigned actions.
type ExecutionService struct {
	executions database.ExecutionStore
	works      database.WorkStore
}

func NewExecutionService(executions database.ExecutionStore, works database.WorkStore) *ExecutionService {
	return &ExecutionService{executions: executions, works: works}
}

// Create records one action attempt. The referenced work must exist; the
// state link is copied from the work so reports cannot mislabel it.
func (svc *ExecutionService) Create(ctx context.Context, execution *models.Execution) (*models.Execution, error) {
	work, err := svc.works.Get(ctx, execution.WorkID)
	if err != nil {
		return nil, err
	}
	execution.StateID = work.StateID
	execution.Trigger = work.Trigger
	return svc.executions.Create(ctx, execution)
}

func (svc *ExecutionService) ListByWork(ctx context.Context, workID int64) ([]*models.Execution, error) {
	if _, err := svc.works.Get(ctx, workID); err != nil {
		return nil, err
	}
	return svc.executions.ByWorkID(ctx, workID)
}
