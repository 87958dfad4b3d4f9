package database

import (
	"context"

	"rebooto/pkg/models"

	"gorm.io/gorm"
)

// GormExecutionStore implements ExecutionStore using Gorm. Executions are
// append-only; there is no update or delete.
type GormExecutionStore struct {
	repo *GormRepository[models.Execution]
}

func NewGormExecutionStore(db *gorm.DB) *GormExecutionStore {
	return &GormExecutionStore{repo: NewGormRepository[models.Execution](db)}
}

func (store *GormExecutionStore) Create(ctx context.Context, execution *models.Execution) (*models.Execution, error) {
	return store.repo.Create(ctx, execution)
}

func (store *GormExecutionStore) ByWorkID(ctx context.Context, workID int64) ([]*models.Execution, error) {
	var executions []*models.Execution
	result := store.repo.DB().WithContext(ctx).Where("work_id = ?", workID).Find(&executions)
	return executions, result.Error
}

var _ ExecutionStore = (*GormExecutionStore)(nil)
