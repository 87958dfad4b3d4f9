package database

import (
	"context"
	"errors"

	"rebooto/pkg/errs"
	"rebooto/pkg/models"

	"gorm.io/gorm"
)

// GormActionStore implements ActionStore using Gorm.
type GormActionStore struct {
	repo *GormRepository[models.Action]
}

func NewGormActionStore(db *gorm.DB) *GormActionStore {
	return &GormActionStore{repo: NewGormRepository[models.Action](db)}
}

func (store *GormActionStore) List(ctx context.Context) ([]*models.Action, error) {
	return store.repo.List(ctx)
}

func (store *GormActionStore) GetByName(ctx context.Context, name string) (*models.Action, error) {
	action, err := store.repo.GetByField(ctx, "name", name)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.NotFound("action with name '%s' was not found", name)
		}
		return nil, err
	}
	return action, nil
}

func (store *GormActionStore) Create(ctx context.Context, action *models.Action) (*models.Action, error) {
	return store.repo.Create(ctx, action)
}

func (store *GormActionStore) Save(ctx context.Context, action *models.Action) (*models.Action, error) {
	return store.repo.Save(ctx, action)
}

func (store *GormActionStore) Delete(ctx context.Context, name string) error {
	err := store.repo.Delete(ctx, "name", name)
	if errors.Is(err, errs.ErrNotFound) {
		return errs.NotFound("action with name '%s' was not found", name)
	}
	return err
}

var _ ActionStore = (*GormActionStore)(nil)
