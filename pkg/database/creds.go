package database

import (
	"context"
	"errors"

	"rebooto/pkg/errs"
	"rebooto/pkg/models"

	"gorm.io/gorm"
)

// GormCredsStore implements CredsStore using Gorm.
type GormCredsStore struct {
	repo *GormRepository[models.Creds]
}

func NewGormCredsStore(db *gorm.DB) *GormCredsStore {
	return &GormCredsStore{repo: NewGormRepository[models.Creds](db)}
}

func (store *GormCredsStore) List(ctx context.Context) ([]*models.Creds, error) {
	return store.repo.List(ctx)
}

func (store *GormCredsStore) GetByName(ctx context.Context, name string) (*models.Creds, error) {
	creds, err := store.repo.GetByField(ctx, "name", name)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.NotFound("creds with name '%s' was not found", name)
		}
		return nil, err
	}
	return creds, nil
}

func (store *GormCredsStore) GetDefault(ctx context.Context) (*models.Creds, error) {
	creds, err := store.repo.GetByField(ctx, "is_default", true)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.NotFound("no default creds are set")
		}
		return nil, err
	}
	return creds, nil
}

func (store *GormCredsStore) Create(ctx context.Context, creds *models.Creds) (*models.Creds, error) {
	return store.repo.Create(ctx, creds)
}

func (store *GormCredsStore) Save(ctx context.Context, creds *models.Creds) (*models.Creds, error) {
	return store.repo.Save(ctx, creds)
}

func (store *GormCredsStore) Delete(ctx context.Context, name string) error {
	err := store.repo.Delete(ctx, "name", name)
	if errors.Is(err, errs.ErrNotFound) {
		return errs.NotFound("creds with name '%s' was not found", name)
	}
	return err
}

// SetDefault clears the previous default and flags the named creds inside one
// transaction, so exactly one default exists at any time.
func (store *GormCredsStore) SetDefault(ctx context.Context, name string) (*models.Creds, error) {
	var updated models.Creds
	err := store.repo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var creds models.Creds
		if err := tx.Where("name = ?", name).First(&creds).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errs.NotFound("creds with name '%s' was not found", name)
			}
			return err
		}

		if err := tx.Model(&models.Creds{}).Where("is_default = ?", true).Update("is_default", false).Error; err != nil {
			return err
		}

		if err := tx.Model(&creds).Update("is_default", true).Error; err != nil {
			return err
		}
		updated = creds
		updated.IsDefault = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}
