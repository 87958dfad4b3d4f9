package database

import (
	"context"
	"errors"
	"time"

	"rebooto/pkg/errs"
	"rebooto/pkg/models"

	"gorm.io/gorm"
)

// GormWorkStore implements WorkStore using Gorm. Claim and Complete are single
// conditional UPDATE statements, so concurrent callers can never both win the
// same work row.
type GormWorkStore struct {
	repo *GormRepository[models.Work]
}

func NewGormWorkStore(db *gorm.DB) *GormWorkStore {
	return &GormWorkStore{repo: NewGormRepository[models.Work](db)}
}

func (store *GormWorkStore) Get(ctx context.Context, id int64) (*models.Work, error) {
	work, err := store.repo.GetByField(ctx, "work_id", id)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.NotFound("work with id '%d' was not found", id)
		}
		return nil, err
	}
	return work, nil
}

func (store *GormWorkStore) PendingByDevice(ctx context.Context, uid string) (*models.Work, error) {
	var work models.Work
	result := store.repo.DB().WithContext(ctx).
		Where("device_uid = ? AND status = ?", uid, models.StatusPending).
		First(&work)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("work for device with uid '%s' was not found", uid)
		}
		return nil, result.Error
	}
	return &work, nil
}

func (store *GormWorkStore) All(ctx context.Context) ([]*models.Work, error) {
	return store.repo.List(ctx)
}

func (store *GormWorkStore) AllByDevice(ctx context.Context, uid string) ([]*models.Work, error) {
	var works []*models.Work
	result := store.repo.DB().WithContext(ctx).Where("device_uid = ?", uid).Find(&works)
	return works, result.Error
}

func (store *GormWorkStore) Pending(ctx context.Context) ([]*models.Work, error) {
	var works []*models.Work
	result := store.repo.DB().WithContext(ctx).Where("status = ?", models.StatusPending).Find(&works)
	return works, result.Error
}

func (store *GormWorkStore) Completed(ctx context.Context) ([]*models.Work, error) {
	var works []*models.Work
	result := store.repo.DB().WithContext(ctx).Where("status <> ?", models.StatusPending).Find(&works)
	return works, result.Error
}

func (store *GormWorkStore) AssignedPending(ctx context.Context) ([]*models.Work, error) {
	var works []*models.Work
	result := store.repo.DB().WithContext(ctx).
		Where("status = ? AND assigned IS NOT NULL", models.StatusPending).
		Find(&works)
	return works, result.Error
}

func (store *GormWorkStore) OldestUnassignedPending(ctx context.Context) (*models.Work, error) {
	var work models.Work
	result := store.repo.DB().WithContext(ctx).
		Where("status = ? AND assigned IS NULL", models.StatusPending).
		Order("work_id asc").
		First(&work)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("no unassigned pending work")
		}
		return nil, result.Error
	}
	return &work, nil
}

func (store *GormWorkStore) Claim(ctx context.Context, id int64, at time.Time) (bool, error) {
	result := store.repo.DB().WithContext(ctx).
		Model(&models.Work{}).
		Where("work_id = ? AND status = ? AND assigned IS NULL", id, models.StatusPending).
		Update("assigned", at)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (store *GormWorkStore) Complete(ctx context.Context, id int64, status string) (bool, error) {
	result := store.repo.DB().WithContext(ctx).
		Model(&models.Work{}).
		Where("work_id = ? AND status = ?", id, models.StatusPending).
		Update("status", status)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (store *GormWorkStore) Create(ctx context.Context, work *models.Work) (*models.Work, error) {
	return store.repo.Create(ctx, work)
}

func (store *GormWorkStore) CreateMany(ctx context.Context, works []*models.Work) error {
	if len(works) == 0 {
		return nil
	}
	return store.repo.DB().WithContext(ctx).Create(&works).Error
}

func (store *GormWorkStore) ByDeviceAndTrigger(ctx context.Context, uid, trigger string) ([]*models.Work, error) {
	var works []*models.Work
	result := store.repo.DB().WithContext(ctx).
		Where(`device_uid = ? AND "trigger" = ?`, uid, trigger).
		Find(&works)
	return works, result.Error
}

func (store *GormWorkStore) HasPendingOrUpdatedSince(ctx context.Context, uid, trigger string, since time.Time) (bool, error) {
	var count int64
	result := store.repo.DB().WithContext(ctx).
		Model(&models.Work{}).
		Where(`device_uid = ? AND "trigger" = ?`, uid, trigger).
		Where("status = ? OR last_updated > ?", models.StatusPending, since).
		Count(&count)
	return count > 0, result.Error
}

var _ WorkStore = (*GormWorkStore)(nil)
