package database

import (
	"context"
	"errors"

	"rebooto/pkg/errs"
	"rebooto/pkg/models"

	"gorm.io/gorm"
)

// GormDeviceStore implements DeviceStore using Gorm.
type GormDeviceStore struct {
	repo *GormRepository[models.Device]
}

func NewGormDeviceStore(db *gorm.DB) *GormDeviceStore {
	return &GormDeviceStore{repo: NewGormRepository[models.Device](db)}
}

func (store *GormDeviceStore) List(ctx context.Context) ([]*models.Device, error) {
	return store.repo.List(ctx)
}

func (store *GormDeviceStore) Get(ctx context.Context, uid string) (*models.Device, error) {
	device, err := store.repo.GetByField(ctx, "uid", uid)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.NotFound("device with uid '%s' was not found", uid)
		}
		return nil, err
	}
	return device, nil
}

func (store *GormDeviceStore) Create(ctx context.Context, device *models.Device) (*models.Device, error) {
	return store.repo.Create(ctx, device)
}

func (store *GormDeviceStore) Save(ctx context.Context, device *models.Device) (*models.Device, error) {
	return store.repo.Save(ctx, device)
}

func (store *GormDeviceStore) Delete(ctx context.Context, uid string) error {
	err := store.repo.Delete(ctx, "uid", uid)
	if errors.Is(err, errs.ErrNotFound) {
		return errs.NotFound("device with uid '%s' was not found", uid)
	}
	return err
}

func (store *GormDeviceStore) Zombies(ctx context.Context) ([]*models.Device, error) {
	var devices []*models.Device
	result := store.repo.DB().WithContext(ctx).Where("zombie = ?", true).Find(&devices)
	return devices, result.Error
}

func (store *GormDeviceStore) WithHeartbeat(ctx context.Context) ([]*models.Device, error) {
	var devices []*models.Device
	result := store.repo.DB().WithContext(ctx).Where("heartbeat_timestamp IS NOT NULL").Find(&devices)
	return devices, result.Error
}

func (store *GormDeviceStore) SetZombie(ctx context.Context, uid string, zombie bool) error {
	result := store.repo.DB().WithContext(ctx).
		Model(&models.Device{}).
		Where("uid = ?", uid).
		Update("zombie", zombie)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errs.NotFound("device with uid '%s' was not found", uid)
	}
	return nil
}

func (store *GormDeviceStore) WithCreds(ctx context.Context, credsName string) ([]*models.Device, error) {
	var devices []*models.Device
	result := store.repo.DB().WithContext(ctx).Where("creds_name = ?", credsName).Find(&devices)
	return devices, result.Error
}

var _ DeviceStore = (*GormDeviceStore)(nil)
var _ CredsStore = (*GormCredsStore)(nil)
