package database

import (
	"context"
	"errors"

	"rebooto/pkg/errs"
	"rebooto/pkg/models"

	"gorm.io/gorm"
)

// GormStateStore implements StateStore using Gorm.
type GormStateStore struct {
	repo *GormRepository[models.State]
}

func NewGormStateStore(db *gorm.DB) *GormStateStore {
	return &GormStateStore{repo: NewGormRepository[models.State](db)}
}

func (store *GormStateStore) Get(ctx context.Context, id int64) (*models.State, error) {
	state, err := store.repo.GetByField(ctx, "state_id", id)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.NotFound("state with id '%d' was not found", id)
		}
		return nil, err
	}
	return state, nil
}

func (store *GormStateStore) OpenByDevice(ctx context.Context, uid string) (*models.State, error) {
	var state models.State
	result := store.repo.DB().WithContext(ctx).
		Where("device_uid = ? AND resolved = ?", uid, false).
		First(&state)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("unresolved state for device with uid '%s' was not found", uid)
		}
		return nil, result.Error
	}
	return &state, nil
}

func (store *GormStateStore) All(ctx context.Context, filter StateFilter) ([]*models.State, error) {
	return store.find(ctx, filter, "")
}

func (store *GormStateStore) Open(ctx context.Context, filter StateFilter) ([]*models.State, error) {
	return store.find(ctx, filter, "open")
}

// OpenAll returns every unresolved state regardless of device. It exists so
// the rule matcher can depend on a device-agnostic view.
func (store *GormStateStore) OpenAll(ctx context.Context) ([]*models.State, error) {
	return store.Open(ctx, StateFilter{})
}

func (store *GormStateStore) Resolved(ctx context.Context, filter StateFilter) ([]*models.State, error) {
	return store.find(ctx, filter, "resolved")
}

func (store *GormStateStore) Unknown(ctx context.Context, filter StateFilter) ([]*models.State, error) {
	return store.find(ctx, filter, "unknown")
}

func (store *GormStateStore) find(ctx context.Context, filter StateFilter, scope string) ([]*models.State, error) {
	query := store.repo.DB().WithContext(ctx).Model(&models.State{})
	switch scope {
	case "open":
		query = query.Where("resolved = ?", false)
	case "resolved":
		query = query.Where("resolved = ?", true)
	case "unknown":
		query = query.Where("resolved = ? AND matched_rule IS NULL", false)
	}
	if filter.DeviceUID != "" {
		query = query.Where("device_uid = ?", filter.DeviceUID)
	}

	var states []*models.State
	result := query.Find(&states)
	return states, result.Error
}

func (store *GormStateStore) Create(ctx context.Context, state *models.State) (*models.State, error) {
	return store.repo.Create(ctx, state)
}

func (store *GormStateStore) Save(ctx context.Context, state *models.State) (*models.State, error) {
	return store.repo.Save(ctx, state)
}

func (store *GormStateStore) SetMatchedRule(ctx context.Context, id int64, matched *string) error {
	result := store.repo.DB().WithContext(ctx).
		Model(&models.State{}).
		Where("state_id = ?", id).
		Update("matched_rule", matched)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errs.NotFound("state with id '%d' was not found", id)
	}
	return nil
}

func (store *GormStateStore) SetResolved(ctx context.Context, id int64, resolved bool) error {
	result := store.repo.DB().WithContext(ctx).
		Model(&models.State{}).
		Where("state_id = ?", id).
		Update("resolved", resolved)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errs.NotFound("state with id '%d' was not found", id)
	}
	return nil
}

var _ StateStore = (*GormStateStore)(nil)
