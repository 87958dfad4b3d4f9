package database

import (
	"context"
	"errors"
	"fmt"

	"rebooto/pkg/errs"

	"gorm.io/gorm"
)

// Repository defines the standard CRUD operations
type Repository[T any] interface {
	List(ctx context.Context) ([]*T, error)
	GetByField(ctx context.Context, field string, value any) (*T, error)
	Create(ctx context.Context, entity *T) (*T, error)
	Save(ctx context.Context, entity *T) (*T, error)
	Delete(ctx context.Context, field string, value any) error
}

// GormRepository implements Repository using Gorm
type GormRepository[T any] struct {
	db *gorm.DB
}

func NewGormRepository[T any](db *gorm.DB) *GormRepository[T] {
	return &GormRepository[T]{db: db}
}

// DB returns the underlying database connection for specialized queries
func (repository *GormRepository[T]) DB() *gorm.DB {
	return repository.db
}

func (repository *GormRepository[T]) List(ctx context.Context) ([]*T, error) {
	var entities []*T
	result := repository.db.WithContext(ctx).Find(&entities)
	return entities, result.Error
}

func (repository *GormRepository[T]) GetByField(ctx context.Context, field string, value any) (*T, error) {
	var entity T
	result := repository.db.WithContext(ctx).Where(fmt.Sprintf("%s = ?", field), value).First(&entity)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("record not found by %s '%v'", field, value)
		}
		return nil, result.Error
	}
	return &entity, nil
}

func (repository *GormRepository[T]) Create(ctx context.Context, entity *T) (*T, error) {
	result := repository.db.WithContext(ctx).Create(entity)
	if result.Error != nil {
		return nil, result.Error
	}
	return entity, nil
}

// Save writes the full row, including zero-valued fields.
func (repository *GormRepository[T]) Save(ctx context.Context, entity *T) (*T, error) {
	result := repository.db.WithContext(ctx).Save(entity)
	if result.Error != nil {
		return nil, result.Error
	}
	return entity, nil
}

func (repository *GormRepository[T]) Delete(ctx context.Context, field string, value any) error {
	var entity T
	result := repository.db.WithContext(ctx).Where(fmt.Sprintf("%s = ?", field), value).Delete(&entity)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errs.NotFound("record not found by %s '%v'", field, value)
	}
	return nil
}
