package database

import (
	"context"
	"errors"

	"rebooto/pkg/errs"
	"rebooto/pkg/models"
	"rebooto/pkg/rules"

	"gorm.io/gorm"
)

// GormRuleStore implements RuleStore using Gorm. Every mutation rewrites the
// position column to a dense 1..N sequence derived from a rules.Order, all
// inside one transaction.
type GormRuleStore struct {
	repo *GormRepository[models.Rule]
}

func NewGormRuleStore(db *gorm.DB) *GormRuleStore {
	return &GormRuleStore{repo: NewGormRepository[models.Rule](db)}
}

func (store *GormRuleStore) ListOrdered(ctx context.Context) ([]*models.Rule, error) {
	var ruleList []*models.Rule
	result := store.repo.DB().WithContext(ctx).Order("position asc").Find(&ruleList)
	return ruleList, result.Error
}

func (store *GormRuleStore) ListEnabledOrdered(ctx context.Context) ([]*models.Rule, error) {
	var ruleList []*models.Rule
	result := store.repo.DB().WithContext(ctx).
		Where("enabled = ?", true).
		Order("position asc").
		Find(&ruleList)
	return ruleList, result.Error
}

func (store *GormRuleStore) GetByName(ctx context.Context, name string) (*models.Rule, error) {
	rule, err := store.repo.GetByField(ctx, "name", name)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.NotFound("rule with name '%s' was not found", name)
		}
		return nil, err
	}
	return rule, nil
}

func (store *GormRuleStore) Insert(ctx context.Context, rule *models.Rule, beforeRule, afterRule string) (*models.Rule, error) {
	err := store.repo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := currentOrder(tx)
		if err != nil {
			return err
		}

		order, err = order.Insert(rule.Name, beforeRule, afterRule)
		if err != nil {
			return err
		}

		rule.Position = order.PositionOf(rule.Name)
		if err := tx.Create(rule).Error; err != nil {
			return err
		}
		return repackPositions(tx, order)
	})
	if err != nil {
		return nil, err
	}
	return rule, nil
}

func (store *GormRuleStore) Save(ctx context.Context, rule *models.Rule, beforeRule, afterRule string) (*models.Rule, error) {
	err := store.repo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if beforeRule != "" || afterRule != "" {
			order, err := currentOrder(tx)
			if err != nil {
				return err
			}

			order, err = order.Move(rule.Name, beforeRule, afterRule)
			if err != nil {
				return err
			}

			rule.Position = order.PositionOf(rule.Name)
			if err := repackPositions(tx, order); err != nil {
				return err
			}
		}
		return tx.Save(rule).Error
	})
	if err != nil {
		return nil, err
	}
	return rule, nil
}

func (store *GormRuleStore) Delete(ctx context.Context, name string) error {
	return store.repo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("name = ?", name).Delete(&models.Rule{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return errs.NotFound("rule with name '%s' was not found", name)
		}

		order, err := currentOrder(tx)
		if err != nil {
			return err
		}
		return repackPositions(tx, order.Remove(name))
	})
}

func (store *GormRuleStore) WithAction(ctx context.Context, actionName string) ([]*models.Rule, error) {
	ruleList, err := store.ListOrdered(ctx)
	if err != nil {
		return nil, err
	}

	var matched []*models.Rule
	for _, rule := range ruleList {
		for _, name := range rule.Actions {
			if name == actionName {
				matched = append(matched, rule)
				break
			}
		}
	}
	return matched, nil
}

func currentOrder(tx *gorm.DB) (rules.Order, error) {
	var names []string
	result := tx.Model(&models.Rule{}).Order("position asc").Pluck("name", &names)
	return rules.Order(names), result.Error
}

func repackPositions(tx *gorm.DB, order rules.Order) error {
	for idx, name := range order {
		result := tx.Model(&models.Rule{}).Where("name = ?", name).Update("position", idx+1)
		if result.Error != nil {
			return result.Error
		}
	}
	return nil
}

var _ RuleStore = (*GormRuleStore)(nil)
