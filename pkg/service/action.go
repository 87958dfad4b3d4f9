package service

import (
	"context"

	"rebooto/pkg/database"
	"rebooto/pkg/errs"
	"rebooto/pkg/models"
	"rebooto/pkg/template"
)

// ActionService manages the reusable action catalog. Template tokens are
// validated at write time so assignment never resolves a malformed token.
type ActionService struct {
	actions database.ActionStore
	rules   database.RuleStore
}

func NewActionService(actions database.ActionStore, rules database.RuleStore) *ActionService {
	return &ActionService{actions: actions, rules: rules}
}

func (svc *ActionService) List(ctx context.Context) ([]*models.Action, error) {
	return svc.actions.List(ctx)
}

func (svc *ActionService) Get(ctx context.Context, name string) (*models.Action, error) {
	return svc.actions.GetByName(ctx, name)
}

func (svc *ActionService) Create(ctx context.Context, action *models.Action) (*models.Action, error) {
	if action.Name == models.ActionTypeScreenshot {
		return nil, errs.Conflict("'%s' is the builtin screenshot action", models.ActionTypeScreenshot)
	}
	if err := template.ValidateActionData(action.ActionData); err != nil {
		return nil, err
	}
	return svc.actions.Create(ctx, action)
}

func (svc *ActionService) Update(ctx context.Context, name string, actionType, actionData string) (*models.Action, error) {
	if name == models.ActionTypeScreenshot {
		return nil, errs.Conflict("the builtin screenshot action cannot be modified")
	}

	action, err := svc.actions.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := template.ValidateActionData(actionData); err != nil {
		return nil, err
	}

	action.ActionType = actionType
	action.ActionData = actionData
	return svc.actions.Save(ctx, action)
}

// Delete removes an action unless a rule still references it. Work is
// unaffected either way since it holds snapshots.
func (svc *ActionService) Delete(ctx context.Context, name string) error {
	if name == models.ActionTypeScreenshot {
		return errs.Conflict("the builtin screenshot action cannot be deleted")
	}
	if _, err := svc.actions.GetByName(ctx, name); err != nil {
		return err
	}

	users, err := svc.rules.WithAction(ctx, name)
	if err != nil {
		return err
	}
	if len(users) > 0 {
		return errs.Conflict("action '%s' is used by %d rule(s)", name, len(users))
	}

	return svc.actions.Delete(ctx, name)
}
