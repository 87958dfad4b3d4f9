package service

import (
	"context"
	"log/slog"
	"regexp"

	"rebooto/pkg/database"
	"rebooto/pkg/errs"
	"rebooto/pkg/models"
	"rebooto/pkg/rules"
)

// RuleService manages the ordered rule list. Every mutation can change which
// rule any open state matches, so each one ends with a full rematch.
type RuleService struct {
	rules   database.RuleStore
	actions database.ActionStore
	states  database.StateStore
	matcher *rules.Matcher
}

func NewRuleService(store database.RuleStore, actions database.ActionStore, states database.StateStore, matcher *rules.Matcher) *RuleService {
	return &RuleService{rules: store, actions: actions, states: states, matcher: matcher}
}

func (svc *RuleService) List(ctx context.Context) ([]*models.Rule, error) {
	return svc.rules.ListOrdered(ctx)
}

func (svc *RuleService) Get(ctx context.Context, name string) (*models.Rule, error) {
	return svc.rules.GetByName(ctx, name)
}

// Create inserts a rule into the global order. beforeRule/afterRule position
// it relative to an existing rule; unset, it goes last.
func (svc *RuleService) Create(ctx context.Context, rule *models.Rule, beforeRule, afterRule string) (*models.Rule, error) {
	if err := svc.validate(ctx, rule, beforeRule, afterRule); err != nil {
		return nil, err
	}

	created, err := svc.rules.Insert(ctx, rule, beforeRule, afterRule)
	if err != nil {
		return nil, err
	}
	svc.rematch(ctx)
	return created, nil
}

// RulePatch carries the fields of a rule update. Nil fields keep their
// stored value.
type RulePatch struct {
	StateID    *int64
	Regex      *string
	Actions    []string
	IgnoreCase *bool
	Enabled    *bool
}

// Update applies the fields present in the patch and, when beforeRule or
// afterRule is set, moves the rule within the order. Omitted fields are left
// untouched.
func (svc *RuleService) Update(ctx context.Context, name string, patch *RulePatch, beforeRule, afterRule string) (*models.Rule, error) {
	rule, err := svc.rules.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}

	if patch.StateID != nil {
		rule.StateID = *patch.StateID
	}
	if patch.Regex != nil {
		rule.Regex = *patch.Regex
	}
	if patch.Actions != nil {
		rule.Actions = patch.Actions
	}
	if patch.IgnoreCase != nil {
		rule.IgnoreCase = *patch.IgnoreCase
	}
	if patch.Enabled != nil {
		rule.Enabled = *patch.Enabled
	}

	if err := svc.validate(ctx, rule, beforeRule, afterRule); err != nil {
		return nil, err
	}

	saved, err := svc.rules.Save(ctx, rule, beforeRule, afterRule)
	if err != nil {
		return nil, err
	}
	svc.rematch(ctx)
	return saved, nil
}

// Delete removes the rule and re-packs positions. States that matched it get
// rematched against the remaining rules.
func (svc *RuleService) Delete(ctx context.Context, name string) error {
	if err := svc.rules.Delete(ctx, name); err != nil {
		return err
	}
	svc.rematch(ctx)
	return nil
}

func (svc *RuleService) validate(ctx context.Context, rule *models.Rule, beforeRule, afterRule string) error {
	if beforeRule != "" && afterRule != "" {
		return errs.Validation("before_rule and after_rule are mutually exclusive")
	}
	if _, err := regexp.Compile(rule.Regex); err != nil {
		return errs.Validation("invalid regex: %v", err)
	}
	if _, err := svc.states.Get(ctx, rule.StateID); err != nil {
		return errs.Validation("state with id '%d' does not exist", rule.StateID)
	}
	if len(rule.Actions) == 0 {
		return errs.Validation("a rule needs at least one action")
	}
	for _, name := range rule.Actions {
		if _, err := svc.actions.GetByName(ctx, name); err != nil {
			return errs.Validation("action '%s' does not exist", name)
		}
	}
	return nil
}

// rematch re-runs matching for all open states after a rule mutation. The
// mutation itself already succeeded, so a rematch failure is logged rather
// than surfaced to the caller; the rule-work sweep will see stale matches at
// worst one cycle longer.
func (svc *RuleService) rematch(ctx context.Context) {
	if err := svc.matcher.MatchAllOpenStates(ctx); err != nil {
		slog.Error("Failed to rematch open states after rule change", "component", "RuleService", "error", err)
	}
}
