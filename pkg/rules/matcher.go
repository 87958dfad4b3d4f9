// Package rules holds the rule-matching pipeline: the global rule ordering
// and the matcher that maps extracted console text to the first enabled rule
// whose regex finds a match.
package rules

import (
	"context"
	"log/slog"
	"regexp"

	"rebooto/pkg/models"
)

// RuleSource supplies enabled rules in ascending position order.
type RuleSource interface {
	ListEnabledOrdered(ctx context.Context) ([]*models.Rule, error)
}

// StateSource supplies open states and persists match results.
type StateSource interface {
	OpenAll(ctx context.Context) ([]*models.State, error)
	SetMatchedRule(ctx context.Context, id int64, matched *string) error
}

// Matcher recomputes which rule, if any, a state's extracted text matches.
type Matcher struct {
	rules  RuleSource
	states StateSource
}

func NewMatcher(rules RuleSource, states StateSource) *Matcher {
	return &Matcher{rules: rules, states: states}
}

// FindMatchingRule returns the lowest-position enabled rule whose regex finds
// a match anywhere in text, or nil when nothing matches. Regex validity is
// enforced at rule write time; a pattern that still fails to compile here is
// treated as non-matching.
func (matcher *Matcher) FindMatchingRule(ctx context.Context, text string) (*models.Rule, error) {
	ruleList, err := matcher.rules.ListEnabledOrdered(ctx)
	if err != nil {
		return nil, err
	}

	for _, rule := range ruleList {
		pattern := rule.Regex
		if rule.IgnoreCase {
			pattern = "(?i)" + pattern
		}

		compiled, err := regexp.Compile(pattern)
		if err != nil {
			slog.Debug("Skipping rule with invalid regex", "component", "Matcher", "rule", rule.Name, "error", err)
			continue
		}

		if compiled.MatchString(text) {
			return rule, nil
		}
	}
	return nil, nil
}

// MatchState recomputes and persists the state's matched rule.
func (matcher *Matcher) MatchState(ctx context.Context, state *models.State) error {
	rule, err := matcher.FindMatchingRule(ctx, state.OCRText)
	if err != nil {
		return err
	}

	var matched *string
	if rule != nil {
		matched = &rule.Name
	}
	state.MatchedRule = matched
	return matcher.states.SetMatchedRule(ctx, state.ID, matched)
}

// MatchAllOpenStates re-runs matching for every unresolved state. It is
// invoked after every rule create, update or delete, since ordering or content
// changes can change every state's match. One state failing does not stop the
// rest.
func (matcher *Matcher) MatchAllOpenStates(ctx context.Context) error {
	states, err := matcher.states.OpenAll(ctx)
	if err != nil {
		return err
	}

	for _, state := range states {
		if err := matcher.MatchState(ctx, state); err != nil {
			slog.Warn("Failed to rematch state", "component", "Matcher", "state_id", state.ID, "error", err)
		}
	}
	return nil
}
