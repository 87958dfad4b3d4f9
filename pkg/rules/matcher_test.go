package rules

import (
	"context"
	"testing"

	"rebooto/pkg/models"
)

type fakeRuleSource struct {
	rules []*models.Rule
}

func (f *fakeRuleSource) ListEnabledOrdered(ctx context.Context) ([]*models.Rule, error) {
	enabled := make([]*models.Rule, 0, len(f.rules))
	for _, rule := range f.rules {
		if rule.Enabled {
			enabled = append(enabled, rule)
		}
	}
	return enabled, nil
}

type fakeStateSource struct {
	states  []*models.State
	matched map[int64]*string
}

func (f *fakeStateSource) OpenAll(ctx context.Context) ([]*models.State, error) {
	return f.states, nil
}

func (f *fakeStateSource) SetMatchedRule(ctx context.Context, id int64, matched *string) error {
	if f.matched == nil {
		f.matched = make(map[int64]*string)
	}
	f.matched[id] = matched
	return nil
}

func rule(name, regex string, position int, ignoreCase bool) *models.Rule {
	return &models.Rule{Name: name, Regex: regex, Position: position, IgnoreCase: ignoreCase, Enabled: true}
}

func TestFindMatchingRulePicksLowestPosition(t *testing.T) {
	source := &fakeRuleSource{rules: []*models.Rule{
		rule("kernel-panic", "kernel panic", 1, true),
		rule("panic-generic", "panic", 2, true),
	}}
	matcher := NewMatcher(source, &fakeStateSource{})

	got, err := matcher.FindMatchingRule(context.Background(), "boot log: Kernel Panic - not syncing")
	if err != nil {
		t.Fatalf("FindMatchingRule() error: %v", err)
	}
	if got == nil || got.Name != "kernel-panic" {
		t.Fatalf("FindMatchingRule() = %v, want kernel-panic", got)
	}
}

func TestFindMatchingRuleCaseSensitivity(t *testing.T) {
	source := &fakeRuleSource{rules: []*models.Rule{
		rule("exact", "Kernel Panic", 1, false),
	}}
	matcher := NewMatcher(source, &fakeStateSource{})

	got, err := matcher.FindMatchingRule(context.Background(), "kernel panic")
	if err != nil {
		t.Fatalf("FindMatchingRule() error: %v", err)
	}
	if got != nil {
		t.Errorf("case-sensitive rule matched %q, want no match", got.Name)
	}

	source.rules[0].IgnoreCase = true
	got, err = matcher.FindMatchingRule(context.Background(), "kernel panic")
	if err != nil {
		t.Fatalf("FindMatchingRule() error: %v", err)
	}
	if got == nil {
		t.Error("ignore-case rule did not match")
	}
}

func TestFindMatchingRuleSkipsDisabledAndInvalid(t *testing.T) {
	disabled := rule("disabled", "panic", 1, true)
	disabled.Enabled = false
	source := &fakeRuleSource{rules: []*models.Rule{
		disabled,
		rule("broken", "pan(ic", 2, true),
		rule("fallback", "panic", 3, true),
	}}
	matcher := NewMatcher(source, &fakeStateSource{})

	got, err := matcher.FindMatchingRule(context.Background(), "panic")
	if err != nil {
		t.Fatalf("FindMatchingRule() error: %v", err)
	}
	if got == nil || got.Name != "fallback" {
		t.Fatalf("FindMatchingRule() = %v, want fallback", got)
	}
}

func TestMatchStatePersistsResult(t *testing.T) {
	source := &fakeRuleSource{rules: []*models.Rule{rule("reboot", "NMI received", 1, true)}}
	states := &fakeStateSource{}
	matcher := NewMatcher(source, states)

	state := &models.State{ID: 7, OCRText: "NMI received for unknown reason"}
	if err := matcher.MatchState(context.Background(), state); err != nil {
		t.Fatalf("MatchState() error: %v", err)
	}
	if state.MatchedRule == nil || *state.MatchedRule != "reboot" {
		t.Errorf("state.MatchedRule = %v, want reboot", state.MatchedRule)
	}
	if got := states.matched[7]; got == nil || *got != "reboot" {
		t.Errorf("persisted match = %v, want reboot", got)
	}
}

func TestMatchStateClearsStaleMatch(t *testing.T) {
	// No rules left: a previously matched state must go back to unmatched.
	states := &fakeStateSource{}
	matcher := NewMatcher(&fakeRuleSource{}, states)

	old := "deleted-rule"
	state := &models.State{ID: 3, OCRText: "anything", MatchedRule: &old}
	if err := matcher.MatchState(context.Background(), state); err != nil {
		t.Fatalf("MatchState() error: %v", err)
	}
	if state.MatchedRule != nil {
		t.Errorf("state.MatchedRule = %q, want nil", *state.MatchedRule)
	}
	if got, ok := states.matched[3]; !ok || got != nil {
		t.Errorf("persisted match = %v (ok=%v), want explicit nil", got, ok)
	}
}

func TestMatchAllOpenStates(t *testing.T) {
	source := &fakeRuleSource{rules: []*models.Rule{rule("panic", "panic", 1, true)}}
	states := &fakeStateSource{states: []*models.State{
		{ID: 1, OCRText: "kernel panic"},
		{ID: 2, OCRText: "login:"},
	}}
	matcher := NewMatcher(source, states)

	if err := matcher.MatchAllOpenStates(context.Background()); err != nil {
		t.Fatalf("MatchAllOpenStates() error: %v", err)
	}
	if got := states.matched[1]; got == nil || *got != "panic" {
		t.Errorf("state 1 match = %v, want panic", got)
	}
	if got := states.matched[2]; got != nil {
		t.Errorf("state 2 match = %v, want nil", *got)
	}
}
