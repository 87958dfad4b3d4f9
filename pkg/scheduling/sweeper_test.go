package scheduling

import (
	"context"
	"testing"
	"time"

	"rebooto/pkg/database/memstore"
	"rebooto/pkg/models"
	"rebooto/pkg/work"
)

type testEnv struct {
	sweeper *Sweeper
	works   *memstore.Works
	devices *memstore.Devices
	states  *memstore.States
	rules   *memstore.Rules
	actions *memstore.Actions
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		works:   memstore.NewWorks(),
		devices: memstore.NewDevices(),
		states:  memstore.NewStates(),
		rules:   memstore.NewRules(),
		actions: memstore.NewActions(),
	}

	manager := work.NewManager(work.Deps{
		Works:      env.works,
		Devices:    env.devices,
		Creds:      memstore.NewCreds(),
		Actions:    env.actions,
		Rules:      env.rules,
		States:     env.states,
		Executions: memstore.NewExecutions(),
	}, "")

	env.sweeper = NewSweeper(env.devices, env.states, env.rules, env.works, manager, Options{
		AutomaticRecovery:  true,
		RetryRule:          time.Hour,
		StateLookback:      time.Hour,
		PendingWorkTimeout: 30 * time.Minute,
		BecomeZombie:       2 * time.Hour,
	})
	return env
}

func (env *testEnv) seedMatchedState(t *testing.T, uid, ruleName string) *models.State {
	t.Helper()
	ctx := context.Background()

	if _, err := env.devices.Create(ctx, &models.Device{UID: uid, OOBIP: "10.0.0.1", CredsName: "default", Model: "R640"}); err != nil {
		t.Fatalf("seed device: %v", err)
	}
	if _, err := env.actions.Create(ctx, &models.Action{Name: "power-cycle", ActionType: models.ActionTypeIpmitool, ActionData: "chassis power cycle"}); err != nil {
		t.Fatalf("seed action: %v", err)
	}
	if _, err := env.rules.Insert(ctx, &models.Rule{Name: ruleName, Regex: "panic", Actions: models.StringList{"power-cycle"}, Enabled: true}, "", ""); err != nil {
		t.Fatalf("seed rule: %v", err)
	}

	state, err := env.states.Create(ctx, &models.State{DeviceUID: uid, OCRText: "kernel panic", MatchedRule: &ruleName})
	if err != nil {
		t.Fatalf("seed state: %v", err)
	}
	return state
}

func TestSweepRuleWorkSchedulesOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	state := env.seedMatchedState(t, "node-1", "reboot")

	if err := env.sweeper.SweepRuleWork(ctx); err != nil {
		t.Fatalf("SweepRuleWork() error: %v", err)
	}
	if err := env.sweeper.SweepRuleWork(ctx); err != nil {
		t.Fatalf("SweepRuleWork() second run error: %v", err)
	}

	works, _ := env.works.All(ctx)
	if len(works) != 1 {
		t.Fatalf("got %d works after two sweeps, want 1", len(works))
	}
	if works[0].Trigger != "Rule - reboot" {
		t.Errorf("trigger = %q, want 'Rule - reboot'", works[0].Trigger)
	}
	if works[0].StateID == nil || *works[0].StateID != state.ID {
		t.Errorf("state id = %v, want %d", works[0].StateID, state.ID)
	}
}

func TestSweepRuleWorkRespectsRetryWindow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedMatchedState(t, "node-1", "reboot")

	if err := env.sweeper.SweepRuleWork(ctx); err != nil {
		t.Fatalf("SweepRuleWork() error: %v", err)
	}
	works, _ := env.works.All(ctx)
	if len(works) != 1 {
		t.Fatalf("got %d works, want 1", len(works))
	}

	// Even a completed attempt keeps the gate closed while it is recent.
	if ok, _ := env.works.Complete(ctx, works[0].ID, models.StatusFailure); !ok {
		t.Fatal("failed to complete work")
	}
	if err := env.sweeper.SweepRuleWork(ctx); err != nil {
		t.Fatalf("SweepRuleWork() error: %v", err)
	}
	works, _ = env.works.All(ctx)
	if len(works) != 1 {
		t.Errorf("got %d works, want 1: recent attempt must suppress a retry", len(works))
	}

	// Once the attempt ages past the retry window the sweep schedules again.
	works[0].LastUpdated = time.Now().Add(-2 * time.Hour)
	if err := env.sweeper.SweepRuleWork(ctx); err != nil {
		t.Fatalf("SweepRuleWork() error: %v", err)
	}
	works, _ = env.works.All(ctx)
	if len(works) != 2 {
		t.Errorf("got %d works, want 2 after retry window elapsed", len(works))
	}
}

func TestSweepRuleWorkSkipsDisabledRule(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedMatchedState(t, "node-1", "reboot")

	rule, _ := env.rules.GetByName(ctx, "reboot")
	rule.Enabled = false

	if err := env.sweeper.SweepRuleWork(ctx); err != nil {
		t.Fatalf("SweepRuleWork() error: %v", err)
	}
	works, _ := env.works.All(ctx)
	if len(works) != 0 {
		t.Errorf("got %d works for disabled rule, want 0", len(works))
	}
}

func TestSweepZombieScreenshots(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.actions.Create(ctx, &models.Action{
		Name:       models.ActionTypeScreenshot,
		ActionType: models.ActionTypeScreenshot,
		ActionData: models.ActionTypeScreenshot,
	}); err != nil {
		t.Fatalf("seed screenshot action: %v", err)
	}
	if _, err := env.devices.Create(ctx, &models.Device{UID: "node-1", OOBIP: "10.0.0.1", CredsName: "default", Model: "R640", Zombie: true}); err != nil {
		t.Fatalf("seed device: %v", err)
	}

	if err := env.sweeper.SweepZombieScreenshots(ctx); err != nil {
		t.Fatalf("SweepZombieScreenshots() error: %v", err)
	}
	works, _ := env.works.All(ctx)
	if len(works) != 1 {
		t.Fatalf("got %d works, want 1", len(works))
	}
	if works[0].Trigger != models.TriggerZombieScreenshot {
		t.Errorf("trigger = %q, want %q", works[0].Trigger, models.TriggerZombieScreenshot)
	}
	if !works[0].RequiresConsole {
		t.Error("screenshot work must require console")
	}

	// Pending screenshot work suppresses another one.
	if err := env.sweeper.SweepZombieScreenshots(ctx); err != nil {
		t.Fatalf("SweepZombieScreenshots() second run error: %v", err)
	}
	works, _ = env.works.All(ctx)
	if len(works) != 1 {
		t.Errorf("got %d works after second sweep, want 1", len(works))
	}
}

// A zombie with a fresh state still gets a screenshot; only pending or recent
// screenshot work suppresses the sweep.
func TestSweepZombieScreenshotsIgnoresStateFreshness(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.actions.Create(ctx, &models.Action{
		Name:       models.ActionTypeScreenshot,
		ActionType: models.ActionTypeScreenshot,
		ActionData: models.ActionTypeScreenshot,
	}); err != nil {
		t.Fatalf("seed screenshot action: %v", err)
	}
	if _, err := env.devices.Create(ctx, &models.Device{UID: "node-1", OOBIP: "10.0.0.1", CredsName: "default", Model: "R640", Zombie: true}); err != nil {
		t.Fatalf("seed device: %v", err)
	}
	if _, err := env.states.Create(ctx, &models.State{DeviceUID: "node-1", OCRText: "login:"}); err != nil {
		t.Fatalf("seed state: %v", err)
	}

	if err := env.sweeper.SweepZombieScreenshots(ctx); err != nil {
		t.Fatalf("SweepZombieScreenshots() error: %v", err)
	}
	works, _ := env.works.All(ctx)
	if len(works) != 1 {
		t.Fatalf("got %d works for zombie with fresh state, want 1", len(works))
	}
	if works[0].Trigger != models.TriggerZombieScreenshot {
		t.Errorf("trigger = %q, want %q", works[0].Trigger, models.TriggerZombieScreenshot)
	}
}

func TestSweepStaleHeartbeats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	stale := time.Now().Add(-3 * time.Hour)
	fresh := time.Now().Add(-time.Minute)
	if _, err := env.devices.Create(ctx, &models.Device{UID: "stale", OOBIP: "10.0.0.1", CredsName: "default", Model: "R640", HeartbeatTimestamp: &stale}); err != nil {
		t.Fatalf("seed device: %v", err)
	}
	if _, err := env.devices.Create(ctx, &models.Device{UID: "fresh", OOBIP: "10.0.0.2", CredsName: "default", Model: "R640", HeartbeatTimestamp: &fresh}); err != nil {
		t.Fatalf("seed device: %v", err)
	}
	if _, err := env.devices.Create(ctx, &models.Device{UID: "silent", OOBIP: "10.0.0.3", CredsName: "default", Model: "R640"}); err != nil {
		t.Fatalf("seed device: %v", err)
	}

	if err := env.sweeper.SweepStaleHeartbeats(ctx); err != nil {
		t.Fatalf("SweepStaleHeartbeats() error: %v", err)
	}

	staleDevice, _ := env.devices.Get(ctx, "stale")
	if !staleDevice.Zombie {
		t.Error("stale device not marked zombie")
	}
	freshDevice, _ := env.devices.Get(ctx, "fresh")
	if freshDevice.Zombie {
		t.Error("fresh device wrongly marked zombie")
	}
	// Devices that never sent a heartbeat are left alone.
	silentDevice, _ := env.devices.Get(ctx, "silent")
	if silentDevice.Zombie {
		t.Error("silent device wrongly marked zombie")
	}
}
