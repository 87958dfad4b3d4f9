// Package scheduling runs the periodic control loops that drive automated
// recovery: rule-driven work generation, zombie screenshot backfill, zombie
// marking and the stuck-work timeout sweep. Every sweep is idempotent; a tick
// observing an already-handled condition does nothing.
package scheduling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"rebooto/pkg/database"
	"rebooto/pkg/errs"
	"rebooto/pkg/models"
	"rebooto/pkg/work"
)

// Options carries the sweep cadences and decision thresholds.
type Options struct {
	AutomaticRecovery bool

	RuleWorkInterval         time.Duration
	ZombieScreenshotInterval time.Duration
	MarkZombieInterval       time.Duration
	PendingWorkInterval      time.Duration

	// RetryRule is how long after a rule-driven attempt for the same
	// device+trigger the generator waits before scheduling again.
	RetryRule time.Duration
	// StateLookback is how recent a zombie screenshot work must be to
	// suppress scheduling another one.
	StateLookback time.Duration
	// PendingWorkTimeout is how long assigned work may stay pending.
	PendingWorkTimeout time.Duration
	// BecomeZombie is how stale a heartbeat must be before the device is
	// marked zombie.
	BecomeZombie time.Duration
}

// Sweeper owns the periodic loops. Each loop runs on its own ticker and never
// blocks the others.
type Sweeper struct {
	devices database.DeviceStore
	states  database.StateStore
	rules   database.RuleStore
	works   database.WorkStore
	manager *work.Manager

	opts Options
	now  func() time.Time
}

func NewSweeper(
	devices database.DeviceStore,
	states database.StateStore,
	rules database.RuleStore,
	works database.WorkStore,
	manager *work.Manager,
	opts Options,
) *Sweeper {
	return &Sweeper{
		devices: devices,
		states:  states,
		rules:   rules,
		works:   works,
		manager: manager,
		opts:    opts,
		now:     time.Now,
	}
}

// Run starts every loop and blocks until ctx is cancelled. The rule-driven
// generator only runs when automatic recovery is enabled; the other loops are
// housekeeping and always run.
func (sweeper *Sweeper) Run(ctx context.Context) {
	type loop struct {
		name     string
		interval time.Duration
		tick     func(context.Context) error
	}

	loops := []loop{
		{"ZombieScreenshotSweep", sweeper.opts.ZombieScreenshotInterval, sweeper.SweepZombieScreenshots},
		{"MarkZombieSweep", sweeper.opts.MarkZombieInterval, sweeper.SweepStaleHeartbeats},
		{"PendingWorkSweep", sweeper.opts.PendingWorkInterval, sweeper.SweepStuckWork},
	}
	if sweeper.opts.AutomaticRecovery {
		loops = append(loops, loop{"RuleWorkSweep", sweeper.opts.RuleWorkInterval, sweeper.SweepRuleWork})
	} else {
		slog.Info("Automatic recovery disabled, rule work sweep not started", "component", "Sweeper")
	}

	var wg sync.WaitGroup
	for _, l := range loops {
		wg.Add(1)
		go func(l loop) {
			defer wg.Done()
			sweeper.runLoop(ctx, l.name, l.interval, l.tick)
		}(l)
	}
	wg.Wait()
}

func (sweeper *Sweeper) runLoop(ctx context.Context, name string, interval time.Duration, tick func(context.Context) error) {
	slog.Info("Starting sweep loop", "component", "Sweeper", "loop", name, "interval", interval.String())
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Context cancelled, shutting down", "component", "Sweeper", "loop", name)
			return
		case <-ticker.C:
			if err := tick(ctx); err != nil {
				slog.Error("Sweep tick failed", "component", "Sweeper", "loop", name, "error", err)
			}
		}
	}
}

// SweepRuleWork schedules remediation for every open state with a matched
// rule, unless the device already has pending work for that trigger or a
// recent attempt within the retry window.
func (sweeper *Sweeper) SweepRuleWork(ctx context.Context) error {
	states, err := sweeper.states.Open(ctx, database.StateFilter{})
	if err != nil {
		return err
	}

	since := sweeper.now().Add(-sweeper.opts.RetryRule)
	var batch []*models.Work
	for _, state := range states {
		if state.MatchedRule == nil {
			continue
		}

		rule, err := sweeper.rules.GetByName(ctx, *state.MatchedRule)
		if err != nil {
			if errors.Is(err, errs.ErrNotFound) {
				slog.Debug("Matched rule no longer exists", "component", "Sweeper", "state_id", state.ID, "rule", *state.MatchedRule)
				continue
			}
			return err
		}
		if !rule.Enabled {
			continue
		}

		trigger := fmt.Sprintf("Rule - %s", rule.Name)
		busy, err := sweeper.works.HasPendingOrUpdatedSince(ctx, state.DeviceUID, trigger, since)
		if err != nil {
			return err
		}
		if busy {
			continue
		}

		built, err := sweeper.manager.BuildWork(ctx, &state.ID, state.DeviceUID, rule.Actions, trigger)
		if err != nil {
			slog.Warn("Skipping rule work, action snapshot failed", "component", "Sweeper", "state_id", state.ID, "rule", rule.Name, "error", err)
			continue
		}
		batch = append(batch, built)
	}

	if len(batch) == 0 {
		return nil
	}
	if err := sweeper.works.CreateMany(ctx, batch); err != nil {
		return err
	}
	slog.Info("Scheduled rule-driven work", "component", "Sweeper", "count", len(batch))
	return nil
}

// SweepZombieScreenshots schedules a screenshot for every zombie device, so
// the rule engine gets fresh text to match. A pending or recent screenshot
// work for the device suppresses a new one.
func (sweeper *Sweeper) SweepZombieScreenshots(ctx context.Context) error {
	zombies, err := sweeper.devices.Zombies(ctx)
	if err != nil {
		return err
	}

	since := sweeper.now().Add(-sweeper.opts.StateLookback)
	var batch []*models.Work
	for _, device := range zombies {
		busy, err := sweeper.works.HasPendingOrUpdatedSince(ctx, device.UID, models.TriggerZombieScreenshot, since)
		if err != nil {
			return err
		}
		if busy {
			continue
		}

		built, err := sweeper.manager.BuildWork(ctx, nil, device.UID, []string{models.ActionTypeScreenshot}, models.TriggerZombieScreenshot)
		if err != nil {
			slog.Warn("Skipping zombie screenshot, action snapshot failed", "component", "Sweeper", "device_uid", device.UID, "error", err)
			continue
		}
		batch = append(batch, built)
	}

	if len(batch) == 0 {
		return nil
	}
	if err := sweeper.works.CreateMany(ctx, batch); err != nil {
		return err
	}
	slog.Info("Scheduled zombie screenshots", "component", "Sweeper", "count", len(batch))
	return nil
}

// SweepStaleHeartbeats marks devices zombie when their heartbeat is older
// than the zombie threshold.
func (sweeper *Sweeper) SweepStaleHeartbeats(ctx context.Context) error {
	devices, err := sweeper.devices.WithHeartbeat(ctx)
	if err != nil {
		return err
	}

	cutoff := sweeper.now().Add(-sweeper.opts.BecomeZombie)
	for _, device := range devices {
		if device.Zombie || device.HeartbeatTimestamp == nil || device.HeartbeatTimestamp.After(cutoff) {
			continue
		}
		if err := sweeper.devices.SetZombie(ctx, device.UID, true); err != nil {
			slog.Error("Failed to mark device zombie", "component", "Sweeper", "device_uid", device.UID, "error", err)
			continue
		}
		slog.Info("Marked device zombie", "component", "Sweeper", "device_uid", device.UID, "heartbeat", device.HeartbeatTimestamp.Format(time.RFC3339))
	}
	return nil
}

// SweepStuckWork fails assigned work that outlived the pending timeout.
func (sweeper *Sweeper) SweepStuckWork(ctx context.Context) error {
	return sweeper.manager.FailStuckWork(ctx, sweeper.opts.PendingWorkTimeout)
}
