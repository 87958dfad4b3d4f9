// Package work implements the Work lifecycle: creation, single-flight
// assignment with template resolution, completion and the stuck-work sweep.
//
// PENDING(unassigned) -> PENDING(assigned) -> success | failure. No transition
// leaves a terminal status.
package work

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"rebooto/pkg/database"
	"rebooto/pkg/errs"
	"rebooto/pkg/models"
	"rebooto/pkg/template"
)

// DeviceData is the device+credential bundle handed to the worker.
type DeviceData struct {
	UID      string `json:"uid"`
	IP       string `json:"ip"`
	Username string `json:"username"`
	Password string `json:"password"`
	Model    string `json:"model"`
}

// Assignment is the payload returned to a polling worker: one claimed work
// with fully resolved action data.
type Assignment struct {
	WorkID          int64                  `json:"work_id"`
	StateID         *int64                 `json:"state_id"`
	Trigger         string                 `json:"trigger"`
	RequiresConsole bool                   `json:"requires_console"`
	Actions         models.ActionSnapshots `json:"action_list"`
	Device          DeviceData             `json:"device_data"`
}

// Deps are the stores the manager operates on.
type Deps struct {
	Works      database.WorkStore
	Devices    database.DeviceStore
	Creds      database.CredsStore
	Actions    database.ActionStore
	Rules      database.RuleStore
	States     database.StateStore
	Executions database.ExecutionStore
}

// Manager owns the work lifecycle state machine.
type Manager struct {
	deps   Deps
	secret string
	now    func() time.Time
}

func NewManager(deps Deps, encryptionKey string) *Manager {
	return &Manager{deps: deps, secret: encryptionKey, now: time.Now}
}

// BuildWork snapshots the named actions into a new unsaved Work. The snapshot
// is copied from the then-current Action definitions, not referenced live.
func (manager *Manager) BuildWork(ctx context.Context, stateID *int64, deviceUID string, actionNames []string, trigger string) (*models.Work, error) {
	snapshots := make(models.ActionSnapshots, 0, len(actionNames))
	for _, name := range actionNames {
		action, err := manager.deps.Actions.GetByName(ctx, name)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, models.ActionSnapshot{
			Name: action.Name,
			Type: action.ActionType,
			Data: action.ActionData,
		})
	}

	return &models.Work{
		StateID:         stateID,
		DeviceUID:       deviceUID,
		Actions:         snapshots,
		Trigger:         trigger,
		RequiresConsole: snapshots.RequiresConsole(),
		Status:          models.StatusPending,
	}, nil
}

// CreateManual creates work for a device from either a rule reference or an
// explicit action list. A device with pending work is a conflict.
func (manager *Manager) CreateManual(ctx context.Context, deviceUID, ruleName string, actionNames []string) (*models.Work, error) {
	_, err := manager.deps.Works.PendingByDevice(ctx, deviceUID)
	if err == nil {
		return nil, errs.Conflict("device '%s' already has pending work", deviceUID)
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}

	if _, err := manager.deps.Devices.Get(ctx, deviceUID); err != nil {
		return nil, err
	}

	var built *models.Work
	switch {
	case ruleName != "":
		rule, err := manager.deps.Rules.GetByName(ctx, ruleName)
		if err != nil {
			return nil, err
		}
		built, err = manager.BuildWork(ctx, nil, deviceUID, rule.Actions, fmt.Sprintf("Manual - Rule: %s", rule.Name))
		if err != nil {
			return nil, err
		}
	case len(actionNames) > 0:
		built, err = manager.BuildWork(ctx, nil, deviceUID, actionNames, fmt.Sprintf("Manual - Actions: %s", strings.Join(actionNames, ", ")))
		if err != nil {
			return nil, err
		}
	default:
		return nil, errs.Validation("either 'rule' or 'actions' must be set for work")
	}

	return manager.deps.Works.Create(ctx, built)
}

// GetAssignment claims the oldest unassigned pending work and returns it with
// resolved templates and credentials, or nil when nothing is ready. The claim
// is an atomic conditional update, so concurrent callers never receive the
// same work. A missing credential is a normal not-ready condition; a template
// resolution failure fails the whole work and records one Execution.
func (manager *Manager) GetAssignment(ctx context.Context) (*Assignment, error) {
	candidate, err := manager.deps.Works.OldestUnassignedPending(ctx)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	device, err := manager.deps.Devices.Get(ctx, candidate.DeviceUID)
	if err != nil {
		slog.Warn("Not assigning work: device lookup failed", "component", "WorkManager", "work_id", candidate.ID, "device_uid", candidate.DeviceUID, "error", err)
		return nil, nil
	}

	creds, err := manager.resolveCreds(ctx, device)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			slog.Warn("Not assigning work since no credentials were found", "component", "WorkManager", "work_id", candidate.ID)
			return nil, nil
		}
		return nil, err
	}

	claimed, err := manager.deps.Works.Claim(ctx, candidate.ID, manager.now())
	if err != nil {
		return nil, err
	}
	if !claimed {
		// Another caller won the race; they own this work now.
		return nil, nil
	}

	resolver := template.NewResolver(template.Params{
		DeviceUID:   device.UID,
		DeviceIP:    device.OOBIP,
		DeviceModel: device.Model,
		Username:    creds.Username,
		Password:    creds.Password,
		Metadata:    device.Metadata,
	}, manager.lookupStoreCreds)

	resolved := make(models.ActionSnapshots, 0, len(candidate.Actions))
	for _, action := range candidate.Actions {
		data, err := resolver.Resolve(ctx, action.Data)
		if err != nil {
			var resolutionErr *errs.ResolutionError
			if errors.As(err, &resolutionErr) {
				manager.failResolution(ctx, candidate, resolutionErr)
				return nil, nil
			}
			return nil, err
		}
		action.Data = data
		resolved = append(resolved, action)
	}

	return &Assignment{
		WorkID:          candidate.ID,
		StateID:         candidate.StateID,
		Trigger:         candidate.Trigger,
		RequiresConsole: candidate.RequiresConsole,
		Actions:         resolved,
		Device: DeviceData{
			UID:      device.UID,
			IP:       device.OOBIP,
			Username: creds.Username,
			Password: creds.Password,
			Model:    device.Model,
		},
	}, nil
}

// CompleteByID moves work to a terminal status. Completing non-pending work is
// a conflict, regardless of which terminal status it already holds.
func (manager *Manager) CompleteByID(ctx context.Context, workID int64, status string) (*models.Work, error) {
	if status != models.StatusSuccess && status != models.StatusFailure {
		return nil, errs.Validation("status must be '%s' or '%s'", models.StatusSuccess, models.StatusFailure)
	}

	work, err := manager.deps.Works.Get(ctx, workID)
	if err != nil {
		return nil, err
	}

	done, err := manager.deps.Works.Complete(ctx, workID, status)
	if err != nil {
		return nil, err
	}
	if !done {
		return nil, errs.Conflict("work with id '%d' is not pending", workID)
	}

	if status == models.StatusSuccess && work.StateID != nil {
		if err := manager.deps.States.SetResolved(ctx, *work.StateID, true); err != nil {
			slog.Error("Failed to resolve state after successful work", "component", "WorkManager", "work_id", workID, "state_id", *work.StateID, "error", err)
		}
	}

	work.Status = status
	return work, nil
}

// FailStuckWork fails every assigned pending work whose assignment is older
// than timeout, recording a "Timeout Exceeded" execution for each. One work
// failing to update does not stop the sweep.
func (manager *Manager) FailStuckWork(ctx context.Context, timeout time.Duration) error {
	works, err := manager.deps.Works.AssignedPending(ctx)
	if err != nil {
		return err
	}

	now := manager.now()
	for _, work := range works {
		if work.Assigned == nil || now.Sub(*work.Assigned) <= timeout {
			continue
		}

		elapsed := now.Sub(*work.Assigned).Seconds()
		_, err := manager.deps.Executions.Create(ctx, &models.Execution{
			WorkID:     work.ID,
			StateID:    work.StateID,
			ActionName: "Timeout Exceeded",
			Trigger:    work.Trigger,
			Status:     models.StatusFailure,
			RunData: models.JSONMap{
				"message": "Got a timeout while waiting for assigned work to complete",
			},
			ElapsedTime: elapsed,
		})
		if err != nil {
			slog.Error("Failed to record timeout execution", "component", "WorkManager", "work_id", work.ID, "error", err)
			continue
		}

		if _, err := manager.deps.Works.Complete(ctx, work.ID, models.StatusFailure); err != nil {
			slog.Error("Failed to fail stuck work", "component", "WorkManager", "work_id", work.ID, "error", err)
		}
	}
	return nil
}

// resolveCreds returns the device's effective credential with a decrypted
// password: its named credential, or the system default when the device still
// carries the reserved default name.
func (manager *Manager) resolveCreds(ctx context.Context, device *models.Device) (*models.Creds, error) {
	var (
		creds *models.Creds
		err   error
	)
	if device.CredsName == models.DefaultCredsName {
		creds, err = manager.deps.Creds.GetDefault(ctx)
	} else {
		creds, err = manager.deps.Creds.GetByName(ctx, device.CredsName)
	}
	if err != nil {
		return nil, err
	}

	decrypted, err := database.DecryptStruct(*creds, manager.secret)
	if err != nil {
		return nil, err
	}
	return &decrypted, nil
}

// lookupStoreCreds is the template.CredLookup for {cred_store::...} tokens.
func (manager *Manager) lookupStoreCreds(ctx context.Context, name string) (*models.Creds, error) {
	creds, err := manager.deps.Creds.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}

	decrypted, err := database.DecryptStruct(*creds, manager.secret)
	if err != nil {
		return nil, err
	}
	return &decrypted, nil
}

// failResolution converts a template resolution failure into a terminal work
// failure plus one Execution whose action name is the failure reason. It never
// propagates: assignment is polled by an unattended worker, not a user.
func (manager *Manager) failResolution(ctx context.Context, work *models.Work, resolutionErr *errs.ResolutionError) {
	_, err := manager.deps.Executions.Create(ctx, &models.Execution{
		WorkID:     work.ID,
		StateID:    work.StateID,
		ActionName: resolutionErr.Reason,
		Trigger:    work.Trigger,
		Status:     models.StatusFailure,
		RunData: models.JSONMap{
			"message": resolutionErr.Error(),
		},
		ElapsedTime: 0,
	})
	if err != nil {
		slog.Error("Failed to record resolution failure execution", "component", "WorkManager", "work_id", work.ID, "error", err)
	}

	if _, err := manager.deps.Works.Complete(ctx, work.ID, models.StatusFailure); err != nil {
		slog.Error("Failed to fail work after resolution failure", "component", "WorkManager", "work_id", work.ID, "error", err)
	}
}
