package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"rebooto/pkg/database"
	"rebooto/pkg/errs"
	"rebooto/pkg/models"
)

// DeviceService manages the device inventory and the agent heartbeat.
type DeviceService struct {
	devices database.DeviceStore
	states  database.StateStore
	works   database.WorkStore
	creds   *CredsService
	now     func() time.Time
}

func NewDeviceService(devices database.DeviceStore, states database.StateStore, works database.WorkStore, creds *CredsService) *DeviceService {
	return &DeviceService{devices: devices, states: states, works: works, creds: creds, now: time.Now}
}

func (svc *DeviceService) List(ctx context.Context) ([]*models.Device, error) {
	return svc.devices.List(ctx)
}

func (svc *DeviceService) Get(ctx context.Context, uid string) (*models.Device, error) {
	return svc.devices.Get(ctx, uid)
}

// Create registers a device. An unset creds name falls back to the default
// alias; a set one must name an existing credential.
func (svc *DeviceService) Create(ctx context.Context, device *models.Device) (*models.Device, error) {
	if device.CredsName == "" {
		device.CredsName = models.DefaultCredsName
	}
	if err := svc.creds.resolveName(ctx, device.CredsName); err != nil {
		return nil, err
	}

	_, err := svc.devices.Get(ctx, device.UID)
	if err == nil {
		return nil, errs.Conflict("device '%s' already exists", device.UID)
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}

	return svc.devices.Create(ctx, device)
}

// Update applies mutable fields to an existing device.
func (svc *DeviceService) Update(ctx context.Context, uid string, patch *models.Device) (*models.Device, error) {
	device, err := svc.devices.Get(ctx, uid)
	if err != nil {
		return nil, err
	}

	if patch.CredsName != "" && patch.CredsName != device.CredsName {
		if err := svc.creds.resolveName(ctx, patch.CredsName); err != nil {
			return nil, err
		}
		device.CredsName = patch.CredsName
	}
	if patch.OOBIP != "" {
		device.OOBIP = patch.OOBIP
	}
	if patch.Model != "" {
		device.Model = patch.Model
	}
	if patch.Metadata != nil {
		device.Metadata = patch.Metadata
	}
	device.Zombie = patch.Zombie

	return svc.devices.Save(ctx, device)
}

// Delete removes a device unless it still has an open state or pending work.
func (svc *DeviceService) Delete(ctx context.Context, uid string) error {
	if _, err := svc.devices.Get(ctx, uid); err != nil {
		return err
	}

	_, err := svc.states.OpenByDevice(ctx, uid)
	if err == nil {
		return errs.Conflict("device '%s' has an open state", uid)
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return err
	}

	_, err = svc.works.PendingByDevice(ctx, uid)
	if err == nil {
		return errs.Conflict("device '%s' has pending work", uid)
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return err
	}

	return svc.devices.Delete(ctx, uid)
}

// HeartbeatInput is an agent check-in. Everything besides the uid is optional
// and only overwrites the stored device when set.
type HeartbeatInput struct {
	UID          string
	AgentVersion string
	OOBIP        string
	Model        string
	CredsName    string
}

// Heartbeat upserts the device for an agent check-in: it refreshes the
// heartbeat timestamp, clears the zombie flag and updates any reported
// inventory fields. A creds name that does not resolve is omitted from the
// update rather than failing the check-in; the returned flag tells the
// caller the omission happened.
func (svc *DeviceService) Heartbeat(ctx context.Context, hb HeartbeatInput) (*models.Device, bool, error) {
	invalidCreds := false
	if hb.CredsName != "" && hb.CredsName != models.DefaultCredsName {
		if err := svc.creds.resolveName(ctx, hb.CredsName); err != nil {
			if !errors.Is(err, errs.ErrValidation) {
				return nil, false, err
			}
			slog.Warn("Heartbeat carried an unknown creds name, omitting it",
				"component", "DeviceService", "uid", hb.UID, "creds_name", hb.CredsName)
			hb.CredsName = ""
			invalidCreds = true
		}
	}

	device, err := svc.devices.Get(ctx, hb.UID)
	if errors.Is(err, errs.ErrNotFound) {
		device = &models.Device{UID: hb.UID, CredsName: models.DefaultCredsName}
		if _, err := svc.devices.Create(ctx, device); err != nil {
			return nil, false, err
		}
	} else if err != nil {
		return nil, false, err
	}

	now := svc.now()
	device.HeartbeatTimestamp = &now
	device.Zombie = false
	if hb.AgentVersion != "" {
		device.AgentVersion = hb.AgentVersion
	}
	if hb.OOBIP != "" {
		device.OOBIP = hb.OOBIP
	}
	if hb.Model != "" {
		device.Model = hb.Model
	}
	if hb.CredsName != "" {
		device.CredsName = hb.CredsName
	}

	saved, err := svc.devices.Save(ctx, device)
	if err != nil {
		return nil, false, err
	}
	return saved, invalidCreds, nil
}
