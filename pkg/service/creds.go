// Package service implements the business rules on top of the stores:
// reserved names, referential protection, validation at write time and the
// side effects each mutation carries.
package service

import (
	"context"
	"errors"

	"rebooto/pkg/database"
	"rebooto/pkg/errs"
	"rebooto/pkg/models"
)

// CredsService manages credentials. Passwords are encrypted at rest and
// decrypted on every read; the reserved name "default" can never be a real
// credential, it is the alias devices use for whichever credential holds the
// default flag.
type CredsService struct {
	creds   database.CredsStore
	devices database.DeviceStore
	secret  string
}

func NewCredsService(creds database.CredsStore, devices database.DeviceStore, encryptionKey string) *CredsService {
	return &CredsService{creds: creds, devices: devices, secret: encryptionKey}
}

func (svc *CredsService) List(ctx context.Context) ([]*models.Creds, error) {
	list, err := svc.creds.List(ctx)
	if err != nil {
		return nil, err
	}
	for i, creds := range list {
		decrypted, err := database.DecryptStruct(*creds, svc.secret)
		if err != nil {
			return nil, err
		}
		list[i] = &decrypted
	}
	return list, nil
}

func (svc *CredsService) Get(ctx context.Context, name string) (*models.Creds, error) {
	creds, err := svc.creds.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	decrypted, err := database.DecryptStruct(*creds, svc.secret)
	if err != nil {
		return nil, err
	}
	return &decrypted, nil
}

// Create stores a new credential. The very first credential automatically
// becomes the default; after that the default only moves via SetDefault.
func (svc *CredsService) Create(ctx context.Context, creds *models.Creds) (*models.Creds, error) {
	if creds.Name == models.DefaultCredsName {
		return nil, errs.Validation("'%s' is a reserved credential name", models.DefaultCredsName)
	}

	existing, err := svc.creds.List(ctx)
	if err != nil {
		return nil, err
	}
	creds.IsDefault = len(existing) == 0

	encrypted, err := database.EncryptStruct(*creds, svc.secret)
	if err != nil {
		return nil, err
	}
	return svc.creds.Create(ctx, &encrypted)
}

// Update changes the username and password of an existing credential. The
// name and the default flag are immutable here.
func (svc *CredsService) Update(ctx context.Context, name string, username, password string) (*models.Creds, error) {
	creds, err := svc.creds.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}

	creds.Username = username
	creds.Password = password
	encrypted, err := database.EncryptStruct(*creds, svc.secret)
	if err != nil {
		return nil, err
	}
	return svc.creds.Save(ctx, &encrypted)
}

// Delete removes a credential unless it is the default or still referenced by
// a device.
func (svc *CredsService) Delete(ctx context.Context, name string) error {
	creds, err := svc.creds.GetByName(ctx, name)
	if err != nil {
		return err
	}
	if creds.IsDefault {
		return errs.Conflict("credential '%s' is the default and cannot be deleted", name)
	}

	users, err := svc.devices.WithCreds(ctx, name)
	if err != nil {
		return err
	}
	if len(users) > 0 {
		return errs.Conflict("credential '%s' is used by %d device(s)", name, len(users))
	}

	return svc.creds.Delete(ctx, name)
}

// SetDefault moves the default flag to the named credential.
func (svc *CredsService) SetDefault(ctx context.Context, name string) (*models.Creds, error) {
	if name == models.DefaultCredsName {
		return nil, errs.Validation("'%s' is an alias, not a credential", models.DefaultCredsName)
	}
	creds, err := svc.creds.SetDefault(ctx, name)
	if err != nil {
		return nil, err
	}
	decrypted, err := database.DecryptStruct(*creds, svc.secret)
	if err != nil {
		return nil, err
	}
	return &decrypted, nil
}

// resolveName validates a creds name a device wants to reference: either the
// reserved default alias or an existing credential.
func (svc *CredsService) resolveName(ctx context.Context, name string) error {
	if name == models.DefaultCredsName {
		return nil
	}
	_, err := svc.creds.GetByName(ctx, name)
	if errors.Is(err, errs.ErrNotFound) {
		return errs.Validation("creds '%s' does not exist", name)
	}
	return err
}
