package database

import (
	"context"
	"time"

	"rebooto/pkg/models"
)

// Per-entity store contracts consumed by the services and the orchestration
// engine. Gorm implementations live in this package; tests substitute
// in-memory fakes. Lookup misses are reported as errs.NotFound.

type CredsStore interface {
	List(ctx context.Context) ([]*models.Creds, error)
	GetByName(ctx context.Context, name string) (*models.Creds, error)
	GetDefault(ctx context.Context) (*models.Creds, error)
	Create(ctx context.Context, creds *models.Creds) (*models.Creds, error)
	Save(ctx context.Context, creds *models.Creds) (*models.Creds, error)
	Delete(ctx context.Context, name string) error
	// SetDefault atomically clears the previous default and sets the new one.
	SetDefault(ctx context.Context, name string) (*models.Creds, error)
}

type DeviceStore interface {
	List(ctx context.Context) ([]*models.Device, error)
	Get(ctx context.Context, uid string) (*models.Device, error)
	Create(ctx context.Context, device *models.Device) (*models.Device, error)
	Save(ctx context.Context, device *models.Device) (*models.Device, error)
	Delete(ctx context.Context, uid string) error
	Zombies(ctx context.Context) ([]*models.Device, error)
	WithHeartbeat(ctx context.Context) ([]*models.Device, error)
	SetZombie(ctx context.Context, uid string, zombie bool) error
	WithCreds(ctx context.Context, credsName string) ([]*models.Device, error)
}

type ActionStore interface {
	List(ctx context.Context) ([]*models.Action, error)
	GetByName(ctx context.Context, name string) (*models.Action, error)
	Create(ctx context.Context, action *models.Action) (*models.Action, error)
	Save(ctx context.Context, action *models.Action) (*models.Action, error)
	Delete(ctx context.Context, name string) error
}

type RuleStore interface {
	ListOrdered(ctx context.Context) ([]*models.Rule, error)
	ListEnabledOrdered(ctx context.Context) ([]*models.Rule, error)
	GetByName(ctx context.Context, name string) (*models.Rule, error)
	// Insert places the rule into the global order (optionally before/after a
	// named rule) and re-packs positions to a dense 1..N sequence.
	Insert(ctx context.Context, rule *models.Rule, beforeRule, afterRule string) (*models.Rule, error)
	// Save persists field changes and, when beforeRule/afterRule is set, moves
	// the rule within the order, re-packing positions.
	Save(ctx context.Context, rule *models.Rule, beforeRule, afterRule string) (*models.Rule, error)
	Delete(ctx context.Context, name string) error
	WithAction(ctx context.Context, actionName string) ([]*models.Rule, error)
}

// StateFilter narrows state listings.
type StateFilter struct {
	DeviceUID string // empty matches all devices
}

type StateStore interface {
	Get(ctx context.Context, id int64) (*models.State, error)
	OpenByDevice(ctx context.Context, uid string) (*models.State, error)
	All(ctx context.Context, filter StateFilter) ([]*models.State, error)
	Open(ctx context.Context, filter StateFilter) ([]*models.State, error)
	Resolved(ctx context.Context, filter StateFilter) ([]*models.State, error)
	// Unknown returns open states with no matched rule.
	Unknown(ctx context.Context, filter StateFilter) ([]*models.State, error)
	Create(ctx context.Context, state *models.State) (*models.State, error)
	Save(ctx context.Context, state *models.State) (*models.State, error)
	SetMatchedRule(ctx context.Context, id int64, matched *string) error
	SetResolved(ctx context.Context, id int64, resolved bool) error
}

type WorkStore interface {
	Get(ctx context.Context, id int64) (*models.Work, error)
	PendingByDevice(ctx context.Context, uid string) (*models.Work, error)
	All(ctx context.Context) ([]*models.Work, error)
	AllByDevice(ctx context.Context, uid string) ([]*models.Work, error)
	Pending(ctx context.Context) ([]*models.Work, error)
	Completed(ctx context.Context) ([]*models.Work, error)
	AssignedPending(ctx context.Context) ([]*models.Work, error)
	OldestUnassignedPending(ctx context.Context) (*models.Work, error)
	// Claim stamps the assignment timestamp if and only if the work is still
	// PENDING and unassigned. It reports whether this caller won the claim.
	Claim(ctx context.Context, id int64, at time.Time) (bool, error)
	// Complete sets a terminal status if and only if the work is still PENDING.
	Complete(ctx context.Context, id int64, status string) (bool, error)
	Create(ctx context.Context, work *models.Work) (*models.Work, error)
	CreateMany(ctx context.Context, works []*models.Work) error
	ByDeviceAndTrigger(ctx context.Context, uid, trigger string) ([]*models.Work, error)
	// HasPendingOrUpdatedSince reports whether any work for the device+trigger
	// pair is PENDING or was last updated after the given time.
	HasPendingOrUpdatedSince(ctx context.Context, uid, trigger string, since time.Time) (bool, error)
}

type ExecutionStore interface {
	Create(ctx context.Context, execution *models.Execution) (*models.Execution, error)
	ByWorkID(ctx context.Context, workID int64) ([]*models.Execution, error)
}
