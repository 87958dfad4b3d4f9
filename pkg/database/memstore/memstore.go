// Package memstore provides in-memory store implementations for tests. They
// honor the same contracts as the gorm stores, including NotFound reporting
// and the conditional claim/complete updates, without a database.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"rebooto/pkg/database"
	"rebooto/pkg/errs"
	"rebooto/pkg/models"
	"rebooto/pkg/rules"
)

// --- creds ---

type Creds struct {
	mu    sync.Mutex
	items map[string]*models.Creds
	seq   int64
}

var _ database.CredsStore = (*Creds)(nil)

func NewCreds() *Creds { return &Creds{items: make(map[string]*models.Creds)} }

func (s *Creds) List(ctx context.Context) ([]*models.Creds, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]*models.Creds, 0, len(s.items))
	for _, c := range s.items {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (s *Creds) GetByName(ctx context.Context, name string) (*models.Creds, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.items[name]
	if !ok {
		return nil, errs.NotFound("creds with name '%s' was not found", name)
	}
	return c, nil
}

func (s *Creds) GetDefault(ctx context.Context) (*models.Creds, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.items {
		if c.IsDefault {
			return c, nil
		}
	}
	return nil, errs.NotFound("no default creds configured")
}

func (s *Creds) Create(ctx context.Context, creds *models.Creds) (*models.Creds, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[creds.Name]; ok {
		return nil, errs.Conflict("creds with name '%s' already exists", creds.Name)
	}
	s.seq++
	creds.ID = s.seq
	creds.CreatedAt = time.Now()
	creds.LastUpdated = creds.CreatedAt
	s.items[creds.Name] = creds
	return creds, nil
}

func (s *Creds) Save(ctx context.Context, creds *models.Creds) (*models.Creds, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	creds.LastUpdated = time.Now()
	s.items[creds.Name] = creds
	return creds, nil
}

func (s *Creds) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[name]; !ok {
		return errs.NotFound("creds with name '%s' was not found", name)
	}
	delete(s.items, name)
	return nil
}

func (s *Creds) SetDefault(ctx context.Context, name string) (*models.Creds, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.items[name]
	if !ok {
		return nil, errs.NotFound("creds with name '%s' was not found", name)
	}
	for _, other := range s.items {
		other.IsDefault = false
	}
	c.IsDefault = true
	return c, nil
}

// --- device ---

type Devices struct {
	mu    sync.Mutex
	items map[string]*models.Device
}

var _ database.DeviceStore = (*Devices)(nil)

func NewDevices() *Devices { return &Devices{items: make(map[string]*models.Device)} }

func (s *Devices) List(ctx context.Context) ([]*models.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]*models.Device, 0, len(s.items))
	for _, d := range s.items {
		list = append(list, d)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].UID < list[j].UID })
	return list, nil
}

func (s *Devices) Get(ctx context.Context, uid string) (*models.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.items[uid]
	if !ok {
		return nil, errs.NotFound("device with uid '%s' was not found", uid)
	}
	return d, nil
}

func (s *Devices) Create(ctx context.Context, device *models.Device) (*models.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[device.UID]; ok {
		return nil, errs.Conflict("device with uid '%s' already exists", device.UID)
	}
	device.CreatedAt = time.Now()
	device.LastUpdated = device.CreatedAt
	s.items[device.UID] = device
	return device, nil
}

func (s *Devices) Save(ctx context.Context, device *models.Device) (*models.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	device.LastUpdated = time.Now()
	s.items[device.UID] = device
	return device, nil
}

func (s *Devices) Delete(ctx context.Context, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[uid]; !ok {
		return errs.NotFound("device with uid '%s' was not found", uid)
	}
	delete(s.items, uid)
	return nil
}

func (s *Devices) Zombies(ctx context.Context) ([]*models.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var list []*models.Device
	for _, d := range s.items {
		if d.Zombie {
			list = append(list, d)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].UID < list[j].UID })
	return list, nil
}

func (s *Devices) WithHeartbeat(ctx context.Context) ([]*models.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var list []*models.Device
	for _, d := range s.items {
		if d.HeartbeatTimestamp != nil {
			list = append(list, d)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].UID < list[j].UID })
	return list, nil
}

func (s *Devices) SetZombie(ctx context.Context, uid string, zombie bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.items[uid]
	if !ok {
		return errs.NotFound("device with uid '%s' was not found", uid)
	}
	d.Zombie = zombie
	return nil
}

func (s *Devices) WithCreds(ctx context.Context, credsName string) ([]*models.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var list []*models.Device
	for _, d := range s.items {
		if d.CredsName == credsName {
			list = append(list, d)
		}
	}
	return list, nil
}

// --- action ---

type Actions struct {
	mu    sync.Mutex
	items map[string]*models.Action
	seq   int64
}

var _ database.ActionStore = (*Actions)(nil)

func NewActions() *Actions { return &Actions{items: make(map[string]*models.Action)} }

func (s *Actions) List(ctx context.Context) ([]*models.Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]*models.Action, 0, len(s.items))
	for _, a := range s.items {
		list = append(list, a)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (s *Actions) GetByName(ctx context.Context, name string) (*models.Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.items[name]
	if !ok {
		return nil, errs.NotFound("action with name '%s' was not found", name)
	}
	return a, nil
}

func (s *Actions) Create(ctx context.Context, action *models.Action) (*models.Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[action.Name]; ok {
		return nil, errs.Conflict("action with name '%s' already exists", action.Name)
	}
	s.seq++
	action.ID = s.seq
	s.items[action.Name] = action
	return action, nil
}

func (s *Actions) Save(ctx context.Context, action *models.Action) (*models.Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	action.LastUpdated = time.Now()
	s.items[action.Name] = action
	return action, nil
}

func (s *Actions) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[name]; !ok {
		return errs.NotFound("action with name '%s' was not found", name)
	}
	delete(s.items, name)
	return nil
}

// --- rule ---

type Rules struct {
	mu    sync.Mutex
	items map[string]*models.Rule
	order rules.Order
	seq   int64
}

var _ database.RuleStore = (*Rules)(nil)

func NewRules() *Rules { return &Rules{items: make(map[string]*models.Rule)} }

func (s *Rules) ListOrdered(ctx context.Context) ([]*models.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listOrderedLocked(false), nil
}

func (s *Rules) ListEnabledOrdered(ctx context.Context) ([]*models.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listOrderedLocked(true), nil
}

func (s *Rules) listOrderedLocked(enabledOnly bool) []*models.Rule {
	var list []*models.Rule
	for _, name := range s.order {
		rule := s.items[name]
		rule.Position = s.order.PositionOf(name)
		if enabledOnly && !rule.Enabled {
			continue
		}
		list = append(list, rule)
	}
	return list
}

func (s *Rules) GetByName(ctx context.Context, name string) (*models.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rule, ok := s.items[name]
	if !ok {
		return nil, errs.NotFound("rule with name '%s' was not found", name)
	}
	rule.Position = s.order.PositionOf(name)
	return rule, nil
}

func (s *Rules) Insert(ctx context.Context, rule *models.Rule, beforeRule, afterRule string) (*models.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[rule.Name]; ok {
		return nil, errs.Conflict("rule with name '%s' already exists", rule.Name)
	}
	order, err := s.order.Insert(rule.Name, beforeRule, afterRule)
	if err != nil {
		return nil, err
	}
	s.seq++
	rule.ID = s.seq
	s.order = order
	s.items[rule.Name] = rule
	rule.Position = s.order.PositionOf(rule.Name)
	return rule, nil
}

func (s *Rules) Save(ctx context.Context, rule *models.Rule, beforeRule, afterRule string) (*models.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[rule.Name]; !ok {
		return nil, errs.NotFound("rule with name '%s' was not found", rule.Name)
	}
	if beforeRule != "" || afterRule != "" {
		order, err := s.order.Move(rule.Name, beforeRule, afterRule)
		if err != nil {
			return nil, err
		}
		s.order = order
	}
	rule.LastUpdated = time.Now()
	s.items[rule.Name] = rule
	rule.Position = s.order.PositionOf(rule.Name)
	return rule, nil
}

func (s *Rules) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[name]; !ok {
		return errs.NotFound("rule with name '%s' was not found", name)
	}
	delete(s.items, name)
	s.order = s.order.Remove(name)
	return nil
}

func (s *Rules) WithAction(ctx context.Context, actionName string) ([]*models.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var list []*models.Rule
	for _, rule := range s.items {
		for _, name := range rule.Actions {
			if name == actionName {
				list = append(list, rule)
				break
			}
		}
	}
	return list, nil
}

// --- state ---

type States struct {
	mu    sync.Mutex
	items map[int64]*models.State
	seq   int64
}

var _ database.StateStore = (*States)(nil)

func NewStates() *States { return &States{items: make(map[int64]*models.State)} }

func (s *States) Get(ctx context.Context, id int64) (*models.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.items[id]
	if !ok {
		return nil, errs.NotFound("state with id '%d' was not found", id)
	}
	return state, nil
}

func (s *States) OpenByDevice(ctx context.Context, uid string) (*models.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, state := range s.items {
		if state.DeviceUID == uid && !state.Resolved {
			return state, nil
		}
	}
	return nil, errs.NotFound("no open state for device '%s'", uid)
}

func (s *States) All(ctx context.Context, filter database.StateFilter) ([]*models.State, error) {
	return s.filtered(filter, func(*models.State) bool { return true }), nil
}

func (s *States) Open(ctx context.Context, filter database.StateFilter) ([]*models.State, error) {
	return s.filtered(filter, func(st *models.State) bool { return !st.Resolved }), nil
}

func (s *States) Resolved(ctx context.Context, filter database.StateFilter) ([]*models.State, error) {
	return s.filtered(filter, func(st *models.State) bool { return st.Resolved }), nil
}

func (s *States) Unknown(ctx context.Context, filter database.StateFilter) ([]*models.State, error) {
	return s.filtered(filter, func(st *models.State) bool { return !st.Resolved && st.MatchedRule == nil }), nil
}

func (s *States) OpenAll(ctx context.Context) ([]*models.State, error) {
	return s.Open(ctx, database.StateFilter{})
}

func (s *States) filtered(filter database.StateFilter, keep func(*models.State) bool) []*models.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	var list []*models.State
	for _, state := range s.items {
		if filter.DeviceUID != "" && state.DeviceUID != filter.DeviceUID {
			continue
		}
		if keep(state) {
			list = append(list, state)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

func (s *States) Create(ctx context.Context, state *models.State) (*models.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	state.ID = s.seq
	state.CreatedAt = time.Now()
	state.LastUpdated = state.CreatedAt
	s.items[state.ID] = state
	return state, nil
}

func (s *States) Save(ctx context.Context, state *models.State) (*models.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state.LastUpdated = time.Now()
	s.items[state.ID] = state
	return state, nil
}

func (s *States) SetMatchedRule(ctx context.Context, id int64, matched *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.items[id]
	if !ok {
		return errs.NotFound("state with id '%d' was not found", id)
	}
	state.MatchedRule = matched
	return nil
}

func (s *States) SetResolved(ctx context.Context, id int64, resolved bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.items[id]
	if !ok {
		return errs.NotFound("state with id '%d' was not found", id)
	}
	state.Resolved = resolved
	return nil
}

// --- work ---

type Works struct {
	mu    sync.Mutex
	items map[int64]*models.Work
	seq   int64
}

var _ database.WorkStore = (*Works)(nil)

func NewWorks() *Works { return &Works{items: make(map[int64]*models.Work)} }

func (s *Works) Get(ctx context.Context, id int64) (*models.Work, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	work, ok := s.items[id]
	if !ok {
		return nil, errs.NotFound("work with id '%d' was not found", id)
	}
	return work, nil
}

func (s *Works) PendingByDevice(ctx context.Context, uid string) (*models.Work, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, work := range s.sortedLocked() {
		if work.DeviceUID == uid && work.Status == models.StatusPending {
			return work, nil
		}
	}
	return nil, errs.NotFound("no pending work for device '%s'", uid)
}

func (s *Works) All(ctx context.Context) ([]*models.Work, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLocked(), nil
}

func (s *Works) AllByDevice(ctx context.Context, uid string) ([]*models.Work, error) {
	return s.filter(func(w *models.Work) bool { return w.DeviceUID == uid }), nil
}

func (s *Works) Pending(ctx context.Context) ([]*models.Work, error) {
	return s.filter(func(w *models.Work) bool { return w.Status == models.StatusPending }), nil
}

func (s *Works) Completed(ctx context.Context) ([]*models.Work, error) {
	return s.filter(func(w *models.Work) bool { return w.Status != models.StatusPending }), nil
}

func (s *Works) AssignedPending(ctx context.Context) ([]*models.Work, error) {
	return s.filter(func(w *models.Work) bool { return w.Status == models.StatusPending && w.Assigned != nil }), nil
}

func (s *Works) OldestUnassignedPending(ctx context.Context) (*models.Work, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, work := range s.sortedLocked() {
		if work.Status == models.StatusPending && work.Assigned == nil {
			return work, nil
		}
	}
	return nil, errs.NotFound("no unassigned pending work")
}

func (s *Works) Claim(ctx context.Context, id int64, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	work, ok := s.items[id]
	if !ok || work.Status != models.StatusPending || work.Assigned != nil {
		return false, nil
	}
	work.Assigned = &at
	work.LastUpdated = time.Now()
	return true, nil
}

func (s *Works) Complete(ctx context.Context, id int64, status string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	work, ok := s.items[id]
	if !ok || work.Status != models.StatusPending {
		return false, nil
	}
	work.Status = status
	work.LastUpdated = time.Now()
	return true, nil
}

func (s *Works) Create(ctx context.Context, work *models.Work) (*models.Work, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createLocked(work)
	return work, nil
}

func (s *Works) CreateMany(ctx context.Context, works []*models.Work) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, work := range works {
		s.createLocked(work)
	}
	return nil
}

func (s *Works) createLocked(work *models.Work) {
	s.seq++
	work.ID = s.seq
	if work.Status == "" {
		work.Status = models.StatusPending
	}
	work.CreatedAt = time.Now()
	work.LastUpdated = work.CreatedAt
	s.items[work.ID] = work
}

func (s *Works) ByDeviceAndTrigger(ctx context.Context, uid, trigger string) ([]*models.Work, error) {
	return s.filter(func(w *models.Work) bool { return w.DeviceUID == uid && w.Trigger == trigger }), nil
}

func (s *Works) HasPendingOrUpdatedSince(ctx context.Context, uid, trigger string, since time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, work := range s.items {
		if work.DeviceUID != uid || work.Trigger != trigger {
			continue
		}
		if work.Status == models.StatusPending || work.LastUpdated.After(since) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Works) filter(keep func(*models.Work) bool) []*models.Work {
	s.mu.Lock()
	defer s.mu.Unlock()
	var list []*models.Work
	for _, work := range s.sortedLocked() {
		if keep(work) {
			list = append(list, work)
		}
	}
	return list
}

func (s *Works) sortedLocked() []*models.Work {
	list := make([]*models.Work, 0, len(s.items))
	for _, work := range s.items {
		list = append(list, work)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

// --- execution ---

type Executions struct {
	mu    sync.Mutex
	items []*models.Execution
	seq   int64
}

var _ database.ExecutionStore = (*Executions)(nil)

func NewExecutions() *Executions { return &Executions{} }

func (s *Executions) Create(ctx context.Context, execution *models.Execution) (*models.Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	execution.ID = s.seq
	execution.CreatedAt = time.Now()
	execution.LastUpdated = execution.CreatedAt
	s.items = append(s.items, execution)
	return execution, nil
}

func (s *Executions) ByWorkID(ctx context.Context, workID int64) ([]*models.Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var list []*models.Execution
	for _, execution := range s.items {
		if execution.WorkID == workID {
			list = append(list, execution)
		}
	}
	return list, nil
}
