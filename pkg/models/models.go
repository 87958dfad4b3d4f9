package models

import (
	"time"
)

// Work statuses. PENDING is the only non-terminal status.
const (
	StatusPending = "PENDING"
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// DefaultCredsName is the reserved credential name a device carries until it is
// pointed at a real credential. It always resolves to whichever Creds row holds
// the is_default flag.
const DefaultCredsName = "default"

// Action types understood by the remote worker.
const (
	ActionTypeKeystroke  = "keystroke"
	ActionTypeIpmitool   = "ipmitool"
	ActionTypePower      = "power"
	ActionTypeSleep      = "sleep"
	ActionTypeScreenshot = "screenshot"
	ActionTypeRequest    = "request"
)

// TriggerZombieScreenshot labels work created by the zombie screenshot sweep.
const TriggerZombieScreenshot = "zombie screenshot"

// Creds represents the creds table
type Creds struct {
	ID          int64     `gorm:"primaryKey;autoIncrement;column:creds_id" json:"creds_id"`
	Name        string    `gorm:"not null;uniqueIndex" json:"name" binding:"required"`
	Username    string    `gorm:"not null" json:"username" binding:"required"`
	Password    string    `gorm:"not null" json:"password" binding:"required" gocrypt:"aes"`
	IsDefault   bool      `gorm:"not null;default:false" json:"is_default"`
	LastUpdated time.Time `gorm:"autoUpdateTime" json:"last_updated"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// Device represents the device table
type Device struct {
	UID                string     `gorm:"primaryKey;column:uid" json:"uid" binding:"required"`
	OOBIP              string     `gorm:"not null;column:oob_ip" json:"oob_ip" binding:"required"`
	CredsName          string     `gorm:"not null" json:"creds_name"`
	Model              string     `gorm:"not null" json:"model" binding:"required"`
	Zombie             bool       `gorm:"not null;default:false" json:"zombie"`
	Metadata           StringMap  `gorm:"type:json;column:device_metadata" json:"metadata"`
	HeartbeatTimestamp *time.Time `json:"heartbeat_timestamp"`
	AgentVersion       string     `json:"agent_version"`
	LastUpdated        time.Time  `gorm:"autoUpdateTime" json:"last_updated"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// Action represents the action table: a named, reusable command template.
type Action struct {
	ID          int64     `gorm:"primaryKey;autoIncrement;column:action_id" json:"action_id"`
	Name        string    `gorm:"not null;uniqueIndex" json:"name" binding:"required"`
	ActionType  string    `gorm:"not null" json:"action_type" binding:"required,oneof=keystroke ipmitool power sleep screenshot request"`
	ActionData  string    `gorm:"not null" json:"action_data" binding:"required,paramtokens"`
	LastUpdated time.Time `gorm:"autoUpdateTime" json:"last_updated"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// Rule represents the rule table. StateID is the exemplar state the rule was
// authored from. Position is an explicit 1..N dense ordering shared by all
// rules; the rule store re-packs it on every insert/move/delete.
type Rule struct {
	ID          int64      `gorm:"primaryKey;autoIncrement;column:rule_id" json:"rule_id"`
	Name        string     `gorm:"not null;uniqueIndex" json:"name"`
	StateID     int64      `gorm:"not null;column:state_id" json:"state_id"`
	Regex       string     `gorm:"not null" json:"regex"`
	Actions     StringList `gorm:"type:json;not null" json:"actions"`
	IgnoreCase  bool       `gorm:"not null;default:true" json:"ignore_case"`
	Enabled     bool       `gorm:"not null;default:true" json:"enabled"`
	Position    int        `gorm:"not null" json:"position"`
	LastUpdated time.Time  `gorm:"autoUpdateTime" json:"last_updated"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// State represents the state table: one captured screenshot plus its extracted
// text. At most one unresolved state exists per device.
type State struct {
	ID          int64     `gorm:"primaryKey;autoIncrement;column:state_id" json:"state_id"`
	Screenshot  []byte    `gorm:"not null" json:"-"`
	OCRText     string    `gorm:"not null;column:ocr_text" json:"ocr_text"`
	DeviceUID   string    `gorm:"not null;column:device_uid" json:"device_uid"`
	Resolved    bool      `gorm:"not null;default:false" json:"resolved"`
	MatchedRule *string   `json:"matched_rule"`
	LastUpdated time.Time `gorm:"autoUpdateTime" json:"last_updated"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// ActionSnapshot is one action copied into a Work at creation time. Work never
// references Action rows live; edits to an Action do not affect queued work.
type ActionSnapshot struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Data string `json:"data"`
}

// Work represents the work table: one scheduled remediation attempt.
type Work struct {
	ID              int64           `gorm:"primaryKey;autoIncrement;column:work_id" json:"work_id"`
	StateID         *int64          `gorm:"column:state_id" json:"state_id"`
	DeviceUID       string          `gorm:"not null;column:device_uid" json:"device_uid"`
	Actions         ActionSnapshots `gorm:"type:json;not null" json:"actions"`
	Trigger         string          `gorm:"not null" json:"trigger"`
	RequiresConsole bool            `gorm:"not null" json:"requires_console"`
	Assigned        *time.Time      `json:"assigned"`
	Status          string          `gorm:"not null;default:PENDING" json:"status"`
	LastUpdated     time.Time       `gorm:"autoUpdateTime" json:"last_updated"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// Execution represents the execution table: an immutable audit record of one
// action attempt within a Work.
type Execution struct {
	ID          int64     `gorm:"primaryKey;autoIncrement;column:execution_id" json:"execution_id"`
	WorkID      int64     `gorm:"not null;column:work_id" json:"work_id" binding:"required"`
	StateID     *int64    `gorm:"column:state_id" json:"state_id"`
	ActionName  string    `gorm:"not null" json:"action_name" binding:"required"`
	Trigger     string    `gorm:"not null" json:"trigger"`
	Status      string    `gorm:"not null" json:"status" binding:"required,oneof=success failure"`
	RunData     JSONMap   `gorm:"type:json;not null" json:"run_data"`
	ElapsedTime float64   `gorm:"not null" json:"elapsed_time"`
	LastUpdated time.Time `gorm:"autoUpdateTime" json:"last_updated"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName overrides the default table name logic
func (Creds) TableName() string     { return "creds" }
func (Device) TableName() string    { return "device" }
func (Action) TableName() string    { return "action" }
func (Rule) TableName() string      { return "rule" }
func (State) TableName() string     { return "state" }
func (Work) TableName() string      { return "work" }
func (Execution) TableName() string { return "execution" }

// GetID methods to satisfy Identifiable interface
func (c Creds) GetID() int64     { return c.ID }
func (a Action) GetID() int64    { return a.ID }
func (r Rule) GetID() int64      { return r.ID }
func (s State) GetID() int64     { return s.ID }
func (w Work) GetID() int64      { return w.ID }
func (e Execution) GetID() int64 { return e.ID }

// Terminal reports whether the work status can no longer change.
func (w *Work) Terminal() bool { return w.Status != StatusPending }

// RequiresConsole reports whether any action in the list needs an interactive
// console session on the device.
func (list ActionSnapshots) RequiresConsole() bool {
	for _, action := range list {
		if action.Type == ActionTypeKeystroke || action.Type == ActionTypeScreenshot {
			return true
		}
	}
	return false
}
