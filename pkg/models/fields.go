package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// StringMap is a string-to-string map persisted as a JSON column.
type StringMap map[string]string

func (m StringMap) Value() (driver.Value, error) {
	if m == nil {
		m = StringMap{}
	}
	b, err := json.Marshal(m)
	return string(b), err
}

func (m *StringMap) Scan(value any) error {
	return scanJSON(value, m)
}

// StringList is a list of strings persisted as a JSON column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	b, err := json.Marshal(l)
	return string(b), err
}

func (l *StringList) Scan(value any) error {
	return scanJSON(value, l)
}

// ActionSnapshots is a list of action snapshots persisted as a JSON column.
type ActionSnapshots []ActionSnapshot

func (l ActionSnapshots) Value() (driver.Value, error) {
	if l == nil {
		l = ActionSnapshots{}
	}
	b, err := json.Marshal(l)
	return string(b), err
}

func (l *ActionSnapshots) Scan(value any) error {
	return scanJSON(value, l)
}

// JSONMap is an opaque JSON object column (execution run data).
type JSONMap map[string]any

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		m = JSONMap{}
	}
	b, err := json.Marshal(m)
	return string(b), err
}

func (m *JSONMap) Scan(value any) error {
	return scanJSON(value, m)
}

func scanJSON(value any, dest any) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported column type %T", value)
	}
}
