package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Metadata is an opaque key-value bag stored as a JSON text column.
type Metadata map[string]any

// Value implements driver.Valuer.
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshaling metadata: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *Metadata) Scan(src any) error {
	raw, err := textColumn(src)
	if err != nil || raw == nil {
		*m = nil
		return err
	}
	return json.Unmarshal(raw, m)
}

// StringList is a list of strings stored as a JSON array column.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, fmt.Errorf("marshaling string list: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src any) error {
	raw, err := textColumn(src)
	if err != nil || len(raw) == 0 {
		*l = nil
		return err
	}
	return json.Unmarshal(raw, (*[]string)(l))
}

func textColumn(src any) ([]byte, error) {
	switch v := src.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported column type %T", src)
	}
}
