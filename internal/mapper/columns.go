// Package mapper translates between backend rows and domain records.
// Everything here is pure: no I/O, no clocks, no randomness.
package mapper

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/iliyamo/fernid/internal/model"
)

// StringList is a JSON array column (fern_species.fun_facts).
type StringList []string

// Scan implements sql.Scanner.  NULL and empty values decode to nil.
func (l *StringList) Scan(src any) error {
	b, err := columnBytes(src)
	if err != nil || len(b) == 0 {
		*l = nil
		return err
	}
	var out []string
	if err := json.Unmarshal(b, &out); err != nil {
		return fmt.Errorf("fun_facts: %w", err)
	}
	*l = out
	return nil
}

// Value implements driver.Valuer.  A nil list is stored as "[]".
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// NullPermissions is the nullable profiles.admin_permissions column.
type NullPermissions struct {
	Permissions model.AdminPermissions
	Valid       bool
}

// Scan implements sql.Scanner.
func (n *NullPermissions) Scan(src any) error {
	b, err := columnBytes(src)
	if err != nil {
		return err
	}
	if len(b) == 0 || string(b) == "null" {
		*n = NullPermissions{}
		return nil
	}
	var p model.AdminPermissions
	if err := json.Unmarshal(b, &p); err != nil {
		return fmt.Errorf("admin_permissions: %w", err)
	}
	*n = NullPermissions{Permissions: p, Valid: true}
	return nil
}

// Value implements driver.Valuer.  All four keys are always written.
func (n NullPermissions) Value() (driver.Value, error) {
	if !n.Valid {
		return nil, nil
	}
	b, err := json.Marshal(n.Permissions)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func columnBytes(src any) ([]byte, error) {
	switch v := src.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	}
	return nil, fmt.Errorf("unsupported column type %T", src)
}
