package catalog

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONMap adapts a free-form map to a Postgres JSON/JSONB column via
// database/sql's Scanner/Valuer hooks, used for Supplier.Meta,
// SupplierItem.Characteristics and ParsingLog.RowData.
type JSONMap map[string]interface{}

// Value implements driver.Valuer.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(src interface{}) error {
	if src == nil {
		*m = nil
		return nil
	}

	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("catalog: JSONMap.Scan: unsupported type %T", src)
	}

	if len(raw) == 0 {
		*m = nil
		return nil
	}

	out := make(JSONMap)
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*m = out
	return nil
}
