package postgres

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// jsonValue marshals v for a JSONB column; nil maps stay NULL-safe as '{}'.
func jsonValue(v interface{}) (driver.Value, error) {
	if v == nil {
		return "{}", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal jsonb: %w", err)
	}
	return string(data), nil
}

// scanJSON unmarshals a JSONB column into dest. Empty input is a no-op.
func scanJSON(raw []byte, dest interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("unmarshal jsonb: %w", err)
	}
	return nil
}
