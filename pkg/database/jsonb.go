package database

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONB stores T as a JSON column. Postgres keeps it in a jsonb
// column, sqlite in TEXT; both hand the driver []byte or string.
type JSONB[T any] struct {
	Data T
}

func (p *JSONB[T]) Scan(src any) error {
	switch b := src.(type) {
	case nil:
		var zero T
		p.Data = zero
		return nil
	case []byte:
		return json.Unmarshal(b, &p.Data)
	case string:
		return json.Unmarshal([]byte(b), &p.Data)
	default:
		return fmt.Errorf("JSONB.Scan: expected []byte or string, got %T", src)
	}
}

func (p JSONB[T]) Value() (driver.Value, error) {
	return json.Marshal(p.Data)
}

func (p *JSONB[T]) GetValue() T {
	return p.Data
}
