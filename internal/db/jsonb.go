package db

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONList stores a list in a JSONB column. NULL scans to an empty list and a
// nil list is written and marshalled as [].
type JSONList[T any] []T

// Scan implements sql.Scanner for reading from the database.
func (l *JSONList[T]) Scan(value any) error {
	if value == nil {
		*l = JSONList[T]{}
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("db.JSONList.Scan: expected []byte or string, got %T", value)
	}

	var out []T
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	if out == nil {
		out = []T{}
	}
	*l = out
	return nil
}

// Value implements driver.Valuer for writing to the database.
func (l JSONList[T]) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]T(l))
}

func (l JSONList[T]) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]T(l))
}
