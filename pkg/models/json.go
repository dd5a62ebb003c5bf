package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// JSON holds a raw JSON document in a PostgreSQL JSONB or SQLite JSON column.
type JSON json.RawMessage

// Value implements driver.Valuer. Empty documents are stored as NULL.
func (j JSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	if !json.Valid(j) {
		return nil, errors.New("invalid JSON document")
	}
	return []byte(j), nil
}

// Scan implements sql.Scanner.
func (j *JSON) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*j = nil
		return nil
	case []byte:
		raw = append([]byte(nil), v...)
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into JSON", value)
	}

	if !json.Valid(raw) {
		return errors.New("invalid JSON document in database")
	}
	*j = JSON(raw)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (j JSON) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return []byte(j), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (j *JSON) UnmarshalJSON(data []byte) error {
	if j == nil {
		return errors.New("JSON: UnmarshalJSON on nil pointer")
	}
	*j = append((*j)[0:0], data...)
	return nil
}

// String returns the JSON as a string.
func (j JSON) String() string {
	return string(j)
}
