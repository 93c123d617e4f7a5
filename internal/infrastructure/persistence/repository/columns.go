package repository

import (
	"encoding/json"
	"fmt"
)

// toJSON encodes a value stored in a TEXT column
func toJSON(column string, v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s: %w", column, err)
	}
	return string(data), nil
}

// fromJSON decodes a TEXT column; empty text leaves v untouched
func fromJSON(column, data string, v interface{}) error {
	if data == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(data), v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", column, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}
