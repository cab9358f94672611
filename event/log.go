package event

import (
	"encoding/json"
	"fmt"
)

// Log is one structured entry attached to an emitted event. Entries with an
// empty key are free-form info values. Keys beginning with "__" carry
// engine-reserved meaning (__file, __line, __comment, __lhs, __op, __rhs)
// and are interpreted by the readable-message renderer.
type Log struct {
	Key   string
	Value any
}

// Logs is the ordered list of entries attached to one event.
type Logs []Log

// Value returns the value of the first entry with the given key.
func (l Logs) Value(key string) (any, bool) {
	for _, e := range l {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// MarshalJSON encodes the entry in its wire form, a two-element array.
func (e Log) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{e.Key, e.Value})
}

// UnmarshalJSON accepts the two-element array wire form.
func (e *Log) UnmarshalJSON(data []byte) error {
	var pair []any
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("log entry must be a [key, value] pair: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("log entry must have 2 elements, got %d", len(pair))
	}
	key, ok := pair[0].(string)
	if !ok {
		return fmt.Errorf("log entry key must be a string, got %T", pair[0])
	}
	e.Key = key
	e.Value = pair[1]
	return nil
}
