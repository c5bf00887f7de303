// Package models provides the data models shared by the extraction engine
// and the message writer.
package models

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/tidwall/gjson"

	jsonpool "github.com/ajitpratap0/tap-returnless/pkg/json"
)

// Record is one object decoded from a response's record array. Top-level
// fields keep the order the API returned them in.
type Record struct {
	keys   []string
	values map[string]interface{}
}

// NewRecord creates an empty record
func NewRecord() *Record {
	return &Record{values: make(map[string]interface{})}
}

// RecordFromJSON decodes a JSON object into a record.
func RecordFromJSON(raw []byte) (*Record, error) {
	r := NewRecord()
	if err := r.UnmarshalJSON(raw); err != nil {
		return nil, err
	}
	return r, nil
}

// Set assigns a field, appending it to the field order when new.
func (r *Record) Set(key string, value interface{}) {
	if r.values == nil {
		r.values = make(map[string]interface{})
	}
	if _, exists := r.values[key]; !exists {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// Get returns a field value
func (r *Record) Get(key string) (interface{}, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Delete removes a field
func (r *Record) Delete(key string) {
	if _, ok := r.values[key]; !ok {
		return
	}
	delete(r.values, key)
	for i, k := range r.keys {
		if k == key {
			r.keys = append(r.keys[:i], r.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the field names in order
func (r *Record) Keys() []string {
	return append([]string(nil), r.keys...)
}

// Len returns the number of fields
func (r *Record) Len() int {
	return len(r.keys)
}

// Map returns the fields as a plain map. The map is shared with the record.
func (r *Record) Map() map[string]interface{} {
	return r.values
}

// Lookup returns the textual form of a scalar field. Null, absent and
// non-scalar values report ok=false.
func (r *Record) Lookup(key string) (string, bool) {
	v, ok := r.values[key]
	if !ok {
		return "", false
	}
	return ScalarString(v)
}

// ScalarString renders a scalar JSON value as text.
func ScalarString(v interface{}) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case jsonpool.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}

// UnmarshalJSON decodes a JSON object, preserving top-level field order.
func (r *Record) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("record is not valid JSON")
	}
	parsed := gjson.ParseBytes(data)
	if !parsed.IsObject() {
		return fmt.Errorf("record is not a JSON object")
	}

	r.keys = r.keys[:0]
	r.values = make(map[string]interface{})

	var decodeErr error
	parsed.ForEach(func(key, value gjson.Result) bool {
		v, err := jsonpool.DecodeValue([]byte(value.Raw))
		if err != nil {
			decodeErr = fmt.Errorf("field %q: %w", key.String(), err)
			return false
		}
		r.Set(key.String(), v)
		return true
	})
	return decodeErr
}

// MarshalJSON encodes the record with fields in their original order.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := jsonpool.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := jsonpool.Marshal(r.values[k])
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
