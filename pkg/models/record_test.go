package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jsonpool "github.com/ajitpratap0/tap-returnless/pkg/json"
)

func TestRecordPreservesFieldOrder(t *testing.T) {
	raw := `{"zeta":1,"alpha":"a","id":42,"nested":{"b":2,"a":1},"tags":["x","y"],"deleted_at":null}`

	r, err := RecordFromJSON([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha", "id", "nested", "tags", "deleted_at"}, r.Keys())

	out, err := r.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"zeta":1,"alpha":"a","id":42,"nested":{"a":1,"b":2},"tags":["x","y"],"deleted_at":null}`, string(out))
}

func TestRecordLookup(t *testing.T) {
	r, err := RecordFromJSON([]byte(`{"id":42,"code":"abc","flag":true,"empty":null,"obj":{}}`))
	require.NoError(t, err)

	tests := []struct {
		key  string
		want string
		ok   bool
	}{
		{"id", "42", true},
		{"code", "abc", true},
		{"flag", "true", true},
		{"empty", "", false},
		{"obj", "", false},
		{"missing", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, ok := r.Lookup(tt.key)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	id, ok := r.Get("id")
	require.True(t, ok)
	assert.Equal(t, jsonpool.Number("42"), id)
}

func TestRecordSetAndDelete(t *testing.T) {
	r := NewRecord()
	r.Set("a", 1)
	r.Set("b", 2)
	r.Set("a", 3)
	assert.Equal(t, []string{"a", "b"}, r.Keys())
	assert.Equal(t, 2, r.Len())

	r.Delete("a")
	r.Delete("missing")
	assert.Equal(t, []string{"b"}, r.Keys())
	_, ok := r.Get("a")
	assert.False(t, ok)
}

func TestRecordRejectsNonObjects(t *testing.T) {
	for _, raw := range []string{`[1,2]`, `"str"`, `{"a":`} {
		_, err := RecordFromJSON([]byte(raw))
		assert.Error(t, err, raw)
	}
}

func TestScalarString(t *testing.T) {
	s, ok := ScalarString(12.5)
	assert.True(t, ok)
	assert.Equal(t, "12.5", s)

	s, ok = ScalarString(int64(7))
	assert.True(t, ok)
	assert.Equal(t, "7", s)

	_, ok = ScalarString([]interface{}{1})
	assert.False(t, ok)
}
