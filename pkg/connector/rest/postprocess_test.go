package rest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/tap-returnless/pkg/errors"
	"github.com/ajitpratap0/tap-returnless/pkg/models"
)

func recordWith(t *testing.T, raw string) *models.Record {
	t.Helper()
	rec, err := models.RecordFromJSON([]byte(raw))
	require.NoError(t, err)
	return rec
}

func TestWatermarkFilter(t *testing.T) {
	wm := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	f := NewWatermarkFilter(wm, true)

	tests := []struct {
		name     string
		record   string
		keep     bool
		wantType errors.ErrorType
	}{
		{name: "before watermark", record: `{"id":1,"updated_at":"2024-12-31T23:59:59Z"}`},
		{name: "exactly at watermark", record: `{"id":2,"updated_at":"2025-01-01T00:00:00Z"}`, keep: true},
		{name: "after watermark", record: `{"id":3,"updated_at":"2025-02-01T10:00:00+00:00"}`, keep: true},
		{name: "offset shifts before", record: `{"id":4,"updated_at":"2025-01-01T00:30:00+01:00"}`},
		{name: "offset shifts after", record: `{"id":5,"updated_at":"2024-12-31T23:30:00-01:00"}`, keep: true},
		{name: "fractional seconds", record: `{"id":6,"updated_at":"2025-01-01T00:00:00.000001Z"}`, keep: true},
		{name: "missing field", record: `{"id":7}`, keep: true},
		{name: "null field", record: `{"id":8,"updated_at":null}`, keep: true},
		{name: "empty field", record: `{"id":9,"updated_at":""}`, keep: true},
		{name: "no zone", record: `{"id":10,"updated_at":"2025-01-01T00:00:00"}`, wantType: errors.ErrorTypeParse},
		{name: "garbage", record: `{"id":11,"updated_at":"yesterday"}`, wantType: errors.ErrorTypeParse},
		{name: "number", record: `{"id":12,"updated_at":1735689600}`, wantType: errors.ErrorTypeParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := recordWith(t, tt.record)
			out, keep, err := f.Process(rec, nil)
			if tt.wantType != "" {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, tt.wantType))
				assert.False(t, keep)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.keep, keep)
			if keep {
				assert.Same(t, rec, out)
			}
		})
	}
}

func TestWatermarkFilterDisabled(t *testing.T) {
	f := NewWatermarkFilter(time.Now(), false)
	rec := recordWith(t, `{"id":1,"updated_at":"not a date"}`)

	out, keep, err := f.Process(rec, nil)
	require.NoError(t, err)
	assert.True(t, keep)
	assert.Same(t, rec, out)

	_, enabled := f.Watermark()
	assert.False(t, enabled)
}

func TestWatermarkFilterWithField(t *testing.T) {
	wm := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	f := NewWatermarkFilter(wm, true).WithField("created_at")

	_, keep, err := f.Process(recordWith(t, `{"id":1,"created_at":"2020-01-01T00:00:00Z","updated_at":"2026-01-01T00:00:00Z"}`), nil)
	require.NoError(t, err)
	assert.False(t, keep)
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	for _, s := range []string{
		"2025-03-04T05:06:07Z",
		"2025-03-04T06:06:07+01:00",
		"2025-03-04T06:06:07+0100",
		"2025-03-04 05:06:07Z",
		" 2025-03-04T05:06:07Z ",
	} {
		got, err := ParseTimestamp(s)
		require.NoError(t, err, s)
		assert.True(t, want.Equal(got), s)
	}

	_, err := ParseTimestamp("2025-03-04")
	assert.Error(t, err)
}

func TestChain(t *testing.T) {
	var calls []string
	tag := func(name string, keep bool) PostProcessor {
		return PostProcessFunc(func(rec *models.Record, _ Context) (*models.Record, bool, error) {
			calls = append(calls, name)
			rec.Set(name, true)
			return rec, keep, nil
		})
	}

	rec := recordWith(t, `{"id":1}`)
	out, keep, err := Chain(tag("a", true), nil, tag("b", true)).Process(rec, nil)
	require.NoError(t, err)
	assert.True(t, keep)
	assert.Equal(t, []string{"id", "a", "b"}, out.Keys())

	calls = nil
	_, keep, err = Chain(tag("a", false), tag("b", true)).Process(recordWith(t, `{"id":1}`), nil)
	require.NoError(t, err)
	assert.False(t, keep)
	assert.Equal(t, []string{"a"}, calls)

	boom := PostProcessFunc(func(*models.Record, Context) (*models.Record, bool, error) {
		return nil, false, errors.New(errors.ErrorTypeData, "boom")
	})
	_, _, err = Chain(boom, tag("never", true)).Process(recordWith(t, `{"id":1}`), nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
}
