package rest

import (
	"strings"
	"time"

	"github.com/ajitpratap0/tap-returnless/pkg/errors"
	"github.com/ajitpratap0/tap-returnless/pkg/models"
)

// DefaultWatermarkField is the record field compared against the watermark.
const DefaultWatermarkField = "updated_at"

// PostProcessor decides whether a decoded record is emitted. keep=false
// drops the record silently; an error aborts the sync.
type PostProcessor interface {
	Process(rec *models.Record, sctx Context) (out *models.Record, keep bool, err error)
}

// PostProcessFunc adapts a function to PostProcessor
type PostProcessFunc func(rec *models.Record, sctx Context) (*models.Record, bool, error)

// Process implements PostProcessor
func (f PostProcessFunc) Process(rec *models.Record, sctx Context) (*models.Record, bool, error) {
	return f(rec, sctx)
}

// WatermarkFilter drops records whose timestamp field is older than the
// watermark. Records without the field pass unchanged.
type WatermarkFilter struct {
	watermark time.Time
	enabled   bool
	field     string
}

// NewWatermarkFilter creates a filter. enabled=false passes every record.
func NewWatermarkFilter(watermark time.Time, enabled bool) *WatermarkFilter {
	return &WatermarkFilter{
		watermark: watermark.UTC(),
		enabled:   enabled,
		field:     DefaultWatermarkField,
	}
}

// WithField returns a copy comparing a different field
func (f *WatermarkFilter) WithField(field string) *WatermarkFilter {
	cp := *f
	cp.field = field
	return &cp
}

// Watermark returns the configured watermark and whether it is active
func (f *WatermarkFilter) Watermark() (time.Time, bool) {
	return f.watermark, f.enabled
}

// Process implements PostProcessor
func (f *WatermarkFilter) Process(rec *models.Record, _ Context) (*models.Record, bool, error) {
	if !f.enabled {
		return rec, true, nil
	}

	raw, ok := rec.Get(f.field)
	if !ok || raw == nil {
		return rec, true, nil
	}
	value, ok := raw.(string)
	if !ok {
		return nil, false, errors.Newf(errors.ErrorTypeParse, "field %s is not a timestamp string", f.field)
	}
	if strings.TrimSpace(value) == "" {
		return rec, true, nil
	}

	ts, err := ParseTimestamp(value)
	if err != nil {
		return nil, false, errors.Wrapf(err, errors.ErrorTypeParse, "invalid %s %q", f.field, value)
	}
	if ts.Before(f.watermark) {
		return nil, false, nil
	}
	return rec, true, nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z0700",
}

// ParseTimestamp parses an ISO-8601 timestamp that carries a zone offset.
// Timestamps without an offset are rejected because they cannot be
// compared with a UTC watermark safely.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var firstErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

// Chain runs processors in order, stopping at the first drop or error.
func Chain(processors ...PostProcessor) PostProcessor {
	return PostProcessFunc(func(rec *models.Record, sctx Context) (*models.Record, bool, error) {
		for _, p := range processors {
			if p == nil {
				continue
			}
			var keep bool
			var err error
			rec, keep, err = p.Process(rec, sctx)
			if err != nil || !keep {
				return nil, false, err
			}
		}
		return rec, true, nil
	})
}
