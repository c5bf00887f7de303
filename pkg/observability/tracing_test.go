package observability

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/ajitpratap0/tap-returnless/pkg/testutil"
)

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), DefaultTracingConfig("tap-returnless", "test"), testutil.TestLogger(t))
	require.NoError(t, err)

	_, span := Tracer("test").Start(context.Background(), "noop")
	assert.False(t, span.SpanContext().IsValid())
	span.End()
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitTracingExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultTracingConfig("tap-returnless", "test")
	cfg.Enabled = true
	cfg.Writer = &buf

	shutdown, err := InitTracing(context.Background(), cfg, testutil.TestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = InitTracing(context.Background(), DefaultTracingConfig("tap-returnless", "test"), nil)
	})

	_, span := Tracer("test").Start(context.Background(), "stream.sync")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	require.NoError(t, shutdown(context.Background()))
	require.True(t, gjson.Valid(buf.String()), buf.String())
	assert.Equal(t, "stream.sync", gjson.Get(buf.String(), "Name").String())
}

func TestSampler(t *testing.T) {
	assert.Contains(t, sampler(0).Description(), "AlwaysOff")
	assert.Contains(t, sampler(1).Description(), "AlwaysOn")
	assert.Contains(t, sampler(0.5).Description(), "TraceIDRatioBased")
}
