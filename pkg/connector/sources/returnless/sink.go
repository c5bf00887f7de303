package returnless

import (
	"context"

	"github.com/ajitpratap0/tap-returnless/pkg/connector/rest"
	"github.com/ajitpratap0/tap-returnless/pkg/errors"
	"github.com/ajitpratap0/tap-returnless/pkg/models"
	"github.com/ajitpratap0/tap-returnless/pkg/protocol"
	"github.com/ajitpratap0/tap-returnless/pkg/schema"
)

// singerSink turns retained records into Singer messages.
type singerSink struct {
	writer    *protocol.Writer
	state     *protocol.StateTracker
	validator schema.Validator
}

func newSingerSink(w *protocol.Writer, validator schema.Validator) *singerSink {
	return &singerSink{
		writer:    w,
		state:     protocol.NewStateTracker(),
		validator: validator,
	}
}

// WriteRecord implements rest.Sink
func (s *singerSink) WriteRecord(_ context.Context, def *rest.StreamDefinition, rec *models.Record) error {
	if s.validator != nil {
		if err := s.validator.Validate(def.Name, rec); err != nil {
			return err
		}
	}
	if err := s.writer.WriteRecord(def.Name, rec); err != nil {
		return err
	}
	if tracksBookmark(def) {
		value, _ := rec.Get(def.ReplicationKey)
		s.state.Observe(def.Name, def.ReplicationKey, value)
	}
	return nil
}

// StreamCompleted implements rest.Sink
func (s *singerSink) StreamCompleted(_ context.Context, _ *rest.StreamDefinition) error {
	if err := s.writer.WriteState(s.state.State()); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write state")
	}
	return nil
}

// tracksBookmark reports whether a stream keeps a bookmark of its own.
// Children follow their parent unless they opt out.
func tracksBookmark(def *rest.StreamDefinition) bool {
	if def.ReplicationKey == "" {
		return false
	}
	return !def.IsChild() || def.IgnoreParentReplicationKey
}
