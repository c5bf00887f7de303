package rest

import (
	"context"
	"net/url"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ajitpratap0/tap-returnless/pkg/errors"
	"github.com/ajitpratap0/tap-returnless/pkg/logger"
	"github.com/ajitpratap0/tap-returnless/pkg/metrics"
	"github.com/ajitpratap0/tap-returnless/pkg/models"
)

// Fetcher performs one GET against the API and returns the response body.
// Implementations report failures as *errors.Error classified by status.
type Fetcher interface {
	GetJSON(ctx context.Context, path string, params url.Values) ([]byte, error)
}

// Sink receives retained records.
type Sink interface {
	WriteRecord(ctx context.Context, def *StreamDefinition, rec *models.Record) error
	// StreamCompleted is called once a top-level stream and all of its
	// descendants have finished.
	StreamCompleted(ctx context.Context, def *StreamDefinition) error
}

// ProgressObserver is told about every emitted and filtered record.
type ProgressObserver interface {
	RecordEmitted(stream string)
	RecordFiltered(stream string)
}

type nopProgress struct{}

func (nopProgress) RecordEmitted(string)  {}
func (nopProgress) RecordFiltered(string) {}

// Stream runs the fetch/decode/emit loop of one definition.
type Stream struct {
	def       *StreamDefinition
	selector  string
	fetcher   Fetcher
	paginator Paginator
	processor PostProcessor
	sink      Sink
	emit      bool
	children  []*Stream
	logger    *zap.Logger
	tracer    trace.Tracer
	collector *metrics.Collector
	progress  ProgressObserver
}

// Definition returns the stream's definition
func (s *Stream) Definition() *StreamDefinition {
	return s.def
}

// Sync pages through the stream with the given context. Each retained
// record is emitted and then, depth-first, drives a full sync of every
// child stream before the next record is looked at.
func (s *Stream) Sync(ctx context.Context, sctx Context) (err error) {
	ctx = logger.WithStream(ctx, s.def.Name)
	ctx, span := s.tracer.Start(ctx, "stream.sync",
		trace.WithAttributes(attribute.String("stream", s.def.Name)))
	timer := metrics.NewTimer()
	defer func() {
		s.collector.SyncCompleted(timer.Stop())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	path, err := ResolvePath(s.def.Path, sctx)
	if err != nil {
		return s.fail(err, "failed to resolve path")
	}

	log := s.logger
	if len(sctx) > 0 {
		log = log.With(zap.Any("context", map[string]interface{}(sctx)))
	}
	log.Debug("stream sync started", zap.String("path", path))

	var token *ContinuationToken
	pages := 0
	for {
		// FETCH
		params := s.def.QueryParams(sctx, token)
		body, err := s.fetcher.GetJSON(ctx, path, params)
		if err != nil {
			return s.fail(err, "failed to fetch page")
		}
		pages++
		s.collector.PageFetched()

		// DECODE
		records, err := s.decode(body)
		if err != nil {
			return s.fail(err, "failed to decode page")
		}

		// EMIT
		for _, raw := range records {
			if err := s.handle(ctx, raw, sctx); err != nil {
				return err
			}
		}

		next, ok := s.paginator.NextToken(body)
		if !ok {
			break
		}
		token = next
	}

	span.SetAttributes(attribute.Int("pages", pages))
	log.Debug("stream sync finished", zap.Int("pages", pages))
	return nil
}

func (s *Stream) decode(body []byte) ([]gjson.Result, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New(errors.ErrorTypeData, "response body is not valid JSON")
	}
	result := gjson.GetBytes(body, s.selector)
	switch {
	case !result.Exists() || result.Type == gjson.Null:
		return nil, nil
	case result.IsArray():
		return result.Array(), nil
	default:
		return nil, errors.Newf(errors.ErrorTypeData, "records path %s is not an array", s.def.RecordsPath)
	}
}

func (s *Stream) handle(ctx context.Context, raw gjson.Result, sctx Context) error {
	if !raw.IsObject() {
		return s.fail(errors.New(errors.ErrorTypeData, "record is not a JSON object"), "failed to decode record")
	}
	rec, err := models.RecordFromJSON([]byte(raw.Raw))
	if err != nil {
		return s.fail(errors.Wrap(err, errors.ErrorTypeData, "invalid record"), "failed to decode record")
	}

	rec, keep, err := s.processor.Process(rec, sctx)
	if err != nil {
		return s.fail(err, "failed to process record")
	}
	if !keep {
		s.collector.RecordFiltered()
		s.progress.RecordFiltered(s.def.Name)
		return nil
	}

	for _, pk := range s.def.PrimaryKeys {
		if v, ok := rec.Get(pk); !ok || v == nil {
			return s.fail(errors.Newf(errors.ErrorTypeData, "record is missing primary key %s", pk), "invalid record")
		}
	}

	if s.emit {
		if err := s.sink.WriteRecord(ctx, s.def, rec); err != nil {
			return s.fail(err, "failed to write record")
		}
		s.collector.RecordEmitted()
		s.progress.RecordEmitted(s.def.Name)
	}

	if len(s.children) == 0 || s.def.ChildContext == nil {
		return nil
	}
	childCtx, err := s.def.ChildContext(rec, sctx)
	if err != nil {
		return s.fail(err, "failed to build child context")
	}
	for _, child := range s.children {
		if err := child.Sync(ctx, childCtx); err != nil {
			return err
		}
	}
	return nil
}

// fail tags err with the stream name unless a descendant already did.
func (s *Stream) fail(err error, msg string) error {
	var e *errors.Error
	if errors.As(err, &e) {
		if _, tagged := e.Detail(errors.DetailStream); tagged {
			return err
		}
		return errors.Wrap(err, e.Type, msg).WithDetail(errors.DetailStream, s.def.Name)
	}
	return errors.Wrap(err, errors.ErrorTypeInternal, msg).WithDetail(errors.DetailStream, s.def.Name)
}
