package rest

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/ajitpratap0/tap-returnless/pkg/errors"
	"github.com/ajitpratap0/tap-returnless/pkg/metrics"
)

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithLogger sets the logger
func WithLogger(log *zap.Logger) Option {
	return func(o *Orchestrator) {
		if log != nil {
			o.logger = log
		}
	}
}

// WithTracer sets the tracer used for per-stream spans
func WithTracer(tracer trace.Tracer) Option {
	return func(o *Orchestrator) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithProgress sets an observer told about every emitted and filtered record
func WithProgress(p ProgressObserver) Option {
	return func(o *Orchestrator) {
		if p != nil {
			o.progress = p
		}
	}
}

// WithSelection restricts which streams run and emit
func WithSelection(sel *Selection) Option {
	return func(o *Orchestrator) {
		o.selection = sel
	}
}

// WithWatermark sets the filter applied to every record before the
// stream's own post-processing.
func WithWatermark(f *WatermarkFilter) Option {
	return func(o *Orchestrator) {
		o.watermark = f
	}
}

// Orchestrator syncs the top-level streams of a catalog one after another.
type Orchestrator struct {
	catalog   *Catalog
	fetcher   Fetcher
	sink      Sink
	logger    *zap.Logger
	tracer    trace.Tracer
	progress  ProgressObserver
	selection *Selection
	watermark *WatermarkFilter
	paginator Paginator

	roots []*Stream
}

// NewOrchestrator builds the stream tree for catalog. Streams that the
// selection does not run are left out of the tree entirely.
func NewOrchestrator(catalog *Catalog, fetcher Fetcher, sink Sink, opts ...Option) (*Orchestrator, error) {
	if catalog == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "catalog is required")
	}
	if fetcher == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "fetcher is required")
	}
	if sink == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "sink is required")
	}

	o := &Orchestrator{
		catalog:   catalog,
		fetcher:   fetcher,
		sink:      sink,
		logger:    zap.NewNop(),
		tracer:    noop.NewTracerProvider().Tracer("rest"),
		progress:  nopProgress{},
		paginator: NewLinkPaginator(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.selection == nil {
		sel, err := catalog.Select(nil)
		if err != nil {
			return nil, err
		}
		o.selection = sel
	}
	if o.watermark == nil {
		o.watermark = NewWatermarkFilter(time.Time{}, false)
	}

	for _, def := range catalog.TopLevel() {
		if !o.selection.Runs(def.Name) {
			continue
		}
		s, err := o.build(def)
		if err != nil {
			return nil, err
		}
		o.roots = append(o.roots, s)
	}
	return o, nil
}

func (o *Orchestrator) build(def *StreamDefinition) (*Stream, error) {
	selector, err := def.recordsSelector()
	if err != nil {
		return nil, err
	}

	s := &Stream{
		def:       def,
		selector:  selector,
		fetcher:   o.fetcher,
		paginator: o.paginator,
		processor: Chain(o.watermark, def.PostProcess),
		sink:      o.sink,
		emit:      o.selection.Emits(def.Name),
		logger:    o.logger.With(zap.String("stream", def.Name)),
		tracer:    o.tracer,
		collector: metrics.NewCollector(def.Name),
		progress:  o.progress,
	}

	for _, child := range o.catalog.Children(def.Name) {
		if !o.selection.Runs(child.Name) {
			continue
		}
		cs, err := o.build(child)
		if err != nil {
			return nil, err
		}
		s.children = append(s.children, cs)
	}
	return s, nil
}

// Streams returns the top-level streams that will run, in catalog order
func (o *Orchestrator) Streams() []*Stream {
	return append([]*Stream(nil), o.roots...)
}

// Run syncs every running top-level stream in catalog order. The first
// failure aborts the run; records already handed to the sink stay written.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("sync started", zap.Int("streams", len(o.roots)))

	for _, s := range o.roots {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, errors.ErrorTypeTimeout, "sync cancelled")
		}

		timer := metrics.NewTimer()
		if err := s.Sync(ctx, nil); err != nil {
			o.logger.Error("stream sync failed",
				zap.String("stream", s.def.Name),
				zap.Error(err))
			return err
		}
		if err := o.sink.StreamCompleted(ctx, s.def); err != nil {
			return s.fail(err, "failed to complete stream")
		}
		o.logger.Info("stream synced",
			zap.String("stream", s.def.Name),
			zap.Duration("duration", timer.Stop()))
	}

	o.logger.Info("sync finished")
	return nil
}
