// Package returnless implements the Returnless source: twenty REST streams
// synced in catalog order and written as Singer SCHEMA, RECORD and STATE
// messages.
package returnless

import (
	"context"
	"io"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/ajitpratap0/tap-returnless/pkg/config"
	"github.com/ajitpratap0/tap-returnless/pkg/connector/base"
	"github.com/ajitpratap0/tap-returnless/pkg/connector/core"
	"github.com/ajitpratap0/tap-returnless/pkg/connector/rest"
	"github.com/ajitpratap0/tap-returnless/pkg/errors"
	"github.com/ajitpratap0/tap-returnless/pkg/protocol"
	"github.com/ajitpratap0/tap-returnless/pkg/schema"
)

const (
	// ConnectorName is the name the source registers under
	ConnectorName = "returnless"
	// Version of the source
	Version = "1.0.0"
)

var _ core.Source = (*ReturnlessSource)(nil)

// ReturnlessSource syncs the Returnless API
type ReturnlessSource struct {
	*base.BaseConnector

	catalog *rest.Catalog
	schemas *schema.Registry
}

// NewReturnlessSource creates a new, uninitialized Returnless source
func NewReturnlessSource() *ReturnlessSource {
	return &ReturnlessSource{
		BaseConnector: base.NewBaseConnector(ConnectorName, core.ConnectorTypeSource, Version),
	}
}

// Initialize validates cfg, builds the API client and loads the catalog
// and schemas.
func (s *ReturnlessSource) Initialize(ctx context.Context, cfg *config.TapConfig) error {
	if err := s.BaseConnector.Initialize(ctx, cfg); err != nil {
		return err
	}

	catalog, err := rest.NewCatalog(Definitions())
	if err != nil {
		return err
	}
	if _, err := catalog.Select(cfg.Streams); err != nil {
		return err
	}

	schemas, err := schema.NewRegistry(s.GetLogger())
	if err != nil {
		return err
	}
	for _, name := range catalog.Names() {
		if _, err := schemas.Schema(name); err != nil {
			return errors.Wrapf(err, errors.ErrorTypeInternal, "stream %s has no schema", name)
		}
	}

	s.catalog = catalog
	s.schemas = schemas
	s.GetLogger().Info("Returnless source initialized",
		zap.Int("streams", len(catalog.Names())),
		zap.Strings("selected", cfg.Streams),
		zap.Bool("validate_records", cfg.ValidateRecords))
	return nil
}

// Streams lists every stream in catalog order
func (s *ReturnlessSource) Streams() []core.StreamInfo {
	defs := Definitions()
	if s.catalog != nil {
		defs = s.catalog.Streams()
	}
	out := make([]core.StreamInfo, 0, len(defs))
	for _, def := range defs {
		out = append(out, core.StreamInfo{
			Name:              def.Name,
			Path:              def.Path,
			Parent:            def.Parent,
			PrimaryKeys:       def.PrimaryKeys,
			ReplicationKey:    def.ReplicationKey,
			ReplicationMethod: def.ReplicationMethod(),
		})
	}
	return out
}

// Discover builds the catalog document. Streams named in the config are
// marked selected; with no selection every stream is.
func (s *ReturnlessSource) Discover(ctx context.Context) (*protocol.Catalog, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	cfg := s.GetConfig()

	out := &protocol.Catalog{Streams: make([]protocol.CatalogEntry, 0, len(s.catalog.Names()))}
	for _, def := range s.catalog.Streams() {
		doc, err := s.schemas.Schema(def.Name)
		if err != nil {
			return nil, err
		}
		out.Streams = append(out.Streams, protocol.CatalogEntry{
			TapStreamID:       def.Name,
			Stream:            def.Name,
			KeyProperties:     def.PrimaryKeys,
			ReplicationKey:    def.ReplicationKey,
			ReplicationMethod: def.ReplicationMethod(),
			Schema:            doc,
			Metadata: []protocol.Metadata{
				protocol.StreamMetadata(def.PrimaryKeys, def.ReplicationKey,
					def.ReplicationMethod(), def.Parent, cfg.Selected(def.Name)),
			},
		})
	}
	return out, nil
}

// Sync runs every selected stream and writes Singer messages to w. SCHEMA
// messages for all emitted streams come first; a STATE message follows each
// top-level stream. Closing the source aborts a running sync.
func (s *ReturnlessSource) Sync(ctx context.Context, w io.Writer) error {
	if err := s.ready(); err != nil {
		return err
	}
	cfg := s.GetConfig()
	log := s.GetLogger()

	selection, err := s.catalog.Select(cfg.Streams)
	if err != nil {
		return err
	}
	watermark, enabled, err := cfg.Watermark()
	if err != nil {
		return err
	}

	writer := protocol.NewWriter(w)
	for _, def := range s.catalog.Streams() {
		if !selection.Emits(def.Name) {
			continue
		}
		doc, err := s.schemas.Schema(def.Name)
		if err != nil {
			return err
		}
		var bookmarks []string
		if tracksBookmark(def) {
			bookmarks = []string{def.ReplicationKey}
		}
		if err := writer.WriteSchema(def.Name, doc, def.PrimaryKeys, bookmarks); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to write schema").
				WithDetail(errors.DetailStream, def.Name)
		}
	}

	var validator schema.Validator
	if cfg.ValidateRecords {
		validator = s.schemas
	}
	sink := newSingerSink(writer, validator)

	progress := s.GetProgressReporter()
	orch, err := rest.NewOrchestrator(s.catalog, s.GetClient(), sink,
		rest.WithLogger(log),
		rest.WithTracer(otel.Tracer("tap-returnless")),
		rest.WithProgress(progress),
		rest.WithSelection(selection),
		rest.WithWatermark(rest.NewWatermarkFilter(watermark, enabled)),
	)
	if err != nil {
		return err
	}

	// Close cancels a sync in flight.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.GetContext(), cancel)
	defer stop()

	runErr := orch.Run(ctx)
	if err := writer.Flush(); err != nil && runErr == nil {
		runErr = errors.Wrap(err, errors.ErrorTypeFile, "failed to flush output")
	}
	progress.ReportFinal()
	log.Info("messages written",
		zap.Int64("schema", writer.Count(protocol.MessageTypeSchema)),
		zap.Int64("record", writer.Count(protocol.MessageTypeRecord)),
		zap.Int64("state", writer.Count(protocol.MessageTypeState)))
	return runErr
}

func (s *ReturnlessSource) ready() error {
	if err := s.Ready(); err != nil {
		return err
	}
	if s.catalog == nil {
		return errors.New(errors.ErrorTypeConfig, "source is not initialized")
	}
	return nil
}
