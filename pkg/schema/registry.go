// Package schema holds the JSON Schema of every stream and validates
// records against it.
package schema

import (
	"bytes"
	"embed"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"go.uber.org/zap"

	"github.com/ajitpratap0/tap-returnless/pkg/errors"
	"github.com/ajitpratap0/tap-returnless/pkg/models"
)

//go:embed schemas/*.json
var embedded embed.FS

// Provider supplies the schema document of a stream.
type Provider interface {
	Schema(stream string) ([]byte, error)
}

// Validator checks a record against its stream's schema.
type Validator interface {
	Validate(stream string, rec *models.Record) error
}

var (
	_ Provider  = (*Registry)(nil)
	_ Validator = (*Registry)(nil)
)

// Registry maps stream names to schema documents. Documents are compiled
// on first validation and cached.
type Registry struct {
	raw      map[string][]byte
	compiled map[string]*jsonschema.Schema
	mu       sync.Mutex
	logger   *zap.Logger
}

// NewRegistry loads the schemas shipped with the tap
func NewRegistry(logger *zap.Logger) (*Registry, error) {
	entries, err := embedded.ReadDir("schemas")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to list schemas")
	}

	raw := make(map[string][]byte, len(entries))
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".json" {
			continue
		}
		data, err := embedded.ReadFile("schemas/" + e.Name())
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrorTypeInternal, "failed to read schema %s", e.Name())
		}
		raw[strings.TrimSuffix(e.Name(), ".json")] = data
	}
	return newRegistry(raw, logger), nil
}

// NewRegistryFromMap builds a registry from in-memory documents
func NewRegistryFromMap(docs map[string]string, logger *zap.Logger) *Registry {
	raw := make(map[string][]byte, len(docs))
	for stream, doc := range docs {
		raw[stream] = []byte(doc)
	}
	return newRegistry(raw, logger)
}

func newRegistry(raw map[string][]byte, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		raw:      raw,
		compiled: make(map[string]*jsonschema.Schema),
		logger:   logger.With(zap.String("component", "schema_registry")),
	}
}

// Streams returns the names of all known schemas, sorted
func (r *Registry) Streams() []string {
	names := make([]string, 0, len(r.raw))
	for name := range r.raw {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Schema returns the schema document of a stream
func (r *Registry) Schema(stream string) ([]byte, error) {
	doc, ok := r.raw[stream]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "no schema for stream %s", stream)
	}
	return doc, nil
}

// Validate checks rec against the stream's schema
func (r *Registry) Validate(stream string, rec *models.Record) error {
	sch, err := r.compile(stream)
	if err != nil {
		return err
	}
	if err := sch.Validate(rec.Map()); err != nil {
		return errors.Wrapf(err, errors.ErrorTypeData, "record does not match schema of %s", stream)
	}
	return nil
}

func (r *Registry) compile(stream string) (*jsonschema.Schema, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sch, ok := r.compiled[stream]; ok {
		return sch, nil
	}

	doc, ok := r.raw[stream]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "no schema for stream %s", stream)
	}
	parsed, err := jsonschema.UnmarshalJSON(bytes.NewReader(doc))
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeInternal, "schema of %s is not valid JSON", stream)
	}

	loc := "mem://schemas/" + stream + ".json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(loc, parsed); err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeInternal, "failed to add schema of %s", stream)
	}
	sch, err := c.Compile(loc)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeInternal, "failed to compile schema of %s", stream)
	}

	r.compiled[stream] = sch
	r.logger.Debug("schema compiled", zap.String("stream", stream))
	return sch, nil
}
