package rest

import (
	"net/url"
	"strings"

	"github.com/ajitpratap0/tap-returnless/pkg/errors"
)

// Replication methods reported in the catalog.
const (
	ReplicationIncremental = "INCREMENTAL"
	ReplicationFullTable   = "FULL_TABLE"
)

// DefaultRecordsPath selects every element of the top-level data array.
const DefaultRecordsPath = "$.data[*]"

// ParamsFunc builds the query of one request. It replaces the default
// BuildParams(def.Params, token) for streams that need to.
type ParamsFunc func(sctx Context, token *ContinuationToken) url.Values

// StreamDefinition describes one API resource. Definitions are treated as
// immutable once added to a Catalog.
type StreamDefinition struct {
	Name string
	// Path is appended to the base URL; {name} placeholders are filled
	// from the Context a parent supplies.
	Path string
	// RecordsPath locates the record array, as a JSONPath of the form
	// $.a.b[*]
	RecordsPath string
	PrimaryKeys []string
	// ReplicationKey is empty for full-refresh streams.
	ReplicationKey string

	Parent string
	// IgnoreParentReplicationKey gives a child its own bookmark instead of
	// following its parent's.
	IgnoreParentReplicationKey bool

	// Params are sent with every request of the stream.
	Params     url.Values
	ParamsFunc ParamsFunc

	// ChildContext projects a record into its children's Context.
	ChildContext ChildContextFunc
	// PostProcess runs after the watermark filter.
	PostProcess PostProcessor
}

// QueryParams returns the query for the next request
func (d *StreamDefinition) QueryParams(sctx Context, token *ContinuationToken) url.Values {
	if d.ParamsFunc != nil {
		return d.ParamsFunc(sctx, token)
	}
	return BuildParams(d.Params, token)
}

// ReplicationMethod reports INCREMENTAL when a replication key is set
func (d *StreamDefinition) ReplicationMethod() string {
	if d.ReplicationKey != "" {
		return ReplicationIncremental
	}
	return ReplicationFullTable
}

// IsChild reports whether the stream runs only through a parent
func (d *StreamDefinition) IsChild() bool {
	return d.Parent != ""
}

// recordsSelector converts RecordsPath into a gjson path.
func (d *StreamDefinition) recordsSelector() (string, error) {
	p := d.RecordsPath
	if p == "" {
		p = DefaultRecordsPath
	}
	if !strings.HasPrefix(p, "$") || !strings.HasSuffix(p, "[*]") {
		return "", errors.Newf(errors.ErrorTypeConfig, "stream %s: unsupported records path %q", d.Name, d.RecordsPath)
	}
	inner := strings.TrimSuffix(strings.TrimPrefix(p, "$"), "[*]")
	inner = strings.TrimPrefix(inner, ".")
	if inner == "" {
		return "@this", nil
	}
	if strings.ContainsAny(inner, "[]*?") {
		return "", errors.Newf(errors.ErrorTypeConfig, "stream %s: unsupported records path %q", d.Name, d.RecordsPath)
	}
	return inner, nil
}

// Validate checks the definition in isolation
func (d *StreamDefinition) Validate() error {
	if d.Name == "" {
		return errors.New(errors.ErrorTypeConfig, "stream name is required")
	}
	if d.Path == "" {
		return errors.Newf(errors.ErrorTypeConfig, "stream %s: path is required", d.Name)
	}
	if len(d.PrimaryKeys) == 0 {
		return errors.Newf(errors.ErrorTypeConfig, "stream %s: primary key is required", d.Name)
	}
	for _, pk := range d.PrimaryKeys {
		if pk == "" {
			return errors.Newf(errors.ErrorTypeConfig, "stream %s: empty primary key field", d.Name)
		}
	}
	if d.Parent == "" && len(Placeholders(d.Path)) > 0 {
		return errors.Newf(errors.ErrorTypeConfig, "stream %s: path %s has placeholders but no parent", d.Name, d.Path)
	}
	_, err := d.recordsSelector()
	return err
}
