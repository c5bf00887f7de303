package core

import (
	"context"
	"io"

	"github.com/ajitpratap0/tap-returnless/pkg/config"
	"github.com/ajitpratap0/tap-returnless/pkg/protocol"
)

// ConnectorType represents the type of connector
type ConnectorType string

const (
	ConnectorTypeSource ConnectorType = "source"
)

// StreamInfo summarizes one stream for listings
type StreamInfo struct {
	Name              string
	Path              string
	Parent            string
	PrimaryKeys       []string
	ReplicationKey    string
	ReplicationMethod string
}

// Source is the interface that all source connectors must implement
type Source interface {
	Name() string
	Version() string
	Type() ConnectorType

	// Initialize validates the configuration and prepares the API client.
	// It must be called before Discover or Sync.
	Initialize(ctx context.Context, config *config.TapConfig) error

	// Streams lists every stream in catalog order
	Streams() []StreamInfo

	// Discover returns the catalog of every stream with its schema
	Discover(ctx context.Context) (*protocol.Catalog, error)

	// Sync extracts the selected streams and writes Singer messages to w.
	// The first fatal error aborts the sync.
	Sync(ctx context.Context, w io.Writer) error

	Close(ctx context.Context) error
}
