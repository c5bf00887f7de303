// Package registry maps connector names to factories so the command line
// can build a source by name.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/tap-returnless/pkg/connector/core"
	"github.com/ajitpratap0/tap-returnless/pkg/errors"
	"github.com/ajitpratap0/tap-returnless/pkg/logger"
)

// Registry manages connector registration and instantiation
type Registry struct {
	sources map[string]SourceFactory
	info    map[string]*ConnectorInfo
	mu      sync.RWMutex
	logger  *zap.Logger
}

// SourceFactory creates an uninitialized source connector.
type SourceFactory func() (core.Source, error)

// ConnectorInfo provides information about a connector
type ConnectorInfo struct {
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	Description  string   `json:"description"`
	Version      string   `json:"version"`
	Capabilities []string `json:"capabilities"`
}

// Global registry instance
var globalRegistry = NewRegistry()

// NewRegistry creates a new connector registry
func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[string]SourceFactory),
		info:    make(map[string]*ConnectorInfo),
		logger:  logger.Get().With(zap.String("component", "connector_registry")),
	}
}

// RegisterSource registers a source connector factory
func (r *Registry) RegisterSource(info *ConnectorInfo, factory SourceFactory) error {
	if info == nil || info.Name == "" {
		return errors.New(errors.ErrorTypeConfig, "connector info with a name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sources[info.Name]; exists {
		return errors.New(errors.ErrorTypeConfig, fmt.Sprintf("source connector %s already registered", info.Name))
	}

	r.sources[info.Name] = factory
	r.info[info.Name] = info
	r.logger.Debug("source connector registered", zap.String("name", info.Name))
	return nil
}

// CreateSource creates a source connector instance
func (r *Registry) CreateSource(name string) (core.Source, error) {
	r.mu.RLock()
	factory, exists := r.sources[name]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.New(errors.ErrorTypeConfig, fmt.Sprintf("source connector %s not found", name))
	}

	source, err := factory()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, fmt.Sprintf("failed to create source connector %s", name))
	}

	return source, nil
}

// Info returns the metadata of a registered connector
func (r *Registry) Info(name string) (*ConnectorInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, exists := r.info[name]
	if !exists {
		return nil, errors.New(errors.ErrorTypeConfig, fmt.Sprintf("connector %s not found in catalog", name))
	}
	return info, nil
}

// ListSources returns the registered source connectors, sorted
func (r *Registry) ListSources() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sources := make([]string, 0, len(r.sources))
	for name := range r.sources {
		sources = append(sources, name)
	}
	sort.Strings(sources)
	return sources
}

// HasSource checks if a source connector is registered
func (r *Registry) HasSource(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.sources[name]
	return exists
}

// Global registry functions

// RegisterSource registers a source connector in the global registry
func RegisterSource(info *ConnectorInfo, factory SourceFactory) error {
	return globalRegistry.RegisterSource(info, factory)
}

// CreateSource creates a source connector from the global registry
func CreateSource(name string) (core.Source, error) {
	return globalRegistry.CreateSource(name)
}

// GetConnectorInfo retrieves connector information from the global registry
func GetConnectorInfo(name string) (*ConnectorInfo, error) {
	return globalRegistry.Info(name)
}

// ListSources lists available source connectors
func ListSources() []string {
	return globalRegistry.ListSources()
}

// HasSource checks the global registry for a source connector
func HasSource(name string) bool {
	return globalRegistry.HasSource(name)
}
