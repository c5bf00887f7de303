package protocol

import (
	jsonpool "github.com/ajitpratap0/tap-returnless/pkg/json"
)

// Catalog is the discovery document listing every stream
type Catalog struct {
	Streams []CatalogEntry `json:"streams"`
}

// CatalogEntry describes one stream
type CatalogEntry struct {
	TapStreamID       string              `json:"tap_stream_id"`
	Stream            string              `json:"stream"`
	KeyProperties     []string            `json:"key_properties"`
	ReplicationKey    string              `json:"replication_key,omitempty"`
	ReplicationMethod string              `json:"replication_method"`
	Schema            jsonpool.RawMessage `json:"schema"`
	Metadata          []Metadata          `json:"metadata"`
}

// Metadata attaches properties to a breadcrumb. The empty breadcrumb
// addresses the stream itself.
type Metadata struct {
	Breadcrumb []string               `json:"breadcrumb"`
	Metadata   map[string]interface{} `json:"metadata"`
}

// StreamMetadata builds the stream-level metadata entry
func StreamMetadata(keyProperties []string, replicationKey, replicationMethod, parent string, selected bool) Metadata {
	md := map[string]interface{}{
		"inclusion":                 "available",
		"selected":                  selected,
		"table-key-properties":      keyProperties,
		"forced-replication-method": replicationMethod,
	}
	if replicationKey != "" {
		md["valid-replication-keys"] = []string{replicationKey}
	}
	if parent != "" {
		md["parent-tap-stream-id"] = parent
	}
	return Metadata{Breadcrumb: []string{}, Metadata: md}
}

// Stream returns the entry for a stream id
func (c *Catalog) Stream(id string) (*CatalogEntry, bool) {
	for i := range c.Streams {
		if c.Streams[i].TapStreamID == id {
			return &c.Streams[i], true
		}
	}
	return nil, false
}

// Marshal encodes the catalog for humans
func (c *Catalog) Marshal() ([]byte, error) {
	return jsonpool.MarshalIndent(c, "", "  ")
}
