// Package protocol implements the Singer message stream the tap writes:
// newline-delimited SCHEMA, RECORD and STATE messages, the discovery
// catalog and bookmark tracking.
package protocol

import (
	"time"

	jsonpool "github.com/ajitpratap0/tap-returnless/pkg/json"
	"github.com/ajitpratap0/tap-returnless/pkg/models"
)

// MessageType identifies a Singer message
type MessageType string

const (
	MessageTypeSchema MessageType = "SCHEMA"
	MessageTypeRecord MessageType = "RECORD"
	MessageTypeState  MessageType = "STATE"
)

// SchemaMessage announces the shape of a stream's records. It precedes
// every record of the stream.
type SchemaMessage struct {
	Type               MessageType         `json:"type"`
	Stream             string              `json:"stream"`
	Schema             jsonpool.RawMessage `json:"schema"`
	KeyProperties      []string            `json:"key_properties"`
	BookmarkProperties []string            `json:"bookmark_properties,omitempty"`
}

// RecordMessage carries one record
type RecordMessage struct {
	Type          MessageType    `json:"type"`
	Stream        string         `json:"stream"`
	Record        *models.Record `json:"record"`
	TimeExtracted time.Time      `json:"time_extracted"`
}

// StateMessage carries the bookmarks reached so far
type StateMessage struct {
	Type  MessageType `json:"type"`
	Value State       `json:"value"`
}
