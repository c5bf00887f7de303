package protocol

import (
	"math/big"
	"time"

	"github.com/ajitpratap0/tap-returnless/pkg/models"
)

// State is the value of a STATE message
type State map[string]interface{}

// Bookmark is the progress of one stream
type Bookmark struct {
	ReplicationKey      string      `json:"replication_key"`
	ReplicationKeyValue interface{} `json:"replication_key_value"`
}

// StateTracker keeps the highest replication key value seen per stream.
type StateTracker struct {
	bookmarks map[string]*Bookmark
}

// NewStateTracker creates an empty tracker
func NewStateTracker() *StateTracker {
	return &StateTracker{bookmarks: make(map[string]*Bookmark)}
}

// Observe records the replication key value of one emitted record. Null
// and non-scalar values are ignored.
func (t *StateTracker) Observe(stream, key string, value interface{}) {
	if key == "" || value == nil {
		return
	}
	if _, ok := models.ScalarString(value); !ok {
		return
	}

	current, ok := t.bookmarks[stream]
	if !ok || current.ReplicationKey != key {
		t.bookmarks[stream] = &Bookmark{ReplicationKey: key, ReplicationKeyValue: value}
		return
	}
	if compareValues(value, current.ReplicationKeyValue) > 0 {
		current.ReplicationKeyValue = value
	}
}

// Bookmark returns the bookmark of a stream
func (t *StateTracker) Bookmark(stream string) (Bookmark, bool) {
	b, ok := t.bookmarks[stream]
	if !ok {
		return Bookmark{}, false
	}
	return *b, true
}

// State returns {"bookmarks": {stream: bookmark}}
func (t *StateTracker) State() State {
	bookmarks := make(map[string]interface{}, len(t.bookmarks))
	for stream, b := range t.bookmarks {
		bookmarks[stream] = *b
	}
	return State{"bookmarks": bookmarks}
}

// compareValues orders numbers numerically, zoned timestamps
// chronologically and everything else by its text.
func compareValues(a, b interface{}) int {
	as, _ := models.ScalarString(a)
	bs, _ := models.ScalarString(b)

	if _, aStr := a.(string); !aStr {
		if _, bStr := b.(string); !bStr {
			af, aok := new(big.Float).SetString(as)
			bf, bok := new(big.Float).SetString(bs)
			if aok && bok {
				return af.Cmp(bf)
			}
		}
	}

	at, aerr := time.Parse(time.RFC3339Nano, as)
	bt, berr := time.Parse(time.RFC3339Nano, bs)
	if aerr == nil && berr == nil {
		return at.Compare(bt)
	}

	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}
