package protocol

import (
	"bufio"
	"io"
	"time"

	gojson "github.com/goccy/go-json"

	"github.com/ajitpratap0/tap-returnless/pkg/errors"
	jsonpool "github.com/ajitpratap0/tap-returnless/pkg/json"
	"github.com/ajitpratap0/tap-returnless/pkg/models"
)

// Writer encodes messages one per line. It is not safe for concurrent use.
type Writer struct {
	buf *bufio.Writer
	enc *gojson.Encoder
	now func() time.Time

	counts map[MessageType]int64
}

// NewWriter creates a writer over w
func NewWriter(w io.Writer) *Writer {
	buf := bufio.NewWriterSize(w, 64*1024)
	return &Writer{
		buf:    buf,
		enc:    jsonpool.NewEncoder(buf),
		now:    time.Now,
		counts: make(map[MessageType]int64),
	}
}

// WriteSchema writes a SCHEMA message
func (w *Writer) WriteSchema(stream string, schema []byte, keyProperties, bookmarkProperties []string) error {
	if keyProperties == nil {
		keyProperties = []string{}
	}
	return w.write(MessageTypeSchema, &SchemaMessage{
		Type:               MessageTypeSchema,
		Stream:             stream,
		Schema:             jsonpool.RawMessage(schema),
		KeyProperties:      keyProperties,
		BookmarkProperties: bookmarkProperties,
	})
}

// WriteRecord writes a RECORD message stamped with the current UTC time
func (w *Writer) WriteRecord(stream string, rec *models.Record) error {
	return w.write(MessageTypeRecord, &RecordMessage{
		Type:          MessageTypeRecord,
		Stream:        stream,
		Record:        rec,
		TimeExtracted: w.now().UTC().Truncate(time.Microsecond),
	})
}

// WriteState writes a STATE message and flushes, so a consumer never sees
// a state ahead of the records it covers.
func (w *Writer) WriteState(state State) error {
	if state == nil {
		state = State{}
	}
	if err := w.write(MessageTypeState, &StateMessage{Type: MessageTypeState, Value: state}); err != nil {
		return err
	}
	return w.Flush()
}

func (w *Writer) write(t MessageType, msg interface{}) error {
	if err := w.enc.Encode(msg); err != nil {
		return errors.Wrapf(err, errors.ErrorTypeFile, "failed to write %s message", t)
	}
	w.counts[t]++
	return nil
}

// Flush writes buffered messages to the underlying writer
func (w *Writer) Flush() error {
	if err := w.buf.Flush(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to flush messages")
	}
	return nil
}

// Count returns how many messages of type t were written
func (w *Writer) Count(t MessageType) int64 {
	return w.counts[t]
}
