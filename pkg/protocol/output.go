package protocol

import (
	"io"
	"os"

	"github.com/ajitpratap0/tap-returnless/pkg/compression"
	"github.com/ajitpratap0/tap-returnless/pkg/errors"
)

// Output is where the message stream goes. Closing it flushes any codec
// and closes the file; stdout is left open.
type Output struct {
	io.Writer
	closers []io.Closer
	path    string
}

// OpenOutput opens path for writing. An empty path or "-" selects stdout,
// which is never compressed.
func OpenOutput(path, algorithm, level string) (*Output, error) {
	if path == "" || path == "-" {
		return &Output{Writer: os.Stdout, path: "-"}, nil
	}

	algo, err := compression.ParseAlgorithm(algorithm)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid output compression")
	}
	lvl, err := compression.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid output compression level")
	}

	f, err := os.Create(path) //nolint:gosec // G304: path comes from the operator
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeFile, "failed to create output file %s", path)
	}

	cw, err := compression.NewWriter(f, algo, lvl)
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create compressor")
	}
	return &Output{Writer: cw, closers: []io.Closer{cw, f}, path: path}, nil
}

// Path returns the output path, "-" for stdout
func (o *Output) Path() string {
	return o.path
}

// Close closes the codec and then the file
func (o *Output) Close() error {
	var first error
	for _, c := range o.closers {
		if err := c.Close(); err != nil && first == nil {
			first = errors.Wrap(err, errors.ErrorTypeFile, "failed to close output")
		}
	}
	o.closers = nil
	return first
}
