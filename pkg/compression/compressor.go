// Package compression wraps message output in a streaming compression
// codec.
//
// # Algorithm Selection
//
//   - Gzip: wide compatibility, the default for file output
//   - Zstd: best compression ratio, good speed
//   - Snappy/S2: best for speed, moderate compression
//   - LZ4: extremely fast, decent compression
//
// # Basic Usage
//
//	w, err := compression.NewWriter(file, compression.Gzip, compression.Default)
//	if err != nil {
//	    return err
//	}
//	defer w.Close() // flushes the codec, not the underlying file
package compression

import (
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Algorithm represents a compression algorithm.
type Algorithm string

const (
	// None represents no compression
	None Algorithm = "none"
	// Gzip represents gzip compression
	Gzip Algorithm = "gzip"
	// Snappy represents framed snappy compression
	Snappy Algorithm = "snappy"
	// LZ4 represents framed lz4 compression
	LZ4 Algorithm = "lz4"
	// Zstd represents zstandard compression
	Zstd Algorithm = "zstd"
	// S2 represents s2 compression (Snappy compatible)
	S2 Algorithm = "s2"
)

// Algorithms lists every supported algorithm
var Algorithms = []Algorithm{None, Gzip, Zstd, S2, Snappy, LZ4}

// Level represents compression level, controlling the trade-off between
// compression speed and compression ratio.
type Level int

const (
	// Fastest prioritizes speed over compression ratio.
	Fastest Level = 1
	// Default balances speed and compression.
	Default Level = 5
	// Better improves compression at cost of speed.
	Better Level = 7
	// Best maximizes compression ratio.
	Best Level = 9
)

// ParseAlgorithm parses an algorithm name. An empty name means None.
func ParseAlgorithm(name string) (Algorithm, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return None, nil
	}
	for _, a := range Algorithms {
		if string(a) == name {
			return a, nil
		}
	}
	return "", fmt.Errorf("unsupported compression algorithm: %s", name)
}

// ParseLevel parses fastest, default, better or best. An empty name means
// Default.
func ParseLevel(name string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "default":
		return Default, nil
	case "fastest":
		return Fastest, nil
	case "better":
		return Better, nil
	case "best":
		return Best, nil
	default:
		return 0, fmt.Errorf("unsupported compression level: %s", name)
	}
}

// Extension returns the conventional file suffix of the algorithm,
// including the dot. None has no suffix.
func (a Algorithm) Extension() string {
	switch a {
	case Gzip:
		return ".gz"
	case Zstd:
		return ".zst"
	case S2:
		return ".s2"
	case Snappy:
		return ".sz"
	case LZ4:
		return ".lz4"
	default:
		return ""
	}
}

// NewWriter returns a writer compressing into dst. Closing it flushes the
// codec's trailer but leaves dst open.
func NewWriter(dst io.Writer, algo Algorithm, level Level) (io.WriteCloser, error) {
	switch algo {
	case None, "":
		return nopWriteCloser{dst}, nil
	case Gzip:
		return gzip.NewWriterLevel(dst, mapGzipLevel(level))
	case Zstd:
		return zstd.NewWriter(dst, zstd.WithEncoderLevel(mapZstdLevel(level)))
	case S2:
		return s2.NewWriter(dst, mapS2Options(level)...), nil
	case Snappy:
		return snappy.NewBufferedWriter(dst), nil
	case LZ4:
		w := lz4.NewWriter(dst)
		if err := w.Apply(lz4.CompressionLevelOption(mapLZ4Level(level))); err != nil {
			return nil, err
		}
		return w, nil
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", algo)
	}
}

// NewReader returns a reader decompressing src.
func NewReader(src io.Reader, algo Algorithm) (io.ReadCloser, error) {
	switch algo {
	case None, "":
		return io.NopCloser(src), nil
	case Gzip:
		return gzip.NewReader(src)
	case Zstd:
		dec, err := zstd.NewReader(src)
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	case S2:
		return io.NopCloser(s2.NewReader(src)), nil
	case Snappy:
		return io.NopCloser(snappy.NewReader(src)), nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(src)), nil
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", algo)
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// Helper functions to map compression levels

func mapGzipLevel(level Level) int {
	switch level {
	case Fastest:
		return gzip.BestSpeed
	case Best:
		return gzip.BestCompression
	default:
		return gzip.DefaultCompression
	}
}

func mapLZ4Level(level Level) lz4.CompressionLevel {
	switch level {
	case Fastest:
		return lz4.Fast
	case Best:
		return lz4.Level9
	default:
		return lz4.Level5
	}
}

func mapZstdLevel(level Level) zstd.EncoderLevel {
	switch level {
	case Fastest:
		return zstd.SpeedFastest
	case Better:
		return zstd.SpeedBetterCompression
	case Best:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}

func mapS2Options(level Level) []s2.WriterOption {
	switch level {
	case Better:
		return []s2.WriterOption{s2.WriterBetterCompression()}
	case Best:
		return []s2.WriterOption{s2.WriterBestCompression()}
	default:
		return nil
	}
}
