// Package capture opens the byte streams holding oscilloscope exports: local
// files, stdin, S3 objects and a scope attached to a serial port. Compressed
// files are decoded by extension.
package capture

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4"
	"go.uber.org/zap"
)

// Options configures how sources are opened
type Options struct {
	S3Region      string        // Region for s3:// sources
	S3Endpoint    string        // Custom endpoint, e.g. MinIO
	S3PathStyle   bool          // Path-style addressing for emulators
	S3AccessKey   string        // Static credentials, default chain when empty
	S3SecretKey   string        // Static credentials secret
	SerialBaud    int           // Baud rate for serial: sources
	SerialTimeout time.Duration // Idle time that ends a serial transfer
	Logger        *zap.Logger

	// S3Client replaces the client built from the S3 fields
	S3Client ObjectGetter
}

// Open returns a reader for source, which is "-" for stdin, s3://bucket/key,
// serial:<port> or a file path. The caller must close the reader.
func Open(ctx context.Context, source string, opts Options) (io.ReadCloser, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	switch {
	case source == "-":
		opts.Logger.Debug("reading capture from stdin")
		return io.NopCloser(os.Stdin), nil

	case strings.HasPrefix(source, "s3://"):
		bucket, key, err := ParseS3URL(source)
		if err != nil {
			return nil, err
		}
		body, err := openS3(ctx, bucket, key, opts)
		if err != nil {
			return nil, err
		}
		return Decompress(body, key)

	case strings.HasPrefix(source, "serial:"):
		port := strings.TrimPrefix(source, "serial:")
		return OpenSerial(ctx, port, opts.SerialBaud, opts.SerialTimeout, opts.Logger)
	}

	opts.Logger.Debug("reading capture from file", zap.String("path", source))
	file, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture: %w", err)
	}
	return Decompress(file, source)
}

// Decompress wraps rc in a decoder chosen by the extension of name.
// Unknown extensions pass through unchanged.
func Decompress(rc io.ReadCloser, name string) (io.ReadCloser, error) {
	var r io.Reader
	var closeDecoder func()

	switch strings.ToLower(path.Ext(name)) {
	case ".gz":
		gz, err := gzip.NewReader(rc)
		if err != nil {
			rc.Close()
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		r, closeDecoder = gz, func() { gz.Close() }
	case ".zst":
		zr, err := zstd.NewReader(rc)
		if err != nil {
			rc.Close()
			return nil, fmt.Errorf("failed to open zstd stream: %w", err)
		}
		r, closeDecoder = zr, zr.Close
	case ".br":
		r = brotli.NewReader(rc)
	case ".sz":
		r = snappy.NewReader(rc)
	case ".lz4":
		r = lz4.NewReader(rc)
	default:
		return rc, nil
	}
	return &decodedReader{Reader: r, underlying: rc, closeDecoder: closeDecoder}, nil
}

type decodedReader struct {
	io.Reader
	underlying   io.Closer
	closeDecoder func()
}

func (d *decodedReader) Close() error {
	if d.closeDecoder != nil {
		d.closeDecoder()
	}
	return d.underlying.Close()
}
