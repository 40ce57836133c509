package capture

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const export = "Sampling Rate:1MSa/s\nData points:3\n0.0\n5.0\n0.0\n"

func compress(t *testing.T, ext string, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	var w io.WriteCloser
	switch ext {
	case ".gz":
		w = gzip.NewWriter(&buf)
	case ".zst":
		zw, err := zstd.NewWriter(&buf)
		require.NoError(t, err)
		w = zw
	case ".br":
		w = brotli.NewWriter(&buf)
	case ".sz":
		w = snappy.NewBufferedWriter(&buf)
	case ".lz4":
		w = lz4.NewWriter(&buf)
	default:
		return data
	}
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestOpenFile(t *testing.T) {
	dir := t.TempDir()
	for _, ext := range []string{".txt", ".gz", ".zst", ".br", ".sz", ".lz4"} {
		t.Run(ext, func(t *testing.T) {
			name := filepath.Join(dir, "capture"+ext)
			require.NoError(t, os.WriteFile(name, compress(t, ext, []byte(export)), 0644))

			rc, err := Open(context.Background(), name, Options{})
			require.NoError(t, err)
			defer rc.Close()

			data, err := io.ReadAll(rc)
			require.NoError(t, err)
			assert.Equal(t, export, string(data))
		})
	}
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "absent.txt"), Options{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestOpenCorruptGzip(t *testing.T) {
	name := filepath.Join(t.TempDir(), "capture.gz")
	require.NoError(t, os.WriteFile(name, []byte("not gzip"), 0644))
	_, err := Open(context.Background(), name, Options{})
	assert.Error(t, err)
}

type fakeS3 struct {
	objects map[string][]byte
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestOpenS3(t *testing.T) {
	client := &fakeS3{objects: map[string][]byte{
		"scope/runs/a.txt":     []byte(export),
		"scope/runs/b.txt.zst": compress(t, ".zst", []byte(export)),
	}}
	opts := Options{S3Client: client}

	for _, key := range []string{"runs/a.txt", "runs/b.txt.zst"} {
		rc, err := Open(context.Background(), "s3://scope/"+key, opts)
		require.NoError(t, err, key)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, export, string(data), key)
		require.NoError(t, rc.Close())
	}

	_, err := Open(context.Background(), "s3://scope/missing.txt", opts)
	assert.ErrorContains(t, err, "s3://scope/missing.txt")
}

func TestParseS3URL(t *testing.T) {
	bucket, key, err := ParseS3URL("s3://scope/2024/run.txt")
	require.NoError(t, err)
	assert.Equal(t, "scope", bucket)
	assert.Equal(t, "2024/run.txt", key)

	for _, bad := range []string{"s3://", "s3://bucket", "s3://bucket/", "http://x/y"} {
		_, _, err := ParseS3URL(bad)
		assert.Error(t, err, bad)
	}
}

// pollingPort hands out chunks and then reports no data, like a port with a read timeout
type pollingPort struct {
	chunks [][]byte
	closed bool
}

func (p *pollingPort) Read(b []byte) (int, error) {
	if len(p.chunks) == 0 {
		return 0, nil
	}
	n := copy(b, p.chunks[0])
	p.chunks = p.chunks[1:]
	return n, nil
}

func (p *pollingPort) Close() error {
	p.closed = true
	return nil
}

func TestIdleReader(t *testing.T) {
	port := &pollingPort{chunks: [][]byte{[]byte("Data points:1\n"), []byte("0.5\n")}}
	r := NewIdleReader(context.Background(), port, 2*time.Second)
	clock := time.Unix(0, 0)
	r.now = func() time.Time {
		clock = clock.Add(500 * time.Millisecond)
		return clock
	}

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "Data points:1\n0.5\n", string(data))

	require.NoError(t, r.Close())
	assert.True(t, port.closed)
}

func TestIdleReaderCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := NewIdleReader(ctx, &pollingPort{}, time.Second)

	_, err := r.Read(make([]byte, 16))
	assert.ErrorIs(t, err, context.Canceled)
}
