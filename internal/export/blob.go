package export

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/pierrec/lz4/v4"
	"gocloud.dev/blob"

	// bucket URL schemes accepted by OpenBlobSink
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"

	"github.com/getsentry/callprof/internal/frame"
	"github.com/getsentry/callprof/internal/metrics"
)

const writeTimeout = 30 * time.Second

// BlobSink uploads the delimited tables to a bucket.
type BlobSink struct {
	Bucket *blob.Bucket
	// Prefix is prepended to every object key.
	Prefix string
	// Compress writes lz4 framed objects with a .lz4 suffix.
	Compress bool
}

// OpenBlobSink opens a bucket URL such as file:///tmp/profiles, mem:// or
// gs://bucket.
func OpenBlobSink(ctx context.Context, bucketURL, prefix string, compress bool) (*BlobSink, error) {
	b, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("export: open bucket %q: %w", bucketURL, err)
	}
	return &BlobSink{Bucket: b, Prefix: prefix, Compress: compress}, nil
}

// Key returns the object key a table named name is written to.
func (s *BlobSink) Key(name string) string {
	key := path.Join(s.Prefix, name)
	if s.Compress {
		key += ".lz4"
	}
	return key
}

func (s *BlobSink) WriteStatistics(ctx context.Context, name string, units []metrics.Unit) error {
	return s.write(ctx, name, func(w io.Writer) error {
		return WriteStatistics(w, units)
	})
}

func (s *BlobSink) WriteFrames(ctx context.Context, name string, frames []frame.Frame, sessionStart, frequency int64) error {
	return s.write(ctx, name, func(w io.Writer) error {
		return WriteFrames(w, frames, sessionStart, frequency)
	})
}

func (s *BlobSink) Close() error {
	return s.Bucket.Close()
}

func (s *BlobSink) write(ctx context.Context, name string, encode func(io.Writer) error) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	key := s.Key(name)
	contentType := "text/csv"
	if s.Compress {
		contentType = "application/x-lz4"
	}
	bw, err := s.Bucket.NewWriter(ctx, key, &blob.WriterOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("export: %s: %w", key, err)
	}
	var w io.Writer = bw
	var zw *lz4.Writer
	if s.Compress {
		zw = lz4.NewWriter(bw)
		_ = zw.Apply(lz4.CompressionLevelOption(lz4.Level9))
		w = zw
	}
	err = encode(w)
	if err == nil && zw != nil {
		err = zw.Close()
	}
	if err != nil {
		cancel()
		_ = bw.Close()
		return fmt.Errorf("export: %s: %w", key, err)
	}
	if err := bw.Close(); err != nil {
		return fmt.Errorf("export: %s: %w", key, err)
	}
	return nil
}
