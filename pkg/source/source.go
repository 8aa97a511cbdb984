// Package source opens STE inputs: local files (streamed or memory-mapped),
// s3:// objects, and gzip, zstd or lz4 compressed variants of either.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
)

// S3Scheme prefixes object inputs.
const S3Scheme = "s3://"

// ObjectStreamer opens an object for reading. *S3Client implements it.
type ObjectStreamer interface {
	StreamObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// Options configures Open.
type Options struct {
	// Mmap maps local uncompressed files into memory instead of reading
	// them through a file descriptor.
	Mmap bool

	// S3 opens s3:// inputs. When nil, a client is built from the default
	// AWS configuration on first use.
	S3 ObjectStreamer
}

// Input is an opened STE stream. Read returns decompressed bytes.
type Input struct {
	name        string
	compression Compression
	size        int64
	mapped      bool
	r           io.Reader
	closers     []io.Closer
}

// Read implements io.Reader.
func (in *Input) Read(p []byte) (int, error) {
	return in.r.Read(p)
}

// Close releases every layer of the input, innermost last.
func (in *Input) Close() error {
	var errs []error
	for i := len(in.closers) - 1; i >= 0; i-- {
		if err := in.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	in.closers = nil
	return errors.Join(errs...)
}

// Name returns the input name as given to Open.
func (in *Input) Name() string {
	return in.name
}

// Compression returns the compression detected from the name.
func (in *Input) Compression() Compression {
	return in.compression
}

// Size returns the stored size in bytes, or -1 when it is unknown.
func (in *Input) Size() int64 {
	return in.size
}

// Mapped reports whether the input is memory-mapped.
func (in *Input) Mapped() bool {
	return in.mapped
}

// IsS3 reports whether name is an s3:// URI.
func IsS3(name string) bool {
	return strings.HasPrefix(name, S3Scheme)
}

// Open opens name for decoding. The caller must Close the returned Input.
func Open(ctx context.Context, name string, opts Options) (*Input, error) {
	compression, _ := DetectCompression(name)
	in := &Input{name: name, compression: compression, size: -1}

	if err := in.openRaw(ctx, name, opts); err != nil {
		return nil, err
	}

	dec, err := newDecompressor(compression, in.r)
	if err != nil {
		in.Close()
		return nil, fmt.Errorf("open %s reader for %s: %w", compression, name, err)
	}
	if dec != nil {
		in.r = dec
		in.closers = append(in.closers, dec)
	}
	return in, nil
}

func (in *Input) openRaw(ctx context.Context, name string, opts Options) error {
	if IsS3(name) {
		bucket, key, err := ParseS3URI(name)
		if err != nil {
			return err
		}
		if key == "" {
			return fmt.Errorf("invalid S3 URI %q: missing object key", name)
		}
		streamer := opts.S3
		if streamer == nil {
			client, err := NewS3Client(ctx)
			if err != nil {
				return err
			}
			streamer = client
		}
		body, err := streamer.StreamObject(ctx, bucket, key)
		if err != nil {
			return err
		}
		in.r = body
		in.closers = append(in.closers, body)
		return nil
	}

	if opts.Mmap && in.compression == None {
		m, err := OpenMmap(name)
		if err != nil {
			return fmt.Errorf("open input %s: %w", name, err)
		}
		in.r = m.Reader()
		in.size = m.Size()
		in.mapped = true
		in.closers = append(in.closers, m)
		return nil
	}

	f, err := os.Open(name)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	if info, err := f.Stat(); err == nil {
		in.size = info.Size()
	}
	in.r = f
	in.closers = append(in.closers, f)
	return nil
}

// DefaultOutputPaths derives the element and node table paths for an input.
// Local inputs get the suffixes appended to the name as given, after
// dropping a compression extension. Object inputs are written to the current
// directory under the object's base name.
func DefaultOutputPaths(name, elementsSuffix, nodesSuffix string) (elements, nodes string) {
	_, base := DetectCompression(name)
	if IsS3(base) {
		_, key, _ := ParseS3URI(base)
		base = path.Base(key)
		if base == "." || base == "/" {
			base = "ste"
		}
	}
	return base + elementsSuffix, base + nodesSuffix
}
