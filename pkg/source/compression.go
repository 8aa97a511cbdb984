package source

import (
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies the container an STE stream is wrapped in.
type Compression string

// Supported compressions.
const (
	None Compression = "none"
	Gzip Compression = "gzip"
	Zstd Compression = "zstd"
	LZ4  Compression = "lz4"
)

var extensions = []struct {
	ext         string
	compression Compression
}{
	{".gz", Gzip},
	{".gzip", Gzip},
	{".zst", Zstd},
	{".zstd", Zstd},
	{".lz4", LZ4},
}

// DetectCompression returns the compression implied by the extension of
// name and name without that extension. Matching is case-insensitive.
func DetectCompression(name string) (Compression, string) {
	lower := strings.ToLower(name)
	for _, e := range extensions {
		if strings.HasSuffix(lower, e.ext) && len(name) > len(e.ext) {
			return e.compression, name[:len(name)-len(e.ext)]
		}
	}
	return None, name
}

// newDecompressor wraps r for c. It returns nil for None.
func newDecompressor(c Compression, r io.Reader) (io.ReadCloser, error) {
	switch c {
	case None:
		return nil, nil
	case Gzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zr, nil
	case Zstd:
		dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	default:
		return nil, fmt.Errorf("unsupported compression %q", c)
	}
}
