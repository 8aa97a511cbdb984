package source

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/eunmann/ste-extract/pkg/benchutil"
)

type fakeStreamer struct {
	objects map[string][]byte
	calls   []string
}

func (f *fakeStreamer) StreamObject(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	f.calls = append(f.calls, bucket+"/"+key)
	data, ok := f.objects[bucket+"/"+key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func sample() []byte {
	return benchutil.NewGenerator(benchutil.DefaultConfig(16)).Generate().Bytes()
}

func compress(t *testing.T, c Compression, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	var w io.WriteCloser
	switch c {
	case Gzip:
		w = gzip.NewWriter(&buf)
	case Zstd:
		zw, err := zstd.NewWriter(&buf)
		if err != nil {
			t.Fatal(err)
		}
		w = zw
	case LZ4:
		w = lz4.NewWriter(&buf)
	default:
		return data
	}
	if _, err := w.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func readAll(t *testing.T, in *Input) []byte {
	t.Helper()
	got, err := io.ReadAll(in)
	if err != nil {
		t.Fatalf("read input: %v", err)
	}
	if err := in.Close(); err != nil {
		t.Fatalf("close input: %v", err)
	}
	return got
}

func TestOpenLocal(t *testing.T) {
	data := sample()
	for _, mmap := range []bool{false, true} {
		path := benchutil.WriteFile(t, "model.ste", data)
		in, err := Open(context.Background(), path, Options{Mmap: mmap})
		if err != nil {
			t.Fatalf("Open(mmap=%v) failed: %v", mmap, err)
		}
		if in.Mapped() != mmap {
			t.Errorf("Mapped() = %v, want %v", in.Mapped(), mmap)
		}
		if in.Size() != int64(len(data)) {
			t.Errorf("Size() = %d, want %d", in.Size(), len(data))
		}
		if got := readAll(t, in); !bytes.Equal(got, data) {
			t.Errorf("mmap=%v: content mismatch", mmap)
		}
	}
}

func TestOpenCompressed(t *testing.T) {
	data := sample()
	tests := []struct {
		name string
		c    Compression
	}{
		{"model.ste.gz", Gzip},
		{"model.ste.zst", Zstd},
		{"model.ste.ZSTD", Zstd},
		{"model.ste.lz4", LZ4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := benchutil.WriteFile(t, tt.name, compress(t, tt.c, data))
			// Mmap is ignored for compressed inputs.
			in, err := Open(context.Background(), path, Options{Mmap: true})
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			if in.Compression() != tt.c {
				t.Errorf("Compression() = %q, want %q", in.Compression(), tt.c)
			}
			if in.Mapped() {
				t.Error("compressed input should not be mapped")
			}
			if got := readAll(t, in); !bytes.Equal(got, data) {
				t.Error("decompressed content mismatch")
			}
		})
	}
}

func TestOpenCorruptGzip(t *testing.T) {
	path := benchutil.WriteFile(t, "bad.ste.gz", []byte("not gzip"))
	if _, err := Open(context.Background(), path, Options{}); err == nil {
		t.Fatal("expected error for corrupt gzip header")
	}
}

func TestOpenMissing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.ste")
	for _, mmap := range []bool{false, true} {
		_, err := Open(context.Background(), missing, Options{Mmap: mmap})
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("mmap=%v: err = %v, want os.ErrNotExist", mmap, err)
		}
	}
}

func TestOpenS3(t *testing.T) {
	data := sample()
	fake := &fakeStreamer{objects: map[string][]byte{
		"bucket/runs/model.ste":     data,
		"bucket/runs/model.ste.zst": compress(t, Zstd, data),
	}}

	for _, uri := range []string{"s3://bucket/runs/model.ste", "s3://bucket/runs/model.ste.zst"} {
		in, err := Open(context.Background(), uri, Options{S3: fake})
		if err != nil {
			t.Fatalf("Open(%s) failed: %v", uri, err)
		}
		if in.Size() != -1 {
			t.Errorf("Size() = %d, want -1", in.Size())
		}
		if got := readAll(t, in); !bytes.Equal(got, data) {
			t.Errorf("%s: content mismatch", uri)
		}
	}
	if len(fake.calls) != 2 {
		t.Errorf("calls = %v", fake.calls)
	}

	if _, err := Open(context.Background(), "s3://bucket/missing", Options{S3: fake}); err == nil {
		t.Error("expected error for missing object")
	}
	if _, err := Open(context.Background(), "s3://bucket/", Options{S3: fake}); err == nil {
		t.Error("expected error for URI without key")
	}
}

func TestDetectCompression(t *testing.T) {
	tests := []struct {
		name     string
		want     Compression
		wantBase string
	}{
		{"model.ste", None, "model.ste"},
		{"model.ste.gz", Gzip, "model.ste"},
		{"model.ste.gzip", Gzip, "model.ste"},
		{"model.ste.zst", Zstd, "model.ste"},
		{"model.ste.lz4", LZ4, "model.ste"},
		{"MODEL.STE.GZ", Gzip, "MODEL.STE"},
		{".gz", None, ".gz"},
		{"s3://b/k.ste.zstd", Zstd, "s3://b/k.ste"},
	}
	for _, tt := range tests {
		got, base := DetectCompression(tt.name)
		if got != tt.want || base != tt.wantBase {
			t.Errorf("DetectCompression(%q) = (%q, %q), want (%q, %q)",
				tt.name, got, base, tt.want, tt.wantBase)
		}
	}
}

func TestDefaultOutputPaths(t *testing.T) {
	tests := []struct {
		input        string
		wantElements string
		wantNodes    string
	}{
		{"model.ste", "model.ste.elements", "model.ste.nodes"},
		{"runs/model.ste.gz", "runs/model.ste.elements", "runs/model.ste.nodes"},
		{"./runs//model.ste", "./runs//model.ste.elements", "./runs//model.ste.nodes"},
		{"../model.STE.ZST", "../model.STE.elements", "../model.STE.nodes"},
		{"s3://bucket/runs/model.ste", "model.ste.elements", "model.ste.nodes"},
		{"s3://bucket/runs/model.ste.lz4", "model.ste.elements", "model.ste.nodes"},
	}
	for _, tt := range tests {
		elements, nodes := DefaultOutputPaths(tt.input, ".elements", ".nodes")
		if elements != tt.wantElements || nodes != tt.wantNodes {
			t.Errorf("DefaultOutputPaths(%q) = (%q, %q), want (%q, %q)",
				tt.input, elements, nodes, tt.wantElements, tt.wantNodes)
		}
	}
}

func TestParseS3URI(t *testing.T) {
	tests := []struct {
		uri        string
		wantBucket string
		wantKey    string
		wantErr    bool
	}{
		{uri: "s3://my-bucket/path/to/model.ste", wantBucket: "my-bucket", wantKey: "path/to/model.ste"},
		{uri: "s3://bucket/key", wantBucket: "bucket", wantKey: "key"},
		{uri: "s3://bucket-only/", wantBucket: "bucket-only"},
		{uri: "s3://bucket", wantBucket: "bucket"},
		{uri: "https://bucket/key", wantErr: true},
		{uri: "/local/path", wantErr: true},
		{uri: "s3://", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, key, err := ParseS3URI(tt.uri)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if bucket != tt.wantBucket {
				t.Errorf("bucket = %q, want %q", bucket, tt.wantBucket)
			}
			if key != tt.wantKey {
				t.Errorf("key = %q, want %q", key, tt.wantKey)
			}
		})
	}
}

func TestMmapEmptyFile(t *testing.T) {
	path := benchutil.WriteFile(t, "empty.ste", nil)
	m, err := OpenMmap(path)
	if err != nil {
		t.Fatal(err)
	}
	if m.Size() != 0 || len(m.Data()) != 0 {
		t.Errorf("empty mapping: size %d, data %d", m.Size(), len(m.Data()))
	}
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if err := m.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
}
