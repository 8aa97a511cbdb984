package source

import (
	"bytes"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// MmapFile is a read-only memory-mapped file.
type MmapFile struct {
	path string
	data []byte
	size int64
}

// OpenMmap opens a file and maps it into memory. Empty files are not
// mapped and read as empty.
func OpenMmap(path string) (*MmapFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}

	size := info.Size()
	if size == 0 {
		return &MmapFile{path: path}, nil
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap: %w", err)
	}
	// Records are consumed front to back exactly once.
	_ = unix.Madvise(data, unix.MADV_SEQUENTIAL)

	return &MmapFile{
		path: path,
		data: data,
		size: size,
	}, nil
}

// Close unmaps the file. It is safe to call more than once.
func (m *MmapFile) Close() error {
	if m.data == nil {
		return nil
	}
	data := m.data
	m.data = nil
	if err := unix.Munmap(data); err != nil {
		return fmt.Errorf("munmap: %w", err)
	}
	return nil
}

// Data returns the mapped bytes. They are invalid after Close.
func (m *MmapFile) Data() []byte {
	return m.data
}

// Size returns the file size.
func (m *MmapFile) Size() int64 {
	return m.size
}

// Reader returns a reader over the mapped bytes.
func (m *MmapFile) Reader() *bytes.Reader {
	return bytes.NewReader(m.data)
}
