package upload

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Source is something that can be uploaded.
type Source interface {
	Name() string
	Size() int64 // -1 if unknown
	Open() (io.ReadCloser, error)
}

type fileSource struct {
	path string
	name string
	size int64
}

// FileSource adapts a local file. The size is read now; a file that changes
// before upload is sent as it is when opened.
func FileSource(path string) (Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	return &fileSource{path: path, name: filepath.Base(path), size: info.Size()}, nil
}

func (f *fileSource) Name() string { return f.name }
func (f *fileSource) Size() int64  { return f.size }

func (f *fileSource) Open() (io.ReadCloser, error) {
	return os.Open(f.path)
}

type readerSource struct {
	name string
	size int64
	r    io.Reader
}

// ReaderSource wraps a reader, e.g. stdin. It can be opened once.
func ReaderSource(name string, size int64, r io.Reader) Source {
	return &readerSource{name: name, size: size, r: r}
}

func (s *readerSource) Name() string { return s.name }
func (s *readerSource) Size() int64  { return s.size }

func (s *readerSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(s.r), nil
}
