// Package mmap memory-maps files read-only. On platforms without mmap
// support the file is read into memory instead; callers see the same API
// either way.
package mmap

import (
	"errors"
	"io"
	"os"
)

// File represents a memory-mapped (or fully loaded) read-only file.
type File struct {
	data   []byte
	f      *os.File
	mapped bool
}

// Open maps the file at path into memory as read-only.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	size := fi.Size()
	if size < 0 {
		f.Close()
		return nil, errors.New("mmap: negative file size")
	}
	if size == 0 {
		return &File{f: f}, nil
	}

	data, mapped, err := mapFile(f, int(size))
	if err != nil {
		f.Close()
		return nil, err
	}

	return &File{data: data, f: f, mapped: mapped}, nil
}

// Bytes returns the mapped content. The slice is valid until Close.
func (m *File) Bytes() []byte {
	return m.data
}

// ReadAt implements io.ReaderAt on the mapping.
func (m *File) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Close unmaps the memory and closes the underlying file.
func (m *File) Close() error {
	if m == nil {
		return nil
	}
	var err error
	if m.data != nil && m.mapped {
		err = unmap(m.data)
	}
	m.data = nil
	if m.f != nil {
		if closeErr := m.f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		m.f = nil
	}
	return err
}
