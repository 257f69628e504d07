// Package storage provides the byte-addressed persistence primitive the
// parameter store writes its image into. On the target this is the
// EEPROM-emulation sector of the flash; on a host it is a plain file or
// an in-memory buffer for tests.
package storage

import (
	"errors"
	"os"
)

// Flash is a byte-addressed get/put/commit store. Writes are staged and
// only durable after Commit, matching EEPROM-emulation semantics.
type Flash interface {
	Read(offset int, buf []byte) error
	Write(offset int, buf []byte) error
	Commit() error
}

var errOutOfRange = errors.New("storage: access out of range")

// MemFlash is an in-memory Flash, used for tests and for running the
// controller without persistence.
type MemFlash struct {
	data []byte
}

// NewMemFlash creates a MemFlash of the given size.
func NewMemFlash(size int) *MemFlash {
	return &MemFlash{data: make([]byte, size)}
}

func (m *MemFlash) Read(offset int, buf []byte) error {
	if offset < 0 || offset+len(buf) > len(m.data) {
		return errOutOfRange
	}
	copy(buf, m.data[offset:])
	return nil
}

func (m *MemFlash) Write(offset int, buf []byte) error {
	if offset < 0 || offset+len(buf) > len(m.data) {
		return errOutOfRange
	}
	copy(m.data[offset:], buf)
	return nil
}

func (m *MemFlash) Commit() error { return nil }

// FileFlash is a file-backed Flash for host builds of the controller.
// The whole image is held in memory and rewritten on Commit.
type FileFlash struct {
	path string
	data []byte
}

// NewFileFlash opens (or creates) a file-backed Flash of the given size.
// An existing shorter file is padded with zeroes.
func NewFileFlash(path string, size int) (*FileFlash, error) {
	data := make([]byte, size)
	existing, err := os.ReadFile(path)
	if err == nil {
		copy(data, existing)
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	return &FileFlash{path: path, data: data}, nil
}

func (f *FileFlash) Read(offset int, buf []byte) error {
	if offset < 0 || offset+len(buf) > len(f.data) {
		return errOutOfRange
	}
	copy(buf, f.data[offset:])
	return nil
}

func (f *FileFlash) Write(offset int, buf []byte) error {
	if offset < 0 || offset+len(buf) > len(f.data) {
		return errOutOfRange
	}
	copy(f.data[offset:], buf)
	return nil
}

func (f *FileFlash) Commit() error {
	return os.WriteFile(f.path, f.data, 0o644)
}
