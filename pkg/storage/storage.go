package storage

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/afero"
)

// PartSuffix is appended by torrent clients to files still being downloaded.
const PartSuffix = ".part"

var ErrMissingData = errors.New("missing data")

// Source is an opened local file backing a torrent entry.
type Source struct {
	afero.File
	// Path is the name actually opened, it ends with PartSuffix on fallback.
	Path string
	Size int64
}

type Storage struct {
	fs afero.Fs
}

func NewStorage(fs afero.Fs) *Storage {
	return &Storage{fs: fs}
}

// Open opens name for reading, falling back to name+PartSuffix when name does not exist.
// Any condition that leaves no readable regular file is reported as ErrMissingData.
func (s *Storage) Open(name string) (*Source, error) {
	path, fInfo, err := s.stat(name)
	if err != nil {
		return nil, err
	}
	if !fInfo.Mode().IsRegular() {
		return nil, fmt.Errorf("storage: %s is not a regular file: %w", path, ErrMissingData)
	}
	fd, err := s.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("storage: unable to open %s: %v: %w", path, err, ErrMissingData)
	}
	return &Source{File: fd, Path: path, Size: fInfo.Size()}, nil
}

func (s *Storage) stat(name string) (string, os.FileInfo, error) {
	fInfo, err := s.fs.Stat(name)
	if err == nil {
		return name, fInfo, nil
	}
	if !os.IsNotExist(err) {
		return "", nil, fmt.Errorf("storage: unable to get file stat: %v: %w", err, ErrMissingData)
	}
	partName := name + PartSuffix
	fInfo, err = s.fs.Stat(partName)
	if err == nil {
		return partName, fInfo, nil
	}
	if os.IsNotExist(err) {
		return "", nil, fmt.Errorf("storage: neither %s nor %s exists: %w", name, partName, ErrMissingData)
	}
	return "", nil, fmt.Errorf("storage: unable to get file stat: %v: %w", err, ErrMissingData)
}
