// Package storage persists artifact bytes.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// Storage holds artifact bytes at opaque locations. Locations are only
// meaningful together with a registry entry.
type Storage interface {
	// Save stores a file and returns its location.
	Save(filename string, data []byte) (string, error)

	// Get retrieves a file by location.
	Get(location string) ([]byte, error)
}

// LocalStorage implements Storage on the local filesystem.
type LocalStorage struct {
	basePath string
}

func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	return &LocalStorage{basePath: basePath}, nil
}

func (l *LocalStorage) Save(filename string, data []byte) (string, error) {
	path := filepath.Join(l.basePath, filename)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return filename, nil
}

func (l *LocalStorage) Get(location string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(l.basePath, location))
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}
