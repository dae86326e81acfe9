package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// Backend defines the interface for persistence backends.
// Implementations can store to JSON files, SQLite, PostgreSQL, etc.
type Backend interface {
	// Save persists the given data.
	Save(data []byte) error

	// Load retrieves the stored data.
	Load() ([]byte, error)

	// Close releases any resources held by the backend.
	Close() error
}

// JSONBackend implements Backend for file-based JSON persistence.
type JSONBackend struct {
	FilePath string
}

// NewJSONBackend creates a new JSON file backend.
func NewJSONBackend(path string) *JSONBackend {
	return &JSONBackend{FilePath: path}
}

// Save writes data to the JSON file.
func (b *JSONBackend) Save(data []byte) error {
	if b.FilePath == "" {
		return nil
	}

	// Ensure directory exists
	dir := filepath.Dir(b.FilePath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}

	if err := os.WriteFile(b.FilePath, data, 0600); err != nil {
		return fmt.Errorf("write file: %w", err)
	}

	return nil
}

// Load reads data from the JSON file.
func (b *JSONBackend) Load() ([]byte, error) {
	if b.FilePath == "" {
		return nil, nil
	}

	data, err := os.ReadFile(b.FilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // File doesn't exist yet, that's OK
		}
		return nil, fmt.Errorf("read file: %w", err)
	}

	return data, nil
}

// Close is a no-op for JSON files.
func (b *JSONBackend) Close() error {
	return nil
}

// Ensure JSONBackend implements Backend
var _ Backend = (*JSONBackend)(nil)
