// Package filestore persists small collections as JSON documents on disk.
// It backs the flat-file storage mode of the user and post repositories.
package filestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// JSONFile guards a single JSON document. Update holds the lock across
// read-modify-write, so callers get check-then-write atomicity within one
// process.
type JSONFile[T any] struct {
	mu   sync.Mutex
	path string
}

func NewJSONFile[T any](path string) (*JSONFile[T], error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &JSONFile[T]{path: path}, nil
}

func (f *JSONFile[T]) Path() string {
	return f.path
}

// Read returns the current document, or the zero value when the file does
// not exist yet.
func (f *JSONFile[T]) Read() (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.read()
}

// Update loads the document, applies fn and writes the result back. Nothing
// is written when fn returns an error.
func (f *JSONFile[T]) Update(fn func(doc *T) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return err
	}
	if err := fn(&doc); err != nil {
		return err
	}
	return f.write(doc)
}

func (f *JSONFile[T]) read() (T, error) {
	var doc T

	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return doc, nil
		}
		return doc, fmt.Errorf("read %s: %w", f.path, err)
	}
	if len(data) == 0 {
		return doc, nil
	}

	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("parse %s: %w", f.path, err)
	}
	return doc, nil
}

// write replaces the file via a temp file and rename so readers never see a
// partially written document.
func (f *JSONFile[T]) write(doc T) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", f.path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", f.path, err)
	}
	return nil
}
