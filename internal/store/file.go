package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	// fileDirPermissions is the permission mode for the document directory.
	fileDirPermissions = 0750

	// filePermissions is the permission mode for the document file.
	filePermissions = 0600
)

// FileBackend stores the document as one indented JSON file.
//
// Saves write a temporary file in the same directory and rename it over the
// target, so readers never observe a partial document.
type FileBackend struct {
	path string
}

// NewFileBackend returns a backend for the JSON file at path. The file is
// created on first save.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// Name implements Backend.
func (b *FileBackend) Name() string { return "file" }

// Path returns the document file path.
func (b *FileBackend) Path() string { return b.path }

// Load implements Backend. A missing file is an empty document.
func (b *FileBackend) Load(_ context.Context) (Collections, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Collections{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", b.path, err)
	}
	return DecodeDocument(data)
}

// Save implements Backend.
func (b *FileBackend) Save(ctx context.Context, c Collections) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := EncodeDocument(c)
	if err != nil {
		return err
	}

	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, fileDirPermissions); err != nil {
		return fmt.Errorf("creating document directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(b.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // Gone after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck // Already failing
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close() //nolint:errcheck // Already failing
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpName, filePermissions); err != nil {
		return fmt.Errorf("setting file permissions: %w", err)
	}

	if err := os.Rename(tmpName, b.path); err != nil {
		return fmt.Errorf("replacing %s: %w", b.path, err)
	}
	return nil
}

// HealthCheck implements Backend by confirming the directory is usable.
func (b *FileBackend) HealthCheck(_ context.Context) error {
	dir := filepath.Dir(b.path)
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("document directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("document directory %s is not a directory", dir)
	}
	return nil
}

// Close implements Backend.
func (b *FileBackend) Close() error { return nil }
