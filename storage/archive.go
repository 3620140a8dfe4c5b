package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileArchiver writes archived result pages into a local directory.
type FileArchiver struct {
	dir string
}

func NewFileArchiver(dir string) (*FileArchiver, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	return &FileArchiver{dir: dir}, nil
}

func (a *FileArchiver) Archive(ctx context.Context, name string, html []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := filepath.Join(a.dir, filepath.Base(name))
	if err := os.WriteFile(path, html, 0644); err != nil {
		return fmt.Errorf("write archive %s: %w", path, err)
	}
	return nil
}
