package imagegen

import (
	"context"
	"os"
	"path/filepath"
)

// Blob stores finished images and returns the path clients can serve.
type Blob interface {
	Upload(ctx context.Context, data []byte, destPath string) (string, error)
}

// FSBlob writes blobs under a local media directory.
type FSBlob struct {
	root string
}

func NewFSBlob(root string) *FSBlob { return &FSBlob{root: root} }

func (b *FSBlob) Upload(_ context.Context, data []byte, destPath string) (string, error) {
	full := filepath.Join(b.root, destPath)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", err
	}
	return destPath, nil
}
