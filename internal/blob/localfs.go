package blob

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// UploadsDir holds everything served publicly under /uploads.
const UploadsDir = "uploads"

type LocalFS struct {
	Root string
	// BaseURL prefixes public addresses returned by URL.
	BaseURL string
}

func (l LocalFS) Put(relPath string, r io.Reader) (string, error) {
	clean := filepath.Clean(relPath)
	abs := filepath.Join(l.Root, clean)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", err
	}
	f, err := os.Create(abs)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return "", err
	}
	return clean, nil
}

func (l LocalFS) Open(relPath string) (*os.File, error) {
	clean := filepath.Clean(relPath)
	abs := filepath.Join(l.Root, clean)
	return os.Open(abs)
}

func (l LocalFS) Exists(relPath string) bool {
	clean := filepath.Clean(relPath)
	abs := filepath.Join(l.Root, clean)
	_, err := os.Stat(abs)
	return err == nil
}

func (l LocalFS) ReadAll(relPath string) ([]byte, error) {
	return os.ReadFile(filepath.Join(l.Root, filepath.Clean(relPath)))
}

// URL returns the public address of a key under UploadsDir.
func (l LocalFS) URL(relPath string) string {
	return strings.TrimRight(l.BaseURL, "/") + "/" + filepath.ToSlash(filepath.Clean(relPath))
}

// UploadKey is the key of a publicly served file.
func UploadKey(name string) string {
	return filepath.Join(UploadsDir, filepath.Base(name))
}

// WriteAsset stores data under uploads/<name>, replacing any previous
// asset with the same name, and returns its public address.
func (l LocalFS) WriteAsset(_ context.Context, name string, data []byte) (string, error) {
	key, err := l.Put(UploadKey(name), bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	return l.URL(key), nil
}
