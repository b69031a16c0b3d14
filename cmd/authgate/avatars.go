package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// diskAvatarStorage writes avatar uploads under a local directory and
// serves them back through a static route.
type diskAvatarStorage struct {
	dir     string
	baseURL string
}

func newDiskAvatarStorage(dir, baseURL string) (*diskAvatarStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &diskAvatarStorage{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

func (s *diskAvatarStorage) Save(ctx context.Context, filename string, content io.Reader) (string, error) {
	// Uploaded names are attacker controlled, keep only the base name.
	filename = filepath.Base(filename)

	f, err := os.Create(filepath.Join(s.dir, filename))
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(f, content); err != nil {
		return "", err
	}

	return s.baseURL + "/" + filename, nil
}
