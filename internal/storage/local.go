package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore writes images to a directory that the API serves under
// PublicPrefix.
type LocalStore struct {
	dir          string
	publicPrefix string
}

const DefaultPublicPrefix = "/uploads"

func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{dir: dir, publicPrefix: DefaultPublicPrefix}, nil
}

func (s *LocalStore) Dir() string { return s.dir }

func (s *LocalStore) Save(_ context.Context, name string, img Image) (string, error) {
	name = filepath.Base(name)

	if err := os.WriteFile(filepath.Join(s.dir, name), img.Data, 0o644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}

	return s.publicPrefix + "/" + name, nil
}

// Delete removes the file behind ref. Refs that do not point into this
// store and files that are already gone are ignored.
func (s *LocalStore) Delete(_ context.Context, ref string) error {
	if !strings.HasPrefix(ref, s.publicPrefix+"/") {
		return nil
	}

	name := filepath.Base(strings.TrimPrefix(ref, s.publicPrefix+"/"))
	if name == "." || name == "/" || name == "" {
		return nil
	}

	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete image: %w", err)
	}
	return nil
}
