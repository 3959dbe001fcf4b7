package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalStore keeps objects as regular files in a single directory.
type LocalStore struct {
	root string
}

// NewLocalStore creates root (0750) if needed. Relative roots are resolved
// against the working directory once, so stored paths stay absolute.
func NewLocalStore(root string) (*LocalStore, error) {
	if root == "" {
		return nil, errors.New("uploads directory is empty")
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve uploads directory: %w", err)
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create uploads directory: %w", err)
	}
	return &LocalStore{root: root}, nil
}

// Root returns the uploads directory.
func (s *LocalStore) Root() string {
	return s.root
}

// Ping checks that the uploads directory is still a directory.
func (s *LocalStore) Ping(_ context.Context) error {
	fi, err := os.Stat(s.root)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return fmt.Errorf("%s is not a directory", s.root)
	}
	return nil
}

func (s *LocalStore) PathFor(name string) (string, error) {
	if err := ValidName(name); err != nil {
		return "", err
	}
	return filepath.Join(s.root, name), nil
}

func (s *LocalStore) Stage(ctx context.Context, r io.Reader) (_ *Staged, err error) {
	name := RandomName()
	path := filepath.Join(s.root, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return nil, fmt.Errorf("create staged file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(path)
		}
	}()

	n, err := io.Copy(f, ctxReader{ctx: ctx, r: r})
	if err != nil {
		return nil, fmt.Errorf("write staged file: %w", err)
	}
	if err = f.Sync(); err != nil {
		return nil, fmt.Errorf("sync staged file: %w", err)
	}
	if err = f.Close(); err != nil {
		return nil, fmt.Errorf("close staged file: %w", err)
	}

	return &Staged{Name: name, Path: path, Size: n}, nil
}

func (s *LocalStore) Promote(_ context.Context, staged *Staged, ext string) (*Object, error) {
	name := staged.Name + "." + ext
	if err := ValidName(name); err != nil {
		_ = os.Remove(staged.Path)
		return nil, err
	}

	obj, err := s.link(staged.Path, name)
	if err != nil {
		_ = os.Remove(staged.Path)
		return nil, err
	}
	return obj, nil
}

func (s *LocalStore) Open(_ context.Context, path string) (io.ReadCloser, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, mapNotExist(err)
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, err
	}
	if !fi.Mode().IsRegular() {
		_ = f.Close()
		return nil, 0, ErrNotFound
	}
	return f, fi.Size(), nil
}

func (s *LocalStore) Exists(_ context.Context, path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (s *LocalStore) Rename(_ context.Context, oldPath, newName string) (*Object, error) {
	if err := validInternalName(newName); err != nil {
		return nil, err
	}
	return s.link(oldPath, newName)
}

func (s *LocalStore) Remove(_ context.Context, path string) error {
	return mapNotExist(os.Remove(path))
}

// link moves src to name under root. os.Link fails when the target exists,
// which gives a rename that never overwrites.
func (s *LocalStore) link(src, name string) (*Object, error) {
	dst := filepath.Join(s.root, name)

	if err := os.Link(src, dst); err != nil {
		switch {
		case errors.Is(err, fs.ErrExist):
			return nil, ErrExists
		case errors.Is(err, fs.ErrNotExist):
			return nil, ErrNotFound
		default:
			return nil, fmt.Errorf("link object: %w", err)
		}
	}
	if err := os.Remove(src); err != nil {
		_ = os.Remove(dst)
		return nil, fmt.Errorf("unlink old object: %w", err)
	}

	return &Object{Name: name, Path: dst}, nil
}

func mapNotExist(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	return err
}
