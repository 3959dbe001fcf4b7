// Package objectstore holds the bytes of uploaded files. A Store names every
// object itself; callers only choose the name on rename.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/filekeeper/internal/common"
	"github.com/google/uuid"
)

var (
	ErrNotFound    = fmt.Errorf("object %w", common.ErrorNotFound)
	ErrExists      = fmt.Errorf("object %w", common.ErrConflict)
	ErrInvalidName = fmt.Errorf("%w: invalid filename", common.ErrBadRequest)
)

// Staged is an uploaded body that has not been given its final name yet.
type Staged struct {
	Name string
	Path string
	Size int64
}

// Object is a stored object under its final name.
type Object struct {
	Name string
	Path string
}

type Store interface {
	// Stage writes r under a fresh random name without an extension. On any
	// error, including ctx cancellation, nothing is left behind.
	Stage(ctx context.Context, r io.Reader) (*Staged, error)
	// Promote gives a staged object its final name <staged name>.<ext>. An
	// existing target is never overwritten: ErrExists is returned and the
	// staged object is removed.
	Promote(ctx context.Context, staged *Staged, ext string) (*Object, error)
	// Open returns the content and size of the object at path.
	Open(ctx context.Context, path string) (io.ReadCloser, int64, error)
	Exists(ctx context.Context, path string) (bool, error)
	// Rename moves the object at oldPath to newName without clobbering.
	Rename(ctx context.Context, oldPath, newName string) (*Object, error)
	Remove(ctx context.Context, path string) error
	// PathFor composes the path of name, rejecting unsafe names.
	PathFor(name string) (string, error)
}

// Pinger is implemented by stores that can report whether their backing
// storage is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ValidName rejects names that could escape the store root or refer to
// hidden objects.
func ValidName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.HasPrefix(name, ".") ||
		strings.ContainsAny(name, "/\\\x00") {
		return ErrInvalidName
	}
	return nil
}

// validInternalName is ValidName without the leading dot rule, so stores can
// address their own hidden objects.
func validInternalName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "/\\\x00") {
		return ErrInvalidName
	}
	return nil
}

// RandomName returns 32 hex characters from a v4 UUID.
func RandomName() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// TombstoneName is a hidden name used to park an object while its metadata
// row is being deleted.
func TombstoneName() string {
	return ".deleted-" + RandomName()
}

// ctxReader stops reading once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
