package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/filekeeper/internal/common"
	"github.com/dmitrijs2005/filekeeper/internal/dbx"
	"github.com/dmitrijs2005/filekeeper/internal/logging"
	"github.com/dmitrijs2005/filekeeper/internal/server/models"
	"github.com/dmitrijs2005/filekeeper/internal/server/objectstore"
	"github.com/dmitrijs2005/filekeeper/internal/server/repositories/repomanager"
)

// UploadInput is one file part of an upload request.
type UploadInput struct {
	OriginalName string
	MimeType     string
	Body         io.Reader
}

// Disposition selects the attachment name of a download.
type Disposition int

const (
	// AsStored names the attachment by the server-assigned filename.
	AsStored Disposition = iota
	// AsOriginal names the attachment by the name it was uploaded with.
	AsOriginal
)

// Download is an opened file ready to be streamed. Body must be closed.
type Download struct {
	File           *models.File
	Body           io.ReadCloser
	Size           int64
	ContentType    string
	AttachmentName string
}

// FileService keeps metadata rows and stored objects paired. Every operation
// takes the authenticated principal and enforces ownership itself.
type FileService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	store       objectstore.Store
	log         logging.Logger
	now         func() time.Time
}

// NewFileService constructs a FileService.
func NewFileService(db *sql.DB, m repomanager.RepositoryManager, store objectstore.Store, log logging.Logger) *FileService {
	return &FileService{
		db:          db,
		repomanager: m,
		store:       store,
		log:         log,
		now:         time.Now,
	}
}

// Upload stores the body under a fresh name and records it for owner. The
// extension is checked before anything is written.
func (s *FileService) Upload(ctx context.Context, owner *models.User, in UploadInput) (f *models.File, err error) {
	defer func() { observe("upload", err) }()

	if in.Body == nil || in.OriginalName == "" {
		return nil, fmt.Errorf("%w: no file uploaded", common.ErrBadRequest)
	}

	ext := objectstore.Extension(in.OriginalName)
	if !objectstore.AllowedExtension(ext) {
		return nil, common.ErrInvalidFileType
	}

	staged, err := s.store.Stage(ctx, in.Body)
	if err != nil {
		return nil, fmt.Errorf("error staging upload: %w", err)
	}

	obj, err := s.store.Promote(ctx, staged, ext)
	if err != nil {
		// the name is server generated, so a collision is never the caller's conflict
		return nil, fmt.Errorf("%w: error promoting upload: %w", common.ErrorInternal, err)
	}

	mimeType := in.MimeType
	if mimeType == "" {
		mimeType = objectstore.ContentType(in.OriginalName)
	}

	f = &models.File{
		Filename:     obj.Name,
		OwnerID:      owner.ID,
		OriginalName: in.OriginalName,
		Size:         staged.Size,
		UploadDate:   s.now().UTC(),
		MimeType:     mimeType,
		Path:         obj.Path,
	}

	if err := s.repomanager.Files(s.db).Create(ctx, f); err != nil {
		rmErr := s.store.Remove(context.WithoutCancel(ctx), obj.Path)
		compensated("upload", rmErr)
		if rmErr != nil {
			s.log.Error(ctx, "failed to remove object after metadata error", "path", obj.Path, "error", rmErr)
		}
		return nil, fmt.Errorf("%w: error saving file metadata: %w", common.ErrorInternal, err)
	}

	uploadedBytesTotal.Add(float64(f.Size))
	s.log.Info(ctx, "file uploaded", "filename", f.Filename, "owner", owner.ID, "size", f.Size)
	return f, nil
}

// List returns owner's files, oldest first. The result is never nil.
func (s *FileService) List(ctx context.Context, owner *models.User) (list []*models.File, err error) {
	defer func() { observe("list", err) }()

	list, err = s.repomanager.Files(s.db).ListByOwner(ctx, owner.ID)
	if err != nil {
		return nil, fmt.Errorf("error listing files: %w", err)
	}
	if list == nil {
		list = []*models.File{}
	}
	return list, nil
}

// Open authorises owner for filename and opens its content.
func (s *FileService) Open(ctx context.Context, owner *models.User, filename string, d Disposition) (dl *Download, err error) {
	defer func() { observe("download", err) }()

	if _, err := s.store.PathFor(filename); err != nil {
		return nil, common.ErrorNotFound
	}

	f, err := s.repomanager.Files(s.db).GetByFilename(ctx, filename)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error loading file: %w", err)
	}
	if f.OwnerID != owner.ID {
		return nil, common.ErrForbidden
	}

	body, size, err := s.store.Open(ctx, f.Path)
	if err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			s.log.Warn(ctx, "metadata row without object", "filename", f.Filename, "path", f.Path)
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error opening object: %w", err)
	}

	name := f.Filename
	if d == AsOriginal {
		name = f.OriginalName
	}

	return &Download{
		File:           f,
		Body:           body,
		Size:           size,
		ContentType:    objectstore.ContentType(f.Filename),
		AttachmentName: name,
	}, nil
}

// Rename renames owner's file and its object. The row stays locked for the
// whole operation; if the row update or commit fails the object is moved back.
func (s *FileService) Rename(ctx context.Context, owner *models.User, oldName, newName string) (f *models.File, err error) {
	defer func() { observe("rename", err) }()

	if oldName == "" || newName == "" {
		return nil, fmt.Errorf("%w: filename and newFilename are required", common.ErrBadRequest)
	}
	if _, err := s.store.PathFor(newName); err != nil {
		return nil, err
	}

	var moved *objectstore.Object

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Files(tx)

		row, err := repo.GetByFilenameForUpdate(ctx, oldName)
		if err != nil {
			return err
		}
		if row.OwnerID != owner.ID {
			return common.ErrForbidden
		}
		f = row
		if oldName == newName {
			return nil
		}

		if _, err := repo.GetByFilename(ctx, newName); err == nil {
			return &common.ConflictError{Field: "filename"}
		} else if !errors.Is(err, common.ErrorNotFound) {
			return err
		}

		obj, err := s.store.Rename(ctx, row.Path, newName)
		if err != nil {
			if errors.Is(err, objectstore.ErrNotFound) {
				s.log.Warn(ctx, "metadata row without object", "filename", row.Filename, "path", row.Path)
			}
			return err
		}
		moved = obj

		if err := repo.Rename(ctx, oldName, newName, obj.Path); err != nil {
			return err
		}

		f = &models.File{
			Filename:     newName,
			OwnerID:      row.OwnerID,
			OriginalName: row.OriginalName,
			Size:         row.Size,
			UploadDate:   row.UploadDate,
			MimeType:     row.MimeType,
			Path:         obj.Path,
		}
		return nil
	})
	if err != nil {
		if moved != nil {
			_, undoErr := s.store.Rename(context.WithoutCancel(ctx), moved.Path, oldName)
			compensated("rename", undoErr)
			if undoErr != nil {
				s.log.Error(ctx, "failed to move object back after rename error",
					"from", moved.Path, "to", oldName, "error", undoErr)
			}
		}
		return nil, mapTxError("rename", err)
	}

	s.log.Info(ctx, "file renamed", "from", oldName, "to", newName, "owner", owner.ID)
	return f, nil
}

// Delete removes owner's file. The object is parked under a hidden name
// until the row deletion commits, then removed; on failure it is put back.
func (s *FileService) Delete(ctx context.Context, owner *models.User, filename string) (err error) {
	defer func() { observe("delete", err) }()

	if filename == "" {
		return fmt.Errorf("%w: filename is required", common.ErrBadRequest)
	}

	var tomb *objectstore.Object

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Files(tx)

		row, err := repo.GetByFilenameForUpdate(ctx, filename)
		if err != nil {
			return err
		}
		if row.OwnerID != owner.ID {
			return common.ErrForbidden
		}

		tomb, err = s.store.Rename(ctx, row.Path, objectstore.TombstoneName())
		if err != nil {
			if !errors.Is(err, objectstore.ErrNotFound) {
				return err
			}
			s.log.Warn(ctx, "deleting metadata row without object", "filename", row.Filename, "path", row.Path)
			tomb = nil
		}

		return repo.Delete(ctx, filename)
	})
	if err != nil {
		if tomb != nil {
			_, undoErr := s.store.Rename(context.WithoutCancel(ctx), tomb.Path, filename)
			compensated("delete", undoErr)
			if undoErr != nil {
				s.log.Error(ctx, "failed to restore object after delete error",
					"from", tomb.Path, "to", filename, "error", undoErr)
			}
		}
		return mapTxError("delete", err)
	}

	if tomb != nil {
		if err := s.store.Remove(context.WithoutCancel(ctx), tomb.Path); err != nil {
			s.log.Error(ctx, "failed to remove deleted object", "path", tomb.Path, "error", err)
		}
	}

	s.log.Info(ctx, "file deleted", "filename", filename, "owner", owner.ID)
	return nil
}

// mapTxError keeps the classified errors callers branch on and wraps the rest.
func mapTxError(op string, err error) error {
	switch {
	case errors.Is(err, common.ErrorNotFound),
		errors.Is(err, common.ErrForbidden),
		errors.Is(err, common.ErrConflict),
		errors.Is(err, common.ErrBadRequest):
		return err
	default:
		return fmt.Errorf("error during %s: %w", op, err)
	}
}
