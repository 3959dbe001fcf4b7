// Package files provides the PostgreSQL-backed metadata store for uploaded
// files. Queries are not filtered by owner; authorisation is the caller's job.
package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/filekeeper/internal/common"
	"github.com/dmitrijs2005/filekeeper/internal/dbx"
	"github.com/dmitrijs2005/filekeeper/internal/server/models"
)

const selectColumns = `SELECT filename, userid, originalname, size, uploaddate, mimetype, path FROM files`

// PostgresRepository implements file metadata storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a file row. A taken filename yields a *common.ConflictError.
func (r *PostgresRepository) Create(ctx context.Context, file *models.File) error {
	query := `
		INSERT INTO files (userid, filename, originalname, size, uploaddate, mimetype, path)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		file.OwnerID, file.Filename, file.OriginalName, file.Size, file.UploadDate.UTC(), file.MimeType, file.Path)
	if err != nil {
		if _, ok := dbx.UniqueViolation(err); ok {
			return &common.ConflictError{Field: "filename"}
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// GetByFilename returns the row for filename or common.ErrorNotFound.
func (r *PostgresRepository) GetByFilename(ctx context.Context, filename string) (*models.File, error) {
	return r.getOne(ctx, selectColumns+` WHERE filename = $1`, filename)
}

// GetByFilenameForUpdate is GetByFilename with a row lock held until the
// surrounding transaction ends. It must be called on a *sql.Tx.
func (r *PostgresRepository) GetByFilenameForUpdate(ctx context.Context, filename string) (*models.File, error) {
	return r.getOne(ctx, selectColumns+` WHERE filename = $1 FOR UPDATE`, filename)
}

// ListByOwner returns all rows owned by ownerID, oldest first. The result is
// never nil.
func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID int64) ([]*models.File, error) {
	query := selectColumns + ` WHERE userid = $1 ORDER BY uploaddate, filename`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to select files: %w", err)
	}
	defer rows.Close()

	result := make([]*models.File, 0)
	for rows.Next() {
		var item models.File
		if err := scanFile(rows, &item); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Rename changes the filename and path of a row. Exactly one row must be
// affected; zero means common.ErrorNotFound.
func (r *PostgresRepository) Rename(ctx context.Context, oldFilename, newFilename, newPath string) error {
	query := `UPDATE files SET filename = $1, path = $2 WHERE filename = $3`
	res, err := r.db.ExecContext(ctx, query, newFilename, newPath, oldFilename)
	if err != nil {
		if _, ok := dbx.UniqueViolation(err); ok {
			return &common.ConflictError{Field: "filename"}
		}
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return expectOne(res)
}

// Delete removes the row for filename.
func (r *PostgresRepository) Delete(ctx context.Context, filename string) error {
	query := `DELETE FROM files WHERE filename = $1`
	res, err := r.db.ExecContext(ctx, query, filename)
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return expectOne(res)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, filename string) (*models.File, error) {
	result := &models.File{}
	if err := scanFile(r.db.QueryRowContext(ctx, query, filename), result); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to select file: %w", err)
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFile(s scanner, f *models.File) error {
	if err := s.Scan(&f.Filename, &f.OwnerID, &f.OriginalName, &f.Size, &f.UploadDate, &f.MimeType, &f.Path); err != nil {
		return err
	}
	f.UploadDate = f.UploadDate.UTC()
	return nil
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrorNotFound
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}
