package files

import (
	"context"

	"github.com/dmitrijs2005/filekeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, file *models.File) error
	GetByFilename(ctx context.Context, filename string) (*models.File, error)
	GetByFilenameForUpdate(ctx context.Context, filename string) (*models.File, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]*models.File, error)
	Rename(ctx context.Context, oldFilename, newFilename, newPath string) error
	Delete(ctx context.Context, filename string) error
}
