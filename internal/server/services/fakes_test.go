package services

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/filekeeper/internal/common"
	"github.com/dmitrijs2005/filekeeper/internal/dbx"
	"github.com/dmitrijs2005/filekeeper/internal/server/models"
	"github.com/dmitrijs2005/filekeeper/internal/server/objectstore"
	"github.com/dmitrijs2005/filekeeper/internal/server/repositories/files"
	"github.com/dmitrijs2005/filekeeper/internal/server/repositories/users"
)

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

type fakeUsersRepo struct {
	mu     sync.Mutex
	nextID int64
	byName map[string]*models.User

	getErr    error
	createErr error
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{byName: map[string]*models.User{}}
}

func (f *fakeUsersRepo) Create(_ context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	for _, existing := range f.byName {
		if existing.UserName == u.UserName {
			return nil, &common.ConflictError{Field: "username"}
		}
		if existing.Email == u.Email {
			return nil, &common.ConflictError{Field: "email"}
		}
	}
	f.nextID++
	cp := *u
	cp.ID = f.nextID
	f.byName[cp.UserName] = &cp
	out := cp
	return &out, nil
}

func (f *fakeUsersRepo) find(match func(*models.User) bool) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.byName {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) GetUserByLogin(_ context.Context, login string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.UserName == login })
}

func (f *fakeUsersRepo) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.ID == id })
}

func (f *fakeUsersRepo) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.Email == email })
}

type fakeFilesRepo struct {
	mu   sync.Mutex
	rows map[string]*models.File

	createErr error
	renameErr error
	deleteErr error
	listErr   error
}

func newFakeFilesRepo() *fakeFilesRepo {
	return &fakeFilesRepo{rows: map[string]*models.File{}}
}

func (f *fakeFilesRepo) Create(_ context.Context, file *models.File) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.rows[file.Filename]; ok {
		return &common.ConflictError{Field: "filename"}
	}
	cp := *file
	f.rows[file.Filename] = &cp
	return nil
}

func (f *fakeFilesRepo) GetByFilename(_ context.Context, filename string) (*models.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[filename]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *row
	return &cp, nil
}

func (f *fakeFilesRepo) GetByFilenameForUpdate(ctx context.Context, filename string) (*models.File, error) {
	return f.GetByFilename(ctx, filename)
}

func (f *fakeFilesRepo) ListByOwner(_ context.Context, ownerID int64) ([]*models.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]*models.File, 0)
	for _, row := range f.rows {
		if row.OwnerID == ownerID {
			cp := *row
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UploadDate.Equal(out[j].UploadDate) {
			return out[i].UploadDate.Before(out[j].UploadDate)
		}
		return out[i].Filename < out[j].Filename
	})
	return out, nil
}

func (f *fakeFilesRepo) Rename(_ context.Context, oldFilename, newFilename, newPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.renameErr != nil {
		return f.renameErr
	}
	row, ok := f.rows[oldFilename]
	if !ok {
		return common.ErrorNotFound
	}
	if _, taken := f.rows[newFilename]; taken {
		return &common.ConflictError{Field: "filename"}
	}
	delete(f.rows, oldFilename)
	row.Filename = newFilename
	row.Path = newPath
	f.rows[newFilename] = row
	return nil
}

func (f *fakeFilesRepo) Delete(_ context.Context, filename string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.rows[filename]; !ok {
		return common.ErrorNotFound
	}
	delete(f.rows, filename)
	return nil
}

type fakeRepoManager struct {
	users *fakeUsersRepo
	files *fakeFilesRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{users: newFakeUsersRepo(), files: newFakeFilesRepo()}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository              { return m.users }
func (m *fakeRepoManager) Files(dbx.DBTX) files.Repository              { return m.files }

// faultyStore injects failures into a real store.
type faultyStore struct {
	objectstore.Store
	promoteErr error
	renameErr  error
	removeErr  error
	removed    []string
}

func (s *faultyStore) Promote(ctx context.Context, staged *objectstore.Staged, ext string) (*objectstore.Object, error) {
	if s.promoteErr != nil {
		_ = s.Store.Remove(ctx, staged.Path)
		return nil, s.promoteErr
	}
	return s.Store.Promote(ctx, staged, ext)
}

func (s *faultyStore) Rename(ctx context.Context, oldPath, newName string) (*objectstore.Object, error) {
	if s.renameErr != nil {
		return nil, s.renameErr
	}
	return s.Store.Rename(ctx, oldPath, newName)
}

func (s *faultyStore) Remove(ctx context.Context, path string) error {
	s.removed = append(s.removed, path)
	if s.removeErr != nil {
		return s.removeErr
	}
	return s.Store.Remove(ctx, path)
}
