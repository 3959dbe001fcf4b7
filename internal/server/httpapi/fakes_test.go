package httpapi

import (
	"context"
	"database/sql"
	"sort"
	"sync"

	"github.com/dmitrijs2005/filekeeper/internal/common"
	"github.com/dmitrijs2005/filekeeper/internal/dbx"
	"github.com/dmitrijs2005/filekeeper/internal/server/models"
	"github.com/dmitrijs2005/filekeeper/internal/server/repositories/files"
	"github.com/dmitrijs2005/filekeeper/internal/server/repositories/users"
)

// memStore backs both in-memory repositories. Transactions are not modelled;
// the tests run requests one at a time.
type memStore struct {
	mu     sync.Mutex
	nextID int64
	users  []*models.User
	files  map[string]*models.File
}

func newMemStore() *memStore {
	return &memStore{files: map[string]*models.File{}}
}

type memRepoManager struct{ s *memStore }

func (m memRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m memRepoManager) Users(dbx.DBTX) users.Repository              { return memUsers{m.s} }
func (m memRepoManager) Files(dbx.DBTX) files.Repository              { return memFiles{m.s} }

type memUsers struct{ s *memStore }

func (r memUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if existing.UserName == u.UserName {
			return nil, &common.ConflictError{Field: "username"}
		}
		if existing.Email == u.Email {
			return nil, &common.ConflictError{Field: "email"}
		}
	}
	r.s.nextID++
	cp := *u
	cp.ID = r.s.nextID
	r.s.users = append(r.s.users, &cp)
	out := cp
	return &out, nil
}

func (r memUsers) find(match func(*models.User) bool) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r memUsers) GetUserByLogin(_ context.Context, login string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.UserName == login })
}

func (r memUsers) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.ID == id })
}

func (r memUsers) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Email == email })
}

type memFiles struct{ s *memStore }

func (r memFiles) Create(_ context.Context, f *models.File) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.files[f.Filename]; ok {
		return &common.ConflictError{Field: "filename"}
	}
	cp := *f
	r.s.files[f.Filename] = &cp
	return nil
}

func (r memFiles) GetByFilename(_ context.Context, filename string) (*models.File, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	f, ok := r.s.files[filename]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *f
	return &cp, nil
}

func (r memFiles) GetByFilenameForUpdate(ctx context.Context, filename string) (*models.File, error) {
	return r.GetByFilename(ctx, filename)
}

func (r memFiles) ListByOwner(_ context.Context, ownerID int64) ([]*models.File, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*models.File, 0)
	for _, f := range r.s.files {
		if f.OwnerID == ownerID {
			cp := *f
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Filename < out[j].Filename })
	return out, nil
}

func (r memFiles) Rename(_ context.Context, oldFilename, newFilename, newPath string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	f, ok := r.s.files[oldFilename]
	if !ok {
		return common.ErrorNotFound
	}
	if _, taken := r.s.files[newFilename]; taken {
		return &common.ConflictError{Field: "filename"}
	}
	delete(r.s.files, oldFilename)
	f.Filename, f.Path = newFilename, newPath
	r.s.files[newFilename] = f
	return nil
}

func (r memFiles) Delete(_ context.Context, filename string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.files[filename]; !ok {
		return common.ErrorNotFound
	}
	delete(r.s.files, filename)
	return nil
}
