package repomanager

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/filekeeper/internal/common"
	"github.com/dmitrijs2005/filekeeper/internal/dbx"
	"github.com/dmitrijs2005/filekeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB starts PostgreSQL in a container and applies migrations.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("skipping integration test: TEST_INTEGRATION is not set")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("filekeeper_test"),
		postgres.WithUsername("filekeeper"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, NewPostgresRepositoryManager().RunMigrations(ctx, db))
	return db
}

func TestIntegration_UsersAndFiles(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	m := NewPostgresRepositoryManager()

	alice, err := m.Users(db).Create(ctx, &models.User{UserName: "alice", Email: "alice@example.com", PasswordHash: "h"})
	require.NoError(t, err)
	assert.NotZero(t, alice.ID)

	_, err = m.Users(db).Create(ctx, &models.User{UserName: "alice", Email: "other@example.com", PasswordHash: "h"})
	var ce *common.ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "username", ce.Field)

	_, err = m.Users(db).Create(ctx, &models.User{UserName: "bob", Email: "alice@example.com", PasswordHash: "h"})
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "email", ce.Field)

	byEmail, err := m.Users(db).GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, byEmail.ID)

	f := &models.File{
		Filename: "a.png", OwnerID: alice.ID, OriginalName: "cat.png", Size: 3,
		UploadDate: time.Now().UTC().Truncate(time.Microsecond), MimeType: "image/png", Path: "uploads/a.png",
	}
	require.NoError(t, m.Files(db).Create(ctx, f))
	assert.ErrorIs(t, m.Files(db).Create(ctx, f), common.ErrConflict)

	list, err := m.Files(db).ListByOwner(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, f, list[0])

	require.NoError(t, m.Files(db).Rename(ctx, "a.png", "b.png", "uploads/b.png"))
	_, err = m.Files(db).GetByFilename(ctx, "a.png")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	require.NoError(t, m.Files(db).Delete(ctx, "b.png"))
	assert.ErrorIs(t, m.Files(db).Delete(ctx, "b.png"), common.ErrorNotFound)
}

func TestIntegration_ConcurrentDeleteSerialises(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	m := NewPostgresRepositoryManager()

	u, err := m.Users(db).Create(ctx, &models.User{UserName: "carol", Email: "c@example.com", PasswordHash: "h"})
	require.NoError(t, err)
	require.NoError(t, m.Files(db).Create(ctx, &models.File{
		Filename: "x.txt", OwnerID: u.ID, OriginalName: "x.txt", UploadDate: time.Now(), MimeType: "text/plain", Path: "uploads/x.txt",
	}))

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
				repo := m.Files(tx)
				if _, err := repo.GetByFilenameForUpdate(ctx, "x.txt"); err != nil {
					return err
				}
				return repo.Delete(ctx, "x.txt")
			})
		}(i)
	}
	wg.Wait()

	var ok, notFound int
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		case assert.ErrorIs(t, err, common.ErrorNotFound):
			notFound++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, notFound)
}
