package reliability

import (
	"context"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mscan/enrich/internal/database"
)

type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte)}
}

func (f *fakeStore) Upload(ctx context.Context, key string, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return nil
}

func (f *fakeStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []ObjectInfo
	for key, data := range f.objects {
		out = append(out, ObjectInfo{Key: key, Size: int64(len(data))})
	}
	return out, nil
}

func (f *fakeStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeStore) seed(ages ...time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, age := range ages {
		key := archivePrefix + time.Now().Add(-age).Format(archiveTimeFormat) + ".tar.gz"
		f.objects[key] = []byte("archive")
	}
}

func newBackupFixture(t *testing.T) (*BackupService, *fakeStore) {
	t.Helper()

	dir := t.TempDir()
	db, err := database.New(database.Config{
		Path:    filepath.Join(dir, "edgar_cache.db"),
		Profile: database.ProfileCache,
		Name:    "edgar_cache",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE sample (id INTEGER PRIMARY KEY, v TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO sample (v) VALUES ('payload')`)
	require.NoError(t, err)

	store := newFakeStore()
	return NewBackupService(store, db, dir, zerolog.Nop()), store
}

func TestCreateAndUploadBackup(t *testing.T) {
	service, _ := newBackupFixture(t)

	require.NoError(t, service.CreateAndUploadBackup(context.Background()))

	backups, err := service.ListBackups(context.Background())
	require.NoError(t, err)
	require.Len(t, backups, 1)
	assert.Greater(t, backups[0].SizeBytes, int64(0))
}

func TestListBackupsSortedNewestFirst(t *testing.T) {
	service, store := newBackupFixture(t)
	store.seed(72*time.Hour, 24*time.Hour, 48*time.Hour)

	backups, err := service.ListBackups(context.Background())
	require.NoError(t, err)
	require.Len(t, backups, 3)
	assert.True(t, backups[0].Timestamp.After(backups[1].Timestamp))
	assert.True(t, backups[1].Timestamp.After(backups[2].Timestamp))
}

func TestListBackupsIgnoresForeignObjects(t *testing.T) {
	service, store := newBackupFixture(t)
	store.objects["unrelated.txt"] = []byte("x")
	store.objects[archivePrefix+"garbage.tar.gz"] = []byte("x")

	backups, err := service.ListBackups(context.Background())
	require.NoError(t, err)
	assert.Empty(t, backups)
}

func TestRotateKeepsMinimumBackups(t *testing.T) {
	service, store := newBackupFixture(t)
	// All ancient, but only three exist: nothing may be deleted
	store.seed(400*24*time.Hour, 300*24*time.Hour, 200*24*time.Hour)

	require.NoError(t, service.RotateOldBackups(context.Background(), 7))
	assert.Empty(t, store.deleted)
}

func TestRotateDeletesExpiredBeyondMinimum(t *testing.T) {
	service, store := newBackupFixture(t)
	store.seed(time.Hour, 2*time.Hour, 3*time.Hour, 30*24*time.Hour, 40*24*time.Hour)

	require.NoError(t, service.RotateOldBackups(context.Background(), 7))
	assert.Len(t, store.deleted, 2, "only the expired archives beyond the newest three go")
}

func TestRotateZeroRetentionKeepsEverything(t *testing.T) {
	service, store := newBackupFixture(t)
	store.seed(time.Hour, 30*24*time.Hour, 60*24*time.Hour, 90*24*time.Hour)

	require.NoError(t, service.RotateOldBackups(context.Background(), 0))
	assert.Empty(t, store.deleted)
}

func TestBackupJob(t *testing.T) {
	service, store := newBackupFixture(t)

	job := NewBackupJob(service, 7, zerolog.Nop())
	assert.Equal(t, "cloud_backup", job.Name())
	require.NoError(t, job.Run())

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Len(t, store.objects, 1)
}
