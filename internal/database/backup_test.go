package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"renthub/internal/config"
	"renthub/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotAndRestore(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "renthub.db")
	logger := zerolog.New(os.Stdout)

	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	user := &models.User{Name: "Alice", Email: "alice@example.com"}
	require.NoError(t, db.CreateUser(ctx, user))

	svc := NewBackupService(dbPath, config.BackupConfig{
		Enabled:     true,
		StoragePath: filepath.Join(dir, "backups"),
	}, &logger)

	target, err := svc.Snapshot()
	require.NoError(t, err)
	require.FileExists(t, target)

	// The snapshot opens as a valid database holding the same rows.
	restored, err := NewDB(target, &logger)
	require.NoError(t, err)
	defer restored.Close()

	users, err := restored.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "alice@example.com", users[0].Email)
}

func TestPruneRemovesExpired(t *testing.T) {
	dir := t.TempDir()
	storage := filepath.Join(dir, "backups")
	require.NoError(t, os.MkdirAll(storage, 0o755))
	logger := zerolog.New(os.Stdout)

	old := filepath.Join(storage, backupPrefix+"20200101T000000.db")
	require.NoError(t, os.WriteFile(old, []byte("stale"), 0o644))
	past := time.Now().AddDate(0, 0, -30)
	require.NoError(t, os.Chtimes(old, past, past))

	fresh := filepath.Join(storage, backupPrefix+"20260830T000000.db")
	require.NoError(t, os.WriteFile(fresh, []byte("fresh"), 0o644))

	unrelated := filepath.Join(storage, "notes.txt")
	require.NoError(t, os.WriteFile(unrelated, []byte("keep"), 0o644))
	require.NoError(t, os.Chtimes(unrelated, past, past))

	svc := NewBackupService(filepath.Join(dir, "renthub.db"), config.BackupConfig{
		Enabled:       true,
		StoragePath:   storage,
		RetentionDays: 7,
	}, &logger)

	svc.Prune()

	assert.NoFileExists(t, old)
	assert.FileExists(t, fresh)
	assert.FileExists(t, unrelated)
}

func TestPruneDisabledByRetention(t *testing.T) {
	dir := t.TempDir()
	logger := zerolog.New(os.Stdout)

	old := filepath.Join(dir, backupPrefix+"20200101T000000.db")
	require.NoError(t, os.WriteFile(old, []byte("stale"), 0o644))
	past := time.Now().AddDate(0, 0, -365)
	require.NoError(t, os.Chtimes(old, past, past))

	svc := NewBackupService(filepath.Join(dir, "renthub.db"), config.BackupConfig{
		Enabled:     true,
		StoragePath: dir,
	}, &logger)

	svc.Prune()
	assert.FileExists(t, old)
}
