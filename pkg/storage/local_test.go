package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocal(t *testing.T) (*LocalStorage, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "v1", "xgboost"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "v1", "xgboost", "model.json"), []byte(`{"trees":[]}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "v1", "encoders.json"), []byte(`{}`), 0o644))

	store, err := NewLocalStorage(dir)
	require.NoError(t, err)
	return store, dir
}

// Verifies that a missing artifact is reported as ErrNotFound so optional
// artifacts can be skipped.
func TestReadFile_MissingKey(t *testing.T) {
	store, _ := newLocal(t)

	data, err := ReadFile(context.Background(), store, JoinKey("v1", "scaler.json"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "v1/scaler.json")
	assert.Nil(t, data)
}

func TestReadFile_Existing(t *testing.T) {
	store, _ := newLocal(t)

	data, err := ReadFile(context.Background(), store, JoinKey("v1", "xgboost", "model.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"trees":[]}`, string(data))
}

func TestLocalStorage_DownloadAndInfo(t *testing.T) {
	store, _ := newLocal(t)
	ctx := context.Background()

	_, err := store.Download(ctx, "v1/neural/model.json")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.GetFileInfo(ctx, "v1/neural/model.json")
	assert.ErrorIs(t, err, ErrNotFound)

	info, err := store.GetFileInfo(ctx, "v1/encoders.json")
	require.NoError(t, err)
	assert.Equal(t, int64(2), info.Size)
	assert.Equal(t, "application/json", info.ContentType)

	exists, err := store.FileExists(ctx, "v1/encoders.json")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.FileExists(ctx, "v2/encoders.json")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLocalStorage_ListFiles(t *testing.T) {
	store, _ := newLocal(t)

	files, err := store.ListFiles(context.Background(), "v1/xgboost")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "v1/xgboost/model.json", files[0].Key)
}

func TestNewLocalStorage_RejectsFile(t *testing.T) {
	_, dir := newLocal(t)

	_, err := NewLocalStorage(filepath.Join(dir, "v1", "encoders.json"))
	assert.Error(t, err)

	_, err = NewLocalStorage(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestJoinKey(t *testing.T) {
	assert.Equal(t, "models/v1/scaler.json", JoinKey("models", "v1/", "scaler.json"))
	assert.Equal(t, "scaler.json", JoinKey("", "scaler.json"))
}
