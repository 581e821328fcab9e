package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaceify/spaceify/internal/config"
	"github.com/spaceify/spaceify/internal/storage"
	"github.com/spaceify/spaceify/internal/usage"
)

func TestOpenStore_EncryptedSQLite(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "spaceify.db")

	cfg := &config.Config{DBPath: dbPath, StoreKey: "correct horse"}
	store, err := openStore(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "k", []byte("secret value")))
	require.NoError(t, store.Close())

	raw, err := storage.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer raw.Close()
	stored, err := raw.Get(ctx, "k")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.False(t, bytes.Contains(stored, []byte("secret value")))

	reopened, err := openStore(ctx, cfg)
	require.NoError(t, err)
	defer reopened.Close()
	got, err := reopened.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("secret value"), got)
}

func TestOpenStore_PlainSQLite(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{DBPath: filepath.Join(t.TempDir(), "plain.db")}

	store, err := openStore(ctx, cfg)
	require.NoError(t, err)
	defer store.Close()

	tracker := usage.NewTracker(store)
	l, err := tracker.TrackLayoutGeneration(ctx, 100, "")
	require.NoError(t, err)
	assert.Equal(t, 1, l.LayoutGenerations)
}

func TestReadPhotos(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "room.png")
	// PNG signature is enough for content sniffing.
	require.NoError(t, os.WriteFile(path, []byte("\x89PNG\r\n\x1a\n0000"), 0o600))

	images, err := readPhotos([]string{path})
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, "room.png", images[0].Name)
	assert.Equal(t, "image/png", images[0].ContentType)

	_, err = readPhotos([]string{filepath.Join(dir, "missing.jpg")})
	assert.Error(t, err)
}

func TestFormatActionStats(t *testing.T) {
	assert.Equal(t, "3 used (Unlimited)", formatActionStats(usage.ActionStats{Used: 3, Limit: usage.Unlimited, Remaining: usage.Unlimited}))
	assert.Equal(t, "1/2 used, 1 left (50%)", formatActionStats(usage.ActionStats{Used: 1, Limit: 2, Remaining: 1, Percentage: 50}))
}
