package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaurav-shinde-07/clueso-ai/internal/blob"
	"github.com/gaurav-shinde-07/clueso-ai/internal/config"
	"github.com/gaurav-shinde-07/clueso-ai/internal/logger"
	"github.com/gaurav-shinde-07/clueso-ai/internal/model"
	"github.com/gaurav-shinde-07/clueso-ai/internal/store"
)

func TestBaseURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
		want string
	}{
		{"port only", config.Config{Addr: ":3001"}, "http://localhost:3001"},
		{"host and port", config.Config{Addr: "0.0.0.0:8080"}, "http://0.0.0.0:8080"},
		{"explicit", config.Config{Addr: ":3001", BaseURL: "https://guides.example.com"}, "https://guides.example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, baseURL(tt.cfg))
		})
	}
}

func TestReadJSONFile(t *testing.T) {
	dir := t.TempDir()

	var meta model.Metadata
	require.NoError(t, readJSONFile("", &meta))
	assert.Zero(t, meta)

	good := filepath.Join(dir, "metadata.json")
	require.NoError(t, os.WriteFile(good, []byte(`{"duration":12.5}`), 0o644))
	require.NoError(t, readJSONFile(good, &meta))
	assert.Equal(t, 12.5, meta.Duration)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"duration":`), 0o644))
	assert.Error(t, readJSONFile(bad, &meta))

	assert.Error(t, readJSONFile(filepath.Join(dir, "missing.json"), &meta))
}

func newTestApp(t *testing.T) *app {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "recordings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return &app{
		cfg:   config.Config{ThumbnailPending: "https://placehold.co/thumb"},
		log:   logger.Nop(),
		store: st,
		blobs: blob.LocalFS{Root: dir, BaseURL: "http://localhost:3001"},
	}
}

func TestIngestFileSniffsExtensionlessMedia(t *testing.T) {
	a := newTestApp(t)
	src := t.TempDir()

	media := append([]byte{0x1A, 0x45, 0xDF, 0xA3}, []byte("webm-payload")...)
	mediaPath := filepath.Join(src, "session")
	require.NoError(t, os.WriteFile(mediaPath, media, 0o644))
	eventsPath := filepath.Join(src, "events.json")
	require.NoError(t, os.WriteFile(eventsPath, []byte(`[{"type":"click","timestamp":1500}]`), 0o644))
	metadataPath := filepath.Join(src, "metadata.json")
	require.NoError(t, os.WriteFile(metadataPath, []byte(`{"duration":30}`), 0o644))

	ctx := context.Background()
	id, err := a.ingestFile(ctx, mediaPath, eventsPath, metadataPath)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	rec, err := a.store.GetRecording(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "cli", rec.UserID)
	assert.Equal(t, "video/webm", rec.MimeType)
	assert.Equal(t, filepath.Join("uploads", id), rec.MediaKey)
	assert.Equal(t, "http://localhost:3001/uploads/"+id, rec.MediaURL)
	assert.Equal(t, "https://placehold.co/thumb", rec.ThumbnailURL)
	require.Len(t, rec.Events, 1)
	assert.Equal(t, "click", rec.Events[0].Type)
	assert.Equal(t, 30.0, rec.Metadata.Duration)
	assert.Equal(t, model.PhaseExtracting, rec.Phase)
	assert.Equal(t, model.StatusProcessing, rec.Status())

	stored, err := a.blobs.ReadAll(rec.MediaKey)
	require.NoError(t, err)
	assert.Equal(t, media, stored)
}

func TestIngestFileKeepsExtension(t *testing.T) {
	a := newTestApp(t)
	mediaPath := filepath.Join(t.TempDir(), "demo.MP4")
	require.NoError(t, os.WriteFile(mediaPath, []byte("mp4"), 0o644))

	id, err := a.ingestFile(context.Background(), mediaPath, "", "")
	require.NoError(t, err)

	rec, err := a.store.GetRecording(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("uploads", id+".mp4"), rec.MediaKey)
	assert.Empty(t, rec.Events)
}

func TestIngestFileRejectsBadEvents(t *testing.T) {
	a := newTestApp(t)
	src := t.TempDir()
	mediaPath := filepath.Join(src, "demo.webm")
	require.NoError(t, os.WriteFile(mediaPath, []byte("webm"), 0o644))
	eventsPath := filepath.Join(src, "events.json")
	require.NoError(t, os.WriteFile(eventsPath, []byte(`not json`), 0o644))

	_, err := a.ingestFile(context.Background(), mediaPath, eventsPath, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "events")

	recs, err := a.store.ListRecordings(context.Background(), nil, 10)
	require.NoError(t, err)
	assert.Empty(t, recs)
}
