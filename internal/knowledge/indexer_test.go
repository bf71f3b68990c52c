package knowledge

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaurav-shinde-07/clueso-ai/internal/model"
)

type fakeEmbedder struct {
	calls [][]string
	err   error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls = append(f.calls, texts)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

type memRepo struct {
	mu     sync.Mutex
	chunks map[string][]Chunk
	query  []float32
}

func (r *memRepo) ReplaceChunks(_ context.Context, id string, chunks []Chunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.chunks == nil {
		r.chunks = map[string][]Chunk{}
	}
	r.chunks[id] = chunks
	return nil
}

func (r *memRepo) Search(_ context.Context, vec []float32, limit int) ([]Hit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.query = vec
	var hits []Hit
	for _, cs := range r.chunks {
		for _, c := range cs {
			hits = append(hits, Hit{RecordingID: c.RecordingID, StepIndex: c.StepIndex, Content: c.Content})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].StepIndex < hits[j].StepIndex })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func sampleGuide() model.Guide {
	g := model.Guide{
		Title: "Create a project",
		Steps: []model.GuideStep{
			{Title: "Open settings", NarrationText: "Open the settings page.", AudioURL: "http://x/a0.mp3"},
			{Title: "Save", Description: "Click the save button"},
		},
	}
	g.Renumber()
	return g
}

func TestIndexGuideBatchesOneChunkPerStep(t *testing.T) {
	emb := &fakeEmbedder{}
	repo := &memRepo{}
	ix := NewIndexer(emb, repo)

	require.NoError(t, ix.IndexGuide(context.Background(), "rec-1", sampleGuide()))

	require.Len(t, emb.calls, 1)
	assert.Len(t, emb.calls[0], 2)
	chunks := repo.chunks["rec-1"]
	require.Len(t, chunks, 2)
	assert.Equal(t, "Create a project\nOpen settings\nOpen the settings page.", chunks[0].Content)
	assert.Equal(t, "http://x/a0.mp3", chunks[0].AudioURL)
	assert.Equal(t, 1, chunks[1].StepIndex)
	assert.NotEmpty(t, chunks[1].Embedding)
}

func TestIndexGuideReplacesPreviousChunks(t *testing.T) {
	repo := &memRepo{}
	ix := NewIndexer(&fakeEmbedder{}, repo)

	require.NoError(t, ix.IndexGuide(context.Background(), "rec-1", sampleGuide()))
	require.NoError(t, ix.IndexGuide(context.Background(), "rec-1", model.Guide{Title: "t"}))

	assert.Empty(t, repo.chunks["rec-1"])
}

func TestIndexGuideEmbedFailure(t *testing.T) {
	boom := errors.New("quota exceeded")
	repo := &memRepo{}
	ix := NewIndexer(&fakeEmbedder{err: boom}, repo)

	err := ix.IndexGuide(context.Background(), "rec-1", sampleGuide())
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, repo.chunks)
}

func TestSearch(t *testing.T) {
	emb := &fakeEmbedder{}
	repo := &memRepo{}
	ix := NewIndexer(emb, repo)
	require.NoError(t, ix.IndexGuide(context.Background(), "rec-1", sampleGuide()))

	hits, err := ix.Search(context.Background(), "  settings ", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "rec-1", hits[0].RecordingID)
	assert.Equal(t, []string{"settings"}, emb.calls[1])
	assert.Equal(t, []float32{8, 1}, repo.query)
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	_, err := NewIndexer(&fakeEmbedder{}, &memRepo{}).Search(context.Background(), " ", 3)
	assert.ErrorIs(t, err, ErrEmptyQuery)
}
