// Package knowledge indexes completed guides for semantic search.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gaurav-shinde-07/clueso-ai/internal/model"
)

// Chunk is the searchable unit: one guide step.
type Chunk struct {
	RecordingID   string
	StepIndex     int
	GuideTitle    string
	StepTitle     string
	Content       string
	ScreenshotURL string
	AudioURL      string
	Embedding     []float32
}

type Hit struct {
	RecordingID   string  `json:"recordingId"`
	StepIndex     int     `json:"stepIndex"`
	GuideTitle    string  `json:"guideTitle"`
	StepTitle     string  `json:"stepTitle"`
	Content       string  `json:"content"`
	ScreenshotURL string  `json:"screenshotUrl,omitempty"`
	AudioURL      string  `json:"audioUrl,omitempty"`
	Score         float64 `json:"score"`
}

type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type Repository interface {
	// ReplaceChunks atomically swaps every chunk of a recording.
	ReplaceChunks(ctx context.Context, recordingID string, chunks []Chunk) error
	Search(ctx context.Context, vector []float32, limit int) ([]Hit, error)
}

var ErrEmptyQuery = errors.New("empty search query")

type Indexer struct {
	embedder Embedder
	repo     Repository
}

func NewIndexer(embedder Embedder, repo Repository) *Indexer {
	return &Indexer{embedder: embedder, repo: repo}
}

// IndexGuide stores one embedded chunk per step. Re-indexing a recording
// replaces its previous chunks.
func (ix *Indexer) IndexGuide(ctx context.Context, recordingID string, guide model.Guide) error {
	chunks := ChunksFor(recordingID, guide)
	if len(chunks) > 0 {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Content
		}
		vectors, err := ix.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed guide %s: %w", recordingID, err)
		}
		if len(vectors) != len(chunks) {
			return fmt.Errorf("embed guide %s: got %d vectors for %d chunks", recordingID, len(vectors), len(chunks))
		}
		for i := range chunks {
			chunks[i].Embedding = vectors[i]
		}
	}
	if err := ix.repo.ReplaceChunks(ctx, recordingID, chunks); err != nil {
		return fmt.Errorf("store chunks for %s: %w", recordingID, err)
	}
	return nil
}

func (ix *Indexer) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = 5
	}
	vectors, err := ix.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(vectors))
	}
	return ix.repo.Search(ctx, vectors[0], limit)
}

// ChunksFor renders each step of a guide as a chunk without embeddings.
func ChunksFor(recordingID string, guide model.Guide) []Chunk {
	chunks := make([]Chunk, 0, len(guide.Steps))
	for _, s := range guide.Steps {
		var parts []string
		for _, p := range []string{guide.Title, s.Title, s.Description, s.NarrationText} {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		chunks = append(chunks, Chunk{
			RecordingID:   recordingID,
			StepIndex:     s.StepIndex,
			GuideTitle:    guide.Title,
			StepTitle:     s.Title,
			Content:       strings.Join(parts, "\n"),
			ScreenshotURL: s.ScreenshotURL,
			AudioURL:      s.AudioURL,
		})
	}
	return chunks
}
