package knowledge

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

// Postgres stores chunks in a pgvector-enabled database.
type Postgres struct {
	pool *pgxpool.Pool
}

func OpenPostgres(ctx context.Context, databaseURL string, dimension int) (*Postgres, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid embedding dimension %d", dimension)
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect knowledge base: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping knowledge base: %w", err)
	}
	p := &Postgres{pool: pool}
	if err := p.migrate(ctx, dimension); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) migrate(ctx context.Context, dimension int) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS guide_chunks (
  recording_id TEXT NOT NULL,
  step_index INTEGER NOT NULL,
  guide_title TEXT NOT NULL,
  step_title TEXT NOT NULL,
  content TEXT NOT NULL,
  screenshot_url TEXT NOT NULL DEFAULT '',
  audio_url TEXT NOT NULL DEFAULT '',
  embedding vector(%d) NOT NULL,
  indexed_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  PRIMARY KEY (recording_id, step_index)
)`, dimension),
	}
	for _, stmt := range stmts {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate knowledge base: %w", err)
		}
	}
	return nil
}

func (p *Postgres) ReplaceChunks(ctx context.Context, recordingID string, chunks []Chunk) error {
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM guide_chunks WHERE recording_id = $1`, recordingID); err != nil {
			return fmt.Errorf("delete chunks: %w", err)
		}
		for _, c := range chunks {
			_, err := tx.Exec(ctx, `
INSERT INTO guide_chunks (recording_id, step_index, guide_title, step_title, content, screenshot_url, audio_url, embedding)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				recordingID, c.StepIndex, c.GuideTitle, c.StepTitle, c.Content, c.ScreenshotURL, c.AudioURL,
				pgvector.NewVector(c.Embedding),
			)
			if err != nil {
				return fmt.Errorf("insert chunk %d: %w", c.StepIndex, err)
			}
		}
		return nil
	})
}

func (p *Postgres) Search(ctx context.Context, vector []float32, limit int) ([]Hit, error) {
	rows, err := p.pool.Query(ctx, `
SELECT recording_id, step_index, guide_title, step_title, content, screenshot_url, audio_url,
       1 - (embedding <=> $1) AS score
FROM guide_chunks
ORDER BY embedding <=> $1
LIMIT $2`, pgvector.NewVector(vector), limit)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.RecordingID, &h.StepIndex, &h.GuideTitle, &h.StepTitle, &h.Content,
			&h.ScreenshotURL, &h.AudioURL, &h.Score); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (p *Postgres) Close() {
	p.pool.Close()
}

var _ Repository = (*Postgres)(nil)
