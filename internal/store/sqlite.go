package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/gaurav-shinde-07/clueso-ai/internal/model"
)

// SQLite keeps each recording as one JSON document. Status columns are
// denormalised from the document for listing.
type SQLite struct {
	db *sql.DB
}

func Open(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection serialises writers from concurrent pipelines.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS recordings (
  id TEXT PRIMARY KEY,
  created_at INTEGER NOT NULL,
  updated_at INTEGER NOT NULL,
  status TEXT NOT NULL,
  audio_status TEXT NOT NULL,
  doc TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS recordings_updated_at ON recordings (updated_at);
`); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

// SaveRecording overwrites the whole stored document for rec.ID.
func (s *SQLite) SaveRecording(ctx context.Context, rec model.Recording) error {
	if rec.ID == "" {
		return errors.New("save recording: empty id")
	}
	rec.UpdatedAt = time.Now().UTC()
	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode recording %s: %w", rec.ID, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO recordings (id, created_at, updated_at, status, audio_status, doc)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET
             updated_at = excluded.updated_at,
             status = excluded.status,
             audio_status = excluded.audio_status,
             doc = excluded.doc`,
		rec.ID,
		rec.CreatedAt.UnixMilli(),
		rec.UpdatedAt.UnixMilli(),
		string(rec.Status()),
		rec.Phase.String(),
		string(doc),
	)
	return err
}

func (s *SQLite) GetRecording(ctx context.Context, id string) (model.Recording, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM recordings WHERE id = ?`, id).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Recording{}, model.ErrNotFound
		}
		return model.Recording{}, err
	}
	return decode(doc)
}

func (s *SQLite) ListRecordings(ctx context.Context, status *model.Status, limit int) ([]model.Recording, error) {
	if limit <= 0 {
		limit = 25
	}

	query := `SELECT doc FROM recordings`
	args := []any{}
	if status != nil {
		query += " WHERE status = ?"
		args = append(args, string(*status))
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Recording{}
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		rec, err := decode(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func decode(doc string) (model.Recording, error) {
	var rec model.Recording
	if err := json.Unmarshal([]byte(doc), &rec); err != nil {
		return model.Recording{}, fmt.Errorf("decode recording: %w", err)
	}
	return rec, nil
}
