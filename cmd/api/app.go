package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/gaurav-shinde-07/clueso-ai/internal/ai"
	"github.com/gaurav-shinde-07/clueso-ai/internal/blob"
	"github.com/gaurav-shinde-07/clueso-ai/internal/config"
	"github.com/gaurav-shinde-07/clueso-ai/internal/httpapi"
	"github.com/gaurav-shinde-07/clueso-ai/internal/knowledge"
	"github.com/gaurav-shinde-07/clueso-ai/internal/logger"
	"github.com/gaurav-shinde-07/clueso-ai/internal/model"
	"github.com/gaurav-shinde-07/clueso-ai/internal/pipeline"
	"github.com/gaurav-shinde-07/clueso-ai/internal/store"
)

// app holds every long-lived component of the service.
type app struct {
	cfg          config.Config
	log          *logger.Logger
	store        *store.SQLite
	blobs        blob.LocalFS
	provider     ai.Provider
	kb           *knowledge.Postgres
	indexer      *knowledge.Indexer
	orchestrator *pipeline.Orchestrator
}

func newApp(ctx context.Context, cfg config.Config, log *logger.Logger) (*app, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir data dir: %w", err)
	}

	st, err := store.Open(filepath.Join(cfg.DataDir, "recordings.db"))
	if err != nil {
		return nil, fmt.Errorf("open recording store: %w", err)
	}

	provider, err := ai.NewFromConfig(cfg.AI)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("ai provider config error: %w", err)
	}
	if provider == nil {
		_ = st.Close()
		return nil, errors.New("no ai provider configured: set OPENAI_API_KEY or AI_MOCK=true")
	}
	log.WithField("provider", provider.Name()).Info("ai provider ready")

	a := &app{
		cfg:      cfg,
		log:      log,
		store:    st,
		blobs:    blob.LocalFS{Root: cfg.DataDir, BaseURL: baseURL(cfg)},
		provider: provider,
	}

	if !pipeline.ValidPlaceholderTemplate(cfg.PlaceholderTemplate) {
		log.WithField("template", cfg.PlaceholderTemplate).Warnf("PLACEHOLDER_URL_TEMPLATE has no single %%d verb; appending the step number")
	}

	if cfg.Knowledge.DatabaseURL != "" {
		kb, err := knowledge.OpenPostgres(ctx, cfg.Knowledge.DatabaseURL, cfg.AI.EmbeddingDimension)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		a.kb = kb
		a.indexer = knowledge.NewIndexer(provider, kb)
		log.Info("knowledge base enabled")
	} else {
		log.Info("knowledge base disabled (KB_DATABASE_URL not set)")
	}

	deps := pipeline.Deps{
		Store:       st,
		Media:       a.blobs,
		Transcriber: provider,
		Synthesizer: provider,
		Speech:      provider,
		Assets:      a.blobs,
		Placeholder: pipeline.TemplatePlaceholder(cfg.PlaceholderTemplate),
		Log:         log.WithField("component", "pipeline"),
	}
	if a.indexer != nil {
		deps.Indexer = a.indexer
	}
	a.orchestrator = pipeline.New(deps)
	return a, nil
}

func (a *app) server() httpapi.Server {
	srv := httpapi.Server{
		Blobs:            a.blobs,
		Recordings:       a.store,
		Pipeline:         a.orchestrator,
		Log:              a.log,
		MaxUploadBytes:   a.cfg.MaxUploadBytes,
		ThumbnailPending: a.cfg.ThumbnailPending,
		SearchLimit:      a.cfg.Knowledge.SearchLimit,
	}
	if a.indexer != nil {
		srv.Knowledge = a.indexer
	}
	return srv
}

func (a *app) Close() {
	if a.kb != nil {
		a.kb.Close()
	}
	if err := a.store.Close(); err != nil {
		a.log.WithError(err).Warn("close recording store")
	}
}

func baseURL(cfg config.Config) string {
	if cfg.BaseURL != "" {
		return cfg.BaseURL
	}
	addr := cfg.Addr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return fmt.Sprintf("http://%s", addr)
}

func loadDotEnv() {
	dir, err := os.Getwd()
	if err != nil {
		return
	}
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}

// ingestFile stores a local media file as a new recording, the same way an
// upload would, and returns its id.
func (a *app) ingestFile(ctx context.Context, path, eventsPath, metadataPath string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	rec := model.NewRecording(uuid.NewString(), time.Now().UTC())
	rec.UserID = "cli"
	rec.ThumbnailURL = a.cfg.ThumbnailPending
	if err := readJSONFile(eventsPath, &rec.Events); err != nil {
		return "", fmt.Errorf("events: %w", err)
	}
	if err := readJSONFile(metadataPath, &rec.Metadata); err != nil {
		return "", fmt.Errorf("metadata: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	rec.MimeType = mime.TypeByExtension(ext)
	if rec.MimeType == "" {
		buf := make([]byte, 512)
		n, _ := io.ReadFull(f, buf)
		rec.MimeType = http.DetectContentType(buf[:n])
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return "", err
		}
	}

	key, err := a.blobs.Put(blob.UploadKey(rec.ID+ext), f)
	if err != nil {
		return "", fmt.Errorf("store media: %w", err)
	}
	rec.MediaKey = key
	rec.MediaURL = a.blobs.URL(key)

	if err := a.store.SaveRecording(ctx, rec); err != nil {
		return "", err
	}
	return rec.ID, nil
}

func readJSONFile(path string, dst any) error {
	if path == "" {
		return nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}
