package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/gaurav-shinde-07/clueso-ai/internal/blob"
	"github.com/gaurav-shinde-07/clueso-ai/internal/export"
	"github.com/gaurav-shinde-07/clueso-ai/internal/knowledge"
	"github.com/gaurav-shinde-07/clueso-ai/internal/logger"
	"github.com/gaurav-shinde-07/clueso-ai/internal/model"
)

type RecordingStore interface {
	SaveRecording(ctx context.Context, rec model.Recording) error
	GetRecording(ctx context.Context, id string) (model.Recording, error)
	ListRecordings(ctx context.Context, status *model.Status, limit int) ([]model.Recording, error)
}

// Starter launches background processing of a stored recording.
type Starter interface {
	Start(id string)
}

type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]knowledge.Hit, error)
}

type Server struct {
	Blobs      blob.LocalFS
	Recordings RecordingStore
	Pipeline   Starter
	// Knowledge is nil when no knowledge base is configured.
	Knowledge Searcher
	Log       *logger.Logger

	MaxUploadBytes   int64
	ThumbnailPending string
	SearchLimit      int

	// Now and NewID are overridable in tests.
	Now   func() time.Time
	NewID func() string
}

func (s Server) Router() http.Handler {
	if s.Log == nil {
		s.Log = logger.Nop()
	}
	if s.Now == nil {
		s.Now = time.Now
	}
	if s.NewID == nil {
		s.NewID = uuid.NewString
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/recordings", s.handleUpload)
		r.Get("/recordings", s.handleListRecordings)
		r.Get("/recordings/{id}", s.handleGetRecording)
		r.Get("/recordings/{id}/export.xlsx", s.handleExport)
		r.Get("/knowledge/search", s.handleSearch)
	})
	r.Get("/uploads/*", s.handleUploadFile)

	return r
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		entry := s.Log.WithRequest(r)
		if id := middleware.GetReqID(r.Context()); id != "" {
			entry = entry.WithField("req_id", id)
		}
		entry.WithFields(logrus.Fields{
			"status":      ww.Status(),
			"bytes":       ww.BytesWritten(),
			"duration_ms": time.Since(start).Milliseconds(),
		}).Info("request handled")
	})
}

func (s Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			writeErr(w, http.StatusRequestEntityTooLarge, fmt.Errorf("upload exceeds %d bytes", s.MaxUploadBytes))
			return
		}
		writeErr(w, http.StatusBadRequest, fmt.Errorf("parse multipart: %w", err))
		return
	}
	file, header, err := r.FormFile("video")
	if err != nil {
		writeErr(w, http.StatusBadRequest, errors.New("No video file provided"))
		return
	}
	defer file.Close()

	var (
		meta        model.Metadata
		events      []model.Event
		screenshots []string
	)
	for field, dst := range map[string]any{"metadata": &meta, "events": &events, "screenshots": &screenshots} {
		raw := strings.TrimSpace(r.FormValue(field))
		if raw == "" {
			continue
		}
		if err := json.Unmarshal([]byte(raw), dst); err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid %s JSON: %w", field, err))
			return
		}
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		buf := make([]byte, 512)
		n, _ := io.ReadFull(file, buf)
		mimeType = http.DetectContentType(buf[:n])
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
	}

	id := s.NewID()
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext == "" {
		ext = extensionFor(mimeType)
	}
	mediaKey, err := s.Blobs.Put(blob.UploadKey(id+ext), file)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, fmt.Errorf("store media: %w", err))
		return
	}

	rec := model.NewRecording(id, s.Now().UTC())
	rec.UserID = strings.TrimSpace(r.FormValue("userId"))
	if rec.UserID == "" {
		rec.UserID = "anon"
	}
	rec.MediaKey = mediaKey
	rec.MediaURL = s.Blobs.URL(mediaKey)
	rec.MimeType = mimeType
	rec.Metadata = meta
	rec.Events = events
	rec.Screenshots = screenshots
	rec.ThumbnailURL = s.ThumbnailPending
	if len(screenshots) > 0 && screenshots[0] != "" {
		rec.ThumbnailURL = screenshots[0]
	}

	if err := s.Recordings.SaveRecording(ctx, rec); err != nil {
		writeErr(w, http.StatusInternalServerError, fmt.Errorf("create recording: %w", err))
		return
	}
	s.Pipeline.Start(id)

	s.Log.WithRequest(r).WithFields(logrus.Fields{
		"recording_id": id,
		"mime":         mimeType,
		"events":       len(events),
		"screenshots":  len(screenshots),
	}).Info("recording accepted")

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"recordingId": id,
		"jobId":       id,
	})
}

func (s Server) handleGetRecording(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.loadRecording(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s Server) handleListRecordings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var status *model.Status
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		parsed, err := model.ParseStatus(raw)
		if err != nil {
			writeErr(w, http.StatusBadRequest, err)
			return
		}
		status = &parsed
	}

	limit, err := parseLimit(r, 25)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}

	recs, err := s.Recordings.ListRecordings(ctx, status, limit)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s Server) handleExport(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.loadRecording(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := export.WriteGuide(&buf, rec); err != nil {
		if errors.Is(err, export.ErrNoGuide) {
			writeErr(w, http.StatusConflict, err)
			return
		}
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rec.ID+".xlsx"))
	_, _ = buf.WriteTo(w)
}

func (s Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.Knowledge == nil {
		writeErr(w, http.StatusServiceUnavailable, errors.New("knowledge base is not configured"))
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeErr(w, http.StatusBadRequest, errors.New("missing query parameter q"))
		return
	}
	def := s.SearchLimit
	if def <= 0 {
		def = 5
	}
	limit, err := parseLimit(r, def)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	hits, err := s.Knowledge.Search(r.Context(), query, limit)
	if err != nil {
		writeErr(w, http.StatusBadGateway, err)
		return
	}
	if hits == nil {
		hits = []knowledge.Hit{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": query, "results": hits})
}

func (s Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	clean := filepath.Clean(raw)
	if raw == "" || clean == "." || strings.HasPrefix(clean, "..") || strings.ContainsRune(clean, filepath.Separator) {
		writeErr(w, http.StatusBadRequest, errors.New("invalid upload path"))
		return
	}

	relPath := blob.UploadKey(clean)
	if !s.Blobs.Exists(relPath) {
		writeErr(w, http.StatusNotFound, errors.New("file not found"))
		return
	}
	f, err := s.Blobs.Open(relPath)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, _ := f.Read(buf)
	contentType := http.DetectContentType(buf[:n])
	if mimeType := mime.TypeByExtension(filepath.Ext(clean)); mimeType != "" {
		if contentType == "application/octet-stream" || strings.HasPrefix(contentType, "text/plain") {
			contentType = mimeType
		}
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}

	info, err := f.Stat()
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	http.ServeContent(w, r, clean, info.ModTime(), f)
}

func (s Server) loadRecording(w http.ResponseWriter, r *http.Request) (model.Recording, bool) {
	rec, err := s.Recordings.GetRecording(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			writeErr(w, http.StatusNotFound, errors.New("Not found"))
			return model.Recording{}, false
		}
		writeErr(w, http.StatusInternalServerError, err)
		return model.Recording{}, false
	}
	return rec, true
}

func parseLimit(r *http.Request, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return def, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("invalid limit: %s", raw)
	}
	if value > 100 {
		value = 100
	}
	return value, nil
}

func extensionFor(mimeType string) string {
	switch {
	case strings.Contains(mimeType, "mp4"):
		return ".mp4"
	case strings.Contains(mimeType, "quicktime"):
		return ".mov"
	default:
		return ".webm"
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]any{"error": err.Error()})
}
