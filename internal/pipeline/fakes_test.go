package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/gaurav-shinde-07/clueso-ai/internal/logger"
	"github.com/gaurav-shinde-07/clueso-ai/internal/model"
)

type memStore struct {
	mu    sync.Mutex
	recs  map[string]model.Recording
	saves []model.Recording
}

func newMemStore(recs ...model.Recording) *memStore {
	s := &memStore{recs: map[string]model.Recording{}}
	for _, r := range recs {
		s.recs[r.ID] = r
	}
	return s
}

func (s *memStore) GetRecording(_ context.Context, id string) (model.Recording, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[id]
	if !ok {
		return model.Recording{}, model.ErrNotFound
	}
	return rec, nil
}

func (s *memStore) SaveRecording(_ context.Context, rec model.Recording) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.GeneratedGuide != nil {
		g := rec.GeneratedGuide.Clone()
		rec.GeneratedGuide = &g
	}
	s.recs[rec.ID] = rec
	s.saves = append(s.saves, rec)
	return nil
}

func (s *memStore) history() []model.Recording {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Recording(nil), s.saves...)
}

type memMedia map[string][]byte

func (m memMedia) ReadAll(key string) ([]byte, error) {
	b, ok := m[key]
	if !ok {
		return nil, fmt.Errorf("no such media %q", key)
	}
	return b, nil
}

type transcriberFunc func(ctx context.Context, media []byte, mimeType string) (string, error)

func (f transcriberFunc) Transcribe(ctx context.Context, media []byte, mimeType string) (string, error) {
	return f(ctx, media, mimeType)
}

type synthesizerFunc func(ctx context.Context, req model.GuideRequest) (*model.Guide, error)

func (f synthesizerFunc) SynthesizeGuide(ctx context.Context, req model.GuideRequest) (*model.Guide, error) {
	return f(ctx, req)
}

type speechFunc func(ctx context.Context, text string) ([]byte, error)

func (f speechFunc) SynthesizeSpeech(ctx context.Context, text string) ([]byte, error) {
	return f(ctx, text)
}

type indexerFunc func(ctx context.Context, recordingID string, guide model.Guide) error

func (f indexerFunc) IndexGuide(ctx context.Context, recordingID string, guide model.Guide) error {
	return f(ctx, recordingID, guide)
}

type memAssets struct {
	mu     sync.Mutex
	writes map[string][]byte
}

func (a *memAssets) WriteAsset(_ context.Context, name string, data []byte) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.writes == nil {
		a.writes = map[string][]byte{}
	}
	a.writes[name] = data
	return "http://localhost:3001/uploads/" + name, nil
}

func (a *memAssets) names() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.writes))
	for name := range a.writes {
		out = append(out, name)
	}
	return out
}

func fixedTranscript(text string) transcriberFunc {
	return func(context.Context, []byte, string) (string, error) { return text, nil }
}

func fixedGuide(steps ...model.GuideStep) synthesizerFunc {
	return func(context.Context, model.GuideRequest) (*model.Guide, error) {
		g := &model.Guide{Title: "How to create a project", Steps: append([]model.GuideStep(nil), steps...)}
		return g, nil
	}
}

func echoSpeech() speechFunc {
	return func(_ context.Context, text string) ([]byte, error) { return []byte("mp3:" + text), nil }
}

func testRecording(id string) model.Recording {
	rec := model.NewRecording(id, testNow)
	rec.MediaKey = "uploads/" + id + ".webm"
	rec.MimeType = "video/webm;codecs=vp9,opus"
	rec.Metadata = model.Metadata{Duration: 42, Viewport: model.Viewport{Width: 1440, Height: 900}}
	rec.Events = []model.Event{{Type: "click", Timestamp: 1000}}
	return rec
}

type harness struct {
	store  *memStore
	assets *memAssets
	deps   Deps
}

func newHarness(rec model.Recording) *harness {
	h := &harness{
		store:  newMemStore(rec),
		assets: &memAssets{},
	}
	h.deps = Deps{
		Store:       h.store,
		Media:       memMedia{rec.MediaKey: []byte("webm-bytes")},
		Transcriber: fixedTranscript("first open settings then click save"),
		Synthesizer: fixedGuide(model.GuideStep{Title: "Open settings", NarrationText: "Open the settings page."}),
		Speech:      echoSpeech(),
		Assets:      h.assets,
		Log:         logger.Nop().Entry,
	}
	return h
}

func (h *harness) orchestrator() *Orchestrator { return New(h.deps) }
