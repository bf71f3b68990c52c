package ai

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/gaurav-shinde-07/clueso-ai/internal/model"
)

// Mock is an offline Provider. Guides are derived from the captured events
// and embeddings are hashed bags of words, so results are deterministic.
type Mock struct {
	dimension int
}

func NewMock(dimension int) *Mock {
	if dimension <= 0 {
		dimension = 256
	}
	return &Mock{dimension: dimension}
}

func (m *Mock) Name() string { return "mock" }

func (m *Mock) Transcribe(_ context.Context, media []byte, mimeType string) (string, error) {
	return fmt.Sprintf("Recorded walkthrough (%s, %d bytes).", mimeType, len(media)), nil
}

func (m *Mock) SynthesizeGuide(_ context.Context, req model.GuideRequest) (*model.Guide, error) {
	g := &model.Guide{
		Title:   "Recorded walkthrough",
		Summary: fmt.Sprintf("A %.0f second walkthrough.", req.Duration),
	}
	for _, ev := range req.Events {
		title, ok := describeEvent(ev)
		if !ok {
			continue
		}
		g.Steps = append(g.Steps, model.GuideStep{
			Title:         title,
			Description:   title + ".",
			Timestamp:     ev.Timestamp / 1000,
			NarrationText: title + ".",
		})
	}
	if len(g.Steps) == 0 {
		g.Steps = []model.GuideStep{{
			Title:         "Watch the recording",
			Description:   "No interactions were captured.",
			NarrationText: strings.TrimSpace(req.Transcript),
		}}
	}
	g.Renumber()
	return g, nil
}

func describeEvent(ev model.Event) (string, bool) {
	switch ev.Type {
	case "click":
		return "Click " + targetName(ev.Target), true
	case "input", "change":
		if ev.Value != "" {
			return fmt.Sprintf("Enter %q in %s", ev.Value, targetName(ev.Target)), true
		}
		return "Fill in " + targetName(ev.Target), true
	case "submit":
		return "Submit " + targetName(ev.Target), true
	case "navigation", "navigate":
		if ev.URL != "" {
			return "Go to " + ev.URL, true
		}
		return "Open the next page", true
	default:
		return "", false
	}
}

func targetName(t *model.EventTarget) string {
	switch {
	case t == nil:
		return "the page"
	case strings.TrimSpace(t.Text) != "":
		return fmt.Sprintf("%q", strings.TrimSpace(t.Text))
	case t.Selector != "":
		return t.Selector
	case t.TagName != "":
		return "the " + strings.ToLower(t.TagName) + " element"
	default:
		return "the page"
	}
}

// mp3Header is an MPEG-1 Layer III frame header; enough for players to
// recognise the asset type.
var mp3Header = []byte{0xFF, 0xFB, 0x90, 0x64}

func (m *Mock) SynthesizeSpeech(_ context.Context, text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	return append(append([]byte(nil), mp3Header...), text...), nil
}

func (m *Mock) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = m.hashEmbedding(text)
	}
	return out, nil
}

func (m *Mock) hashEmbedding(text string) []float32 {
	vec := make([]float32, m.dimension)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[h.Sum32()%uint32(m.dimension)]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

var _ Provider = (*Mock)(nil)
