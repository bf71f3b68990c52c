package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gaurav-shinde-07/clueso-ai/internal/model"
)

func TestNormalizeMIME(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"video/webm", "video/webm"},
		{"video/webm;codecs=vp8,opus", "video/webm"},
		{"audio/webm", "video/webm"},
		{"video/mp4", "video/mp4"},
		{"audio/mp4", "video/mp4"},
		{"video/quicktime", "audio/webm"},
		{"application/octet-stream", "audio/webm"},
		{"", "audio/webm"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeMIME(tt.raw))
		})
	}
}

func TestEnrichAssignsScreenshotsByPosition(t *testing.T) {
	g := &model.Guide{Steps: make([]model.GuideStep, 4)}
	g.Renumber()

	Enrich(g, []string{"a.png", "", "c.png"}, TemplatePlaceholder("https://placehold.co/600x400?text=Step+%d"))

	assert.Equal(t, "a.png", g.Steps[0].ScreenshotURL)
	assert.Equal(t, "https://placehold.co/600x400?text=Step+2", g.Steps[1].ScreenshotURL)
	assert.Equal(t, "c.png", g.Steps[2].ScreenshotURL)
	assert.Equal(t, "https://placehold.co/600x400?text=Step+4", g.Steps[3].ScreenshotURL)
}

func TestEnrichIsIdempotent(t *testing.T) {
	shots := []string{"a.png"}
	placeholder := TemplatePlaceholder("placeholder-%d")
	g := &model.Guide{Steps: make([]model.GuideStep, 3)}

	Enrich(g, shots, placeholder)
	first := g.Clone()
	Enrich(g, shots, placeholder)

	assert.Equal(t, first.Steps, g.Steps)
	assert.Equal(t, []string{"a.png"}, shots)
}

func TestEnrichWithNoSteps(t *testing.T) {
	g := &model.Guide{}
	Enrich(g, []string{"a.png"}, TemplatePlaceholder("%d"))
	assert.Empty(t, g.Steps)
}

func TestAssetNameIsDeterministic(t *testing.T) {
	assert.Equal(t, "audio_rec-1_0.mp3", AssetName("rec-1", 0))
	assert.Equal(t, AssetName("rec-1", 7), AssetName("rec-1", 7))
	assert.NotEqual(t, AssetName("rec-1", 1), AssetName("rec-2", 1))
}

func TestTemplatePlaceholderWithoutVerb(t *testing.T) {
	tests := []struct {
		template string
		want     string
	}{
		{"https://placehold.co/600x400?text=Step+%d", "https://placehold.co/600x400?text=Step+3"},
		{"https://cdn.example.com/step-", "https://cdn.example.com/step-3"},
		{"https://cdn.example.com/a%20b?n=", "https://cdn.example.com/a%20b?n=3"},
		{"https://cdn.example.com/%d/%d", "https://cdn.example.com/%d/%d3"},
	}
	for _, tt := range tests {
		t.Run(tt.template, func(t *testing.T) {
			assert.Equal(t, tt.want, TemplatePlaceholder(tt.template)(3))
		})
	}
	assert.True(t, ValidPlaceholderTemplate("Step+%d"))
	assert.False(t, ValidPlaceholderTemplate("Step+%s"))
}
