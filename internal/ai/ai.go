// Package ai holds the model-backed collaborators of the pipeline:
// transcription, guide synthesis, speech and embeddings.
package ai

import (
	"context"
	"fmt"

	"github.com/gaurav-shinde-07/clueso-ai/internal/config"
	"github.com/gaurav-shinde-07/clueso-ai/internal/model"
)

// Provider bundles every capability the service needs from a model vendor.
type Provider interface {
	Name() string
	Transcribe(ctx context.Context, media []byte, mimeType string) (string, error)
	SynthesizeGuide(ctx context.Context, req model.GuideRequest) (*model.Guide, error)
	// SynthesizeSpeech returns nil audio when there is nothing to play.
	SynthesizeSpeech(ctx context.Context, text string) ([]byte, error)
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ProviderError wraps any failure coming back from a provider call.
type ProviderError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NewFromConfig returns the configured provider, or nil when neither an API
// key nor mock mode is configured.
func NewFromConfig(cfg config.AIConfig) (Provider, error) {
	if cfg.Mock {
		return NewMock(cfg.EmbeddingDimension), nil
	}
	if cfg.APIKey == "" {
		return nil, nil
	}
	return NewOpenAI(cfg)
}
