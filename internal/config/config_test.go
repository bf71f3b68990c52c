package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CLUESO_API_ADDR", "")
	t.Setenv("AI_MAX_RETRIES", "")
	t.Setenv("AI_MOCK", "")
	t.Setenv("ENVIRONMENT", "")
	t.Setenv("LOG_FORMAT", "")

	cfg := Load()
	assert.Equal(t, ":3001", cfg.Addr)
	assert.Equal(t, int64(500<<20), cfg.MaxUploadBytes)
	assert.Equal(t, 0, cfg.AI.MaxRetries)
	assert.False(t, cfg.AI.Mock)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "https://placehold.co/600x400?text=Step+%d", cfg.PlaceholderTemplate)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CLUESO_BASE_URL", "https://guides.example.com/")
	t.Setenv("AI_MOCK", "yes")
	t.Setenv("AI_MAX_RETRIES", "2")
	t.Setenv("AI_REQUEST_TIMEOUT", "45s")
	t.Setenv("AI_EMBEDDING_DIMENSION", "not-a-number")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("LOG_FORMAT", "")

	cfg := Load()
	assert.Equal(t, "https://guides.example.com", cfg.BaseURL)
	assert.True(t, cfg.AI.Mock)
	assert.Equal(t, 2, cfg.AI.MaxRetries)
	assert.Equal(t, 45*time.Second, cfg.AI.RequestTimeout)
	assert.Equal(t, 1536, cfg.AI.EmbeddingDimension)
	assert.Equal(t, "sk-test", cfg.AI.APIKey)
	assert.Equal(t, "json", cfg.LogFormat)
}
