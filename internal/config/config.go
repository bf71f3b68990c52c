package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr           string
	DataDir        string
	BaseURL        string // optional, derived from Addr when empty
	MaxUploadBytes int64
	// PlaceholderTemplate receives the 1-based step number.
	PlaceholderTemplate string
	ThumbnailPending    string

	LogLevel  string
	LogFormat string

	AI        AIConfig
	Knowledge KnowledgeConfig
}

type AIConfig struct {
	APIKey              string
	BaseURL             string
	Organization        string
	TranscriptionModel  string
	GuideModel          string
	SpeechModel         string
	SpeechVoice         string
	EmbeddingModel      string
	EmbeddingDimension  int
	MaxTranscriptTokens int
	MaxRetries          int
	RequestTimeout      time.Duration
	Mock                bool
}

type KnowledgeConfig struct {
	DatabaseURL string
	SearchLimit int
}

func Load() Config {
	return Config{
		Addr:                getenv("CLUESO_API_ADDR", ":3001"),
		DataDir:             getenv("CLUESO_DATA_DIR", filepath.Join(".", "local-data")),
		BaseURL:             strings.TrimRight(os.Getenv("CLUESO_BASE_URL"), "/"),
		MaxUploadBytes:      int64(getenvInt("CLUESO_MAX_UPLOAD_MB", 500)) << 20,
		PlaceholderTemplate: getenv("PLACEHOLDER_URL_TEMPLATE", "https://placehold.co/600x400?text=Step+%d"),
		ThumbnailPending:    getenv("THUMBNAIL_PENDING_URL", "https://placehold.co/600x400?text=Processing..."),
		LogLevel:            getenv("LOG_LEVEL", "info"),
		LogFormat:           logFormat(),
		AI: AIConfig{
			APIKey:              envFirst("CLUESO_OPENAI_API_KEY", "OPENAI_API_KEY"),
			BaseURL:             strings.TrimSpace(os.Getenv("CLUESO_OPENAI_BASE_URL")),
			Organization:        strings.TrimSpace(os.Getenv("CLUESO_OPENAI_ORG")),
			TranscriptionModel:  getenv("AI_TRANSCRIPTION_MODEL", "whisper-1"),
			GuideModel:          getenv("AI_GUIDE_MODEL", "gpt-4o-mini"),
			SpeechModel:         getenv("AI_SPEECH_MODEL", "tts-1"),
			SpeechVoice:         getenv("AI_SPEECH_VOICE", "alloy"),
			EmbeddingModel:      getenv("AI_EMBEDDING_MODEL", "text-embedding-3-small"),
			EmbeddingDimension:  getenvInt("AI_EMBEDDING_DIMENSION", 1536),
			MaxTranscriptTokens: getenvInt("AI_MAX_TRANSCRIPT_TOKENS", 6000),
			MaxRetries:          getenvInt("AI_MAX_RETRIES", 0),
			RequestTimeout:      getenvDuration("AI_REQUEST_TIMEOUT", 0),
			Mock:                envBool("AI_MOCK", false),
		},
		Knowledge: KnowledgeConfig{
			DatabaseURL: strings.TrimSpace(os.Getenv("KB_DATABASE_URL")),
			SearchLimit: getenvInt("KB_SEARCH_LIMIT", 5),
		},
	}
}

// logFormat keeps local runs human readable and everything else JSON.
func logFormat() string {
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		return v
	}
	env := os.Getenv("ENVIRONMENT")
	if env == "" || env == "local" {
		return "text"
	}
	return "json"
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envFirst(keys ...string) string {
	for _, key := range keys {
		value := strings.TrimSpace(os.Getenv(key))
		if value != "" {
			return value
		}
	}
	return ""
}

func envBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if raw == "" {
		return fallback
	}
	return raw == "1" || raw == "true" || raw == "yes" || raw == "on"
}
