package ai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/gaurav-shinde-07/clueso-ai/internal/config"
	"github.com/gaurav-shinde-07/clueso-ai/internal/model"
)

const providerName = "openai"

// OpenAI implements Provider against the OpenAI API or any compatible server.
type OpenAI struct {
	client     openai.Client
	cfg        config.AIConfig
	clipper    *transcriptClipper
	newBackOff func() backoff.BackOff
}

func NewOpenAI(cfg config.AIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: missing api key")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// Retries are driven by AI_MAX_RETRIES through backoff, not the SDK.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")+"/"))
	}
	if cfg.Organization != "" {
		opts = append(opts, option.WithOrganization(cfg.Organization))
	}
	if cfg.RequestTimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.RequestTimeout))
	}
	return &OpenAI{
		client:  openai.NewClient(opts...),
		cfg:     cfg,
		clipper: newTranscriptClipper(cfg.MaxTranscriptTokens),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			b.MaxInterval = 20 * time.Second
			return b
		},
	}, nil
}

func (c *OpenAI) Name() string { return providerName }

func (c *OpenAI) Transcribe(ctx context.Context, media []byte, mimeType string) (string, error) {
	var text string
	err := c.call(ctx, "transcribe", func() error {
		res, err := c.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
			File:  openai.File(bytes.NewReader(media), "recording"+extensionFor(mimeType), mimeType),
			Model: openai.AudioModel(c.cfg.TranscriptionModel),
		})
		if err != nil {
			return err
		}
		text = strings.TrimSpace(res.Text)
		return nil
	})
	return text, err
}

func (c *OpenAI) SynthesizeGuide(ctx context.Context, req model.GuideRequest) (*model.Guide, error) {
	req.Transcript = c.clipper.Clip(req.Transcript)
	prompt, err := buildGuidePrompt(req)
	if err != nil {
		return nil, &ProviderError{Provider: providerName, Op: "synthesize guide", Err: err}
	}

	var guide *model.Guide
	err = c.call(ctx, "synthesize guide", func() error {
		completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model: shared.ChatModel(c.cfg.GuideModel),
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(guideSystemPrompt),
				openai.UserMessage(prompt),
			},
			Temperature: openai.Float(0.3),
			ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
				OfJSONObject: &shared.ResponseFormatJSONObjectParam{
					Type: "json_object",
				},
			},
		})
		if err != nil {
			return err
		}
		if len(completion.Choices) == 0 {
			return errors.New("no completion choices returned")
		}
		g, err := parseGuide(completion.Choices[0].Message.Content)
		if err != nil {
			return err
		}
		guide = g
		return nil
	})
	if err != nil {
		return nil, err
	}
	return guide, nil
}

func (c *OpenAI) SynthesizeSpeech(ctx context.Context, text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	var audio []byte
	err := c.call(ctx, "synthesize speech", func() error {
		res, err := c.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
			Input:          text,
			Model:          openai.SpeechModel(c.cfg.SpeechModel),
			Voice:          openai.AudioSpeechNewParamsVoice(c.cfg.SpeechVoice),
			ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
		})
		if err != nil {
			return err
		}
		defer res.Body.Close()
		data, err := io.ReadAll(res.Body)
		if err != nil {
			return fmt.Errorf("read speech body: %w", err)
		}
		audio = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(audio) == 0 {
		return nil, nil
	}
	return audio, nil
}

func (c *OpenAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(c.cfg.EmbeddingModel),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
	}
	if c.cfg.EmbeddingDimension > 0 {
		params.Dimensions = openai.Int(int64(c.cfg.EmbeddingDimension))
	}

	var out [][]float32
	err := c.call(ctx, "embed", func() error {
		resp, err := c.client.Embeddings.New(ctx, params)
		if err != nil {
			return err
		}
		if len(resp.Data) != len(texts) {
			return fmt.Errorf("got %d embeddings for %d inputs", len(resp.Data), len(texts))
		}
		vectors := make([][]float32, len(texts))
		for _, data := range resp.Data {
			if data.Index < 0 || int(data.Index) >= len(texts) {
				return fmt.Errorf("embedding index %d out of range", data.Index)
			}
			vec := make([]float32, len(data.Embedding))
			for i, v := range data.Embedding {
				vec[i] = float32(v)
			}
			vectors[data.Index] = vec
		}
		out = vectors
		return nil
	})
	return out, err
}

// call runs fn once plus up to MaxRetries retries for transient failures and
// wraps the final error in a ProviderError.
func (c *OpenAI) call(ctx context.Context, op string, fn func() error) error {
	retries := c.cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	b := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), uint64(retries)), ctx)
	err := backoff.Retry(func() error {
		err := fn()
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b)
	if err != nil {
		return &ProviderError{Provider: providerName, Op: op, Err: err}
	}
	return nil
}

func retryable(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests ||
			apiErr.StatusCode == http.StatusRequestTimeout ||
			apiErr.StatusCode >= 500
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// StatusCode reports the HTTP status carried by a provider error, or 0.
func StatusCode(err error) int {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

func extensionFor(mimeType string) string {
	switch {
	case strings.HasSuffix(mimeType, "/mp4"):
		return ".mp4"
	case strings.HasSuffix(mimeType, "/mpeg"):
		return ".mp3"
	case strings.HasSuffix(mimeType, "/wav"):
		return ".wav"
	default:
		return ".webm"
	}
}

var _ Provider = (*OpenAI)(nil)
