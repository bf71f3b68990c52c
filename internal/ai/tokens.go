package ai

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// transcriptClipper trims transcripts to a token budget before they are sent
// to the guide model. When the encoding cannot be loaded it leaves text as is.
type transcriptClipper struct {
	maxTokens int

	once sync.Once
	enc  *tiktoken.Tiktoken
}

func newTranscriptClipper(maxTokens int) *transcriptClipper {
	return &transcriptClipper{maxTokens: maxTokens}
}

func (c *transcriptClipper) Clip(text string) string {
	if c == nil || c.maxTokens <= 0 || text == "" {
		return text
	}
	c.once.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			c.enc = enc
		}
	})
	if c.enc == nil {
		return text
	}
	tokens := c.enc.Encode(text, nil, nil)
	if len(tokens) <= c.maxTokens {
		return text
	}
	return c.enc.Decode(tokens[:c.maxTokens])
}
