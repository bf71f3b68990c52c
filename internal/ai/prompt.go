package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gaurav-shinde-07/clueso-ai/internal/model"
)

// ErrMalformedGuide means the model answered with something that is not a guide.
var ErrMalformedGuide = errors.New("malformed guide response")

const guideSystemPrompt = `You turn screen recordings into short, clear how-to guides.
Answer with a single JSON object and nothing else, shaped as:
{"title": string, "summary": string, "steps": [{"title": string, "description": string, "timestamp": number, "narrationText": string}]}
Each step is one user action in the order it happened. "timestamp" is seconds from the start of the recording.
"narrationText" is one or two spoken sentences a voice-over would read for that step.`

// maxPromptEvents bounds how many captured events reach the model.
const maxPromptEvents = 200

func buildGuidePrompt(req model.GuideRequest) (string, error) {
	events := req.Events
	if len(events) > maxPromptEvents {
		events = events[:maxPromptEvents]
	}
	eventJSON, err := json.Marshal(events)
	if err != nil {
		return "", fmt.Errorf("encode events: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Recording duration: %.1f seconds\n", req.Duration)
	if req.Viewport.Width > 0 && req.Viewport.Height > 0 {
		fmt.Fprintf(&sb, "Viewport: %dx%d\n", req.Viewport.Width, req.Viewport.Height)
	}
	sb.WriteString("\nCaptured events (timestamps in milliseconds):\n")
	sb.Write(eventJSON)
	sb.WriteString("\n\nTranscript of the narrator:\n")
	if strings.TrimSpace(req.Transcript) == "" {
		sb.WriteString("(no speech)")
	} else {
		sb.WriteString(req.Transcript)
	}
	sb.WriteString("\n")
	return sb.String(), nil
}

type wireStep struct {
	model.GuideStep
	Audio *struct {
		NarrationText string `json:"narrationText"`
	} `json:"audio,omitempty"`
}

type wireGuide struct {
	Title   string     `json:"title"`
	Summary string     `json:"summary"`
	Steps   []wireStep `json:"steps"`
}

// parseGuide extracts the guide object from a model answer, tolerating code
// fences and prose around it.
func parseGuide(content string) (*model.Guide, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object", ErrMalformedGuide)
	}

	var w wireGuide
	if err := json.Unmarshal([]byte(content[start:end+1]), &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedGuide, err)
	}

	g := &model.Guide{
		Title:   strings.TrimSpace(w.Title),
		Summary: strings.TrimSpace(w.Summary),
		Steps:   make([]model.GuideStep, 0, len(w.Steps)),
	}
	for _, ws := range w.Steps {
		step := ws.GuideStep
		if step.NarrationText == "" && ws.Audio != nil {
			step.NarrationText = ws.Audio.NarrationText
		}
		// URLs are assigned by the pipeline, never by the model.
		step.ScreenshotURL = ""
		step.AudioURL = ""
		g.Steps = append(g.Steps, step)
	}
	if g.Title == "" {
		g.Title = "Untitled guide"
	}
	return g, nil
}
