package model

import "strings"

type Guide struct {
	Title   string      `json:"title"`
	Summary string      `json:"summary,omitempty"`
	Steps   []GuideStep `json:"steps"`
}

// GuideStep is identified only by its StepIndex, which is also the join key
// to the recording's screenshots and the narration asset name.
type GuideStep struct {
	StepIndex     int     `json:"stepIndex"`
	Title         string  `json:"title"`
	Description   string  `json:"description,omitempty"`
	Timestamp     float64 `json:"timestamp,omitempty"`
	ScreenshotURL string  `json:"screenshotUrl,omitempty"`
	NarrationText string  `json:"narrationText,omitempty"`
	AudioURL      string  `json:"audioUrl,omitempty"`
}

func (s GuideStep) NeedsNarration() bool {
	return strings.TrimSpace(s.NarrationText) != ""
}

// Renumber makes step indexes match positions.
func (g *Guide) Renumber() {
	for i := range g.Steps {
		g.Steps[i].StepIndex = i
	}
}

// Clone returns a deep copy of the guide.
func (g Guide) Clone() Guide {
	out := g
	out.Steps = append([]GuideStep(nil), g.Steps...)
	return out
}

// GuideRequest is the input to guide synthesis.
type GuideRequest struct {
	Events     []Event
	Duration   float64
	Transcript string
	Viewport   Viewport
}
