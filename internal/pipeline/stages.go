package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/gaurav-shinde-07/clueso-ai/internal/model"
)

// NormalizeMIME maps a declared media type onto one of the types the
// transcription provider accepts. Unknown types fall back to audio/webm.
func NormalizeMIME(raw string) string {
	switch {
	case strings.Contains(raw, "webm"):
		return "video/webm"
	case strings.Contains(raw, "mp4"):
		return "video/mp4"
	default:
		return "audio/webm"
	}
}

// PlaceholderFunc builds the screenshot address of a step that has no
// screenshot. It receives the 1-based step number.
type PlaceholderFunc func(stepNumber int) string

// TemplatePlaceholder formats the step number into a fmt template. A
// template that is not exactly one %d verb is used literally with the step
// number appended.
func TemplatePlaceholder(template string) PlaceholderFunc {
	if !ValidPlaceholderTemplate(template) {
		return func(n int) string { return template + strconv.Itoa(n) }
	}
	return func(n int) string { return fmt.Sprintf(template, n) }
}

// ValidPlaceholderTemplate reports whether template has exactly one verb and
// that verb is %d.
func ValidPlaceholderTemplate(template string) bool {
	return strings.Count(template, "%") == 1 && strings.Count(template, "%d") == 1
}

// Enrich assigns screenshots to steps by position.
func Enrich(g *model.Guide, screenshots []string, placeholder PlaceholderFunc) {
	for i := range g.Steps {
		if i < len(screenshots) && screenshots[i] != "" {
			g.Steps[i].ScreenshotURL = screenshots[i]
			continue
		}
		g.Steps[i].ScreenshotURL = placeholder(i + 1)
	}
}

// AssetName is the narration asset name for one step.
func AssetName(recordingID string, stepIndex int) string {
	return fmt.Sprintf("audio_%s_%d.mp3", recordingID, stepIndex)
}

type NarrationReport struct {
	Eligible    int
	Synthesized int
	Silent      int
	Failed      int
}

type narrationOutcome int

const (
	outcomeSkipped narrationOutcome = iota
	outcomeSynthesized
	outcomeSilent
	outcomeFailed
)

// narrate synthesizes audio for every step with narration text, one
// goroutine per step, and returns once all of them have settled. A failing
// step keeps no audio and does not affect the others.
func (o *Orchestrator) narrate(ctx context.Context, log *logrus.Entry, recordingID string, g *model.Guide) NarrationReport {
	outcomes := make([]narrationOutcome, len(g.Steps))
	var wg sync.WaitGroup

	for i := range g.Steps {
		if !g.Steps[i].NeedsNarration() {
			continue
		}
		wg.Add(1)
		go func(step *model.GuideStep, out *narrationOutcome) {
			defer wg.Done()
			stepLog := log.WithField("step_index", step.StepIndex)

			url, err := o.narrateStep(ctx, recordingID, *step)
			switch {
			case err != nil:
				stepLog.WithError(err).Warn("narration failed for step")
				*out = outcomeFailed
			case url == "":
				stepLog.Debug("speech provider returned no audio")
				*out = outcomeSilent
			default:
				step.AudioURL = url
				*out = outcomeSynthesized
			}
		}(&g.Steps[i], &outcomes[i])
	}
	wg.Wait()

	var report NarrationReport
	for _, out := range outcomes {
		switch out {
		case outcomeSynthesized:
			report.Synthesized++
		case outcomeSilent:
			report.Silent++
		case outcomeFailed:
			report.Failed++
		default:
			continue
		}
		report.Eligible++
	}
	return report
}

func (o *Orchestrator) narrateStep(ctx context.Context, recordingID string, step model.GuideStep) (url string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("narration panic: %v", r)
		}
	}()

	audio, err := o.speech.SynthesizeSpeech(ctx, step.NarrationText)
	if err != nil {
		return "", err
	}
	if len(audio) == 0 {
		return "", nil
	}
	url, err = o.assets.WriteAsset(ctx, AssetName(recordingID, step.StepIndex), audio)
	if err != nil {
		return "", fmt.Errorf("store narration: %w", err)
	}
	return url, nil
}
