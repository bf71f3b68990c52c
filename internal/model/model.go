package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrPhaseRegression is returned when a recording is asked to move
	// back to an earlier processing phase.
	ErrPhaseRegression = errors.New("phase regression")
)

type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

func ParseStatus(raw string) (Status, error) {
	switch s := Status(strings.TrimSpace(raw)); s {
	case StatusProcessing, StatusCompleted, StatusFailed:
		return s, nil
	default:
		return "", fmt.Errorf("invalid status: %q", raw)
	}
}

// Phase is the audio pipeline progress of a recording. Values are ordered:
// a recording only ever moves to a greater phase.
type Phase int

const (
	PhaseExtracting Phase = iota
	PhaseCleaning
	PhaseSynthesizing
	PhaseCompleted
)

var phaseNames = [...]string{"extracting", "cleaning", "synthesizing", "completed"}

func (p Phase) String() string {
	if p < PhaseExtracting || p > PhaseCompleted {
		return fmt.Sprintf("Phase(%d)", int(p))
	}
	return phaseNames[p]
}

func ParsePhase(raw string) (Phase, error) {
	for i, name := range phaseNames {
		if name == raw {
			return Phase(i), nil
		}
	}
	return 0, fmt.Errorf("invalid audio status: %q", raw)
}

func (p Phase) MarshalText() ([]byte, error) {
	if p < PhaseExtracting || p > PhaseCompleted {
		return nil, fmt.Errorf("invalid phase %d", int(p))
	}
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(b []byte) error {
	parsed, err := ParsePhase(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Metadata is what the capture client reports about the session.
// Times are milliseconds since epoch, duration is in seconds.
type Metadata struct {
	Duration  float64  `json:"duration"`
	StartTime float64  `json:"startTime,omitempty"`
	EndTime   float64  `json:"endTime,omitempty"`
	URL       string   `json:"url,omitempty"`
	Viewport  Viewport `json:"viewport"`
}

type EventTarget struct {
	TagName  string `json:"tagName,omitempty"`
	Text     string `json:"text,omitempty"`
	Selector string `json:"selector,omitempty"`
}

// Event is one captured user interaction.
type Event struct {
	Type      string       `json:"type"`
	Timestamp float64      `json:"timestamp"`
	URL       string       `json:"url,omitempty"`
	Value     string       `json:"value,omitempty"`
	X         float64      `json:"x,omitempty"`
	Y         float64      `json:"y,omitempty"`
	Target    *EventTarget `json:"target,omitempty"`
}

// Recording is one captured session and the state of its processing.
//
// Status is derived from Phase and Failure so that a completed recording
// always carries a guide and a completed audio phase.
type Recording struct {
	ID           string
	UserID       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	MediaKey     string
	MediaURL     string
	MimeType     string
	ThumbnailURL string
	Events       []Event
	Metadata     Metadata
	Screenshots  []string

	Phase              Phase
	Failure            string
	OriginalTranscript string
	GeneratedGuide     *Guide
}

// NewRecording returns a recording in its initial (processing, extracting) state.
func NewRecording(id string, now time.Time) Recording {
	return Recording{
		ID:        id,
		CreatedAt: now,
		UpdatedAt: now,
		Phase:     PhaseExtracting,
	}
}

func (r Recording) Status() Status {
	switch {
	case r.Failure != "":
		return StatusFailed
	case r.Phase == PhaseCompleted:
		return StatusCompleted
	default:
		return StatusProcessing
	}
}

// Advance moves the recording forward to p. Moving to the current phase is
// a no-op. PhaseCompleted is only reachable through Complete.
func (r *Recording) Advance(p Phase) error {
	if p == PhaseCompleted {
		return fmt.Errorf("advance to %s: use Complete", p)
	}
	if p < r.Phase {
		return fmt.Errorf("%w: %s -> %s", ErrPhaseRegression, r.Phase, p)
	}
	r.Phase = p
	return nil
}

// Complete attaches the final guide and marks the recording completed.
func (r *Recording) Complete(g Guide) {
	r.GeneratedGuide = &g
	r.Phase = PhaseCompleted
}

// Fail records a terminal failure. The phase stays where it was.
func (r *Recording) Fail(err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	r.Failure = msg
}

type recordingJSON struct {
	ID                 string    `json:"id"`
	UserID             string    `json:"userId"`
	VideoURL           string    `json:"videoUrl"`
	MediaKey           string    `json:"mediaKey"`
	MimeType           string    `json:"mimeType"`
	ThumbnailURL       string    `json:"thumbnailUrl"`
	Duration           float64   `json:"duration"`
	Status             Status    `json:"status"`
	AudioStatus        Phase     `json:"audioStatus"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
	StartTime          float64   `json:"startTime,omitempty"`
	EndTime            float64   `json:"endTime,omitempty"`
	URL                string    `json:"url,omitempty"`
	Viewport           Viewport  `json:"viewport"`
	Events             []Event   `json:"events"`
	Screenshots        []string  `json:"screenshots"`
	OriginalTranscript string    `json:"originalTranscript,omitempty"`
	GeneratedGuide     *Guide    `json:"generatedGuide"`
	Error              string    `json:"error,omitempty"`
}

func (r Recording) MarshalJSON() ([]byte, error) {
	events := r.Events
	if events == nil {
		events = []Event{}
	}
	shots := r.Screenshots
	if shots == nil {
		shots = []string{}
	}
	return json.Marshal(recordingJSON{
		ID:                 r.ID,
		UserID:             r.UserID,
		VideoURL:           r.MediaURL,
		MediaKey:           r.MediaKey,
		MimeType:           r.MimeType,
		ThumbnailURL:       r.ThumbnailURL,
		Duration:           r.Metadata.Duration,
		Status:             r.Status(),
		AudioStatus:        r.Phase,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
		StartTime:          r.Metadata.StartTime,
		EndTime:            r.Metadata.EndTime,
		URL:                r.Metadata.URL,
		Viewport:           r.Metadata.Viewport,
		Events:             events,
		Screenshots:        shots,
		OriginalTranscript: r.OriginalTranscript,
		GeneratedGuide:     r.GeneratedGuide,
		Error:              r.Failure,
	})
}

func (r *Recording) UnmarshalJSON(b []byte) error {
	var raw recordingJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw.AudioStatus == PhaseCompleted && raw.GeneratedGuide == nil {
		return fmt.Errorf("recording %s: completed without a guide", raw.ID)
	}
	if raw.Status == StatusFailed && raw.Error == "" {
		raw.Error = "unknown error"
	}
	*r = Recording{
		ID:           raw.ID,
		UserID:       raw.UserID,
		CreatedAt:    raw.CreatedAt,
		UpdatedAt:    raw.UpdatedAt,
		MediaKey:     raw.MediaKey,
		MediaURL:     raw.VideoURL,
		MimeType:     raw.MimeType,
		ThumbnailURL: raw.ThumbnailURL,
		Events:       raw.Events,
		Metadata: Metadata{
			Duration:  raw.Duration,
			StartTime: raw.StartTime,
			EndTime:   raw.EndTime,
			URL:       raw.URL,
			Viewport:  raw.Viewport,
		},
		Screenshots:        raw.Screenshots,
		Phase:              raw.AudioStatus,
		Failure:            raw.Error,
		OriginalTranscript: raw.OriginalTranscript,
		GeneratedGuide:     raw.GeneratedGuide,
	}
	return nil
}
