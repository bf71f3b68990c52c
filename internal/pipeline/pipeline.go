// Package pipeline turns an uploaded recording into a narrated guide.
//
// A run moves a recording through transcription, guide synthesis, screenshot
// enrichment, narration and knowledge-base indexing, writing a full snapshot
// to the store at each phase boundary. Callers observe progress only through
// the store.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gaurav-shinde-07/clueso-ai/internal/model"
)

type Stage string

const (
	StageTranscription  Stage = "transcription"
	StageGuideSynthesis Stage = "guide_synthesis"
	StageNarration      Stage = "narration"
	StageIndexing       Stage = "indexing"
)

var (
	ErrEmptyMedia = errors.New("empty media")
	// ErrNotProcessing is returned by Run for recordings that already
	// completed or failed.
	ErrNotProcessing = errors.New("recording is not processing")
)

// StageError is a failure that halts the pipeline.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

type Store interface {
	GetRecording(ctx context.Context, id string) (model.Recording, error)
	SaveRecording(ctx context.Context, rec model.Recording) error
}

type MediaReader interface {
	ReadAll(key string) ([]byte, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, media []byte, mimeType string) (string, error)
}

type GuideSynthesizer interface {
	SynthesizeGuide(ctx context.Context, req model.GuideRequest) (*model.Guide, error)
}

// SpeechSynthesizer returns nil audio when it has nothing to say.
type SpeechSynthesizer interface {
	SynthesizeSpeech(ctx context.Context, text string) ([]byte, error)
}

type AssetStore interface {
	WriteAsset(ctx context.Context, name string, data []byte) (string, error)
}

type Indexer interface {
	IndexGuide(ctx context.Context, recordingID string, guide model.Guide) error
}

type Deps struct {
	Store       Store
	Media       MediaReader
	Transcriber Transcriber
	Synthesizer GuideSynthesizer
	Speech      SpeechSynthesizer
	Assets      AssetStore
	// Indexer may be nil when no knowledge base is configured.
	Indexer     Indexer
	Placeholder PlaceholderFunc
	Log         *logrus.Entry
}

type Orchestrator struct {
	store       Store
	media       MediaReader
	transcriber Transcriber
	synthesizer GuideSynthesizer
	speech      SpeechSynthesizer
	assets      AssetStore
	indexer     Indexer
	placeholder PlaceholderFunc
	log         *logrus.Entry

	wg sync.WaitGroup
}

func New(d Deps) *Orchestrator {
	placeholder := d.Placeholder
	if placeholder == nil {
		placeholder = TemplatePlaceholder("https://placehold.co/600x400?text=Step+%d")
	}
	log := d.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Orchestrator{
		store:       d.Store,
		media:       d.Media,
		transcriber: d.Transcriber,
		synthesizer: d.Synthesizer,
		speech:      d.Speech,
		assets:      d.Assets,
		indexer:     d.Indexer,
		placeholder: placeholder,
		log:         log,
	}
}

// Start runs the pipeline for id in the background and returns immediately.
// The run does not inherit any request context and cannot be cancelled.
func (o *Orchestrator) Start(id string) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				o.log.WithField("recording_id", id).Errorf("pipeline panic: %v", r)
			}
		}()
		if err := o.Run(context.Background(), id); err != nil {
			o.log.WithField("recording_id", id).WithError(err).Error("pipeline halted")
		}
	}()
}

// Wait blocks until every run started with Start has returned.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Run drives one recording through every stage. It returns the fatal error
// that halted it, if any; narration and indexing failures are never returned.
func (o *Orchestrator) Run(ctx context.Context, id string) error {
	log := o.log.WithField("recording_id", id)
	start := time.Now()
	log.Info("pipeline starting")

	rec, err := o.store.GetRecording(ctx, id)
	if err != nil {
		return fmt.Errorf("load recording %s: %w", id, err)
	}
	if status := rec.Status(); status != model.StatusProcessing {
		return fmt.Errorf("%w: %s is %s", ErrNotProcessing, id, status)
	}

	// A recording interrupted after transcription resumes with its stored
	// transcript. The guide is only persisted at completion, so synthesis
	// always runs.
	if rec.Phase < model.PhaseCleaning {
		transcript, err := o.transcribe(ctx, log, rec)
		if err != nil {
			return o.halt(ctx, log, &rec, StageTranscription, err)
		}
		rec.OriginalTranscript = transcript
		if err := o.commit(ctx, &rec, model.PhaseCleaning); err != nil {
			return err
		}
	} else {
		log.WithField("phase", rec.Phase).Info("resuming with stored transcript")
	}

	guide, err := o.synthesize(ctx, rec)
	if err != nil {
		return o.halt(ctx, log, &rec, StageGuideSynthesis, err)
	}
	log.WithField("steps", len(guide.Steps)).Info("guide generated")
	if err := o.commit(ctx, &rec, model.PhaseSynthesizing); err != nil {
		return err
	}

	Enrich(guide, rec.Screenshots, o.placeholder)

	report := o.narrate(ctx, log.WithField("stage", StageNarration), rec.ID, guide)
	log.WithFields(logrus.Fields{
		"eligible":    report.Eligible,
		"synthesized": report.Synthesized,
		"silent":      report.Silent,
		"failed":      report.Failed,
	}).Info("narration finished")

	rec.Complete(*guide)
	if err := o.store.SaveRecording(ctx, rec); err != nil {
		return fmt.Errorf("save completed recording: %w", err)
	}

	o.index(ctx, log.WithField("stage", StageIndexing), rec.ID, *guide)

	log.WithField("duration_ms", time.Since(start).Milliseconds()).Info("pipeline completed")
	return nil
}

func (o *Orchestrator) transcribe(ctx context.Context, log *logrus.Entry, rec model.Recording) (string, error) {
	media, err := o.media.ReadAll(rec.MediaKey)
	if err != nil {
		return "", fmt.Errorf("read media: %w", err)
	}
	if len(media) == 0 {
		return "", ErrEmptyMedia
	}
	mimeType := NormalizeMIME(rec.MimeType)
	log.WithFields(logrus.Fields{
		"declared_mime": rec.MimeType,
		"mime":          mimeType,
		"bytes":         len(media),
	}).Info("media loaded")

	transcript, err := o.transcriber.Transcribe(ctx, media, mimeType)
	if err != nil {
		return "", err
	}
	log.WithField("transcript_length", len(transcript)).Info("transcription finished")
	return transcript, nil
}

func (o *Orchestrator) synthesize(ctx context.Context, rec model.Recording) (*model.Guide, error) {
	guide, err := o.synthesizer.SynthesizeGuide(ctx, model.GuideRequest{
		Events:     rec.Events,
		Duration:   rec.Metadata.Duration,
		Transcript: rec.OriginalTranscript,
		Viewport:   rec.Metadata.Viewport,
	})
	if err != nil {
		return nil, err
	}
	if guide == nil {
		return nil, errors.New("synthesizer returned no guide")
	}
	guide.Renumber()
	return guide, nil
}

func (o *Orchestrator) index(ctx context.Context, log *logrus.Entry, id string, guide model.Guide) {
	if o.indexer == nil {
		log.Debug("knowledge base disabled, skipping indexing")
		return
	}
	if err := o.indexer.IndexGuide(ctx, id, guide); err != nil {
		log.WithError(err).Warn("knowledge base indexing failed")
		return
	}
	log.Info("guide indexed")
}

// commit advances the recording and writes the full snapshot. A phase the
// recording already reached is not written again.
func (o *Orchestrator) commit(ctx context.Context, rec *model.Recording, p model.Phase) error {
	if rec.Phase >= p {
		return nil
	}
	if err := rec.Advance(p); err != nil {
		return err
	}
	if err := o.store.SaveRecording(ctx, *rec); err != nil {
		return fmt.Errorf("save recording at %s: %w", p, err)
	}
	return nil
}

// halt records a fatal stage failure on the recording and returns it.
func (o *Orchestrator) halt(ctx context.Context, log *logrus.Entry, rec *model.Recording, stage Stage, err error) error {
	stageErr := &StageError{Stage: stage, Err: err}
	rec.Fail(stageErr)
	if saveErr := o.store.SaveRecording(ctx, *rec); saveErr != nil {
		log.WithError(saveErr).Error("could not record pipeline failure")
	}
	return stageErr
}
