// Package export renders processed recordings as spreadsheets.
package export

import (
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/gaurav-shinde-07/clueso-ai/internal/model"
)

const (
	GuideSheet     = "Guide"
	RecordingSheet = "Recording"
)

var ErrNoGuide = errors.New("recording has no guide yet")

var guideHeader = []any{"Step", "Title", "Description", "Timestamp (s)", "Narration", "Screenshot", "Audio"}

// WriteGuide writes a workbook with the guide steps and the recording summary.
func WriteGuide(w io.Writer, rec model.Recording) error {
	if rec.GeneratedGuide == nil {
		return ErrNoGuide
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", GuideSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(GuideSheet, "A1", &guideHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, s := range rec.GeneratedGuide.Steps {
		row := []any{s.StepIndex + 1, s.Title, s.Description, s.Timestamp, s.NarrationText, s.ScreenshotURL, s.AudioURL}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(GuideSheet, cell, &row); err != nil {
			return fmt.Errorf("write step %d: %w", s.StepIndex, err)
		}
	}

	if _, err := f.NewSheet(RecordingSheet); err != nil {
		return fmt.Errorf("add sheet: %w", err)
	}
	summary := [][]any{
		{"Recording", rec.ID},
		{"Title", rec.GeneratedGuide.Title},
		{"Summary", rec.GeneratedGuide.Summary},
		{"Status", string(rec.Status())},
		{"Audio status", rec.Phase.String()},
		{"Duration (s)", rec.Metadata.Duration},
		{"URL", rec.Metadata.URL},
		{"Created", rec.CreatedAt.UTC().Format("2006-01-02 15:04:05")},
		{"Transcript", rec.OriginalTranscript},
	}
	for i, row := range summary {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(RecordingSheet, cell, &row); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
